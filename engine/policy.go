package engine

import (
	"fmt"
	"math"
	"time"

	"whale-copytrader/api"
	"whale-copytrader/config"
	"whale-copytrader/models"
)

// Verdict classifies a policy decision.
type Verdict int

const (
	VerdictAccepted Verdict = iota
	VerdictSkipped
	VerdictFailed
)

// Decision is the outcome of running one signal through the gate sequence
// and sizing math. Price/Size/Token are set only when accepted; Reason only
// when skipped; Err only when failed. AgeSec, Midpoint and Drift carry the
// observed values for status messages.
type Decision struct {
	Verdict  Verdict
	Reason   string
	Err      error
	Price    float64
	Size     float64
	Token    *api.TokenInfo
	AgeSec   int64
	Midpoint float64
	Drift    float64
}

func skipped(reason string) Decision {
	return Decision{Verdict: VerdictSkipped, Reason: reason}
}

func failed(err error) Decision {
	return Decision{Verdict: VerdictFailed, Err: err}
}

// Policy holds the gate thresholds. It is pure computation; it never
// performs I/O.
type Policy struct {
	MaxTradeAge     time.Duration
	MidpointFloor   float64
	MidpointCeiling float64
	MaxPriceDrift   float64
	MinOrderUSD     float64
}

// NewPolicy builds a Policy from engine configuration.
func NewPolicy(cfg config.EngineConfig) *Policy {
	return &Policy{
		MaxTradeAge:     time.Duration(cfg.MaxTradeAgeSec) * time.Second,
		MidpointFloor:   cfg.MidpointFloor,
		MidpointCeiling: cfg.MidpointCeiling,
		MaxPriceDrift:   cfg.MaxPriceDrift,
		MinOrderUSD:     cfg.MinOrderUSD,
	}
}

// Prevalidate runs the gates that need no market data: side and freshness.
// The orchestrator calls it before fetching the market so SELL and stale
// signals never cost an HTTP round trip. Returns an accepted zero Decision
// when both gates pass.
func (p *Policy) Prevalidate(signal *models.TradeSignal, now time.Time) Decision {
	if signal.Side != models.SideBuy {
		return skipped(models.ReasonSellTrade)
	}
	age := now.Unix() - signal.Timestamp
	if age > int64(p.MaxTradeAge/time.Second) {
		d := skipped(models.ReasonStale)
		d.AgeSec = age
		return d
	}
	return Decision{Verdict: VerdictAccepted}
}

// Decide runs the full gate sequence and sizing math. Gates short-circuit
// in order; later checks assume earlier ones passed. It re-checks the
// Prevalidate gates so it stands alone as the complete decision function.
func (p *Policy) Decide(signal *models.TradeSignal, cfg models.CopyTradeConfig, market *api.MarketInfo, midpoint float64, now time.Time) Decision {
	// 1-2. Side and freshness.
	if pre := p.Prevalidate(signal, now); pre.Verdict != VerdictAccepted {
		return pre
	}

	// 3. Market must be accepting orders.
	if !market.AcceptingOrders {
		return skipped(models.ReasonMarketClosed)
	}

	// 4. The outcome must exist on the market. A miss is a data-integrity
	// failure, not a routine skip.
	token := market.TokenForOutcome(signal.Outcome)
	if token == nil {
		return failed(fmt.Errorf("outcome %q not found in market", signal.Outcome))
	}

	// 5. Near-certain midpoints mean the market has effectively resolved.
	if midpoint <= p.MidpointFloor || midpoint >= p.MidpointCeiling {
		d := skipped(models.ReasonResolved)
		d.Midpoint = midpoint
		return d
	}

	// 6. The market must not have moved materially since the whale traded.
	drift := math.Abs(midpoint-signal.Price) / signal.Price
	if drift > p.MaxPriceDrift {
		d := skipped(models.ReasonPriceDrift)
		d.Midpoint = midpoint
		d.Drift = drift
		return d
	}

	tickSize := market.MinimumTickSize
	if tickSize <= 0 {
		tickSize = 0.01
	}

	// Scale by multiplier, then cap by the per-trade USD budget.
	size := signal.Size * cfg.Multiplier
	maxSharesByUSD := cfg.MaxSingleTrade / signal.Price
	if size > maxSharesByUSD {
		size = maxSharesByUSD
	}

	// Bid slightly above the whale to improve fill odds, never above 0.99.
	price := signal.Price * (1 + cfg.PriceImprovementPct)
	if price > 0.99 {
		price = 0.99
	}

	// Round price down to the tick and size down to share granularity.
	// Rounding down never pays more than intended.
	price = roundToTick(price, tickSize)
	size = roundSize(size)

	// Minimums win over caps: an order below exchange minimums would just
	// be rejected, so raise the size instead.
	if size*price < p.MinOrderUSD {
		size = ceilSize(p.MinOrderUSD / price)
	}
	if size < market.MinimumOrderSize {
		size = ceilSize(market.MinimumOrderSize)
	}

	if size <= 0 || price <= 0 {
		return skipped(models.ReasonZeroOrder)
	}

	return Decision{
		Verdict:  VerdictAccepted,
		Price:    price,
		Size:     size,
		Token:    token,
		Midpoint: midpoint,
		Drift:    drift,
	}
}

// roundToTick rounds price down to a multiple of tickSize. A small epsilon
// keeps already-aligned prices stable under float division, so the round is
// idempotent.
func roundToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	ticks := math.Floor(price/tickSize + 1e-6)
	return math.Round(ticks*tickSize*1e6) / 1e6
}

// roundSize rounds a share size down to 2 decimal places.
func roundSize(size float64) float64 {
	return math.Floor(size*100+1e-6) / 100
}

// ceilSize rounds a share size up to 2 decimal places.
func ceilSize(size float64) float64 {
	return math.Ceil(size*100-1e-6) / 100
}

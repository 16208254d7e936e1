package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"whale-copytrader/api"
	"whale-copytrader/models"
)

// Engine orchestrates copy attempts: it runs each inbound signal through
// the gate sequence, places the replica order, and broadcasts lifecycle
// events. Signals are handled in independent goroutines with no queue and
// no per-market lock; two near-simultaneous signals for the same market can
// both pass validation before either order lands.
type Engine struct {
	client  api.ClobClientInterface // nil runs the engine read-only
	policy  *Policy
	breaker *Breaker
	hub     *Hub
	metrics *Metrics
	wallet  string

	now func() time.Time

	wg sync.WaitGroup
}

// StatusSnapshot is the engine state exposed over the status endpoint.
type StatusSnapshot struct {
	Paused      bool          `json:"paused"`
	Wallet      string        `json:"wallet"`
	LastBalance float64       `json:"lastBalance"`
	ReadOnly    bool          `json:"readOnly"`
	Observers   int           `json:"observers"`
	Metrics     EngineMetrics `json:"metrics"`
}

// New wires an engine together. client may be nil; every signal then fails
// with no_client after the validation gates, but status reporting and the
// breaker keep working.
func New(client api.ClobClientInterface, policy *Policy, breaker *Breaker, hub *Hub, metrics *Metrics, wallet string) *Engine {
	return &Engine{
		client:  client,
		policy:  policy,
		breaker: breaker,
		hub:     hub,
		metrics: metrics,
		wallet:  wallet,
		now:     time.Now,
	}
}

// Start begins balance polling. Without a configured wallet there is
// nothing to sample, so the poller never starts.
func (e *Engine) Start(ctx context.Context) {
	if e.wallet == "" {
		log.Printf("[Engine] Balance polling disabled (no wallet configured)")
		return
	}
	e.breaker.Start(ctx)
}

// Stop halts polling and waits for in-flight signal pipelines to finish.
func (e *Engine) Stop() {
	e.breaker.Stop()
	e.wg.Wait()
}

// OnSignal launches one copy attempt. Fire-and-forget: it never blocks the
// caller and never lets an error escape the pipeline.
func (e *Engine) OnSignal(signal *models.TradeSignal, cfg models.CopyTradeConfig) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Engine] Unhandled panic in copy pipeline: %v", r)
			}
		}()
		e.execute(context.Background(), signal, cfg.Clamp())
	}()
}

func (e *Engine) execute(ctx context.Context, signal *models.TradeSignal, cfg models.CopyTradeConfig) {
	label := signal.Label()

	e.metrics.Detected()
	e.emit(signal, models.StatusDetected, fmt.Sprintf("%s — %s %v@%v", label, signal.Side, signal.Size, signal.Price), "", "", nil)

	// Breaker gate. A pipeline already past this point when the breaker
	// trips still completes its exchange call; the breaker only blocks
	// pipelines that have not started.
	if e.breaker.Paused() {
		e.skip(signal, models.ReasonCircuitBreaker, fmt.Sprintf("%s — engine paused (circuit breaker)", label))
		log.Printf("[Engine] Skipped (engine paused): %s", label)
		return
	}

	e.emit(signal, models.StatusValidating, fmt.Sprintf("%s — checking trade validity", label), "", "", nil)

	now := e.now()
	switch pre := e.policy.Prevalidate(signal, now); pre.Reason {
	case models.ReasonSellTrade:
		e.skip(signal, pre.Reason, fmt.Sprintf("%s — only BUY trades are copied", label))
		log.Printf("[Engine] Skipped (SELL): %s", label)
		return
	case models.ReasonStale:
		e.skip(signal, pre.Reason, fmt.Sprintf("%s — trade is %ds old (max %ds)", label, pre.AgeSec, int(e.policy.MaxTradeAge/time.Second)))
		log.Printf("[Engine] Skipped (stale %ds): %s", pre.AgeSec, label)
		return
	}

	if e.client == nil {
		e.fail(signal, "no_client", fmt.Sprintf("%s — CLOB client not initialized", label))
		log.Printf("[Engine] Skipped (no client): %s", label)
		return
	}

	market, err := e.client.GetMarket(ctx, signal.ConditionID)
	if err != nil {
		e.fail(signal, err.Error(), fmt.Sprintf("%s — could not fetch market", label))
		log.Printf("[Engine] Market fetch failed for %s: %v", signal.ConditionID, err)
		return
	}

	if !market.AcceptingOrders {
		e.skip(signal, models.ReasonMarketClosed, fmt.Sprintf("%s — market not accepting orders", label))
		log.Printf("[Engine] Skipped (not accepting orders): %s", label)
		return
	}

	token := market.TokenForOutcome(signal.Outcome)
	if token == nil {
		e.fail(signal, "outcome_not_found", fmt.Sprintf("%s — outcome %q not found in market", label, signal.Outcome))
		log.Printf("[Engine] Outcome %q not found in market %s", signal.Outcome, signal.ConditionID)
		return
	}

	midpoint, err := e.client.GetMidpoint(ctx, token.TokenID)
	if err != nil {
		e.fail(signal, err.Error(), fmt.Sprintf("%s — could not fetch midpoint", label))
		log.Printf("[Engine] Midpoint fetch failed: %v", err)
		return
	}

	decision := e.policy.Decide(signal, cfg, market, midpoint, now)
	switch decision.Verdict {
	case VerdictFailed:
		e.fail(signal, decision.Err.Error(), fmt.Sprintf("%s — %v", label, decision.Err))
		log.Printf("[Engine] Validation failed: %v", decision.Err)
		return
	case VerdictSkipped:
		e.skip(signal, decision.Reason, skipMessage(label, signal, decision))
		log.Printf("[Engine] Skipped (%s): %s", decision.Reason, label)
		return
	}

	tickSize := market.MinimumTickSize
	if tickSize <= 0 {
		tickSize = 0.01
	}

	e.metrics.Placed()
	e.emit(signal, models.StatusPlacing,
		fmt.Sprintf("%s — BUY %v@%v (whale: %v@%v)", label, decision.Size, decision.Price, signal.Size, signal.Price),
		"", "", nil)
	log.Printf("[Engine] Placing order: BUY %v@%v token=%s tick=%v negRisk=%v",
		decision.Size, decision.Price, decision.Token.TokenID, tickSize, market.NegRisk)

	resp, err := e.client.CreateAndPostOrder(ctx,
		api.OrderParams{
			TokenID: decision.Token.TokenID,
			Price:   decision.Price,
			Side:    api.SideBuy,
			Size:    decision.Size,
		},
		api.OrderOptions{TickSize: tickSize, NegRisk: market.NegRisk},
		api.OrderTypeGTC,
	)
	if err != nil {
		e.fail(signal, err.Error(), fmt.Sprintf("%s — order error: %v", label, err))
		log.Printf("[Engine] Order execution error: %v", err)
		if isBalanceError(err.Error()) {
			e.breaker.Trip()
		}
		return
	}

	if !resp.Success {
		errMsg := resp.ErrorMsg
		if errMsg == "" {
			errMsg = resp.Status
		}
		if errMsg == "" {
			errMsg = "unknown error"
		}
		e.fail(signal, errMsg, fmt.Sprintf("%s — order rejected: %s", label, errMsg))
		log.Printf("[Engine] Order rejected: %s", errMsg)
		if isBalanceError(errMsg) {
			e.breaker.Trip()
		}
		return
	}

	var orderID *string
	if resp.OrderID != "" {
		orderID = &resp.OrderID
	}
	e.metrics.Filled()
	e.emit(signal, models.StatusFilled,
		fmt.Sprintf("%s — order placed: %v@%v", label, decision.Size, decision.Price),
		"", "", orderID)
	log.Printf("[Engine] Order placed successfully: %s", resp.OrderID)
}

func skipMessage(label string, signal *models.TradeSignal, d Decision) string {
	switch d.Reason {
	case models.ReasonResolved:
		return fmt.Sprintf("%s — midpoint %v is near 0 or 1 (likely resolved)", label, d.Midpoint)
	case models.ReasonPriceDrift:
		return fmt.Sprintf("%s — price drifted %.1f%% (mid=%v, whale=%v)", label, d.Drift*100, d.Midpoint, signal.Price)
	case models.ReasonZeroOrder:
		return fmt.Sprintf("%s — calculated size or price is zero", label)
	default:
		return fmt.Sprintf("%s — skipped (%s)", label, d.Reason)
	}
}

// isBalanceError guesses whether an exchange error means insufficient
// funds. The CLOB has no structured error code for this, so the check is a
// best-effort substring match and may misfire on unrelated errors that
// happen to mention "balance".
func isBalanceError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "balance") || strings.Contains(lower, "insufficient")
}

func (e *Engine) skip(signal *models.TradeSignal, reason, message string) {
	e.metrics.Skipped(reason)
	e.emit(signal, models.StatusSkipped, message, reason, "", nil)
}

func (e *Engine) fail(signal *models.TradeSignal, errText, message string) {
	e.metrics.Failed()
	e.emit(signal, models.StatusFailed, message, "", errText, nil)
}

func (e *Engine) emit(signal *models.TradeSignal, status models.OrderStatus, message, reason, errText string, orderID *string) {
	e.hub.Publish(models.StatusEvent{
		Type:        "status",
		OrderID:     orderID,
		Status:      status,
		Message:     message,
		Reason:      reason,
		Error:       errText,
		Timestamp:   time.Now().Unix(),
		WalletLabel: signal.WalletLabel,
		Trade:       signal,
	})
}

// ConnectSnapshot returns the events a newly connected observer should
// receive immediately: the current engine state and, when known, the last
// balance sample.
func (e *Engine) ConnectSnapshot() (models.EngineEvent, *models.BalanceEvent) {
	state := models.EngineEvent{
		Type:    "engine",
		Status:  models.EngineActive,
		Message: "Copy-trade engine running",
	}
	if e.breaker.Paused() {
		state.Status = models.EnginePaused
		state.Message = "Copy-trade engine paused (insufficient balance)"
	}

	var balance *models.BalanceEvent
	if last := e.breaker.LastBalance(); last >= 0 {
		balance = &models.BalanceEvent{
			Type:      "balance",
			USDCe:     last,
			Timestamp: time.Now().Unix(),
		}
	}
	return state, balance
}

// Snapshot reports engine state for the status endpoint.
func (e *Engine) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		Paused:      e.breaker.Paused(),
		Wallet:      e.wallet,
		LastBalance: e.breaker.LastBalance(),
		ReadOnly:    e.client == nil,
		Observers:   e.hub.Subscribers(),
		Metrics:     e.metrics.Snapshot(),
	}
}

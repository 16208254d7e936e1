// Package models defines the wire contract between the whale tracker,
// the copy-trade engine, and connected dashboard observers.
package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Side of a trade as reported by the tracker.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// TradeSignal is an observed whale trade that may be replicated.
// It is immutable once constructed and owned by a single execution attempt.
type TradeSignal struct {
	ConditionID     string  `json:"conditionId"`
	Title           string  `json:"title"`
	Outcome         string  `json:"outcome"`
	Side            string  `json:"side"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	TransactionHash string  `json:"transactionHash"`
	WalletLabel     string  `json:"walletLabel"`
}

// Validate checks the fields a signal must carry before it enters the
// pipeline. Prices of exactly 0 or 1 are rejected downstream by the
// midpoint gate, not here.
func (t *TradeSignal) Validate() error {
	if t.ConditionID == "" || t.Outcome == "" || t.Side == "" {
		return fmt.Errorf("signal missing conditionId, outcome or side")
	}
	if math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0 {
		return fmt.Errorf("signal price %v is not a positive finite number", t.Price)
	}
	if math.IsNaN(t.Size) || math.IsInf(t.Size, 0) || t.Size <= 0 {
		return fmt.Errorf("signal size %v is not a positive finite number", t.Size)
	}
	return nil
}

// Label returns the human-readable prefix used in status messages.
func (t *TradeSignal) Label() string {
	return fmt.Sprintf("[%s] %s %s", t.WalletLabel, t.Title, t.Outcome)
}

// CopyTradeConfig holds the per-wallet replication parameters supplied with
// every signal. The engine clamps untrusted values on receipt and never
// persists or mutates the caller's copy.
type CopyTradeConfig struct {
	Multiplier          float64 `json:"multiplier"`
	MaxSingleTrade      float64 `json:"maxSingleTrade"`
	PriceImprovementPct float64 `json:"priceImprovementPct"`
}

// Clamp returns a copy with every parameter forced into its allowed range.
// Zero values fall back to the defaults the dashboard ships with.
func (c CopyTradeConfig) Clamp() CopyTradeConfig {
	if c.Multiplier == 0 {
		c.Multiplier = 0.5
	}
	if c.MaxSingleTrade == 0 {
		c.MaxSingleTrade = 1
	}
	if c.PriceImprovementPct == 0 {
		c.PriceImprovementPct = 0.02
	}
	c.Multiplier = clamp(c.Multiplier, 0.01, 10)
	c.MaxSingleTrade = clamp(c.MaxSingleTrade, 0.5, 10000)
	c.PriceImprovementPct = clamp(c.PriceImprovementPct, 0, 0.10)
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MessageTypeCopyTrade is the only inbound message type the engine accepts.
const MessageTypeCopyTrade = "copy_trade"

// IncomingMessage is the envelope observers send to request a copy trade.
type IncomingMessage struct {
	Type   string           `json:"type"`
	Trade  *TradeSignal     `json:"trade"`
	Config *CopyTradeConfig `json:"config"`
}

// ParseIncoming decodes and validates an inbound envelope. Malformed input
// returns an error; the transport drops it with a warning and no reply.
func ParseIncoming(raw []byte) (*IncomingMessage, error) {
	var msg IncomingMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if msg.Type != MessageTypeCopyTrade {
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	if msg.Trade == nil || msg.Config == nil {
		return nil, fmt.Errorf("message missing trade or config")
	}
	if err := msg.Trade.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

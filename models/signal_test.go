package models

import (
	"strings"
	"testing"
)

func TestParseIncoming(t *testing.T) {
	valid := `{
		"type": "copy_trade",
		"trade": {
			"conditionId": "0xc0ffee", "title": "Test market", "outcome": "Yes",
			"side": "BUY", "size": 100, "price": 0.5,
			"timestamp": 1700000000, "transactionHash": "0xabc", "walletLabel": "whale-1"
		},
		"config": {"multiplier": 0.5, "maxSingleTrade": 1, "priceImprovementPct": 0.02}
	}`

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"valid envelope", valid, ""},
		{"malformed json", `{"type": "copy_trade"`, "invalid JSON"},
		{"unknown type", `{"type": "ping"}`, "unknown message type"},
		{"missing trade", `{"type": "copy_trade", "config": {}}`, "missing trade or config"},
		{"missing config", strings.Replace(valid, `"config"`, `"settings"`, 1), "missing trade or config"},
		{"zero price", strings.Replace(valid, `"price": 0.5`, `"price": 0`, 1), "price"},
		{"negative size", strings.Replace(valid, `"size": 100`, `"size": -3`, 1), "size"},
		{"empty outcome", strings.Replace(valid, `"outcome": "Yes"`, `"outcome": ""`, 1), "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseIncoming([]byte(tt.raw))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseIncoming() error = %v, want nil", err)
				}
				if msg.Trade.ConditionID != "0xc0ffee" || msg.Config.Multiplier != 0.5 {
					t.Errorf("parsed message = %+v, fields lost", msg)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseIncoming() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCopyTradeConfigClamp(t *testing.T) {
	tests := []struct {
		name string
		in   CopyTradeConfig
		want CopyTradeConfig
	}{
		{
			name: "zero values fall back to defaults",
			in:   CopyTradeConfig{},
			want: CopyTradeConfig{Multiplier: 0.5, MaxSingleTrade: 1, PriceImprovementPct: 0.02},
		},
		{
			name: "in-range values untouched",
			in:   CopyTradeConfig{Multiplier: 2, MaxSingleTrade: 50, PriceImprovementPct: 0.05},
			want: CopyTradeConfig{Multiplier: 2, MaxSingleTrade: 50, PriceImprovementPct: 0.05},
		},
		{
			name: "out-of-range values clamped",
			in:   CopyTradeConfig{Multiplier: 99, MaxSingleTrade: 0.1, PriceImprovementPct: 0.5},
			want: CopyTradeConfig{Multiplier: 10, MaxSingleTrade: 0.5, PriceImprovementPct: 0.10},
		},
		{
			name: "negative improvement clamped to zero",
			in:   CopyTradeConfig{Multiplier: 1, MaxSingleTrade: 10, PriceImprovementPct: -0.1},
			want: CopyTradeConfig{Multiplier: 1, MaxSingleTrade: 10, PriceImprovementPct: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamp(); got != tt.want {
				t.Errorf("Clamp() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTradeSignalLabel(t *testing.T) {
	s := TradeSignal{WalletLabel: "whale-1", Title: "Test market", Outcome: "Yes"}
	if got := s.Label(); got != "[whale-1] Test market Yes" {
		t.Errorf("Label() = %q", got)
	}
}

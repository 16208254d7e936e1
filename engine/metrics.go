package engine

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const metricsKey = "copytrader:metrics"

// EngineMetrics is a snapshot of engine activity counters.
type EngineMetrics struct {
	SignalsDetected int64            `json:"signals_detected"`
	OrdersPlaced    int64            `json:"orders_placed"`
	OrdersFilled    int64            `json:"orders_filled"`
	OrdersFailed    int64            `json:"orders_failed"`
	Skips           map[string]int64 `json:"skips"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Metrics counts engine activity in memory and optionally snapshots it to
// Redis so an external dashboard can read it without connecting to the
// event stream.
type Metrics struct {
	mu       sync.Mutex
	detected int64
	placed   int64
	filled   int64
	failedN  int64
	skips    map[string]int64

	redis *redis.Client // nil when no store is configured
}

// NewMetrics creates a counter set. redisClient may be nil.
func NewMetrics(redisClient *redis.Client) *Metrics {
	return &Metrics{
		skips: make(map[string]int64),
		redis: redisClient,
	}
}

func (m *Metrics) Detected() {
	m.mu.Lock()
	m.detected++
	m.mu.Unlock()
}

func (m *Metrics) Placed() {
	m.mu.Lock()
	m.placed++
	m.mu.Unlock()
}

func (m *Metrics) Filled() {
	m.mu.Lock()
	m.filled++
	m.mu.Unlock()
}

func (m *Metrics) Failed() {
	m.mu.Lock()
	m.failedN++
	m.mu.Unlock()
}

func (m *Metrics) Skipped(reason string) {
	m.mu.Lock()
	m.skips[reason]++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() EngineMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	skips := make(map[string]int64, len(m.skips))
	for k, v := range m.skips {
		skips[k] = v
	}
	return EngineMetrics{
		SignalsDetected: m.detected,
		OrdersPlaced:    m.placed,
		OrdersFilled:    m.filled,
		OrdersFailed:    m.failedN,
		Skips:           skips,
		UpdatedAt:       time.Now(),
	}
}

// Save writes the current snapshot to Redis with a 24h TTL. No-op without a
// configured client.
func (m *Metrics) Save(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		return err
	}
	return m.redis.Set(ctx, metricsKey, data, 24*time.Hour).Err()
}

// FlushLoop saves the snapshot on an interval until the context ends.
// Intended to run as a goroutine when a Redis store is configured.
func (m *Metrics) FlushLoop(ctx context.Context, every time.Duration) {
	if m.redis == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Save(ctx); err != nil {
				log.Printf("[Metrics] Failed to save snapshot: %v", err)
			}
		}
	}
}

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"whale-copytrader/models"
)

// fakeBalance is a thread-safe balance source for breaker tests.
type fakeBalance struct {
	mu    sync.Mutex
	value float64
	err   error
}

func (f *fakeBalance) set(v float64, err error) {
	f.mu.Lock()
	f.value, f.err = v, err
	f.mu.Unlock()
}

func (f *fakeBalance) sample(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBreakerStartsPausedWhenUnderfunded(t *testing.T) {
	balance := &fakeBalance{value: 1.50}
	hub := NewHub()
	b := NewBreaker(balance.sample, hub, 2, time.Hour, time.Hour)

	b.Start(context.Background())
	defer b.Stop()

	if !b.Paused() {
		t.Error("breaker should pause on a low startup sample")
	}
	if got := b.LastBalance(); got != 1.50 {
		t.Errorf("LastBalance() = %v, want 1.50", got)
	}
}

func TestBreakerHysteresis(t *testing.T) {
	balance := &fakeBalance{value: 5}
	hub := NewHub()
	events := hub.Subscribe()
	b := NewBreaker(balance.sample, hub, 2, 10*time.Millisecond, 10*time.Millisecond)

	b.Start(context.Background())
	defer b.Stop()

	if b.Paused() {
		t.Fatal("breaker should start active with a healthy balance")
	}

	// Balance drops under the threshold: the next poll must pause.
	balance.set(1.50, nil)
	waitFor(t, "pause", b.Paused)

	// A sample back over the threshold resumes.
	balance.set(2.50, nil)
	waitFor(t, "resume", func() bool { return !b.Paused() })

	// The broadcast stream must contain PAUSED then ACTIVE engine events.
	var states []string
	drain := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case data := <-events:
			var ev models.EngineEvent
			if json.Unmarshal(data, &ev) == nil && ev.Type == "engine" {
				states = append(states, ev.Status)
			}
		case <-drain:
			break loop
		}
	}
	if len(states) < 2 || states[0] != models.EnginePaused || states[len(states)-1] != models.EngineActive {
		t.Errorf("engine event sequence = %v, want PAUSED then ACTIVE", states)
	}
}

// A failed read is not evidence of a low balance; it must not move state in
// either direction.
func TestBreakerIgnoresFailedReads(t *testing.T) {
	balance := &fakeBalance{value: 5}
	hub := NewHub()
	b := NewBreaker(balance.sample, hub, 2, 10*time.Millisecond, 10*time.Millisecond)

	b.Start(context.Background())
	defer b.Stop()

	balance.set(0, errors.New("rpc timeout"))
	time.Sleep(50 * time.Millisecond)
	if b.Paused() {
		t.Error("breaker paused on a failed read")
	}
	if got := b.LastBalance(); got != 5 {
		t.Errorf("LastBalance() = %v, want last good sample 5", got)
	}
}

func TestBreakerTripIdempotent(t *testing.T) {
	balance := &fakeBalance{value: 5}
	hub := NewHub()
	events := hub.Subscribe()
	b := NewBreaker(balance.sample, hub, 2, time.Hour, time.Hour)
	b.Start(context.Background())
	defer b.Stop()

	b.Trip()
	b.Trip()
	b.Trip()

	if !b.Paused() {
		t.Fatal("breaker should be paused after Trip")
	}

	paused := 0
	drain := time.After(50 * time.Millisecond)
loop:
	for {
		select {
		case data := <-events:
			var ev models.EngineEvent
			if json.Unmarshal(data, &ev) == nil && ev.Type == "engine" && ev.Status == models.EnginePaused {
				paused++
			}
		case <-drain:
			break loop
		}
	}
	if paused != 1 {
		t.Errorf("got %d PAUSED events for repeated trips, want 1", paused)
	}
}

package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"whale-copytrader/models"
)

// BalanceFunc samples the operator's USDC.e balance in whole dollars.
type BalanceFunc func(ctx context.Context) (float64, error)

// Breaker is the balance-driven circuit breaker. While ACTIVE it polls the
// balance on a normal cadence; once the balance drops below the threshold it
// pauses the engine and switches to a slower recovery cadence until the
// balance comes back. One goroutine owns one timer, so the two cadences can
// never run concurrently.
type Breaker struct {
	sample    BalanceFunc
	hub       *Hub
	threshold float64
	normal    time.Duration
	recovery  time.Duration

	mu          sync.Mutex
	paused      bool
	lastBalance float64 // -1 until the first successful sample

	kick    chan struct{} // wakes the poller when the cadence changes
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewBreaker creates a breaker. Start must be called before it polls.
func NewBreaker(sample BalanceFunc, hub *Hub, threshold float64, normal, recovery time.Duration) *Breaker {
	return &Breaker{
		sample:      sample,
		hub:         hub,
		threshold:   threshold,
		normal:      normal,
		recovery:    recovery,
		lastBalance: -1,
		kick:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// Start takes one immediate balance sample, pausing right away if the wallet
// is already underfunded, then launches the polling loop.
func (b *Breaker) Start(ctx context.Context) {
	b.poll(ctx)

	b.wg.Add(1)
	go b.run(ctx)
}

// Stop terminates the polling loop and waits for it to exit.
func (b *Breaker) Stop() {
	b.stopped.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}

// Paused reports whether the engine is paused.
func (b *Breaker) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// LastBalance returns the most recent sampled balance, or -1 if no sample
// has succeeded yet.
func (b *Breaker) LastBalance() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastBalance
}

// Trip pauses the engine. Called by the poller on a low sample and by the
// orchestrator when an order fails with a balance-flavored error. Idempotent
// while already paused.
func (b *Breaker) Trip() {
	b.mu.Lock()
	if b.paused {
		b.mu.Unlock()
		return
	}
	b.paused = true
	balance := b.lastBalance
	b.mu.Unlock()

	log.Printf("[Breaker] Circuit breaker activated, pausing copy-trade engine")
	b.hub.Publish(models.EngineEvent{
		Type:    "engine",
		Status:  models.EnginePaused,
		Message: fmt.Sprintf("Insufficient balance ($%.2f), checking every %ds", balance, int(b.recovery/time.Second)),
	})

	// Switch the poller onto the recovery cadence.
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

func (b *Breaker) interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused {
		return b.recovery
	}
	return b.normal
}

func (b *Breaker) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		timer := time.NewTimer(b.interval())
		select {
		case <-b.stopCh:
			timer.Stop()
			return
		case <-b.kick:
			timer.Stop()
		case <-timer.C:
			b.poll(ctx)
		}
	}
}

// poll samples the balance once. A failed read is logged and changes
// nothing: it is not evidence of a low balance.
func (b *Breaker) poll(ctx context.Context) {
	balance, err := b.sample(ctx)
	if err != nil {
		log.Printf("[Breaker] Balance fetch failed: %v", err)
		return
	}

	b.mu.Lock()
	b.lastBalance = balance
	paused := b.paused
	b.mu.Unlock()

	b.hub.Publish(models.BalanceEvent{
		Type:      "balance",
		USDCe:     balance,
		Timestamp: time.Now().Unix(),
	})

	switch {
	case !paused && balance < b.threshold:
		b.Trip()
	case paused && balance >= b.threshold:
		b.resume(balance)
	}
}

func (b *Breaker) resume(balance float64) {
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()

	log.Printf("[Breaker] Balance recovered to $%.2f, resuming engine", balance)
	b.hub.Publish(models.EngineEvent{
		Type:    "engine",
		Status:  models.EngineActive,
		Message: fmt.Sprintf("Copy-trade engine resumed (balance: $%.2f)", balance),
	})

	select {
	case b.kick <- struct{}{}:
	default:
	}
}

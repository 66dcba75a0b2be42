// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Default throttle values.
const (
	// DefaultBurstCapacity is the number of throttled commands an identity can
	// issue back to back.
	DefaultBurstCapacity = 5

	// DefaultSustainedRate is the token refill rate in commands per second.
	DefaultSustainedRate = 1.0

	// DefaultCleanupInterval is how often idle buckets are dropped.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultIdleMaxAge is how long a bucket may go unused before cleanup removes it.
	DefaultIdleMaxAge = 10 * time.Minute
)

// ThrottleConfig configures the per-identity throttle.
type ThrottleConfig struct {
	// BurstCapacity defaults to DefaultBurstCapacity if zero or negative.
	BurstCapacity int
	// SustainedRate defaults to DefaultSustainedRate if zero or negative.
	SustainedRate float64
	// CleanupInterval defaults to DefaultCleanupInterval if zero.
	CleanupInterval time.Duration
	// IdleMaxAge defaults to DefaultIdleMaxAge if zero.
	IdleMaxAge time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type identityBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle limits login and registration attempts per identity using a
// token bucket. It is safe for concurrent use.
//
// Throttle runs a background goroutine that drops idle buckets. Call Close()
// to stop it.
type Throttle struct {
	mu      sync.Mutex
	buckets map[uuid.UUID]*identityBucket
	burst   int
	limit   rate.Limit
	maxAge  time.Duration
	clock   func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	gauge prometheus.Gauge
}

// NewThrottle creates a throttle and starts its cleanup goroutine.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	return newThrottle(cfg, nil)
}

// NewThrottleWithRegistry creates a throttle and registers the
// gatekeeper_throttle_identities gauge with reg.
func NewThrottleWithRegistry(cfg ThrottleConfig, reg prometheus.Registerer) *Throttle {
	return newThrottle(cfg, reg)
}

func newThrottle(cfg ThrottleConfig, reg prometheus.Registerer) *Throttle {
	burst := cfg.BurstCapacity
	if burst <= 0 {
		burst = DefaultBurstCapacity
	}
	sustained := cfg.SustainedRate
	if sustained <= 0 {
		sustained = DefaultSustainedRate
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	maxAge := cfg.IdleMaxAge
	if maxAge <= 0 {
		maxAge = DefaultIdleMaxAge
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	t := &Throttle{
		buckets:  make(map[uuid.UUID]*identityBucket),
		burst:    burst,
		limit:    rate.Limit(sustained),
		maxAge:   maxAge,
		clock:    clock,
		stopChan: make(chan struct{}),
	}

	if reg != nil {
		t.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatekeeper_throttle_identities",
			Help: "Current number of identities tracked by the command throttle",
		})
		reg.MustRegister(t.gauge)
	}

	t.wg.Add(1)
	go t.cleanupLoop(interval)

	return t
}

// Allow consumes one token for id. When the bucket is empty it returns false
// and the wait until the next token.
func (t *Throttle) Allow(id uuid.UUID) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	bucket, ok := t.buckets[id]
	if !ok {
		bucket = &identityBucket{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[id] = bucket
	}
	bucket.lastSeen = now

	r := bucket.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Forget drops the bucket for id.
func (t *Throttle) Forget(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.buckets, id)
	t.setGaugeLocked()
}

// Len returns the number of tracked identities.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}

// Cleanup removes buckets not used within maxAge.
func (t *Throttle) Cleanup(maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	threshold := t.clock().Add(-maxAge)
	for id, bucket := range t.buckets {
		if bucket.lastSeen.Before(threshold) {
			delete(t.buckets, id)
		}
	}
	t.setGaugeLocked()
}

func (t *Throttle) setGaugeLocked() {
	if t.gauge != nil {
		t.gauge.Set(float64(len(t.buckets)))
	}
}

func (t *Throttle) cleanupLoop(interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			t.Cleanup(t.maxAge)
		}
	}
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call more than once.
func (t *Throttle) Close() {
	t.stopOnce.Do(func() { close(t.stopChan) })
	t.wg.Wait()
}

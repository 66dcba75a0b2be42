// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired sessions are deleted.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically deletes expired sessions.
type Sweeper struct {
	sessions *SessionStore
	interval time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper over sessions. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(sessions *SessionStore, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
	}
}

// RunOnce executes a single sweep.
func (w *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := w.sessions.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		SessionsSwept.Add(float64(n))
		w.logger.Info("expired sessions swept", "count", n)
	}
	return n, nil
}

// Start begins periodic sweeping.
func (w *Sweeper) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the sweeper and waits for the loop to exit.
func (w *Sweeper) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Sweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}

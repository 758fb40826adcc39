package service

import (
	"context"
	"log/slog"
	"time"
)

// CleanupService sweeps expired refresh-token rows on a fixed cadence.
// Expiry is otherwise detected lazily on refresh attempts; the sweep only
// reclaims storage.
type CleanupService struct {
	tokens   TokenStore
	interval time.Duration
}

func NewCleanupService(tokens TokenStore, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{tokens: tokens, interval: interval}
}

// StartCleanupTicker runs sweeps until ctx is cancelled. Call it from a
// goroutine.
func (s *CleanupService) StartCleanupTicker(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CleanupService) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deleted, err := s.tokens.DeleteExpiredBefore(sweepCtx, time.Now().UTC())
	if err != nil {
		slog.Error("expired token sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		slog.Info("expired refresh tokens deleted", "count", deleted)
	}
}

package service

import (
	"context"
	"log/slog"
	"time"

	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
)

// AuditStore persists the security audit trail.
type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService subscribes to the event bus and records every auth event.
// Recording is best effort: a failed write is logged, never surfaced to the
// request that produced the event.
type AuditService struct {
	store AuditStore
	bus   event.Bus
}

func NewAuditService(store AuditStore, bus event.Bus) *AuditService {
	return &AuditService{store: store, bus: bus}
}

// Run consumes events until ctx is cancelled. Call it from a goroutine.
func (s *AuditService) Run(ctx context.Context) {
	ch, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.record(e)
		}
	}
}

func (s *AuditService) record(e event.Event) {
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339Nano),
		ActorID:    e.ActorID,
		ActorEmail: e.ActorEmail,
		Status:     statusFor(e.Type),
		Detail:     e.Detail,
	}

	if err := s.store.Log(writeCtx, entry); err != nil {
		slog.Error("audit write failed", "action", entry.Action, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	return s.store.Query(ctx, query)
}

func statusFor(t event.Type) string {
	switch t {
	case event.TypeLoginDenied, event.TypeRefreshDenied:
		return "denied"
	default:
		return "ok"
	}
}

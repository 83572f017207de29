package memstore

import (
	"context"
	"sync"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

// EventLog is an append-only hash chained event log.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prevHash := usecase.ZeroEventHash()
	if n := len(l.events); n > 0 {
		prevHash = l.events[n-1].Hash
	}
	sealed, err := usecase.SealEvent(event, int64(len(l.events))+1, prevHash)
	if err != nil {
		return domain.Event{}, err
	}
	l.events = append(l.events, sealed)
	return sealed, nil
}

// List returns up to limit events with Seq greater than afterSeq.
func (l *EventLog) List(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if afterSeq < 0 {
		afterSeq = 0
	}
	if afterSeq >= int64(len(l.events)) {
		return []domain.Event{}, nil
	}
	rest := l.events[afterSeq:]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	return append([]domain.Event(nil), rest...), nil
}

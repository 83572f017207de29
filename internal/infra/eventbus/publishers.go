package eventbus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"attestd/internal/domain"
)

// Publisher matches usecase.EventPublisher.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// LogPublisher writes every event to the structured log.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	p.logger.Info("event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("target_type", string(event.TargetType)),
		zap.String("target_id", event.TargetID),
		zap.Int64("seq", event.Seq),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// Multi delivers to every publisher and joins their errors. One failing
// publisher does not stop delivery to the rest.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *Recorder) OfType(eventType domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

package db

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

// EventLog persists the hash chained event log. Appends serialise on the
// single event_log_head row.
type EventLog struct {
	db *gorm.DB
}

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Append(ctx context.Context, event domain.Event) (domain.Event, error) {
	if l.db == nil {
		return domain.Event{}, errDBUnavailable
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.Event{}, err
	}
	var out domain.Event
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, prevHash, err := nextEventSeq(tx)
		if err != nil {
			return err
		}
		sealed, err := usecase.SealEvent(event, seq, prevHash)
		if err != nil {
			return err
		}
		model := EventModel{
			Seq:         sealed.Seq,
			ID:          sealed.ID,
			Type:        string(sealed.Type),
			TargetType:  string(sealed.TargetType),
			TargetID:    sealed.TargetID,
			Actor:       stringPtrIfNotEmpty(sealed.Actor),
			Payload:     payload,
			PayloadHash: sealed.PayloadHash,
			PrevHash:    sealed.PrevHash,
			Hash:        sealed.Hash,
			OccurredAt:  sealed.OccurredAt.UTC(),
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if err := tx.Exec(`UPDATE event_log_head SET seq = ?, hash = ? WHERE id = 1`, sealed.Seq, sealed.Hash).Error; err != nil {
			return err
		}
		out = sealed
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return out, nil
}

func (l *EventLog) List(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	if l.db == nil {
		return nil, errDBUnavailable
	}
	query := l.db.WithContext(ctx).Where("seq > ?", afterSeq).Order("seq ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []EventModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(models))
	for _, model := range models {
		var payload map[string]any
		if err := json.Unmarshal(model.Payload, &payload); err != nil {
			return nil, err
		}
		out = append(out, domain.Event{
			ID:          model.ID,
			Type:        domain.EventType(model.Type),
			TargetType:  domain.EventTargetType(model.TargetType),
			TargetID:    model.TargetID,
			Actor:       stringValue(model.Actor),
			Payload:     payload,
			OccurredAt:  model.OccurredAt.UTC(),
			Seq:         model.Seq,
			PrevHash:    model.PrevHash,
			PayloadHash: model.PayloadHash,
			Hash:        model.Hash,
		})
	}
	return out, nil
}

func nextEventSeq(tx *gorm.DB) (int64, string, error) {
	if err := tx.Exec(
		`INSERT INTO event_log_head (id, seq, hash) VALUES (1, 0, ?) ON CONFLICT (id) DO NOTHING`,
		usecase.ZeroEventHash(),
	).Error; err != nil {
		return 0, "", err
	}
	var head struct {
		Seq  int64
		Hash string
	}
	if err := tx.Raw(`SELECT seq, hash FROM event_log_head WHERE id = 1 FOR UPDATE`).Scan(&head).Error; err != nil {
		return 0, "", err
	}
	return head.Seq + 1, head.Hash, nil
}

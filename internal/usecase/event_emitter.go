package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attestd/internal/domain"
)

// EventEmitter records state changes in the event log and fans them out to
// the publisher. Emission failures never fail the operation that caused
// them; they are logged and dropped.
type EventEmitter struct {
	Log       EventLog
	Publisher EventPublisher
	Clock     Clock
	Logger    *zap.Logger
}

func NewEventEmitter(log EventLog, publisher EventPublisher, clock Clock, logger *zap.Logger) *EventEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventEmitter{
		Log:       log,
		Publisher: publisher,
		Clock:     clock,
		Logger:    logger,
	}
}

func (e *EventEmitter) Emit(ctx context.Context, event domain.Event) (domain.Event, error) {
	if e == nil || (e.Log == nil && e.Publisher == nil) {
		return domain.Event{}, errors.New("event sink required")
	}
	if event.Type == "" || event.TargetType == "" || event.TargetID == "" {
		return domain.Event{}, errors.New("event missing required fields")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}
	// Postgres keeps microseconds; the chain hash must survive a round trip.
	event.OccurredAt = event.OccurredAt.UTC().Truncate(time.Microsecond)
	if e.Log != nil {
		stored, err := e.Log.Append(ctx, event)
		if err != nil {
			return domain.Event{}, err
		}
		event = stored
	}
	if e.Publisher != nil {
		if err := e.Publisher.Publish(ctx, event); err != nil {
			return event, err
		}
	}
	return event, nil
}

func (e *EventEmitter) notify(ctx context.Context, event domain.Event) {
	if e == nil || (e.Log == nil && e.Publisher == nil) {
		return
	}
	if _, err := e.Emit(ctx, event); err != nil {
		e.logger().Warn("event emission failed",
			zap.String("event_type", string(event.Type)),
			zap.String("target_id", event.TargetID),
			zap.Error(err),
		)
	}
}

func (e *EventEmitter) EmitCertificateIssued(ctx context.Context, cert domain.Certificate) {
	e.notify(ctx, domain.Event{
		Type:       domain.EventCertificateIssued,
		TargetType: domain.EventTargetCertificate,
		TargetID:   cert.ID,
		Actor:      cert.IssuerID,
		Payload: map[string]any{
			"subject_id":  cert.SubjectID,
			"fingerprint": cert.Fingerprint,
			"valid_from":  cert.ValidFrom.UTC().Format(time.RFC3339),
			"valid_until": cert.ValidUntil.UTC().Format(time.RFC3339),
		},
	})
}

func (e *EventEmitter) EmitCertificateStatusChanged(ctx context.Context, eventType domain.EventType, cert domain.Certificate) {
	payload := map[string]any{
		"subject_id": cert.SubjectID,
		"status":     string(cert.Status),
	}
	if cert.RevocationReason != "" {
		payload["reason"] = string(cert.RevocationReason)
	}
	e.notify(ctx, domain.Event{
		Type:       eventType,
		TargetType: domain.EventTargetCertificate,
		TargetID:   cert.ID,
		Actor:      cert.IssuerID,
		Payload:    payload,
	})
}

func (e *EventEmitter) EmitRevocationRecorded(ctx context.Context, entry domain.RevocationEntry) {
	payload := map[string]any{
		"reason": string(entry.Reason),
	}
	if entry.IssuerID != "" {
		payload["issuer_id"] = entry.IssuerID
	}
	if entry.StatusIndex != nil {
		payload["status_index"] = *entry.StatusIndex
	}
	e.notify(ctx, domain.Event{
		Type:       domain.EventRevocationRecorded,
		TargetType: domain.EventTargetCredential,
		TargetID:   entry.CredentialID,
		Actor:      entry.RevokedBy,
		Payload:    payload,
	})
}

func (e *EventEmitter) EmitHoldRemoved(ctx context.Context, credentialID string) {
	e.notify(ctx, domain.Event{
		Type:       domain.EventRevocationHoldRemoved,
		TargetType: domain.EventTargetCredential,
		TargetID:   credentialID,
	})
}

func (e *EventEmitter) EmitCredentialIssued(ctx context.Context, cred domain.Credential) {
	payload := map[string]any{
		"subject_id": cred.SubjectID(),
		"types":      append([]string(nil), cred.Type...),
	}
	if cred.CredentialStatus != nil {
		payload["status_list_index"] = cred.CredentialStatus.StatusListIndex
	}
	e.notify(ctx, domain.Event{
		Type:       domain.EventCredentialIssued,
		TargetType: domain.EventTargetCredential,
		TargetID:   cred.ID,
		Actor:      cred.Issuer,
		Payload:    payload,
	})
}

func (e *EventEmitter) EmitIssuerRegistered(ctx context.Context, rec domain.IssuerRecord) {
	payload := map[string]any{
		"type":        string(rec.Type),
		"trust_level": rec.TrustLevel.String(),
	}
	if rec.ParentID != "" {
		payload["parent_id"] = rec.ParentID
	}
	e.notify(ctx, domain.Event{
		Type:       domain.EventIssuerRegistered,
		TargetType: domain.EventTargetIssuer,
		TargetID:   rec.ID,
		Payload:    payload,
	})
}

func (e *EventEmitter) EmitTrustLevelChanged(ctx context.Context, rec domain.IssuerRecord, previous domain.TrustLevel) {
	e.notify(ctx, domain.Event{
		Type:       domain.EventIssuerTrustLevelChanged,
		TargetType: domain.EventTargetIssuer,
		TargetID:   rec.ID,
		Payload: map[string]any{
			"previous": previous.String(),
			"current":  rec.TrustLevel.String(),
		},
	})
}

func (e *EventEmitter) EmitIssuerRevoked(ctx context.Context, rec domain.IssuerRecord, cascadedFrom string) {
	payload := map[string]any{
		"reason": rec.RevocationReason,
	}
	if cascadedFrom != "" {
		payload["cascaded_from"] = cascadedFrom
	}
	e.notify(ctx, domain.Event{
		Type:       domain.EventIssuerRevoked,
		TargetType: domain.EventTargetIssuer,
		TargetID:   rec.ID,
		Payload:    payload,
	})
}

func (e *EventEmitter) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *EventEmitter) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

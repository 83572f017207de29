package domain

import "time"

type EventType string

const (
	EventCertificateIssued       EventType = "certificate.issued"
	EventCertificateRevoked      EventType = "certificate.revoked"
	EventCertificateSuspended    EventType = "certificate.suspended"
	EventCertificateReinstated   EventType = "certificate.reinstated"
	EventCredentialIssued        EventType = "credential.issued"
	EventRevocationRecorded      EventType = "revocation.recorded"
	EventRevocationHoldRemoved   EventType = "revocation.hold_removed"
	EventIssuerRegistered        EventType = "issuer.registered"
	EventIssuerTrustLevelChanged EventType = "issuer.trust_level_changed"
	EventIssuerRevoked           EventType = "issuer.revoked"
)

type EventTargetType string

const (
	EventTargetCertificate EventTargetType = "certificate"
	EventTargetCredential  EventTargetType = "credential"
	EventTargetIssuer      EventTargetType = "issuer"
)

const EventChainVersion = "ev2"

// Event announces a committed state change. Seq, PrevHash, PayloadHash and
// Hash are assigned when the event is appended to the event log.
type Event struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	TargetType  EventTargetType `json:"target_type"`
	TargetID    string          `json:"target_id"`
	Actor       string          `json:"actor,omitempty"`
	Payload     map[string]any  `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Seq         int64           `json:"seq,omitempty"`
	PrevHash    string          `json:"prev_hash,omitempty"`
	PayloadHash string          `json:"payload_hash,omitempty"`
	Hash        string          `json:"hash,omitempty"`
}

package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attestd/internal/domain"
)

const eventChainPageSize = 500

// SealEvent links an event onto the chain after prevHash. Event logs call it
// while holding their append lock.
func SealEvent(event domain.Event, seq int64, prevHash string) (domain.Event, error) {
	if prevHash == "" {
		prevHash = ZeroEventHash()
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("encode event payload: %w", err)
	}
	event.Seq = seq
	event.PrevHash = prevHash
	event.PayloadHash = sha256Hex(payload)
	hash, err := computeEventHash(event)
	if err != nil {
		return domain.Event{}, err
	}
	event.Hash = hash
	return event, nil
}

// VerifyEventChain walks the whole log and checks sequence numbers, payload
// hashes and links.
func VerifyEventChain(ctx context.Context, log EventLog) error {
	if log == nil {
		return errors.New("event log required")
	}
	expectedSeq := int64(1)
	prevHash := ZeroEventHash()
	for {
		events, err := log.List(ctx, expectedSeq-1, eventChainPageSize)
		if err != nil {
			return err
		}
		for _, event := range events {
			if event.Seq != expectedSeq {
				return fmt.Errorf("event chain seq mismatch: expected %d got %d", expectedSeq, event.Seq)
			}
			if event.PrevHash != prevHash {
				return fmt.Errorf("event chain prev hash mismatch at seq %d", event.Seq)
			}
			payload, err := json.Marshal(event.Payload)
			if err != nil {
				return fmt.Errorf("event chain payload encode failed at seq %d: %w", event.Seq, err)
			}
			if sha256Hex(payload) != event.PayloadHash {
				return fmt.Errorf("event chain payload hash mismatch at seq %d", event.Seq)
			}
			expected, err := computeEventHash(event)
			if err != nil {
				return fmt.Errorf("event chain hash compute failed at seq %d: %w", event.Seq, err)
			}
			if expected != event.Hash {
				return fmt.Errorf("event chain hash mismatch at seq %d", event.Seq)
			}
			prevHash = event.Hash
			expectedSeq++
		}
		if len(events) < eventChainPageSize {
			return nil
		}
	}
}

func ZeroEventHash() string {
	return "0000000000000000000000000000000000000000000000000000000000000000"
}

type eventChainLink struct {
	Actor       string `json:"actor"`
	OccurredAt  string `json:"occurred_at"`
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	PayloadHash string `json:"payload_hash"`
	PrevHash    string `json:"prev_hash"`
	Seq         int64  `json:"seq"`
	TargetID    string `json:"target_id"`
	TargetType  string `json:"target_type"`
	Version     string `json:"v"`
}

func computeEventHash(event domain.Event) (string, error) {
	if event.ID == "" || event.Type == "" {
		return "", errors.New("event missing id or type")
	}
	if event.PayloadHash == "" || event.PrevHash == "" {
		return "", errors.New("event missing payload_hash or prev_hash")
	}
	link := eventChainLink{
		Actor:       event.Actor,
		OccurredAt:  event.OccurredAt.UTC().Format(time.RFC3339Nano),
		EventID:     event.ID,
		EventType:   string(event.Type),
		PayloadHash: event.PayloadHash,
		PrevHash:    event.PrevHash,
		Seq:         event.Seq,
		TargetID:    event.TargetID,
		TargetType:  string(event.TargetType),
		Version:     domain.EventChainVersion,
	}
	raw, err := json.Marshal(link)
	if err != nil {
		return "", err
	}
	return sha256Hex(raw), nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

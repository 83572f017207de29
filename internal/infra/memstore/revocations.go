package memstore

import (
	"context"
	"sort"
	"sync"

	"attestd/internal/domain"
)

type RevocationStore struct {
	mu      sync.RWMutex
	entries map[string]domain.RevocationEntry
}

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{entries: make(map[string]domain.RevocationEntry)}
}

func (s *RevocationStore) Insert(ctx context.Context, entry domain.RevocationEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.CredentialID]; ok {
		return domain.ErrAlreadyRevoked
	}
	s.entries[entry.CredentialID] = cloneEntry(entry)
	return nil
}

func (s *RevocationStore) Get(ctx context.Context, credentialID string) (*domain.RevocationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[credentialID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneEntry(entry)
	return &out, nil
}

func (s *RevocationStore) DeleteIfReason(ctx context.Context, credentialID string, reason domain.RevocationReason) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[credentialID]
	if !ok || entry.Reason != reason {
		return false, nil
	}
	delete(s.entries, credentialID)
	return true, nil
}

// List returns matching entries ordered by revocation time.
func (s *RevocationStore) List(ctx context.Context, filter domain.RevocationFilter) ([]domain.RevocationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.RevocationEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter.Matches(entry) {
			out = append(out, cloneEntry(entry))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RevokedAt.Equal(out[j].RevokedAt) {
			return out[i].RevokedAt.Before(out[j].RevokedAt)
		}
		return out[i].CredentialID < out[j].CredentialID
	})
	return out, nil
}

func (s *RevocationStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

func (s *RevocationStore) Exists(ctx context.Context, credentialIDs []string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(credentialIDs))
	for _, id := range credentialIDs {
		_, ok := s.entries[id]
		out[id] = ok
	}
	return out, nil
}

func cloneEntry(entry domain.RevocationEntry) domain.RevocationEntry {
	if entry.StatusIndex != nil {
		idx := *entry.StatusIndex
		entry.StatusIndex = &idx
	}
	return entry
}

type EpochStore struct {
	mu     sync.Mutex
	epochs map[string]int64
}

func NewEpochStore() *EpochStore {
	return &EpochStore{epochs: make(map[string]int64)}
}

func (s *EpochStore) GetEpoch(ctx context.Context, issuerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[issuerID], nil
}

func (s *EpochStore) BumpEpoch(ctx context.Context, issuerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[issuerID]++
	return s.epochs[issuerID], nil
}

// StatusIndexStore hands out status list positions sequentially from 0.
type StatusIndexStore struct {
	mu      sync.Mutex
	next    int
	indexes map[string]int
}

func NewStatusIndexStore() *StatusIndexStore {
	return &StatusIndexStore{indexes: make(map[string]int)}
}

func (s *StatusIndexStore) Allocate(ctx context.Context, credentialID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[credentialID]; ok {
		return idx, nil
	}
	idx := s.next
	s.next++
	s.indexes[credentialID] = idx
	return idx, nil
}

func (s *StatusIndexStore) Lookup(ctx context.Context, credentialID string) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[credentialID]
	return idx, ok, nil
}

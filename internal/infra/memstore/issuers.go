package memstore

import (
	"context"
	"sync"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

// IssuerStore keeps issuer records in memory. A cascade revocation runs
// entirely inside WithTx, so readers never observe a partial cascade.
type IssuerStore struct {
	mu       sync.RWMutex
	byID     map[string]domain.IssuerRecord
	children map[string][]string
}

func NewIssuerStore() *IssuerStore {
	return &IssuerStore{
		byID:     make(map[string]domain.IssuerRecord),
		children: make(map[string][]string),
	}
}

func (s *IssuerStore) Create(ctx context.Context, rec domain.IssuerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*issuerTx)(s).Create(ctx, rec)
}

func (s *IssuerStore) Get(ctx context.Context, id string) (*domain.IssuerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (*issuerTx)(s).Get(ctx, id)
}

func (s *IssuerStore) List(ctx context.Context) ([]domain.IssuerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (*issuerTx)(s).List(ctx)
}

func (s *IssuerStore) ListChildren(ctx context.Context, parentID string) ([]domain.IssuerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (*issuerTx)(s).ListChildren(ctx, parentID)
}

func (s *IssuerStore) Update(ctx context.Context, rec domain.IssuerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*issuerTx)(s).Update(ctx, rec)
}

// WithTx runs fn under the write lock and restores the previous state when
// fn fails.
func (s *IssuerStore) WithTx(ctx context.Context, fn func(repo usecase.IssuerRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]domain.IssuerRecord, len(s.byID))
	for k, v := range s.byID {
		byID[k] = v
	}
	children := make(map[string][]string, len(s.children))
	for k, v := range s.children {
		children[k] = append([]string(nil), v...)
	}
	if err := fn((*issuerTx)(s)); err != nil {
		s.byID = byID
		s.children = children
		return err
	}
	return nil
}

type issuerTx IssuerStore

func (t *issuerTx) Create(ctx context.Context, rec domain.IssuerRecord) error {
	if _, ok := t.byID[rec.ID]; ok {
		return domain.ErrAlreadyExists
	}
	t.byID[rec.ID] = rec.Clone()
	if rec.ParentID != "" {
		t.children[rec.ParentID] = append(t.children[rec.ParentID], rec.ID)
	}
	return nil
}

func (t *issuerTx) Get(ctx context.Context, id string) (*domain.IssuerRecord, error) {
	rec, ok := t.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (t *issuerTx) List(ctx context.Context) ([]domain.IssuerRecord, error) {
	out := make([]domain.IssuerRecord, 0, len(t.byID))
	for _, rec := range t.byID {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (t *issuerTx) ListChildren(ctx context.Context, parentID string) ([]domain.IssuerRecord, error) {
	ids := t.children[parentID]
	out := make([]domain.IssuerRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.byID[id].Clone())
	}
	return out, nil
}

// Update replaces a record. The parent link is fixed at creation.
func (t *issuerTx) Update(ctx context.Context, rec domain.IssuerRecord) error {
	existing, ok := t.byID[rec.ID]
	if !ok {
		return domain.ErrNotFound
	}
	rec.ParentID = existing.ParentID
	t.byID[rec.ID] = rec.Clone()
	return nil
}

func (t *issuerTx) WithTx(ctx context.Context, fn func(repo usecase.IssuerRepository) error) error {
	return fn(t)
}

package memstore

import (
	"context"
	"sort"
	"sync"

	"attestd/internal/domain"
	"attestd/internal/usecase"
)

// CertificateStore keeps certificates in memory. WithTx serialises the
// callback against every other writer.
type CertificateStore struct {
	mu        sync.RWMutex
	byID      map[string]domain.Certificate
	bySubject map[string]string
	order     []string
}

func NewCertificateStore() *CertificateStore {
	return &CertificateStore{
		byID:      make(map[string]domain.Certificate),
		bySubject: make(map[string]string),
	}
}

func (s *CertificateStore) Create(ctx context.Context, cert domain.Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*certificateTx)(s).Create(ctx, cert)
}

func (s *CertificateStore) Get(ctx context.Context, id string) (*domain.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (*certificateTx)(s).Get(ctx, id)
}

func (s *CertificateStore) GetBySubject(ctx context.Context, subjectID string) (*domain.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (*certificateTx)(s).GetBySubject(ctx, subjectID)
}

func (s *CertificateStore) ListByStatus(ctx context.Context, status domain.CertificateStatus) ([]domain.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (*certificateTx)(s).ListByStatus(ctx, status)
}

func (s *CertificateStore) Update(ctx context.Context, cert domain.Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*certificateTx)(s).Update(ctx, cert)
}

// WithTx runs fn under the write lock and restores the previous state when
// fn fails.
func (s *CertificateStore) WithTx(ctx context.Context, fn func(repo usecase.CertificateRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]domain.Certificate, len(s.byID))
	for k, v := range s.byID {
		byID[k] = v
	}
	bySubject := make(map[string]string, len(s.bySubject))
	for k, v := range s.bySubject {
		bySubject[k] = v
	}
	order := append([]string(nil), s.order...)
	if err := fn((*certificateTx)(s)); err != nil {
		s.byID = byID
		s.bySubject = bySubject
		s.order = order
		return err
	}
	return nil
}

// certificateTx is the lock-free view handed to WithTx callbacks.
type certificateTx CertificateStore

func (t *certificateTx) Create(ctx context.Context, cert domain.Certificate) error {
	if _, ok := t.byID[cert.ID]; ok {
		return domain.ErrAlreadyExists
	}
	t.byID[cert.ID] = cert.Clone()
	t.bySubject[cert.SubjectID] = cert.ID
	t.order = append(t.order, cert.ID)
	return nil
}

func (t *certificateTx) Get(ctx context.Context, id string) (*domain.Certificate, error) {
	cert, ok := t.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cert.Clone()
	return &out, nil
}

func (t *certificateTx) GetBySubject(ctx context.Context, subjectID string) (*domain.Certificate, error) {
	id, ok := t.bySubject[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t.Get(ctx, id)
}

func (t *certificateTx) ListByStatus(ctx context.Context, status domain.CertificateStatus) ([]domain.Certificate, error) {
	out := make([]domain.Certificate, 0)
	for _, id := range t.order {
		cert := t.byID[id]
		if cert.Status == status {
			out = append(out, cert.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *certificateTx) Update(ctx context.Context, cert domain.Certificate) error {
	if _, ok := t.byID[cert.ID]; !ok {
		return domain.ErrNotFound
	}
	t.byID[cert.ID] = cert.Clone()
	return nil
}

func (t *certificateTx) WithTx(ctx context.Context, fn func(repo usecase.CertificateRepository) error) error {
	return fn(t)
}

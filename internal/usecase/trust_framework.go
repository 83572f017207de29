package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"attestd/internal/domain"
)

// MaxTrustChainDepth bounds chain walks; longer chains are reported invalid.
const MaxTrustChainDepth = 32

type RegisterIssuerRequest struct {
	ID         string
	Type       domain.IssuerType
	TrustLevel domain.TrustLevel
	Metadata   domain.Attributes
}

// TrustFramework maintains the issuer hierarchy. Roots always carry
// ULTIMATE trust; a delegated issuer never exceeds its parent's trust at
// registration time.
type TrustFramework struct {
	Issuers IssuerRepository
	Events  *EventEmitter
	Clock   Clock
	Logger  *zap.Logger
}

func NewTrustFramework(issuers IssuerRepository, clock Clock) *TrustFramework {
	return &TrustFramework{
		Issuers: issuers,
		Clock:   clock,
	}
}

func (f *TrustFramework) RegisterIssuer(ctx context.Context, req RegisterIssuerRequest) (domain.IssuerRecord, error) {
	if err := f.ready(); err != nil {
		return domain.IssuerRecord{}, err
	}
	rec, err := f.newRecord(req, "")
	if err != nil {
		return domain.IssuerRecord{}, err
	}
	if err := f.Issuers.Create(ctx, rec); err != nil {
		return domain.IssuerRecord{}, err
	}
	f.logger().Info("issuer registered",
		zap.String("issuer_id", rec.ID),
		zap.String("type", string(rec.Type)),
		zap.String("trust_level", rec.TrustLevel.String()),
	)
	f.Events.EmitIssuerRegistered(ctx, rec)
	return rec, nil
}

// RegisterDelegatedIssuer registers an issuer under parentID. The parent
// must exist, must not be revoked, and must carry at least the requested
// trust level.
func (f *TrustFramework) RegisterDelegatedIssuer(ctx context.Context, parentID string, req RegisterIssuerRequest) (domain.IssuerRecord, error) {
	if err := f.ready(); err != nil {
		return domain.IssuerRecord{}, err
	}
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return domain.IssuerRecord{}, fmt.Errorf("%w: parent_id is required", domain.ErrInvalidArgument)
	}
	if req.Type == domain.IssuerTypeRootCA {
		return domain.IssuerRecord{}, fmt.Errorf("%w: a root issuer cannot have a parent", domain.ErrInvalidArgument)
	}
	rec, err := f.newRecord(req, parentID)
	if err != nil {
		return domain.IssuerRecord{}, err
	}
	err = f.Issuers.WithTx(ctx, func(repo IssuerRepository) error {
		parent, err := repo.Get(ctx, parentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrIssuerNotFound, parentID)
			}
			return err
		}
		if parent.Revoked {
			return fmt.Errorf("%w: %s", domain.ErrIssuerRevoked, parentID)
		}
		if rec.TrustLevel > parent.TrustLevel {
			return fmt.Errorf("%w: %s > %s", domain.ErrTrustLevelExceedsParent, rec.TrustLevel, parent.TrustLevel)
		}
		return repo.Create(ctx, rec)
	})
	if err != nil {
		return domain.IssuerRecord{}, err
	}
	f.logger().Info("delegated issuer registered",
		zap.String("issuer_id", rec.ID),
		zap.String("parent_id", parentID),
		zap.String("trust_level", rec.TrustLevel.String()),
	)
	f.Events.EmitIssuerRegistered(ctx, rec)
	return rec, nil
}

func (f *TrustFramework) newRecord(req RegisterIssuerRequest, parentID string) (domain.IssuerRecord, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return domain.IssuerRecord{}, fmt.Errorf("%w: issuer id is required", domain.ErrInvalidArgument)
	}
	if !req.Type.Valid() {
		return domain.IssuerRecord{}, fmt.Errorf("%w: unknown issuer type %q", domain.ErrInvalidArgument, req.Type)
	}
	if !req.TrustLevel.Valid() {
		return domain.IssuerRecord{}, fmt.Errorf("%w: trust level %d", domain.ErrInvalidArgument, int(req.TrustLevel))
	}
	if req.Type == domain.IssuerTypeRootCA && req.TrustLevel != domain.TrustLevelUltimate {
		return domain.IssuerRecord{}, domain.ErrRootTrustLevel
	}
	now := f.now().UTC().Truncate(time.Microsecond)
	return domain.IssuerRecord{
		ID:         id,
		Type:       req.Type,
		TrustLevel: req.TrustLevel,
		ParentID:   parentID,
		Metadata:   req.Metadata.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// UpdateTrustLevel changes an issuer's level. Unknown and revoked issuers
// yield false. Root CAs stay at ULTIMATE. The parent bound only applies at
// registration.
func (f *TrustFramework) UpdateTrustLevel(ctx context.Context, id string, level domain.TrustLevel) (bool, error) {
	if err := f.ready(); err != nil {
		return false, err
	}
	if !level.Valid() {
		return false, fmt.Errorf("%w: trust level %d", domain.ErrInvalidArgument, int(level))
	}
	var (
		updated  domain.IssuerRecord
		previous domain.TrustLevel
		ok       bool
	)
	err := f.Issuers.WithTx(ctx, func(repo IssuerRepository) error {
		rec, err := repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		if rec.Revoked {
			return nil
		}
		if rec.Type == domain.IssuerTypeRootCA && level != domain.TrustLevelUltimate {
			return domain.ErrRootTrustLevel
		}
		ok = true
		previous = rec.TrustLevel
		if previous == level {
			updated = *rec
			return nil
		}
		rec.TrustLevel = level
		rec.UpdatedAt = f.now().UTC().Truncate(time.Microsecond)
		if err := repo.Update(ctx, *rec); err != nil {
			return err
		}
		updated = *rec
		return nil
	})
	if err != nil || !ok {
		return false, err
	}
	if previous != level {
		f.Events.EmitTrustLevelChanged(ctx, updated, previous)
	}
	return true, nil
}

// RevokeIssuer revokes an issuer and every descendant in one transaction.
// It returns false for an unknown id and domain.ErrAlreadyRevoked when the
// issuer itself is already revoked. Descendants that were already revoked
// keep their original reason.
func (f *TrustFramework) RevokeIssuer(ctx context.Context, id, reason string) (bool, error) {
	if err := f.ready(); err != nil {
		return false, err
	}
	var revoked []domain.IssuerRecord
	found := false
	err := f.Issuers.WithTx(ctx, func(repo IssuerRepository) error {
		revoked = revoked[:0]
		root, err := repo.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		found = true
		if root.Revoked {
			return domain.ErrAlreadyRevoked
		}
		now := f.now().UTC().Truncate(time.Microsecond)
		queue := []domain.IssuerRecord{*root}
		seen := map[string]struct{}{root.ID: {}}
		for len(queue) > 0 {
			rec := queue[0]
			queue = queue[1:]
			if !rec.Revoked {
				rec.Revoked = true
				rec.RevokedAt = &now
				rec.UpdatedAt = now
				if rec.ID == id {
					rec.RevocationReason = reason
				} else {
					rec.RevocationReason = fmt.Sprintf("parent issuer %s revoked: %s", id, reason)
				}
				if err := repo.Update(ctx, rec); err != nil {
					return err
				}
				revoked = append(revoked, rec)
			}
			children, err := repo.ListChildren(ctx, rec.ID)
			if err != nil {
				return err
			}
			for _, child := range children {
				if _, ok := seen[child.ID]; ok {
					continue
				}
				seen[child.ID] = struct{}{}
				queue = append(queue, child)
			}
		}
		return nil
	})
	if err != nil || !found {
		return false, err
	}
	f.logger().Info("issuer revoked",
		zap.String("issuer_id", id),
		zap.Int("cascaded", len(revoked)-1),
	)
	for _, rec := range revoked {
		cascadedFrom := ""
		if rec.ID != id {
			cascadedFrom = id
		}
		f.Events.EmitIssuerRevoked(ctx, rec, cascadedFrom)
	}
	return true, nil
}

func (f *TrustFramework) GetIssuer(ctx context.Context, id string) (*domain.IssuerRecord, bool, error) {
	if err := f.ready(); err != nil {
		return nil, false, err
	}
	rec, err := f.Issuers.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

// IsIssuerTrusted reports whether the issuer is registered and not revoked.
func (f *TrustFramework) IsIssuerTrusted(ctx context.Context, id string) (bool, error) {
	rec, ok, err := f.GetIssuer(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	return !rec.Revoked, nil
}

func (f *TrustFramework) GetIssuerTrustLevel(ctx context.Context, id string) (domain.TrustLevel, bool, error) {
	rec, ok, err := f.GetIssuer(ctx, id)
	if err != nil || !ok {
		return domain.TrustLevelUnknown, false, err
	}
	return rec.TrustLevel, true, nil
}

// MeetsMinimumTrustLevel is false for unknown and revoked issuers.
func (f *TrustFramework) MeetsMinimumTrustLevel(ctx context.Context, id string, min domain.TrustLevel) (bool, error) {
	rec, ok, err := f.GetIssuer(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	if rec.Revoked {
		return false, nil
	}
	return rec.TrustLevel >= min, nil
}

// BuildTrustChain walks parent links from issuerID to its root. A missing
// link, a revoked link, a cycle or excessive depth produce an invalid chain
// with Error set; only storage failures are returned as errors.
func (f *TrustFramework) BuildTrustChain(ctx context.Context, credentialID, issuerID string) (domain.TrustChain, error) {
	chain := domain.TrustChain{CredentialID: credentialID, Issuers: []domain.IssuerRecord{}}
	if err := f.ready(); err != nil {
		return chain, err
	}
	visited := map[string]struct{}{}
	current := issuerID
	for current != "" {
		if len(chain.Issuers) >= MaxTrustChainDepth {
			chain.Error = fmt.Sprintf("trust chain exceeds maximum depth of %d", MaxTrustChainDepth)
			break
		}
		if _, ok := visited[current]; ok {
			chain.Error = fmt.Sprintf("trust chain cycle at issuer %s", current)
			break
		}
		visited[current] = struct{}{}
		rec, err := f.Issuers.Get(ctx, current)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				chain.Error = fmt.Sprintf("issuer not found: %s", current)
				break
			}
			return chain, err
		}
		chain.Issuers = append(chain.Issuers, *rec)
		if rec.Revoked && chain.Error == "" {
			chain.Error = fmt.Sprintf("issuer revoked: %s", rec.ID)
		}
		current = rec.ParentID
	}
	if issuerID == "" {
		chain.Error = "issuer id is empty"
	}
	chain.Valid = chain.Error == ""
	return chain, nil
}

func (f *TrustFramework) VerifyIssuerChain(ctx context.Context, issuerID string) (bool, error) {
	chain, err := f.BuildTrustChain(ctx, "", issuerID)
	if err != nil {
		return false, err
	}
	return chain.Valid, nil
}

func (f *TrustFramework) GetChildIssuers(ctx context.Context, parentID string) ([]domain.IssuerRecord, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	children, err := f.Issuers.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	sortIssuers(children)
	return children, nil
}

func (f *TrustFramework) GetAllIssuers(ctx context.Context) ([]domain.IssuerRecord, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	all, err := f.Issuers.List(ctx)
	if err != nil {
		return nil, err
	}
	sortIssuers(all)
	return all, nil
}

func (f *TrustFramework) GetRootIssuers(ctx context.Context) ([]domain.IssuerRecord, error) {
	return f.filterIssuers(ctx, func(rec domain.IssuerRecord) bool {
		return rec.IsRoot()
	})
}

// GetIssuersByTrustLevel returns unrevoked issuers at or above min.
func (f *TrustFramework) GetIssuersByTrustLevel(ctx context.Context, min domain.TrustLevel) ([]domain.IssuerRecord, error) {
	return f.filterIssuers(ctx, func(rec domain.IssuerRecord) bool {
		return !rec.Revoked && rec.TrustLevel >= min
	})
}

func (f *TrustFramework) filterIssuers(ctx context.Context, keep func(domain.IssuerRecord) bool) ([]domain.IssuerRecord, error) {
	all, err := f.GetAllIssuers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.IssuerRecord, 0, len(all))
	for _, rec := range all {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func sortIssuers(records []domain.IssuerRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

func (f *TrustFramework) ready() error {
	if f == nil {
		return errors.New("trust framework is nil")
	}
	if f.Issuers == nil {
		return errors.New("issuer repository is required")
	}
	return nil
}

func (f *TrustFramework) now() time.Time {
	if f.Clock != nil {
		return f.Clock()
	}
	return time.Now()
}

func (f *TrustFramework) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

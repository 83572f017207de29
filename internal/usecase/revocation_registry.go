package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"attestd/internal/domain"
	"attestd/pkg/statuslist"
)

// ledgerEpochScope keys the single epoch counter covering the whole ledger.
const ledgerEpochScope = "*"

type RevocationRequest struct {
	CredentialID string
	IssuerID     string
	Reason       domain.RevocationReason
	RevokedBy    string
	Notes        string
}

// RevocationRegistry is the authoritative ledger of revoked and held
// credential ids. Every write bumps the ledger epoch when Epochs is set.
type RevocationRegistry struct {
	Revocations   RevocationRepository
	StatusIndexes StatusIndexRepository
	Epochs        RevocationEpochRepository
	Events        *EventEmitter
	Clock         Clock
	Logger        *zap.Logger
	// StatusListSize is the bit length of the published status list.
	StatusListSize int
}

func NewRevocationRegistry(revocations RevocationRepository, statusIndexes StatusIndexRepository, epochs RevocationEpochRepository, clock Clock) *RevocationRegistry {
	return &RevocationRegistry{
		Revocations:    revocations,
		StatusIndexes:  statusIndexes,
		Epochs:         epochs,
		Clock:          clock,
		StatusListSize: statuslist.DefaultSize,
	}
}

// Revoke records a revocation. A second revoke of the same credential id
// fails with domain.ErrAlreadyRevoked and leaves the first entry untouched.
func (r *RevocationRegistry) Revoke(ctx context.Context, req RevocationRequest) (domain.RevocationEntry, error) {
	if err := r.ready(); err != nil {
		return domain.RevocationEntry{}, err
	}
	req.CredentialID = strings.TrimSpace(req.CredentialID)
	if req.CredentialID == "" {
		return domain.RevocationEntry{}, fmt.Errorf("%w: credential_id is required", domain.ErrInvalidArgument)
	}
	if req.Reason == "" {
		req.Reason = domain.ReasonUnspecified
	}
	if !req.Reason.Valid() {
		return domain.RevocationEntry{}, fmt.Errorf("%w: unknown revocation reason %q", domain.ErrInvalidArgument, req.Reason)
	}
	entry := domain.RevocationEntry{
		ID:           "rev_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		CredentialID: req.CredentialID,
		IssuerID:     req.IssuerID,
		Reason:       req.Reason,
		RevokedBy:    req.RevokedBy,
		Notes:        req.Notes,
		RevokedAt:    r.now().UTC().Truncate(time.Microsecond),
	}
	if r.StatusIndexes != nil {
		idx, ok, err := r.StatusIndexes.Lookup(ctx, req.CredentialID)
		if err != nil {
			return domain.RevocationEntry{}, err
		}
		if ok {
			entry.StatusIndex = &idx
		}
	}
	if err := r.Revocations.Insert(ctx, entry); err != nil {
		return domain.RevocationEntry{}, err
	}
	r.bumpEpoch(ctx)
	r.logger().Info("revocation recorded",
		zap.String("credential_id", entry.CredentialID),
		zap.String("reason", string(entry.Reason)),
	)
	r.Events.EmitRevocationRecorded(ctx, entry)
	return entry, nil
}

func (r *RevocationRegistry) RevokeWithIssuer(ctx context.Context, issuerID string, req RevocationRequest) (domain.RevocationEntry, error) {
	req.IssuerID = issuerID
	return r.Revoke(ctx, req)
}

func (r *RevocationRegistry) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	_, ok, err := r.GetRevocationEntry(ctx, credentialID)
	return ok, err
}

func (r *RevocationRegistry) GetRevocationEntry(ctx context.Context, credentialID string) (*domain.RevocationEntry, bool, error) {
	if err := r.ready(); err != nil {
		return nil, false, err
	}
	entry, err := r.Revocations.Get(ctx, credentialID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry, true, nil
}

// RemoveHold lifts an entry whose reason is certificateHold. Any other
// entry, or no entry, yields false.
func (r *RevocationRegistry) RemoveHold(ctx context.Context, credentialID string) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}
	removed, err := r.Revocations.DeleteIfReason(ctx, credentialID, domain.ReasonCertificateHold)
	if err != nil || !removed {
		return false, err
	}
	r.bumpEpoch(ctx)
	r.Events.EmitHoldRemoved(ctx, credentialID)
	return true, nil
}

// CheckBatch maps every input id to its revocation status. Duplicate ids
// collapse into one key.
func (r *RevocationRegistry) CheckBatch(ctx context.Context, credentialIDs []string) (map[string]bool, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(credentialIDs))
	if len(credentialIDs) == 0 {
		return out, nil
	}
	revoked, err := r.Revocations.Exists(ctx, credentialIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range credentialIDs {
		out[id] = revoked[id]
	}
	return out, nil
}

func (r *RevocationRegistry) GetRevocationsByIssuer(ctx context.Context, issuerID string) ([]domain.RevocationEntry, error) {
	return r.list(ctx, domain.RevocationFilter{IssuerID: issuerID})
}

func (r *RevocationRegistry) GetRevocationsByReason(ctx context.Context, reason domain.RevocationReason) ([]domain.RevocationEntry, error) {
	return r.list(ctx, domain.RevocationFilter{Reason: reason})
}

// GetRevocationsSince returns entries revoked at or after since.
func (r *RevocationRegistry) GetRevocationsSince(ctx context.Context, since time.Time) ([]domain.RevocationEntry, error) {
	return r.list(ctx, domain.RevocationFilter{Since: since})
}

func (r *RevocationRegistry) ListRevocations(ctx context.Context, filter domain.RevocationFilter) ([]domain.RevocationEntry, error) {
	return r.list(ctx, filter)
}

func (r *RevocationRegistry) GetRevocationCount(ctx context.Context) (int64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	return r.Revocations.Count(ctx)
}

// Epoch returns the ledger epoch, which changes on every write. It is zero
// when no epoch repository is configured.
func (r *RevocationRegistry) Epoch(ctx context.Context) (int64, error) {
	if r == nil || r.Epochs == nil {
		return 0, nil
	}
	return r.Epochs.GetEpoch(ctx, ledgerEpochScope)
}

// GenerateRevocationListHash digests the ledger independent of insertion
// order: entries are sorted by credential id and each contributes
// "credential_id|reason|revoked_at|issuer_id" on its own line.
func (r *RevocationRegistry) GenerateRevocationListHash(ctx context.Context) (string, error) {
	entries, err := r.list(ctx, domain.RevocationFilter{})
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CredentialID < entries[j].CredentialID
	})
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.CredentialID)
		b.WriteByte('|')
		b.WriteString(string(entry.Reason))
		b.WriteByte('|')
		b.WriteString(entry.RevokedAt.UTC().Format(time.RFC3339Nano))
		b.WriteByte('|')
		b.WriteString(entry.IssuerID)
		b.WriteByte('\n')
	}
	return sha256Hex([]byte(b.String())), nil
}

// AssignStatusIndex reserves the credential's position in the status list.
// Calling it again for the same id returns the same index.
func (r *RevocationRegistry) AssignStatusIndex(ctx context.Context, credentialID string) (int, error) {
	if r == nil || r.StatusIndexes == nil {
		return 0, errors.New("status index repository is required")
	}
	idx, err := r.StatusIndexes.Allocate(ctx, credentialID)
	if err != nil {
		return 0, err
	}
	if idx >= r.statusListSize() {
		return 0, fmt.Errorf("status list exhausted at index %d", idx)
	}
	return idx, nil
}

// EncodedStatusList builds the StatusList2021 bitstring with one bit set for
// every ledger entry carrying a status index. Holds are included.
func (r *RevocationRegistry) EncodedStatusList(ctx context.Context) (string, error) {
	entries, err := r.list(ctx, domain.RevocationFilter{})
	if err != nil {
		return "", err
	}
	bits, err := statuslist.New(r.statusListSize())
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.StatusIndex == nil {
			continue
		}
		if err := bits.Set(*entry.StatusIndex, true); err != nil {
			r.logger().Warn("status index outside list",
				zap.String("credential_id", entry.CredentialID),
				zap.Int("status_index", *entry.StatusIndex),
			)
		}
	}
	return bits.Encode()
}

// ToStatusList2021 returns the unsigned status list credential for
// issuerID, published at listURL.
func (r *RevocationRegistry) ToStatusList2021(ctx context.Context, issuerID, listURL string) (domain.StatusListCredential, error) {
	encoded, err := r.EncodedStatusList(ctx)
	if err != nil {
		return domain.StatusListCredential{}, err
	}
	return domain.StatusListCredential{
		Context:      []string{domain.ContextCredentialsV1, domain.ContextStatusList},
		ID:           listURL,
		Type:         []string{domain.TypeVerifiableCredential, domain.TypeStatusListCredential},
		Issuer:       issuerID,
		IssuanceDate: r.now().UTC().Truncate(time.Second),
		CredentialSubject: domain.StatusListSubject{
			ID:            listURL + "#list",
			Type:          domain.TypeStatusList,
			StatusPurpose: domain.StatusPurposeRevocation,
			EncodedList:   encoded,
		},
	}, nil
}

// StatusEntry builds the credentialStatus block pointing at index.
func StatusEntry(listURL string, index int) *domain.CredentialStatus {
	return &domain.CredentialStatus{
		ID:                   listURL + "#" + strconv.Itoa(index),
		Type:                 domain.TypeStatusListEntry,
		StatusPurpose:        domain.StatusPurposeRevocation,
		StatusListIndex:      strconv.Itoa(index),
		StatusListCredential: listURL,
	}
}

func (r *RevocationRegistry) list(ctx context.Context, filter domain.RevocationFilter) ([]domain.RevocationEntry, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.Revocations.List(ctx, filter)
}

func (r *RevocationRegistry) bumpEpoch(ctx context.Context) {
	if r.Epochs == nil {
		return
	}
	if _, err := r.Epochs.BumpEpoch(ctx, ledgerEpochScope); err != nil {
		r.logger().Warn("revocation epoch bump failed", zap.Error(err))
	}
}

func (r *RevocationRegistry) statusListSize() int {
	if r.StatusListSize <= 0 {
		return statuslist.DefaultSize
	}
	return r.StatusListSize
}

func (r *RevocationRegistry) ready() error {
	if r == nil {
		return errors.New("revocation registry is nil")
	}
	if r.Revocations == nil {
		return errors.New("revocation repository is required")
	}
	return nil
}

func (r *RevocationRegistry) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *RevocationRegistry) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

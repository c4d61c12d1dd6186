package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geoguard/geoguard/pkg/codes"
	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/rbac"
)

// Registry issues and redeems invitation codes
type Registry struct {
	store       docstore.Store
	gen         codes.Generator
	now         func() time.Time
	defaultDays int
}

// Option configures a Registry
type Option func(*Registry)

// WithGenerator overrides the random source used for codes
func WithGenerator(gen codes.Generator) Option {
	return func(r *Registry) { r.gen = gen }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithDefaultExpiryDays changes the expiry used when a request leaves it unset
func WithDefaultExpiryDays(days int) Option {
	return func(r *Registry) {
		if days > 0 {
			r.defaultDays = days
		}
	}
}

// NewRegistry creates a new Registry
func NewRegistry(store docstore.Store, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		gen:         codes.NewRandomGenerator(),
		now:         time.Now,
		defaultDays: DefaultExpiryDays,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create issues an invitation with a code that no unused invitation holds
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Invitation, error) {
	if req.TenantID == "" || req.InvitedBy == "" || req.ExpiresInDays < 0 {
		return nil, ErrInvalidRequest
	}
	if !req.Role.Valid() || req.Role == rbac.RoleSuperAdmin {
		return nil, ErrInvalidRequest
	}

	days := req.ExpiresInDays
	if days == 0 {
		days = r.defaultDays
	}

	code, err := r.freeCode(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	inv := &Invitation{
		TenantID:       req.TenantID,
		InvitedBy:      req.InvitedBy,
		InvitationCode: code,
		Email:          strings.TrimSpace(req.Email),
		Role:           req.Role,
		CreatedAt:      now,
		ExpiresAt:      now.AddDate(0, 0, days),
	}

	data, err := docstore.Encode(inv)
	if err != nil {
		return nil, err
	}
	id, err := r.store.Insert(ctx, docstore.CollectionInvitations, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store invitation: %w", err)
	}
	inv.ID = id
	return inv, nil
}

// freeCode draws codes until one is not held by an unused invitation
func (r *Registry) freeCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < MaxCodeAttempts; attempt++ {
		code, err := codes.InvitationCode(r.gen)
		if err != nil {
			return "", fmt.Errorf("failed to generate invitation code: %w", err)
		}

		existing, err := r.findUnused(ctx, code)
		if err != nil {
			return "", err
		}
		if len(existing) == 0 {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (r *Registry) findUnused(ctx context.Context, code string) ([]*docstore.Document, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionInvitations,
		Filters: []docstore.Filter{
			docstore.Where("invitation_code", code),
			docstore.Where("is_used", false),
		},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation code: %w", err)
	}
	return docs, nil
}

// Validate returns the unused invitation holding code. When both the invitation
// and the caller carry an email they must match, ignoring case.
func (r *Registry) Validate(ctx context.Context, code, email string) (*Invitation, error) {
	code = codes.Normalize(code)
	if code == "" {
		return nil, ErrInvalidCode
	}

	docs, err := r.findUnused(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrInvalidCode
	}

	var inv Invitation
	if err := docstore.Decode(docs[0], &inv); err != nil {
		return nil, ErrInvalidCode
	}
	if inv.IsExpired(r.now()) {
		return nil, ErrExpired
	}

	email = strings.TrimSpace(email)
	if inv.Email != "" && email != "" && !strings.EqualFold(inv.Email, email) {
		return nil, ErrEmailMismatch
	}
	return &inv, nil
}

// MarkUsed records that userID redeemed the invitation. Repeating the call for
// the same user succeeds; another user gets ErrAlreadyUsed.
func (r *Registry) MarkUsed(ctx context.Context, invitationID, userID string) error {
	inv, err := r.Get(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.IsUsed {
		if inv.UsedBy == userID {
			return nil
		}
		return ErrAlreadyUsed
	}

	err = r.store.Update(ctx, docstore.CollectionInvitations, invitationID, map[string]any{
		"is_used": true,
		"used_by": userID,
		"used_at": r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to mark invitation used: %w", err)
	}
	return nil
}

// Get loads an invitation by id
func (r *Registry) Get(ctx context.Context, invitationID string) (*Invitation, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionInvitations, invitationID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	var inv Invitation
	if err := docstore.Decode(doc, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListForTenant returns a tenant's invitations, newest first
func (r *Registry) ListForTenant(ctx context.Context, tenantID string) ([]*Invitation, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionInvitations,
		Filters:    []docstore.Filter{docstore.Where("tenant_id", tenantID)},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return decodeAll(docs)
}

// Delete removes an invitation
func (r *Registry) Delete(ctx context.Context, invitationID string) error {
	err := r.store.Delete(ctx, docstore.CollectionInvitations, invitationID)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	return nil
}

// PurgeExpired deletes unused invitations that expired before now and returns
// how many were removed. Used invitations are kept as provenance.
func (r *Registry) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionInvitations,
		Filters:    []docstore.Filter{docstore.Where("is_used", false)},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan invitations: %w", err)
	}

	invitations, err := decodeAll(docs)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, inv := range invitations {
		if !inv.IsExpired(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		err := r.store.Delete(ctx, docstore.CollectionInvitations, inv.ID)
		if errors.Is(err, docstore.ErrNotFound) {
			continue // deleted concurrently
		}
		if err != nil {
			return purged, fmt.Errorf("failed to purge invitation %s: %w", inv.ID, err)
		}
		purged++
	}
	return purged, nil
}

func decodeAll(docs []*docstore.Document) ([]*Invitation, error) {
	out := make([]*Invitation, 0, len(docs))
	for _, doc := range docs {
		var inv Invitation
		if err := docstore.Decode(doc, &inv); err != nil {
			return nil, err
		}
		out = append(out, &inv)
	}
	return out, nil
}

package licenses

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/geoguard/geoguard/pkg/codes"
	"github.com/geoguard/geoguard/pkg/docstore"
)

// Registry issues, validates and consumes license keys
type Registry struct {
	store docstore.Store
	gen   codes.Generator
	now   func() time.Time

	// consumeMu serializes the read-check-write in Consume
	consumeMu sync.Mutex
}

// Option configures a Registry
type Option func(*Registry)

// WithGenerator overrides the random source used for license keys
func WithGenerator(gen codes.Generator) Option {
	return func(r *Registry) { r.gen = gen }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a new Registry
func NewRegistry(store docstore.Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		gen:   codes.NewRandomGenerator(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate looks up a license key and checks that it can be redeemed.
// It never modifies the license.
func (r *Registry) Validate(ctx context.Context, key string) (*License, error) {
	normalized := codes.Normalize(key)
	if normalized == "" {
		return nil, ErrNotFound
	}

	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionLicenses,
		Filters:    []docstore.Filter{docstore.Where("license_key", normalized)},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up license: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}

	var lic License
	if err := docstore.Decode(docs[0], &lic); err != nil {
		return nil, ErrInvalidFormat
	}

	// revoked wins over every other state
	if !lic.IsActive {
		return nil, ErrRevoked
	}
	if lic.IsUsed {
		return nil, ErrAlreadyUsed
	}
	if lic.IsExpired(r.now()) {
		return nil, ErrExpired
	}
	return &lic, nil
}

// Issue generates and stores a new license key.
// Keys are not checked against existing ones; 32^9 keys per year make a clash negligible.
func (r *Registry) Issue(ctx context.Context, req IssueRequest) (*License, error) {
	if req.IssuedBy == "" || req.ExpiresInDays < 0 {
		return nil, ErrInvalidIssue
	}

	now := r.now().UTC()
	key, err := codes.LicenseKey(r.gen, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to generate license key: %w", err)
	}

	lic := &License{
		LicenseKey:       key,
		IssuedBy:         req.IssuedBy,
		IssuedTo:         req.IssuedTo,
		IssuedAt:         now,
		MaxOrganizations: 1,
		IsUsed:           false,
		IsActive:         true,
		Notes:            req.Notes,
	}
	if req.ExpiresInDays > 0 {
		expires := now.AddDate(0, 0, req.ExpiresInDays)
		lic.ExpiresAt = &expires
	}

	data, err := docstore.Encode(lic)
	if err != nil {
		return nil, err
	}
	id, err := r.store.Insert(ctx, docstore.CollectionLicenses, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store license: %w", err)
	}
	lic.ID = id
	return lic, nil
}

// Consume marks a license as redeemed by tenantID. All consumption fields are
// written in one document update. Repeating the call for the same tenant
// succeeds; a license already consumed by another tenant gets ErrAlreadyUsed.
func (r *Registry) Consume(ctx context.Context, licenseID, tenantID, organizationName string) error {
	r.consumeMu.Lock()
	defer r.consumeMu.Unlock()

	lic, err := r.Get(ctx, licenseID)
	if err != nil {
		return err
	}
	if lic.IsUsed {
		if lic.UsedBy == tenantID {
			return nil
		}
		return ErrAlreadyUsed
	}
	if !lic.IsActive {
		return ErrRevoked
	}

	err = r.store.Update(ctx, docstore.CollectionLicenses, licenseID, map[string]any{
		"is_used":           true,
		"used_at":           r.now().UTC(),
		"used_by":           tenantID,
		"organization_name": organizationName,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume license: %w", err)
	}
	return nil
}

// Get loads a license by id
func (r *Registry) Get(ctx context.Context, licenseID string) (*License, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionLicenses, licenseID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license: %w", err)
	}

	var lic License
	if err := docstore.Decode(doc, &lic); err != nil {
		return nil, ErrInvalidFormat
	}
	return &lic, nil
}

// Revoke deactivates an unredeemed license. Revoking twice is a no-op.
func (r *Registry) Revoke(ctx context.Context, licenseID string) error {
	lic, err := r.Get(ctx, licenseID)
	if err != nil {
		return err
	}
	if lic.IsUsed {
		return ErrAlreadyUsed
	}
	if !lic.IsActive {
		return nil
	}

	if err := r.store.Update(ctx, docstore.CollectionLicenses, licenseID, map[string]any{
		"is_active": false,
	}); err != nil {
		return fmt.Errorf("failed to revoke license: %w", err)
	}
	return nil
}

// List returns every license, newest first
func (r *Registry) List(ctx context.Context) ([]*License, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionLicenses,
		OrderBy:    "issued_at",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}

	out := make([]*License, 0, len(docs))
	for _, doc := range docs {
		var lic License
		if err := docstore.Decode(doc, &lic); err != nil {
			return nil, err
		}
		out = append(out, &lic)
	}
	return out, nil
}

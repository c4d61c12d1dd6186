package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/geoguard/geoguard/pkg/docstore"
	"github.com/geoguard/geoguard/pkg/rbac"
)

// Directory answers the user questions other registries ask
type Directory struct {
	store docstore.Store
}

// NewDirectory creates a new Directory
func NewDirectory(store docstore.Store) *Directory {
	return &Directory{store: store}
}

// CountActive returns the number of active users in a tenant
func (d *Directory) CountActive(ctx context.Context, tenantID string) (int, error) {
	docs, err := d.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionUsers,
		Filters: []docstore.Filter{
			docstore.Where("tenant_id", tenantID),
			docstore.Where("is_active", true),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return len(docs), nil
}

// SetRole overwrites a user's role
func (d *Directory) SetRole(ctx context.Context, userID string, role rbac.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	return d.update(ctx, userID, map[string]any{"role": role})
}

func (d *Directory) update(ctx context.Context, userID string, fields map[string]any) error {
	err := d.store.Update(ctx, docstore.CollectionUsers, userID, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

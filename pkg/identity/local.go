package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/geoguard/geoguard/pkg/docstore"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

type account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// LocalProvider keeps bcrypt-hashed credentials in the document store
type LocalProvider struct {
	store docstore.Store
	cost  int
}

// NewLocalProvider creates a LocalProvider. A cost of 0 selects bcrypt.DefaultCost.
func NewLocalProvider(store docstore.Store, cost int) *LocalProvider {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{store: store, cost: cost}
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount implements Provider.CreateAccount
func (p *LocalProvider) CreateAccount(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}

	existing, err := p.find(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", ErrEmailInUse
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	data, err := docstore.Encode(account{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	id, err := p.store.Insert(ctx, docstore.CollectionAccounts, data)
	if err != nil {
		return "", fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}

// SignIn implements Provider.SignIn
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	acct, err := p.find(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return acct.ID, nil
}

// LookupEmail returns the subject id registered for email. It backs single
// sign-on, where the external provider has already checked the credentials.
func (p *LocalProvider) LookupEmail(ctx context.Context, email string) (string, error) {
	acct, err := p.find(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrInvalidCredentials
	}
	return acct.ID, nil
}

// DeleteAccount implements Provider.DeleteAccount
func (p *LocalProvider) DeleteAccount(ctx context.Context, subjectID string) error {
	err := p.store.Delete(ctx, docstore.CollectionAccounts, subjectID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (p *LocalProvider) find(ctx context.Context, email string) (*account, error) {
	if email == "" {
		return nil, nil
	}
	docs, err := p.store.Query(ctx, docstore.Query{
		Collection: docstore.CollectionAccounts,
		Filters:    []docstore.Filter{docstore.Where("email", email)},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	var acct account
	if err := docstore.Decode(docs[0], &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

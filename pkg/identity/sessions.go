package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/geoguard/geoguard/pkg/docstore"
)

// DefaultSessionTTL is the lifetime of a session token
const DefaultSessionTTL = 24 * time.Hour

// SessionClaims is the payload of a session token
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Session is an issued session token
type Session struct {
	Token     string    `json:"token"`
	SubjectID string    `json:"subject_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sessions issues and verifies signed session tokens. Signed-out tokens are
// remembered by id until they would have expired.
type Sessions struct {
	secret []byte
	issuer string
	ttl    time.Duration
	store  docstore.Store
	now    func() time.Time
}

// NewSessions creates a new Sessions
func NewSessions(store docstore.Store, secret, issuer string, ttl time.Duration) (*Sessions, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		store:  store,
		now:    time.Now,
	}, nil
}

// Issue signs a session token for subjectID
func (s *Sessions) Issue(subjectID string) (*Session, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject is required")
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        docstore.NewID(),
			Subject:   subjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &Session{Token: token, SubjectID: subjectID, ExpiresAt: expires}, nil
}

func (s *Sessions) parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// CurrentSubjectID returns the subject a valid, not signed-out token belongs to
func (s *Sessions) CurrentSubjectID(ctx context.Context, token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return "", err
	}

	_, err = s.store.Get(ctx, docstore.CollectionSessions, claims.ID)
	if err == nil {
		return "", ErrUnauthenticated
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return "", fmt.Errorf("failed to check session: %w", err)
	}
	return claims.Subject, nil
}

// SignOut revokes a token. Signing out an invalid token is an error; signing
// out twice is not.
func (s *Sessions) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	err = s.store.Put(ctx, docstore.CollectionSessions, claims.ID, map[string]any{
		"subject_id": claims.Subject,
		"expires_at": claims.ExpiresAt.Time.UTC(),
		"revoked_at": s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// PurgeRevoked forgets revocations of tokens that have expired by now
func (s *Sessions) PurgeRevoked(ctx context.Context, now time.Time) (int, error) {
	docs, err := s.store.Query(ctx, docstore.Query{Collection: docstore.CollectionSessions})
	if err != nil {
		return 0, fmt.Errorf("failed to scan revoked sessions: %w", err)
	}

	purged := 0
	for _, doc := range docs {
		var entry struct {
			ExpiresAt time.Time `json:"expires_at"`
		}
		if err := docstore.Decode(doc, &entry); err != nil {
			return purged, err
		}
		if !entry.ExpiresAt.Before(now) {
			continue
		}
		if err := s.store.Delete(ctx, docstore.CollectionSessions, doc.ID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return purged, fmt.Errorf("failed to purge revoked session: %w", err)
		}
		purged++
	}
	return purged, nil
}

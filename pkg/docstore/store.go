package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collection names used by the tenancy engine
const (
	CollectionLicenses    = "licenses"
	CollectionTenants     = "tenants"
	CollectionInvitations = "invitations"
	CollectionUsers       = "users"
	CollectionAccounts    = "accounts"
	CollectionSessions    = "revoked_sessions"
	CollectionAudit       = "audit_events"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Document is a stored record: an id plus JSON-compatible fields
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Filter matches documents whose Field equals Value
type Filter struct {
	Field string
	Value any
}

// Where builds an equality filter
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects documents from one collection
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the document store the registries are written against.
//
// Implementations guarantee single-document atomicity only: Update applies all
// of its fields to one document at once, nothing spans documents.
type Store interface {
	// Insert stores data under a generated id and returns the id
	Insert(ctx context.Context, collection string, data map[string]any) (string, error)
	// Put creates or replaces the document with the given id
	Put(ctx context.Context, collection, id string, data map[string]any) error
	// Get returns ErrNotFound if the document does not exist
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Update merges top-level fields into an existing document
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// NewID generates a document id
func NewID() string {
	return uuid.NewString()
}

// Encode converts a tagged struct into document fields.
// The "id" field is dropped; ids live beside the data.
func Encode(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document fields: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

// Decode fills a tagged struct from a document, including its id
func Decode(doc *Document, v any) error {
	fields := make(map[string]any, len(doc.Data)+1)
	for k, val := range doc.Data {
		fields[k] = val
	}
	fields["id"] = doc.ID

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	return nil
}

// normalize round-trips v through JSON so typed values compare like stored ones
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeFields(fields map[string]any) (map[string]any, error) {
	out, err := normalize(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize fields: %w", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return m, nil
}

// matches reports whether data satisfies every filter
func matches(data map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false, fmt.Errorf("invalid filter value for %s: %w", f.Field, err)
		}
		if !reflect.DeepEqual(data[f.Field], want) {
			return false, nil
		}
	}
	return true, nil
}

// finish applies ordering and limit to already filtered documents
func finish(docs []*Document, q Query) []*Document {
	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c := compareValues(docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs
}

// compareValues orders JSON scalars. Timestamps stored as RFC 3339 strings are
// compared as instants since their text form is not fixed width.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	case string:
		if bv, ok := b.(string); ok {
			at, aErr := time.Parse(time.RFC3339Nano, av)
			bt, bErr := time.Parse(time.RFC3339Nano, bv)
			if aErr == nil && bErr == nil {
				return at.Compare(bt)
			}
			return strings.Compare(av, bv)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cloneDocument(doc *Document) *Document {
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		data[k] = v
	}
	return &Document{ID: doc.ID, Data: data}
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid document id: %q", id)
	}
	return nil
}

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	postgresSchema = `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, id)
		);
		CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);
	`

	pgPutDocumentQuery = `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	pgGetDocumentQuery = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	pgQueryDocuments   = `SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb`
	pgUpdateDocument   = `UPDATE documents SET data = data || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`
	pgDeleteDocument   = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

// PostgresConfig holds connection pool settings
type PostgresConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
}

// PostgresStore implements Store on a single JSONB table.
// Equality filters become one JSONB containment predicate served by a GIN index.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore over an open database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings a PostgreSQL connection pool
func OpenPostgres(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// DB returns the underlying database handle
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the documents table and its index
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

// Insert implements Store.Insert
func (s *PostgresStore) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Put implements Store.Put
func (s *PostgresStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	if err := validateID(id); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	// JSON goes over the wire as text; lib/pq would send []byte as bytea
	if _, err := s.db.ExecContext(ctx, pgPutDocumentQuery, collection, id, string(payload)); err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Get implements Store.Get
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, pgGetDocumentQuery, collection, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: data}, nil
}

// Query implements Store.Query. Ordering happens after the scan so that
// timestamps order the same way on every backend.
func (s *PostgresStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	containment, err := filterDocument(q.Filters)
	if err != nil {
		return nil, err
	}

	query := pgQueryDocuments
	args := []interface{}{q.Collection, containment}
	if q.OrderBy == "" && q.Limit > 0 {
		query += " ORDER BY id LIMIT $3"
		args = append(args, q.Limit)
	} else {
		query += " ORDER BY id"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	return finish(docs, q), nil
}

// Update implements Store.Update
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	result, err := s.db.ExecContext(ctx, pgUpdateDocument, collection, id, string(payload))
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Store.Delete
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx, pgDeleteDocument, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.Close
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// filterDocument folds equality filters into a single JSON object for @>
func filterDocument(filters []Filter) (string, error) {
	fields := make(map[string]any, len(filters))
	for _, f := range filters {
		fields[f.Field] = f.Value
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal filters: %w", err)
	}
	return string(payload), nil
}

func scanDocuments(rows *sql.Rows) ([]*Document, error) {
	var docs []*Document
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		data := make(map[string]any)
		if err := json.Unmarshal(payload, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
		}
		docs = append(docs, &Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

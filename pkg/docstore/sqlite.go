package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	sqliteSchema = `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		)
	`

	sqlitePutDocument = `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
	`
	sqliteGetDocument    = `SELECT data FROM documents WHERE collection = ? AND id = ?`
	sqliteQueryDocuments = `SELECT id, data FROM documents WHERE collection = ?`
	sqliteUpdateDocument = `UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?`
	sqliteDeleteDocument = `DELETE FROM documents WHERE collection = ? AND id = ?`
)

// SQLiteStore implements Store on an embedded SQLite database using its JSON functions.
// It backs single-node deployments and the operator CLI.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a SQLite database and migrates it
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY under load
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}
	return store, nil
}

// Insert implements Store.Insert
func (s *SQLiteStore) Insert(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := NewID()
	if err := s.Put(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Put implements Store.Put
func (s *SQLiteStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	if err := validateID(id); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlitePutDocument, collection, id, string(payload)); err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Get implements Store.Get
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	return getSQLiteDocument(ctx, s.db, collection, id)
}

type sqlQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getSQLiteDocument(ctx context.Context, q sqlQueryer, collection, id string) (*Document, error) {
	var payload string
	err := q.QueryRowContext(ctx, sqliteGetDocument, collection, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s/%s: %w", collection, id, err)
	}
	return &Document{ID: id, Data: data}, nil
}

// Query implements Store.Query
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	var b strings.Builder
	b.WriteString(sqliteQueryDocuments)
	args := []interface{}{q.Collection}

	for _, f := range q.Filters {
		value, err := normalize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid filter value for %s: %w", f.Field, err)
		}
		// json_extract yields 1/0 for JSON booleans and the driver binds bools the same way
		b.WriteString(" AND json_extract(data, ?) = ?")
		args = append(args, "$."+f.Field, value)
	}
	b.WriteString(" ORDER BY id")
	if q.OrderBy == "" && q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
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

// Update implements Store.Update. The merge runs in Go inside a transaction;
// json_patch would drop keys whose new value is null.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := normalizeFields(fields)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	doc, err := getSQLiteDocument(ctx, tx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range patch {
		doc.Data[k] = v
	}

	payload, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqliteUpdateDocument, string(payload), collection, id); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

// Delete implements Store.Delete
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx, sqliteDeleteDocument, collection, id)
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Namespaces used by the core.
const (
	NamespaceDevice      = "device"
	NamespaceUI          = "ui"
	NamespaceSession     = "session"
	NamespaceEquipment   = "equipment"
	NamespaceObservation = "observation"
)

// Repository defines raw key/value persistence.
// Values are opaque JSON documents.
type Repository interface {
	// Get returns the value for namespace/key, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Put inserts or replaces a value.
	Put(ctx context.Context, namespace, key string, value []byte) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// List returns every key/value pair in a namespace.
	List(ctx context.Context, namespace string) (map[string][]byte, error)
}

// SQLiteRepository implements Repository on the kv_store table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository backed by an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the value for namespace/key.
func (r *SQLiteRepository) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying %s/%s: %w", namespace, key, err)
	}
	return []byte(value), nil
}

// Put inserts or replaces a value.
func (r *SQLiteRepository) Put(ctx context.Context, namespace, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		namespace, key, string(value), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes a value.
func (r *SQLiteRepository) Delete(ctx context.Context, namespace, key string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE namespace = ? AND key = ?`, namespace, key,
	); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", namespace, key, err)
	}
	return nil
}

// List returns every key/value pair in a namespace.
func (r *SQLiteRepository) List(ctx context.Context, namespace string) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, value FROM kv_store WHERE namespace = ? ORDER BY key`, namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", namespace, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", namespace, err)
		}
		out[k] = []byte(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", namespace, err)
	}
	return out, nil
}

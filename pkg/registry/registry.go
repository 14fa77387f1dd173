// pkg/registry/registry.go
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps the entry as a JSON document on disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get(ctx context.Context) (*ModelEntry, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var entry ModelEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", f.path, err)
	}
	return &entry, nil
}

// Put replaces the file atomically.
func (f *FileStore) Put(ctx context.Context, entry *ModelEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".registry-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// PostgresStore keeps one row per model name in model_registry.
type PostgresStore struct {
	db   *sql.DB
	name string
}

func NewPostgresStore(db *sql.DB, name string) *PostgresStore {
	if name == "" {
		name = DefaultName
	}
	return &PostgresStore{db: db, name: name}
}

func (p *PostgresStore) Get(ctx context.Context) (*ModelEntry, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT model_path, version, ndcg_at_10, mse, mae, ml_enabled, deployed_at
		FROM model_registry WHERE name = $1`, p.name)

	var entry ModelEntry
	err := row.Scan(&entry.ModelPath, &entry.Version, &entry.NDCGAt10, &entry.MSE, &entry.MAE,
		&entry.MLEnabled, &entry.DeployedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read model registry: %w", err)
	}
	return &entry, nil
}

func (p *PostgresStore) Put(ctx context.Context, entry *ModelEntry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO model_registry (name, model_path, version, ndcg_at_10, mse, mae, ml_enabled, deployed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			model_path = EXCLUDED.model_path,
			version = EXCLUDED.version,
			ndcg_at_10 = EXCLUDED.ndcg_at_10,
			mse = EXCLUDED.mse,
			mae = EXCLUDED.mae,
			ml_enabled = EXCLUDED.ml_enabled,
			deployed_at = EXCLUDED.deployed_at`,
		p.name, entry.ModelPath, entry.Version, entry.NDCGAt10, entry.MSE, entry.MAE,
		entry.MLEnabled, entry.DeployedAt)
	if err != nil {
		return fmt.Errorf("write model registry: %w", err)
	}
	return nil
}

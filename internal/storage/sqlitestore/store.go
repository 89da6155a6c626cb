// Package sqlitestore adapts codecortex's storage.MetadataStore contract
// to SQLite via github.com/mattn/go-sqlite3: a persisted-but-local
// store that internal/di opens when the metadata config selects it.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// registers the "sqlite3" database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"codecortex/pkg/codeunit"
)

// Store implements storage.MetadataStore against a local SQLite file.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS units (
	identifier       TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	namespace        TEXT,
	file_path        TEXT,
	source_code      TEXT NOT NULL,
	source_hash      TEXT NOT NULL,
	metadata         TEXT,
	dependencies     TEXT,
	estimated_tokens INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS units_type_idx ON units (type);
`

// Open opens (creating if absent) the SQLite file at path and ensures
// the units table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: failed to open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlitestore: failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Upsert(ctx context.Context, unit *codeunit.Unit) error {
	metadataJSON, err := json.Marshal(unit.Metadata)
	if err != nil {
		return fmt.Errorf("sqlitestore: failed to marshal metadata: %w", err)
	}
	depsJSON, err := json.Marshal(unit.Dependencies)
	if err != nil {
		return fmt.Errorf("sqlitestore: failed to marshal dependencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO units (identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			type = excluded.type,
			namespace = excluded.namespace,
			file_path = excluded.file_path,
			source_code = excluded.source_code,
			source_hash = excluded.source_hash,
			metadata = excluded.metadata,
			dependencies = excluded.dependencies,
			estimated_tokens = excluded.estimated_tokens
	`, unit.Identifier, string(unit.Type), unit.Namespace, unit.FilePath, unit.SourceCode,
		unit.SourceHash, string(metadataJSON), string(depsJSON), unit.EstimatedTokens)
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert failed: %w", err)
	}
	return nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*codeunit.Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens
		FROM units WHERE identifier = ?
	`, identifier)
	return scanUnit(row)
}

func (s *Store) FindByType(ctx context.Context, t codeunit.Type) ([]*codeunit.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens
		FROM units WHERE type = ? ORDER BY identifier ASC
	`, string(t))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: find_by_type query failed: %w", err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

// Search ranks by the position instr() finds query at (earlier first),
// ties broken by identifier ascending.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*codeunit.Unit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens
		FROM units
		WHERE lower(identifier) LIKE '%' || lower(?) || '%' OR lower(source_code) LIKE '%' || lower(?) || '%'
		ORDER BY MIN(
			CASE WHEN instr(lower(identifier), lower(?)) = 0 THEN 999999999 ELSE instr(lower(identifier), lower(?)) END,
			CASE WHEN instr(lower(source_code), lower(?)) = 0 THEN 999999999 ELSE instr(lower(source_code), lower(?)) END
		) ASC, identifier ASC
		LIMIT ?
	`, query, query, query, query, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: search query failed: %w", err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

func (s *Store) Delete(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE identifier = ?`, identifier)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete failed: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units`).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlitestore: count failed: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUnit(row rowScanner) (*codeunit.Unit, error) {
	var u codeunit.Unit
	var typ string
	var metadataJSON, depsJSON sql.NullString
	err := row.Scan(&u.Identifier, &typ, &u.Namespace, &u.FilePath, &u.SourceCode, &u.SourceHash,
		&metadataJSON, &depsJSON, &u.EstimatedTokens)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sqlitestore: unit not found")
		}
		return nil, fmt.Errorf("sqlitestore: scan failed: %w", err)
	}
	u.Type = codeunit.Type(typ)
	if metadataJSON.Valid && metadataJSON.String != "" {
		_ = json.Unmarshal([]byte(metadataJSON.String), &u.Metadata)
	}
	if depsJSON.Valid && depsJSON.String != "" {
		_ = json.Unmarshal([]byte(depsJSON.String), &u.Dependencies)
	}
	return &u, nil
}

func scanUnits(rows *sql.Rows) ([]*codeunit.Unit, error) {
	var out []*codeunit.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Package pgstore adapts codecortex's storage.MetadataStore contract to
// PostgreSQL via database/sql and github.com/lib/pq, using parameterized
// queries throughout.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// registers the "postgres" database/sql driver
	_ "github.com/lib/pq"

	"codecortex/pkg/codeunit"
)

// Store implements storage.MetadataStore against a Postgres units table.
type Store struct {
	db *sql.DB
}

// Open opens a connection pool for databaseURL. It neither pings the
// server nor checks that the units table exists.
func Open(databaseURL string, maxOpenConns, maxIdleConns int) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgstore: failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	return &Store{db: db}, nil
}

// Schema is the DDL for the units table. Nothing in this module applies
// it; it is run by hand before first use.
const Schema = `
CREATE TABLE IF NOT EXISTS units (
	identifier       TEXT PRIMARY KEY,
	type             TEXT NOT NULL,
	namespace        TEXT,
	file_path        TEXT,
	source_code      TEXT NOT NULL,
	source_hash      TEXT NOT NULL,
	metadata         JSONB,
	dependencies     JSONB,
	estimated_tokens INT NOT NULL
);
CREATE INDEX IF NOT EXISTS units_type_idx ON units (type);
`

func (s *Store) Upsert(ctx context.Context, unit *codeunit.Unit) error {
	metadataJSON, err := json.Marshal(unit.Metadata)
	if err != nil {
		return fmt.Errorf("pgstore: failed to marshal metadata: %w", err)
	}
	depsJSON, err := json.Marshal(unit.Dependencies)
	if err != nil {
		return fmt.Errorf("pgstore: failed to marshal dependencies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO units (identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (identifier) DO UPDATE SET
			type = EXCLUDED.type,
			namespace = EXCLUDED.namespace,
			file_path = EXCLUDED.file_path,
			source_code = EXCLUDED.source_code,
			source_hash = EXCLUDED.source_hash,
			metadata = EXCLUDED.metadata,
			dependencies = EXCLUDED.dependencies,
			estimated_tokens = EXCLUDED.estimated_tokens
	`, unit.Identifier, string(unit.Type), unit.Namespace, unit.FilePath, unit.SourceCode,
		unit.SourceHash, metadataJSON, depsJSON, unit.EstimatedTokens)
	if err != nil {
		return fmt.Errorf("pgstore: upsert failed: %w", err)
	}
	return nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*codeunit.Unit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens
		FROM units WHERE identifier = $1
	`, identifier)
	return scanUnit(row)
}

func (s *Store) FindByType(ctx context.Context, t codeunit.Type) ([]*codeunit.Unit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens
		FROM units WHERE type = $1 ORDER BY identifier ASC
	`, string(t))
	if err != nil {
		return nil, fmt.Errorf("pgstore: find_by_type query failed: %w", err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

// Search ranks by the earlier of query's positions within identifier
// and source_code (earlier match first), ties broken by identifier
// ascending. strpos returns 0 for no match, so non-matches are filtered
// with a WHERE clause first and a zero position is dropped via NULLIF.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*codeunit.Unit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, type, namespace, file_path, source_code, source_hash, metadata, dependencies, estimated_tokens
		FROM units
		WHERE identifier ILIKE '%' || $1 || '%' OR source_code ILIKE '%' || $1 || '%'
		ORDER BY LEAST(
			NULLIF(strpos(lower(identifier), lower($1)), 0),
			NULLIF(strpos(lower(source_code), lower($1)), 0)
		) ASC NULLS LAST, identifier ASC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgstore: search query failed: %w", err)
	}
	defer rows.Close()
	return scanUnits(rows)
}

func (s *Store) Delete(ctx context.Context, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("pgstore: delete failed: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units`).Scan(&count); err != nil {
		return 0, fmt.Errorf("pgstore: count failed: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUnit(row rowScanner) (*codeunit.Unit, error) {
	var u codeunit.Unit
	var typ string
	var metadataJSON, depsJSON []byte
	err := row.Scan(&u.Identifier, &typ, &u.Namespace, &u.FilePath, &u.SourceCode, &u.SourceHash,
		&metadataJSON, &depsJSON, &u.EstimatedTokens)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("pgstore: unit not found")
		}
		return nil, fmt.Errorf("pgstore: scan failed: %w", err)
	}
	u.Type = codeunit.Type(typ)
	if len(metadataJSON) > 0 {
		_ = json.Unmarshal(metadataJSON, &u.Metadata)
	}
	if len(depsJSON) > 0 {
		_ = json.Unmarshal(depsJSON, &u.Dependencies)
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

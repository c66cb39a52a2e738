package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/consearch/internal/resolve"
)

const recordSchema = `
CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS record_identifiers (
	scheme TEXT NOT NULL,
	value TEXT NOT NULL,
	record_id INTEGER NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	PRIMARY KEY (scheme, value)
);
`

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the record database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record database: %w", err)
	}
	if _, err := db.Exec(recordSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create record tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRecord persists the record and indexes all of its identifiers. A
// record sharing an identifier with a stored one replaces it.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *resolve.Record) (int64, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Replace any previous row for the same work.
	if existing, err := s.lookupID(ctx, tx, rec.Identifiers); err != nil {
		return 0, err
	} else if existing != 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, existing); err != nil {
			return 0, fmt.Errorf("failed to replace record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM record_identifiers WHERE record_id = ?`, existing); err != nil {
			return 0, fmt.Errorf("failed to replace record identifiers: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO records (kind, title, data) VALUES (?, ?, ?)`,
		rec.Kind.String(), rec.Title, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get record id: %w", err)
	}

	for scheme, value := range identifierPairs(rec.Identifiers) {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO record_identifiers (scheme, value, record_id) VALUES (?, ?, ?)`,
			scheme, value, id,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to index identifier %s:%s: %w", scheme, value, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit record: %w", err)
	}
	return id, nil
}

// LookupByIdentifier returns the stored record for one identifier, or nil.
func (s *SQLiteStore) LookupByIdentifier(ctx context.Context, scheme, value string) (*resolve.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT r.data FROM records r
		 JOIN record_identifiers ri ON ri.record_id = r.id
		 WHERE ri.scheme = ? AND ri.value = ?`,
		scheme, value,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}

	var rec resolve.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) lookupID(ctx context.Context, tx *sql.Tx, ids resolve.IdentifierSet) (int64, error) {
	for scheme, value := range identifierPairs(ids) {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT record_id FROM record_identifiers WHERE scheme = ? AND value = ?`,
			scheme, value,
		).Scan(&id)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to query identifier index: %w", err)
		}
		return id, nil
	}
	return 0, nil
}

func identifierPairs(ids resolve.IdentifierSet) map[string]string {
	pairs := make(map[string]string, 5)
	if ids.ISBN10 != "" {
		pairs["isbn_10"] = ids.ISBN10
	}
	if ids.ISBN13 != "" {
		pairs["isbn_13"] = ids.ISBN13
	}
	if ids.DOI != "" {
		pairs["doi"] = ids.DOI
	}
	if ids.ArxivID != "" {
		pairs["arxiv"] = ids.ArxivID
	}
	if ids.PMID != "" {
		pairs["pmid"] = ids.PMID
	}
	return pairs
}

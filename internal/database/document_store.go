package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"greenhouse/internal/ledger"
	"greenhouse/internal/metrics"
)

var ErrDuplicateLocation = errors.New("duplicate location")

// MySQLDocumentStore keeps one named history document in the ledger_documents table
type MySQLDocumentStore struct {
	db   *DB
	name string
}

// DocumentStore returns a document store for name, usually one per location
func (db *DB) DocumentStore(name string) *MySQLDocumentStore {
	return &MySQLDocumentStore{db: db, name: name}
}

func (ls *MySQLDocumentStore) Load() ([]byte, error) {
	var document string
	queryStart := time.Now()
	err := ls.db.conn.QueryRow(`SELECT document FROM ledger_documents WHERE name = ?`, ls.name).Scan(&document)
	if err == sql.ErrNoRows {
		metrics.RecordDBQuery("SELECT", "ledger_documents", time.Since(queryStart), nil)
		return nil, ledger.ErrNotFound
	}
	metrics.RecordDBQuery("SELECT", "ledger_documents", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger document %s: %w", ls.name, err)
	}
	return []byte(document), nil
}

func (ls *MySQLDocumentStore) Save(data []byte) error {
	query := `INSERT INTO ledger_documents (name, document, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE document = VALUES(document), updated_at = VALUES(updated_at)`
	queryStart := time.Now()
	_, err := ls.db.conn.Exec(query, ls.name, string(data), time.Now())
	metrics.RecordDBQuery("UPSERT", "ledger_documents", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to write ledger document %s: %w", ls.name, err)
	}
	return nil
}

var _ ledger.DocumentStore = (*MySQLDocumentStore)(nil)

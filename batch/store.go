// Package batch turns a directory of images into quilts, one at a
// time, checkpointing per-file progress in SQLite so an interrupted
// run picks up where it left off instead of re-inferring depth for
// work already done.
package batch

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Record is one row of batch progress.
type Record struct {
	Path          string
	Basename      string
	QuiltFilename string
	Status        Status
}

// Store persists per-file progress. It wraps an open database handle;
// the caller owns the handle's lifetime.
type Store struct {
	db *sql.DB
}

// NewStore prepares a Store on db, creating the progress table if it
// does not exist.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.createTable(); err != nil {
		return nil, fmt.Errorf("creating progress table: %w", err)
	}
	return s, nil
}

func (s *Store) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS processed_files (
		path TEXT PRIMARY KEY,
		basename TEXT,
		quiltfilename TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status TEXT
	)`
	_, err := s.db.Exec(query)
	return err
}

// Get returns the record for path, or nil if the file has never been
// seen.
func (s *Store) Get(path string) (*Record, error) {
	query := `SELECT path, basename, quiltfilename, status FROM processed_files WHERE path = ?`
	var r Record
	var status string
	err := s.db.QueryRow(query, path).Scan(&r.Path, &r.Basename, &r.QuiltFilename, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Status = parseStatus(status)
	return &r, nil
}

// Ensure records the file as pending on first discovery. An existing
// record keeps its status.
func (s *Store) Ensure(path, basename string) error {
	query := `INSERT OR IGNORE INTO processed_files (path, basename, quiltfilename, status) VALUES (?, ?, '', ?)`
	_, err := s.db.Exec(query, path, basename, StatusPending.text())
	return err
}

// MarkSuccess records the generated quilt for path.
func (s *Store) MarkSuccess(path, basename, quiltFilename string) error {
	query := `INSERT OR REPLACE INTO processed_files (path, basename, quiltfilename, status) VALUES (?, ?, ?, ?)`
	_, err := s.db.Exec(query, path, basename, quiltFilename, StatusSuccess.text())
	return err
}

// MarkFailed records that path could not be processed.
func (s *Store) MarkFailed(path, basename string) error {
	query := `INSERT OR REPLACE INTO processed_files (path, basename, quiltfilename, status) VALUES (?, ?, '', ?)`
	_, err := s.db.Exec(query, path, basename, StatusFailed.text())
	return err
}

// Successes returns every successfully processed record, ordered by
// input path.
func (s *Store) Successes() ([]Record, error) {
	query := `SELECT path, basename, quiltfilename, status FROM processed_files WHERE status = ? ORDER BY path`
	rows, err := s.db.Query(query, StatusSuccess.text())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var status string
		if err := rows.Scan(&r.Path, &r.Basename, &r.QuiltFilename, &status); err != nil {
			return nil, err
		}
		r.Status = parseStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SimpleName derives a filesystem-friendly output stem for path. The
// stem keeps only letters and digits, capped at 32 runes, and gets a
// numeric suffix when the store already holds a colliding basename.
func (s *Store) SimpleName(path string) (string, error) {
	simple := simplifyStem(path)
	var count int
	query := `SELECT COUNT(*) FROM processed_files WHERE basename LIKE ?`
	if err := s.db.QueryRow(query, simple+"%").Scan(&count); err != nil {
		return "", err
	}
	if count > 0 {
		return fmt.Sprintf("%s_%02d", simple, count), nil
	}
	return simple, nil
}

func simplifyStem(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	n := 0
	for _, r := range stem {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		b.WriteRune(r)
		if n++; n == 32 {
			break
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

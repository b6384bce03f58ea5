package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source represents a card source, either a local path or a Git URL.
type Source struct {
	ID          int64
	Path        string
	Type        string
	Group       string
	LastScanned sql.NullTime
}

// InsertSource inserts a new source and returns its ID.
func (db *DB) InsertSource(path, sourceType, group string) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO sources (path, type, grp)
		VALUES (?, ?, ?)
	`, path, sourceType, group)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source by its path. It returns nil, nil when
// no such source exists.
func (db *DB) FindSourceByPath(path string) (*Source, error) {
	var s Source
	err := db.conn.QueryRow(`
		SELECT id, path, type, grp, last_scanned
		FROM sources WHERE path = ?
	`, path).Scan(&s.ID, &s.Path, &s.Type, &s.Group, &s.LastScanned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return &s, nil
}

// GetAllSources retrieves all stored sources.
func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query(`
		SELECT id, path, type, grp, last_scanned
		FROM sources ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.Type, &s.Group, &s.LastScanned); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned stamps the last_scanned time of a source.
func (db *DB) UpdateSourceLastScanned(sourceID int64, at time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE sources SET last_scanned = ? WHERE id = ?
	`, at.UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source. Cards no other source holds are deleted
// together with their reviews; shared cards keep their state.
func (db *DB) DeleteSource(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete of source %d: %w", id, err)
	}
	defer tx.Rollback()

	const exclusive = `SELECT card_id FROM card_sources
		WHERE source_id = ? AND card_id NOT IN (SELECT card_id FROM card_sources WHERE source_id <> ?)`
	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM reviews WHERE card_id IN (` + exclusive + `)`, []any{id, id}},
		{`DELETE FROM cards WHERE id IN (` + exclusive + `)`, []any{id, id}},
		{`DELETE FROM card_sources WHERE source_id = ?`, []any{id}},
		{`DELETE FROM sources WHERE id = ?`, []any{id}},
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("failed to delete source %d: %w", id, err)
		}
	}
	return tx.Commit()
}

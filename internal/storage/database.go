package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `id, prompt, response, context, grp, created_at,
	difficulty, weight, times_correct, times_wrong, last_seen,
	tracked, ease_factor, review_count, correct_streak, next_review`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c          domain.Card
		difficulty string
		lastSeen   sql.NullTime
		tracked    bool
		h          domain.Horizon
		nextReview sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.Prompt, &c.Response, &c.Context, &c.Group, &c.CreatedAt,
		&difficulty, &c.Weight, &c.TimesCorrect, &c.TimesWrong, &lastSeen,
		&tracked, &h.EaseFactor, &h.ReviewCount, &h.CorrectStreak, &nextReview,
	)
	if err != nil {
		return domain.Card{}, err
	}

	if c.Difficulty, err = domain.ParseDifficulty(difficulty); err != nil {
		return domain.Card{}, fmt.Errorf("card %s: %w", c.ID, err)
	}
	c.LastSeen = timePtr(lastSeen)
	if tracked {
		h.NextReview = timePtr(nextReview)
		c.Horizon = &h
	}
	return c, nil
}

func collectCards(rows *sql.Rows) ([]domain.Card, error) {
	defer rows.Close()
	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// InsertCard inserts a newly ingested card and links it to sourceID (0 for
// none). A card that already exists keeps its scheduling state untouched and
// only gains the link.
func (db *DB) InsertCard(card domain.Card, sourceID int64) error {
	created := card.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin insert of card %s: %w", card.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cards (id, prompt, response, context, grp, created_at, difficulty, weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		card.ID,
		card.Prompt,
		card.Response,
		card.Context,
		card.Group,
		created.UTC(),
		domain.New.String(),
		domain.InitialWeight,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
	}
	if sourceID != 0 {
		if err := linkCard(tx, card.ID, sourceID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LinkCard records that sourceID holds the card's content.
func (db *DB) LinkCard(cardID string, sourceID int64) error {
	return linkCard(db.conn, cardID, sourceID)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func linkCard(e execer, cardID string, sourceID int64) error {
	_, err := e.Exec(`
		INSERT INTO card_sources (card_id, source_id) VALUES (?, ?)
		ON CONFLICT(card_id, source_id) DO NOTHING
	`, cardID, sourceID)
	if err != nil {
		return fmt.Errorf("failed to link card %s to source %d: %w", cardID, sourceID, err)
	}
	return nil
}

// FindCard retrieves a card by id. It returns domain.ErrNotFound when absent.
func (db *DB) FindCard(id string) (domain.Card, error) {
	row := db.conn.QueryRow(`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	return c, nil
}

// inGroup matches cards held by a source of the group. Cards no source holds
// fall back to their own group column. It takes the group three times.
const inGroup = `(? = '' OR id IN (
		SELECT cs.card_id FROM card_sources cs JOIN sources s ON s.id = cs.source_id
		WHERE s.grp = ?
	) OR (grp = ? AND id NOT IN (SELECT card_id FROM card_sources)))`

// LoadCards returns every card, oldest first, optionally restricted to a group.
func (db *DB) LoadCards(group string) ([]domain.Card, error) {
	rows, err := db.conn.Query(`
		SELECT `+cardColumns+` FROM cards
		WHERE `+inGroup+`
		ORDER BY created_at ASC, rowid ASC
	`, group, group, group)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}
	return collectCards(rows)
}

// DueCards returns cards whose next review has passed or was never set,
// oldest first. A limit of zero means no limit.
func (db *DB) DueCards(now time.Time, group string, limit int) ([]domain.Card, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`
		SELECT `+cardColumns+` FROM cards
		WHERE (tracked = 0 OR next_review IS NULL OR next_review <= ?)
		  AND `+inGroup+`
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, now.UTC(), group, group, group, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	return collectCards(rows)
}

// SaveCard writes back a card's scheduling state after a review.
func (db *DB) SaveCard(c domain.Card) error {
	var (
		tracked bool
		h       = domain.Horizon{EaseFactor: domain.InitialEaseFactor}
	)
	if c.Horizon != nil {
		tracked = true
		h = *c.Horizon
	}
	res, err := db.conn.Exec(`
		UPDATE cards
		SET difficulty = ?, weight = ?, times_correct = ?, times_wrong = ?, last_seen = ?,
		    tracked = ?, ease_factor = ?, review_count = ?, correct_streak = ?, next_review = ?
		WHERE id = ?
	`,
		c.Difficulty.String(),
		c.Weight,
		c.TimesCorrect,
		c.TimesWrong,
		nullTime(c.LastSeen),
		tracked,
		h.EaseFactor,
		h.ReviewCount,
		h.CorrectStreak,
		nullTime(h.NextReview),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update card state for %s: %w", c.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, c.ID)
	}
	return nil
}

// CardIDsBySource lists the ids of every card a source holds.
func (db *DB) CardIDsBySource(sourceID int64) ([]string, error) {
	rows, err := db.conn.Query(`SELECT card_id FROM card_sources WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card id for source ID %d: %w", sourceID, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// deleteCard removes a card, its source links and its review history.
func deleteCard(e execer, id string) error {
	stmts := []string{
		`DELETE FROM reviews WHERE card_id = ?`,
		`DELETE FROM card_sources WHERE card_id = ?`,
		`DELETE FROM cards WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := e.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to delete card %s: %w", id, err)
		}
	}
	return nil
}

// ReleaseCard removes sourceID's hold on a card. The card and its history are
// deleted only when no other source still holds it; deleted reports whether
// that happened.
func (db *DB) ReleaseCard(cardID string, sourceID int64) (deleted bool, err error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin release of card %s: %w", cardID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM card_sources WHERE card_id = ? AND source_id = ?`, cardID, sourceID)
	if err != nil {
		return false, fmt.Errorf("failed to unlink card %s from source %d: %w", cardID, sourceID, err)
	}
	var holders int
	err = tx.QueryRow(`SELECT COUNT(*) FROM card_sources WHERE card_id = ?`, cardID).Scan(&holders)
	if err != nil {
		return false, fmt.Errorf("failed to count sources of card %s: %w", cardID, err)
	}
	if holders == 0 {
		if err := deleteCard(tx, cardID); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit release of card %s: %w", cardID, err)
	}
	return holders == 0, nil
}

// InsertReview appends a review to the history.
func (db *DB) InsertReview(r domain.ReviewLog) error {
	_, err := db.conn.Exec(`
		INSERT INTO reviews (card_id, session_id, was_correct, quality, interval_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.CardID, r.SessionID, r.WasCorrect, r.Quality, r.IntervalDays, r.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert review for card %s: %w", r.CardID, err)
	}
	return nil
}

// ReviewsForCard returns a card's review history, oldest first.
func (db *DB) ReviewsForCard(id string) ([]domain.ReviewLog, error) {
	rows, err := db.conn.Query(`
		SELECT card_id, COALESCE(session_id, ''), was_correct, quality, interval_days, created_at
		FROM reviews WHERE card_id = ?
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews for card %s: %w", id, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var r domain.ReviewLog
		if err := rows.Scan(&r.CardID, &r.SessionID, &r.WasCorrect, &r.Quality, &r.IntervalDays, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan review row for card %s: %w", id, err)
		}
		logs = append(logs, r)
	}
	return logs, rows.Err()
}

// SaveSession inserts or updates a study session summary.
func (db *DB) SaveSession(s domain.SessionSummary) error {
	_, err := db.conn.Exec(`
		INSERT INTO study_sessions (id, grp, reviewed, correct, wrong, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reviewed = excluded.reviewed,
			correct = excluded.correct,
			wrong = excluded.wrong,
			ended_at = excluded.ended_at
	`, s.ID, s.Group, s.Reviewed, s.Correct, s.Wrong, s.StartedAt.UTC(), nullTime(s.EndedAt))
	if err != nil {
		return fmt.Errorf("failed to save study session %s: %w", s.ID, err)
	}
	return nil
}

// FindSession retrieves a study session summary by id.
func (db *DB) FindSession(id string) (domain.SessionSummary, error) {
	var (
		s     domain.SessionSummary
		ended sql.NullTime
	)
	err := db.conn.QueryRow(`
		SELECT id, grp, reviewed, correct, wrong, started_at, ended_at
		FROM study_sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Group, &s.Reviewed, &s.Correct, &s.Wrong, &s.StartedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("study session %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return s, fmt.Errorf("failed to find study session %s: %w", id, err)
	}
	s.EndedAt = timePtr(ended)
	return s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

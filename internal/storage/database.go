package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
// Foreign keys are enforced and times are stored in a sortable UTC format.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps sqlite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
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
	t := nt.Time.UTC()
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateDeck inserts a new deck.
func (db *DB) CreateDeck(ctx context.Context, d *domain.Deck) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO decks (id, name, path, type, owner_id, last_scanned)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, d.Path, string(d.Type), d.OwnerID, nullTime(d.LastScanned))
	if err != nil {
		return fmt.Errorf("failed to insert deck %s: %w", d.Path, err)
	}
	return nil
}

const deckColumns = `id, name, path, type, owner_id, last_scanned`

func scanDeck(row scanner) (*domain.Deck, error) {
	var d domain.Deck
	var typ string
	var scanned sql.NullTime
	if err := row.Scan(&d.ID, &d.Name, &d.Path, &typ, &d.OwnerID, &scanned); err != nil {
		return nil, err
	}
	d.Type = domain.SourceType(typ)
	d.LastScanned = timePtr(scanned)
	return &d, nil
}

// GetDeck retrieves a deck by id.
func (db *DB) GetDeck(ctx context.Context, id string) (*domain.Deck, error) {
	d, err := scanDeck(db.conn.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: deck %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck %s: %w", id, err)
	}
	return d, nil
}

// FindDeckByPath retrieves a deck by its source path. It returns nil when
// no deck uses the path.
func (db *DB) FindDeckByPath(ctx context.Context, path string) (*domain.Deck, error) {
	d, err := scanDeck(db.conn.QueryRowContext(ctx, `SELECT `+deckColumns+` FROM decks WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find deck by path %s: %w", path, err)
	}
	return d, nil
}

// ListDecks retrieves all stored decks.
func (db *DB) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+deckColumns+` FROM decks ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		d, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck row: %w", err)
		}
		decks = append(decks, *d)
	}
	return decks, rows.Err()
}

// UpdateDeckLastScanned updates the last_scanned timestamp for a deck.
func (db *DB) UpdateDeckLastScanned(ctx context.Context, id string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE decks SET last_scanned = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for deck %s: %w", id, err)
	}
	return nil
}

// DeleteDeck removes a deck together with its cards, memory states,
// reviews and sessions.
func (db *DB) DeleteDeck(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: deck %s", domain.ErrNotFound, id)
	}
	return nil
}

// Package catalog records where packaged stimulus sets and data assemblies
// are stored. Entries live in a SQLite database; an identifier has at most
// one entry per lookup type and registering it again replaces that entry.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bonnerlab/datasets/errors"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Lookup types.
const (
	TypeStimulusSetCSV = "stimulus_set_csv"
	TypeStimulusSetZip = "stimulus_set_zip"
	TypeAssembly       = "assembly"
)

// Entry is one catalog row.
type Entry struct {
	ID           string
	Identifier   string
	Type         string
	Class        string
	LocationType string
	Location     string
	SHA1         string
	// StimulusSet names the stimulus set an assembly was recorded on.
	StimulusSet string
	CreatedAt   time.Time
}

// Catalog is a SQLite-backed lookup catalog.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens the catalog database at path.
func Open(path string) (*Catalog, error) {
	const op = "catalog.Open"

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.CodeStorage, op, fmt.Errorf("connect %s: %w", path, err))
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	//nolint:wrapcheck // close error is self-describing
	return c.db.Close()
}

// Register stores e, replacing any entry with the same identifier and type.
// It assigns a fresh ID and creation time and returns the stored entry.
func (c *Catalog) Register(ctx context.Context, e Entry) (Entry, error) {
	const op = "catalog.Register"

	if e.Identifier == "" || e.Type == "" || e.LocationType == "" || e.Location == "" {
		return Entry{}, errors.New(errors.CodeInvalidInput, op,
			"identifier, type, location type and location are required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, errors.Wrap(errors.CodeInternal, op, err)
	}
	e.ID = id.String()
	e.CreatedAt = time.Now().UTC()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO lookups (id, identifier, lookup_type, class, location_type, location, sha1,
			stimulus_set_identifier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (identifier, lookup_type) DO UPDATE SET
			id = excluded.id,
			class = excluded.class,
			location_type = excluded.location_type,
			location = excluded.location,
			sha1 = excluded.sha1,
			stimulus_set_identifier = excluded.stimulus_set_identifier,
			created_at = excluded.created_at`,
		e.ID, e.Identifier, e.Type, e.Class, e.LocationType, e.Location, e.SHA1,
		e.StimulusSet, e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, errors.Wrap(errors.CodeStorage, op, fmt.Errorf("%s/%s: %w", e.Identifier, e.Type, err))
	}
	return e, nil
}

// Lookup returns the entries recorded for identifier, ordered by type.
func (c *Catalog) Lookup(ctx context.Context, identifier string) ([]Entry, error) {
	entries, err := c.query(ctx, "catalog.Lookup", `WHERE identifier = ?`, identifier)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.Newf(errors.CodeNotFound, "catalog.Lookup", "no entries for %q", identifier)
	}
	return entries, nil
}

// List returns every entry ordered by identifier and type.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	return c.query(ctx, "catalog.List", "")
}

func (c *Catalog) query(ctx context.Context, op, where string, args ...any) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, identifier, lookup_type, class, location_type, location, sha1,
			stimulus_set_identifier, created_at
		FROM lookups `+where+`
		ORDER BY identifier, lookup_type`, args...)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Identifier, &e.Type, &e.Class, &e.LocationType, &e.Location,
			&e.SHA1, &e.StimulusSet, &created); err != nil {
			return nil, errors.Wrap(errors.CodeStorage, op, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, errors.Wrap(errors.CodeDecode, op, fmt.Errorf("entry %s: %w", e.ID, err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}
	return entries, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

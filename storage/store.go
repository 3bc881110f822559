package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the sqlite database behind the artifact ledger and the user's
// preferences and long-term memory.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Streams record artifacts concurrently; one connection serializes
	// writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		extension TEXT NOT NULL,
		bytes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);

	CREATE TABLE IF NOT EXISTS user_prefs (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		language TEXT NOT NULL DEFAULT '',
		tone TEXT NOT NULL DEFAULT '',
		format_hint TEXT NOT NULL DEFAULT '',
		cite_style TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS user_profile (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		memory TEXT NOT NULL DEFAULT ''
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	def := DefaultPrefs()
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO user_prefs (id, language, tone, format_hint, cite_style) VALUES (1, ?, ?, ?, ?)`,
		def.Language, def.Tone, def.FormatHint, def.CiteStyle,
	); err != nil {
		return fmt.Errorf("failed to seed preferences: %w", err)
	}
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO user_profile (id, memory) VALUES (1, '')`); err != nil {
		return fmt.Errorf("failed to seed profile: %w", err)
	}

	if err := s.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after the first release
func (s *Store) migrateSchema() error {
	hasSessionID, err := s.columnExists("artifacts", "session_id")
	if err != nil {
		return fmt.Errorf("failed to check for session_id column: %w", err)
	}

	if !hasSessionID {
		if _, err := s.db.Exec(`ALTER TABLE artifacts ADD COLUMN session_id TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add session_id column: %w", err)
		}
	}

	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (s *Store) columnExists(tableName, columnName string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue interface{}
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

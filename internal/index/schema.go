// Package index is the SQLite host datastore: posts, their revisions and
// the read-more marker tags, with optional FTS5 text matching.
package index

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/readmore/internal/marker"
)

var sqlite = sq.StatementBuilder.PlaceholderFormat(sq.Question)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS posts (
	id           INTEGER PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'draft',
	slug         TEXT NOT NULL DEFAULT '',
	published_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	modified_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	source_path  TEXT NOT NULL DEFAULT '',
	checksum     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS post_markers (
	post_id   INTEGER PRIMARY KEY REFERENCES posts(id) ON DELETE CASCADE,
	tagged_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS post_revisions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	post_id     INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	saved_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	source_path TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_posts_status_published ON posts(status, published_at);
CREATE INDEX IF NOT EXISTS idx_posts_source ON posts(source_path);
CREATE INDEX IF NOT EXISTS idx_post_revisions_post ON post_revisions(post_id);
CREATE INDEX IF NOT EXISTS idx_post_revisions_source ON post_revisions(source_path);
`

// DB wraps a sqlx.DB with post, marker and query operations.
type DB struct {
	conn     *sqlx.DB
	detector marker.Detector
	cache    *summaryCache
}

// Option configures a DB.
type Option func(*DB)

// WithDetector sets the block detector used on canonical saves.
func WithDetector(d marker.Detector) Option {
	return func(db *DB) { db.detector = d }
}

// WithCacheSize sets the summary cache capacity. Zero or less disables it.
func WithCacheSize(n int) Option {
	return func(db *DB) { db.cache = newSummaryCache(n) }
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sqlx.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return New(conn, opts...), nil
}

// New wraps an already prepared connection. The schema is not applied.
func New(conn *sqlx.DB, opts ...Option) *DB {
	db := &DB{
		conn:     conn,
		detector: marker.NewDetector(""),
		cache:    newSummaryCache(DefaultCacheSize),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

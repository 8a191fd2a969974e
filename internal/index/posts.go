package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/marker"
	"github.com/starford/readmore/internal/models"
)

var postColumns = []string{
	"p.id", "p.title", "p.body", "p.status", "p.slug", "p.published_at", "p.modified_at",
}

// SaveResult reports what a save did to the marker tag.
type SaveResult struct {
	Delta     marker.Delta
	HasMarker bool
	// Revision is true when the save was stored as a revision only.
	Revision bool
}

// Source identifies the content file a post was imported from.
type Source struct {
	Path     string
	Checksum string
}

// Revision is a stored autosave or revision write.
type Revision struct {
	ID      int64           `db:"id"`
	PostID  int64           `db:"post_id"`
	Kind    models.SaveKind `db:"kind"`
	Title   string          `db:"title"`
	Body    string          `db:"body"`
	SavedAt time.Time       `db:"saved_at"`
}

// SavePost persists p. A canonical save upserts the post and reconciles its
// marker tag in the same transaction; autosave and revision writes are
// stored as revisions and leave the post and its tag untouched.
func (db *DB) SavePost(ctx context.Context, p models.Post, kind models.SaveKind) (SaveResult, error) {
	return db.save(ctx, p, kind, Source{})
}

// ImportPost is SavePost for posts read from a content file; src is
// recorded so later syncs can skip unchanged files.
func (db *DB) ImportPost(ctx context.Context, p models.Post, kind models.SaveKind, src Source) (SaveResult, error) {
	return db.save(ctx, p, kind, src)
}

func (db *DB) save(ctx context.Context, p models.Post, kind models.SaveKind, src Source) (SaveResult, error) {
	if p.ID <= 0 {
		return SaveResult{}, fmt.Errorf("index: save post: id %d: %w", p.ID, apperr.ErrInvalidInput)
	}
	if kind == "" {
		kind = models.SaveCanonical
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	current, err := hasMarkerTx(ctx, tx, p.ID)
	if err != nil {
		return SaveResult{}, err
	}
	now := time.Now().UTC()

	if !kind.IsCanonical() {
		q, args, err := sqlite.Insert("post_revisions").
			Columns("post_id", "kind", "title", "body", "saved_at", "source_path", "checksum").
			Values(p.ID, string(kind), p.Title, p.Body, now, src.Path, src.Checksum).
			ToSql()
		if err != nil {
			return SaveResult{}, fmt.Errorf("index: build revision insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return SaveResult{}, fmt.Errorf("index: insert revision: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return SaveResult{}, fmt.Errorf("index: commit: %w", err)
		}
		return SaveResult{Delta: marker.None, HasMarker: current, Revision: true}, nil
	}

	published := p.PublishedAt
	if published.IsZero() {
		// Keep the stored publication date on updates that omit it.
		var stored time.Time
		err := tx.GetContext(ctx, &stored, `SELECT published_at FROM posts WHERE id = ?`, p.ID)
		switch {
		case err == nil:
			published = stored
		case errors.Is(err, sql.ErrNoRows):
			published = now
		default:
			return SaveResult{}, fmt.Errorf("index: read published_at: %w", err)
		}
	}
	modified := p.ModifiedAt
	if modified.IsZero() {
		modified = now
	}
	status := p.Status
	if status == "" {
		status = models.StatusDraft
	}

	onConflict := `ON CONFLICT(id) DO UPDATE SET
		title        = excluded.title,
		body         = excluded.body,
		status       = excluded.status,
		slug         = excluded.slug,
		published_at = excluded.published_at,
		modified_at  = excluded.modified_at`
	if src.Path != "" {
		onConflict += `,
		source_path  = excluded.source_path,
		checksum     = excluded.checksum`
	}
	q, args, err := sqlite.Insert("posts").
		Columns("id", "title", "body", "status", "slug", "published_at", "modified_at", "source_path", "checksum").
		Values(p.ID, p.Title, p.Body, string(status), p.Slug, published.UTC(), modified.UTC(), src.Path, src.Checksum).
		Suffix(onConflict).
		ToSql()
	if err != nil {
		return SaveResult{}, fmt.Errorf("index: build post upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return SaveResult{}, fmt.Errorf("index: upsert post: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(ctx, tx, p.ID, p.Title, p.Body); err != nil {
		return SaveResult{}, err
	}

	delta := marker.Reindex(current, p.Body, kind, db.detector)
	if err := applyDelta(ctx, tx, p.ID, delta, now); err != nil {
		return SaveResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("index: commit: %w", err)
	}
	db.cache.remove(p.ID)
	return SaveResult{Delta: delta, HasMarker: delta.Apply(current)}, nil
}

func hasMarkerTx(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	var tagged bool
	err := tx.GetContext(ctx, &tagged, `SELECT EXISTS(SELECT 1 FROM post_markers WHERE post_id = ?)`, id)
	if err != nil {
		return false, fmt.Errorf("index: read marker: %w", err)
	}
	return tagged, nil
}

func applyDelta(ctx context.Context, tx *sqlx.Tx, id int64, delta marker.Delta, at time.Time) error {
	var b sq.Sqlizer
	switch delta {
	case marker.Set:
		b = sqlite.Insert("post_markers").Options("OR IGNORE").
			Columns("post_id", "tagged_at").
			Values(id, at)
	case marker.Clear:
		b = sqlite.Delete("post_markers").Where(sq.Eq{"post_id": id})
	default:
		return nil
	}
	q, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("index: build marker %s: %w", delta, err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("index: marker %s: %w", delta, err)
	}
	return nil
}

// DeletePost removes a post with its marker tag and revisions.
func (db *DB) DeletePost(ctx context.Context, id int64) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"post_markers", "post_revisions"} {
		q, args, err := sqlite.Delete(table).Where(sq.Eq{"post_id": id}).ToSql()
		if err != nil {
			return fmt.Errorf("index: build delete %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("index: delete %s: %w", table, err)
		}
	}
	if err := ftsDelete(ctx, tx, id); err != nil {
		return err
	}

	q, args, err := sqlite.Delete("posts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("index: build delete post: %w", err)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("index: delete post: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("index: delete post %d: %w", id, apperr.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	db.cache.remove(id)
	return nil
}

// DeleteBySource forgets the content file at path. The post imported from
// it is deleted and its ID returned; revisions imported from it are kept
// but detached. A path nothing was imported from is ErrNotFound.
func (db *DB) DeleteBySource(ctx context.Context, path string) (int64, error) {
	q, args, err := sqlite.Update("post_revisions").
		Set("source_path", "").
		Set("checksum", "").
		Where(sq.Eq{"source_path": path}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("index: build detach revisions: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("index: detach revisions: %w", err)
	}
	detached, _ := res.RowsAffected()

	var id int64
	err = db.conn.GetContext(ctx, &id, `SELECT id FROM posts WHERE source_path = ? LIMIT 1`, path)
	if errors.Is(err, sql.ErrNoRows) {
		if detached > 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("index: source %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("index: lookup source: %w", err)
	}
	return id, db.DeletePost(ctx, id)
}

// GetPost returns the post with id. A post listed recently is served from
// the summary cache once its modified_at still matches the stored row, so
// writes from other processes sharing the file are never hidden.
func (db *DB) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	if p, ok := db.cache.get(id); ok {
		var modified time.Time
		err := db.conn.GetContext(ctx, &modified, `SELECT modified_at FROM posts WHERE id = ?`, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			db.cache.remove(id)
			return nil, fmt.Errorf("index: post %d: %w", id, apperr.ErrNotFound)
		case err != nil:
			return nil, fmt.Errorf("index: check cached post: %w", err)
		case modified.Equal(p.ModifiedAt):
			return &p, nil
		}
		db.cache.remove(id)
	}
	q, args, err := sqlite.Select(postColumns...).From("posts p").Where(sq.Eq{"p.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build get post: %w", err)
	}
	var p models.Post
	if err := db.conn.GetContext(ctx, &p, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("index: post %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("index: get post: %w", err)
	}
	db.cache.add(p)
	return &p, nil
}

// HasMarker reports whether the post with id carries the marker tag.
func (db *DB) HasMarker(ctx context.Context, id int64) (bool, error) {
	var row struct {
		ID        int64 `db:"id"`
		HasMarker bool  `db:"has_marker"`
	}
	err := db.conn.GetContext(ctx, &row, `
		SELECT p.id, m.post_id IS NOT NULL AS has_marker
		FROM posts p
		LEFT JOIN post_markers m ON m.post_id = p.id
		WHERE p.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("index: post %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("index: has marker: %w", err)
	}
	return row.HasMarker, nil
}

// AllChecksums returns source path → checksum for every imported file,
// using the latest import for revision files.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Path     string `db:"source_path"`
		Checksum string `db:"checksum"`
	}
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT source_path, checksum FROM posts WHERE source_path != ''
		UNION ALL
		SELECT source_path, checksum FROM post_revisions
		WHERE id IN (SELECT MAX(id) FROM post_revisions WHERE source_path != '' GROUP BY source_path)`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Path] = r.Checksum
	}
	return out, nil
}

// Revisions returns the stored revisions of a post, oldest first.
func (db *DB) Revisions(ctx context.Context, postID int64) ([]Revision, error) {
	q, args, err := sqlite.Select("id", "post_id", "kind", "title", "body", "saved_at").
		From("post_revisions").
		Where(sq.Eq{"post_id": postID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build revisions: %w", err)
	}
	var out []Revision
	if err := db.conn.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("index: revisions: %w", err)
	}
	return out, nil
}

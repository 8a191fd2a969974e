//go:build !sqlite_fts5

package index

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// FTS5 not compiled in; text search scans posts.title and posts.body with LIKE.
func initFTS(_ *sqlx.DB) error { return nil }

func ftsUpsert(_ context.Context, _ *sqlx.Tx, _ int64, _, _ string) error { return nil }

func ftsDelete(_ context.Context, _ *sqlx.Tx, _ int64) error { return nil }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// textMatch restricts posts to those whose title or body contains term,
// ignoring ASCII case.
func textMatch(term string) sq.Sqlizer {
	like := "%" + likeEscaper.Replace(term) + "%"
	return sq.Or{
		sq.Expr(`p.title LIKE ? ESCAPE '\'`, like),
		sq.Expr(`p.body LIKE ? ESCAPE '\'`, like),
	}
}

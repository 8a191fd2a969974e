package index

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/query"
)

// Find executes one page of spec.
func (db *DB) Find(ctx context.Context, spec query.Spec) (*query.ResultPage, error) {
	if spec.PageSize <= 0 {
		return nil, fmt.Errorf("index: find: page size %d: %w", spec.PageSize, apperr.ErrInvalidInput)
	}
	columns := postColumns
	if spec.Projection == query.ProjectionIDs {
		columns = []string{"p.id"}
	}
	b, err := filtered(sqlite.Select(columns...).From("posts p"), spec)
	if err != nil {
		return nil, err
	}
	b = b.OrderBy(orderClause(spec.Order)).
		Limit(uint64(spec.PageSize)).
		Offset(uint64(spec.Offset()))

	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("index: build find: %w", err)
	}

	page := &query.ResultPage{Page: spec.Page, PageSize: spec.PageSize}
	if spec.Projection == query.ProjectionIDs {
		var ids []int64
		if err := db.conn.SelectContext(ctx, &ids, q, args...); err != nil {
			return nil, fmt.Errorf("index: find ids: %w", err)
		}
		page.Items = make([]models.Post, 0, len(ids))
		for _, id := range ids {
			page.Items = append(page.Items, models.Post{ID: id})
		}
		return page, nil
	}

	if err := db.conn.SelectContext(ctx, &page.Items, q, args...); err != nil {
		return nil, fmt.Errorf("index: find: %w", err)
	}
	if !spec.SkipCache {
		for _, p := range page.Items {
			db.cache.add(p)
		}
	}
	return page, nil
}

// Count returns the number of posts spec matches across all pages.
func (db *DB) Count(ctx context.Context, spec query.Spec) (int, error) {
	b, err := filtered(sqlite.Select("COUNT(*)").From("posts p"), spec)
	if err != nil {
		return 0, err
	}
	q, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("index: build count: %w", err)
	}
	var n int
	if err := db.conn.GetContext(ctx, &n, q, args...); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

func filtered(b sq.SelectBuilder, spec query.Spec) (sq.SelectBuilder, error) {
	if spec.Status != "" {
		b = b.Where(sq.Eq{"p.status": string(spec.Status)})
	}
	if len(spec.Exclude) > 0 {
		b = b.Where(sq.NotEq{"p.id": spec.Exclude})
	}

	switch f := spec.Filter.(type) {
	case nil:
	case query.TextSearch:
		if f.Term != "" {
			b = b.Where(textMatch(f.Term))
		}
	case query.IdentifierLookup:
		if len(f.IDs) == 0 {
			b = b.Where("1 = 0")
		} else {
			b = b.Where(sq.Eq{"p.id": f.IDs})
		}
	case query.MarkerInRange:
		b = b.Join("post_markers m ON m.post_id = p.id").
			Where(sq.GtOrEq{"p.published_at": f.Range.Lower().UTC()}).
			Where(sq.Lt{"p.published_at": f.Range.Upper().UTC()})
	default:
		return b, fmt.Errorf("index: filter %s: %w", f.Kind(), apperr.ErrInvalidInput)
	}
	return b, nil
}

// orderClause maps a query order to SQL. The datastore default walks the
// primary key, newest ID first.
func orderClause(o query.Order) string {
	if o == query.OrderDateDesc {
		return "p.published_at DESC, p.id DESC"
	}
	return "p.id DESC"
}

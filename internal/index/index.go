package index

import (
	"context"

	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/query"
)

// PostIndex is the host datastore as seen by the service layer.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type PostIndex interface {
	Find(ctx context.Context, spec query.Spec) (*query.ResultPage, error)
	Count(ctx context.Context, spec query.Spec) (int, error)
	SavePost(ctx context.Context, p models.Post, kind models.SaveKind) (SaveResult, error)
	DeletePost(ctx context.Context, id int64) error
	GetPost(ctx context.Context, id int64) (*models.Post, error)
	HasMarker(ctx context.Context, id int64) (bool, error)
	Close() error
}

// Verify *DB satisfies PostIndex at compile time.
var _ PostIndex = (*DB)(nil)

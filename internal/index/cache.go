package index

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/readmore/internal/models"
)

// DefaultCacheSize is the number of post summaries kept for selection
// lookups.
const DefaultCacheSize = 512

// summaryCache holds recently listed posts by ID. A nil cache is disabled.
type summaryCache struct {
	posts *lru.Cache[int64, models.Post]
}

func newSummaryCache(size int) *summaryCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[int64, models.Post](size)
	if err != nil {
		return nil
	}
	return &summaryCache{posts: c}
}

func (c *summaryCache) get(id int64) (models.Post, bool) {
	if c == nil {
		return models.Post{}, false
	}
	return c.posts.Get(id)
}

func (c *summaryCache) add(p models.Post) {
	if c == nil {
		return
	}
	c.posts.Add(p.ID, p)
}

func (c *summaryCache) remove(id int64) {
	if c == nil {
		return
	}
	c.posts.Remove(id)
}

func (c *summaryCache) len() int {
	if c == nil {
		return 0
	}
	return c.posts.Len()
}

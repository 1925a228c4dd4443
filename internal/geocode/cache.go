package geocode

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps a Geocoder with an LRU of successful lookups keyed by query.
// Failures are not cached, so a failed query is retried on its next record.
type Cached struct {
	next  Geocoder
	cache *lru.Cache[string, Point]
}

// NewCached returns next unchanged when size is zero.
func NewCached(next Geocoder, size int) (Geocoder, error) {
	if size <= 0 {
		return next, nil
	}
	c, err := lru.New[string, Point](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: c}, nil
}

func (c *Cached) Geocode(ctx context.Context, apiKey, query string) (Point, error) {
	if p, ok := c.cache.Get(query); ok {
		return p, nil
	}
	p, err := c.next.Geocode(ctx, apiKey, query)
	if err != nil {
		return Point{}, err
	}
	c.cache.Add(query, p)
	return p, nil
}

// Len reports how many queries are cached.
func (c *Cached) Len() int {
	return c.cache.Len()
}

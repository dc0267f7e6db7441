package resolve

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robertmeta/ytrss/model"
)

// DefaultMemoTTL is shorter than the typical lifetime of a signed media URL.
const DefaultMemoTTL = 5 * time.Hour

// Memo remembers successful resolutions in memory for a limited time, so
// jobs that share videos (a channel and one of its playlists) resolve each
// video once per process. Failures are not remembered.
type Memo struct {
	Resolver Resolver
	cache    *cache.Cache
}

// NewMemo wraps r with an in-memory TTL cache.
func NewMemo(r Resolver, ttl time.Duration) *Memo {
	if ttl <= 0 {
		ttl = DefaultMemoTTL
	}
	return &Memo{
		Resolver: r,
		cache:    cache.New(ttl, ttl*2),
	}
}

// Resolve implements Resolver.
func (m *Memo) Resolve(ctx context.Context, videoID string) (*model.Resolution, error) {
	if v, found := m.cache.Get(videoID); found {
		if res, ok := v.(model.Resolution); ok {
			return &res, nil
		}
	}

	res, err := m.Resolver.Resolve(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if res != nil && res.URL != "" {
		m.cache.SetDefault(videoID, *res)
	}
	return res, nil
}

// Len returns the number of remembered resolutions.
func (m *Memo) Len() int {
	return m.cache.ItemCount()
}

package resolve

import (
	"context"

	"github.com/robertmeta/ytrss/model"
	"golang.org/x/time/rate"
)

// Limited throttles calls to the wrapped resolver with a token bucket shared
// by every job in the process.
type Limited struct {
	Resolver Resolver
	limiter  *rate.Limiter
}

// NewLimited allows perSecond calls per second with the given burst. A
// non-positive rate disables limiting.
func NewLimited(r Resolver, perSecond float64, burst int) *Limited {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		Resolver: r,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Resolve implements Resolver.
func (l *Limited) Resolve(ctx context.Context, videoID string) (*model.Resolution, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.Resolver.Resolve(ctx, videoID)
}

// Package resolve turns video IDs into playable media URLs.
//
// A Resolver is the external, possibly slow and rate-limited, strategy that
// the generation pipeline falls back to when no cached URL is known. The
// concrete strategies (Template, YtDlp) can be wrapped with Memo, Limited and
// Retrying, and combined with Chain.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/robertmeta/ytrss/model"
	"github.com/robertmeta/ytrss/retry"
)

var (
	// ErrUnresolvable means the strategy ran but produced no URL.
	ErrUnresolvable = errors.New("no playable url")
	// ErrYtdlpNotInstalled means the yt-dlp executable could not be run.
	ErrYtdlpNotInstalled = errors.New("yt-dlp is not installed")
	// ErrEmptyVideoID is returned for an empty video ID.
	ErrEmptyVideoID = errors.New("video id is required")
)

// Resolver resolves a video ID to a playable URL.
type Resolver interface {
	Resolve(ctx context.Context, videoID string) (*model.Resolution, error)
}

// Func adapts a function to the Resolver interface.
type Func func(ctx context.Context, videoID string) (*model.Resolution, error)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context, videoID string) (*model.Resolution, error) {
	return f(ctx, videoID)
}

// Error wraps a failure of one resolution strategy.
type Error struct {
	Strategy string // "template", "ytdlp", "chain"
	VideoID  string
	Err      error
}

func (e *Error) Error() string {
	return "resolve: " + e.Strategy + " " + e.VideoID + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Chain tries each resolver in order; the first success wins.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, videoID string) (*model.Resolution, error) {
	if len(c) == 0 {
		return nil, &Error{Strategy: "chain", VideoID: videoID, Err: ErrUnresolvable}
	}

	var errs []error
	for _, r := range c {
		res, err := r.Resolve(ctx, videoID)
		if err == nil && res != nil && res.URL != "" {
			return res, nil
		}
		if err == nil {
			err = ErrUnresolvable
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, &Error{Strategy: "chain", VideoID: videoID, Err: errors.Join(errs...)}
}

// Retrying retries transient failures of the wrapped resolver.
type Retrying struct {
	Resolver Resolver
	Config   retry.Config
}

// Resolve implements Resolver.
func (r *Retrying) Resolve(ctx context.Context, videoID string) (*model.Resolution, error) {
	var res *model.Resolution
	err := retry.Do(ctx, r.Config, classify, func(ctx context.Context) error {
		var err error
		res, err = r.Resolver.Resolve(ctx, videoID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// classify treats missing tools, bad input and "no URL" answers as permanent.
func classify(err error) bool {
	switch {
	case errors.Is(err, ErrYtdlpNotInstalled),
		errors.Is(err, ErrEmptyVideoID),
		errors.Is(err, ErrUnresolvable):
		return false
	}
	return retry.IsRetryable(err)
}

func checkID(strategy, videoID string) error {
	if videoID == "" {
		return &Error{Strategy: strategy, VideoID: videoID, Err: ErrEmptyVideoID}
	}
	return nil
}

// Describe returns a short human-readable label for a resolver stack.
func Describe(r Resolver) string {
	switch v := r.(type) {
	case *Template:
		return "template(" + v.Pattern + ")"
	case *YtDlp:
		return "ytdlp(" + v.path() + ")"
	case *Memo:
		return "memo(" + Describe(v.Resolver) + ")"
	case *Limited:
		return "limited(" + Describe(v.Resolver) + ")"
	case *Retrying:
		return "retrying(" + Describe(v.Resolver) + ")"
	case Chain:
		s := "chain("
		for i, c := range v {
			if i > 0 {
				s += ", "
			}
			s += Describe(c)
		}
		return s + ")"
	default:
		return fmt.Sprintf("%T", r)
	}
}

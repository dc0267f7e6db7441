package config

import (
	"errors"
	"fmt"

	"github.com/robertmeta/ytrss/resolve"
)

// NewResolver builds the configured resolver stack: the strategy (a template,
// yt-dlp, or both in that order) is rate limited, retried, and memoized.
func (c *Config) NewResolver() (resolve.Resolver, error) {
	r := c.Resolver

	var base resolve.Resolver
	switch r.Kind {
	case ResolverTemplate:
		if r.Template == "" {
			return nil, errors.New("resolver.template is required for the template resolver")
		}
		t, err := resolve.NewTemplate(r.Template, r.MimeType)
		if err != nil {
			return nil, err
		}
		base = t
	case ResolverYtdlp:
		base = c.ytdlp()
	case ResolverChain:
		var chain resolve.Chain
		if r.Template != "" {
			t, err := resolve.NewTemplate(r.Template, r.MimeType)
			if err != nil {
				return nil, err
			}
			chain = append(chain, t)
		}
		base = append(chain, c.ytdlp())
	default:
		return nil, fmt.Errorf("unknown resolver kind: %q", r.Kind)
	}

	limited := resolve.NewLimited(base, r.Rate, r.Burst)
	retrying := &resolve.Retrying{Resolver: limited, Config: c.RetryPolicy()}
	return resolve.NewMemo(retrying, r.MemoTTL), nil
}

func (c *Config) ytdlp() *resolve.YtDlp {
	y := resolve.NewYtDlp()
	if c.Resolver.YtdlpPath != "" {
		y.Path = c.Resolver.YtdlpPath
	}
	if c.Resolver.Format != "" {
		y.Format = c.Resolver.Format
	}
	if c.Resolver.Timeout > 0 {
		y.Timeout = c.Resolver.Timeout
	}
	return y
}

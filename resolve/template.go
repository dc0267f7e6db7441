package resolve

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/robertmeta/ytrss/model"
)

// Placeholder is replaced by the (query-escaped) video ID in a Template pattern.
const Placeholder = "{id}"

// Template builds URLs from a fixed pattern, e.g. a self-hosted download
// endpoint such as "https://host/download.php?vid={id}". It never fails for a
// non-empty ID and performs no I/O.
type Template struct {
	Pattern  string
	MimeType string
}

// NewTemplate validates the pattern and creates a Template resolver.
func NewTemplate(pattern, mimeType string) (*Template, error) {
	if !strings.Contains(pattern, Placeholder) {
		return nil, errors.New("template must contain " + Placeholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(pattern, Placeholder, "x")); err != nil {
		return nil, err
	}
	return &Template{Pattern: pattern, MimeType: mimeType}, nil
}

// Resolve implements Resolver.
func (t *Template) Resolve(ctx context.Context, videoID string) (*model.Resolution, error) {
	if err := checkID("template", videoID); err != nil {
		return nil, err
	}
	return &model.Resolution{
		VideoID:    videoID,
		URL:        strings.ReplaceAll(t.Pattern, Placeholder, url.QueryEscape(videoID)),
		MimeType:   t.MimeType,
		ResolvedAt: time.Now().UTC(),
	}, nil
}

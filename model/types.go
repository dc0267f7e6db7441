// Package model defines the core data structures for ytrss.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingTagName is returned when an ExtraTag has no name.
var ErrMissingTagName = errors.New("extra tag name is required")

// ChannelInfo describes the channel envelope of a generated feed.
type ChannelInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Author        string `json:"author"`
	CanonicalLink string `json:"link"`
	ImageURL      string `json:"image_url"`
	// SelfLink is the public URL of the feed itself. CanonicalLink is used when empty.
	SelfLink string `json:"self_link,omitempty"`
	// GUIDIsPermalink is always false for generated feeds: enclosure links are not
	// stable content identifiers.
	GUIDIsPermalink bool `json:"guid_is_permalink"`
}

// Validate checks if the channel has required fields.
func (c *ChannelInfo) Validate() error {
	if c.Title == "" {
		return errors.New("channel title is required")
	}
	if c.CanonicalLink == "" {
		return errors.New("channel link is required")
	}
	return nil
}

// FeedLink returns the URL used for the self-referential atom:link.
func (c *ChannelInfo) FeedLink() string {
	if c.SelfLink != "" {
		return c.SelfLink
	}
	return c.CanonicalLink
}

// VideoRecord is the metadata of one video as delivered by a metadata source.
type VideoRecord struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	ThumbnailURL string        `json:"thumbnail_url,omitempty"`
	PublishedAt  time.Time     `json:"published_at"`
	Link         string        `json:"link,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`

	// Filled by the cache or the resolver.
	ResolvedURL string `json:"resolved_url,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// IsResolved returns true once a playable URL is attached.
func (v *VideoRecord) IsResolved() bool {
	return v.ResolvedURL != ""
}

// Resolve attaches a playable URL. A record that is already resolved keeps its URL.
func (v *VideoRecord) Resolve(r Resolution) bool {
	if v.IsResolved() || r.URL == "" {
		return false
	}
	v.ResolvedURL = r.URL
	v.MimeType = r.MimeType
	v.SizeBytes = r.Size
	return true
}

// ItemLink returns the link rendered for the video's item.
func (v *VideoRecord) ItemLink() string {
	if v.Link != "" {
		return v.Link
	}
	if v.ResolvedURL != "" {
		return v.ResolvedURL
	}
	return v.ID
}

// PubDate returns the publication date in RFC-822 format, or "" when unknown.
func (v *VideoRecord) PubDate() string {
	if v.PublishedAt.IsZero() {
		return ""
	}
	return FormatRFC822(v.PublishedAt)
}

// HasEnclosure reports whether an enclosure tag should be emitted for the video.
func (v *VideoRecord) HasEnclosure() bool {
	return v.IsResolved() && IsMediaType(v.MimeType)
}

// Resolution is a resolved playable URL for a video.
type Resolution struct {
	VideoID    string    `json:"video_id"`
	URL        string    `json:"url"`
	MimeType   string    `json:"mime_type,omitempty"`
	Size       int64     `json:"size,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// ExtraTag is an additional element rendered at the end of an item.
// A nil Value renders a self-closing tag.
type ExtraTag struct {
	Name   string
	Value  *string
	Params []string
}

// Validate checks if the tag has a name.
func (t *ExtraTag) Validate() error {
	if t.Name == "" {
		return ErrMissingTagName
	}
	return nil
}

// NewTag creates a tag with a value.
func NewTag(name, value string, params ...string) *ExtraTag {
	return &ExtraTag{Name: name, Value: &value, Params: params}
}

// NewEmptyTag creates a self-closing tag.
func NewEmptyTag(name string, params ...string) *ExtraTag {
	return &ExtraTag{Name: name, Params: params}
}

// Attr formats a pre-escaped attribute as name="value".
func Attr(name, value string) string {
	return fmt.Sprintf("%s=\"%s\"", name, value)
}

// JobKind is the kind of upstream collection a job targets.
type JobKind string

const (
	JobChannel  JobKind = "channel"
	JobPlaylist JobKind = "playlist"
)

// Job is one channel or playlist to republish as a feed.
type Job struct {
	ID     string  `json:"id"`
	Kind   JobKind `json:"kind"`
	Filter string  `json:"filter,omitempty"`
}

// Validate checks if the job has required fields.
func (j *Job) Validate() error {
	if j.ID == "" {
		return errors.New("job id is required")
	}
	switch j.Kind {
	case JobChannel, JobPlaylist:
		return nil
	default:
		return fmt.Errorf("unknown job kind: %q", j.Kind)
	}
}

// Matches returns true if the title passes the job's filter.
func (j *Job) Matches(title string) bool {
	if j.Filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(j.Filter))
}

// String returns a short label for logs.
func (j Job) String() string {
	return string(j.Kind) + ":" + j.ID
}

// Subscription is a feed reference exchanged as OPML.
type Subscription struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

// Validate checks if the subscription has required fields.
func (s *Subscription) Validate() error {
	if s.URL == "" {
		return errors.New("subscription URL is required")
	}
	return nil
}

// Run records one generation run of a feed.
type Run struct {
	ID          string     `json:"id"`
	JobID       string     `json:"job_id"`
	Title       string     `json:"title"`
	Destination string     `json:"destination"`
	Items       int        `json:"items"`
	Cached      int        `json:"cached"`
	Resolved    int        `json:"resolved"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Succeeded returns true if the run finished without error.
func (r *Run) Succeeded() bool {
	return r.FinishedAt != nil && r.Error == ""
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

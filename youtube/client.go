// Package youtube lists channels and playlists through the YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/robertmeta/ytrss/model"
	"github.com/robertmeta/ytrss/retry"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var (
	// ErrNotFound means the channel or playlist does not exist.
	ErrNotFound = errors.New("youtube: not found")
	// ErrQuotaExceeded means every API key was rejected.
	ErrQuotaExceeded = errors.New("youtube: quota exceeded on every key")
	// ErrNoCredentials means the credential pool is empty.
	ErrNoCredentials = errors.New("youtube: no api keys configured")
)

// pageSize is the largest page the API returns.
const pageSize = 50

// Error wraps a failed API operation.
type Error struct {
	Op  string // "channels.list", "search.list", ...
	ID  string
	Err error
}

func (e *Error) Error() string {
	return "youtube: " + e.Op + " " + e.ID + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Client fetches channel metadata and videos. It is safe for concurrent use.
type Client struct {
	service *youtube.Service
	keys    *CredentialPool

	// Retry applies to transient failures of a single key.
	Retry retry.Config
	// Durations enables a videos.list lookup for itunes:duration.
	Durations bool
	Log       logrus.FieldLogger
}

// New creates a client. Extra options are passed to the API service, e.g.
// option.WithEndpoint.
func New(ctx context.Context, keys *CredentialPool, opts ...option.ClientOption) (*Client, error) {
	if keys == nil || keys.Len() == 0 {
		return nil, ErrNoCredentials
	}

	// The key is a per-call query parameter
	opts = append([]option.ClientOption{option.WithoutAuthentication()}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}

	return &Client{
		service:   service,
		keys:      keys,
		Retry:     retry.DefaultConfig(),
		Durations: true,
	}, nil
}

// Channel returns the feed envelope of a channel.
func (c *Client) Channel(ctx context.Context, id string) (*model.ChannelInfo, error) {
	var resp *youtube.ChannelListResponse
	err := c.call(ctx, func(ctx context.Context, key googleapi.CallOption) (err error) {
		resp, err = c.service.Channels.List([]string{"snippet"}).Id(id).Context(ctx).Do(key)
		return err
	})
	if err != nil {
		return nil, &Error{Op: "channels.list", ID: id, Err: err}
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, &Error{Op: "channels.list", ID: id, Err: ErrNotFound}
	}

	item := resp.Items[0]
	return &model.ChannelInfo{
		ID:            lo.Ternary(item.Id != "", item.Id, id),
		Title:         item.Snippet.Title,
		Description:   item.Snippet.Description,
		Author:        item.Snippet.Title,
		CanonicalLink: "https://www.youtube.com/channel/" + lo.Ternary(item.Id != "", item.Id, id),
		ImageURL:      thumbnail(item.Snippet.Thumbnails, "medium"),
	}, nil
}

// Playlist returns the feed envelope of a playlist.
func (c *Client) Playlist(ctx context.Context, id string) (*model.ChannelInfo, error) {
	var resp *youtube.PlaylistListResponse
	err := c.call(ctx, func(ctx context.Context, key googleapi.CallOption) (err error) {
		resp, err = c.service.Playlists.List([]string{"snippet"}).Id(id).Context(ctx).Do(key)
		return err
	})
	if err != nil {
		return nil, &Error{Op: "playlists.list", ID: id, Err: err}
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, &Error{Op: "playlists.list", ID: id, Err: ErrNotFound}
	}

	item := resp.Items[0]
	return &model.ChannelInfo{
		ID:            lo.Ternary(item.Id != "", item.Id, id),
		Title:         item.Snippet.Title,
		Description:   item.Snippet.Description,
		Author:        item.Snippet.ChannelTitle,
		CanonicalLink: "https://www.youtube.com/playlist?list=" + lo.Ternary(item.Id != "", item.Id, id),
		ImageURL:      thumbnail(item.Snippet.Thumbnails, "medium"),
	}, nil
}

// ChannelVideos returns up to max of the channel's latest videos, newest first.
func (c *Client) ChannelVideos(ctx context.Context, id string, max int) ([]model.VideoRecord, error) {
	max = lo.Ternary(max > 0, max, pageSize)

	var (
		videos []model.VideoRecord
		token  string
	)
	for len(videos) < max {
		var resp *youtube.SearchListResponse
		err := c.call(ctx, func(ctx context.Context, key googleapi.CallOption) (err error) {
			call := c.service.Search.List([]string{"snippet", "id"}).
				ChannelId(id).
				Type("video").
				Order("date").
				MaxResults(int64(min(max-len(videos), pageSize))).
				Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			resp, err = call.Do(key)
			return err
		})
		if err != nil {
			return nil, &Error{Op: "search.list", ID: id, Err: err}
		}

		for _, item := range resp.Items {
			if item == nil || item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
				continue
			}
			s := item.Snippet
			videos = append(videos, c.record(item.Id.VideoId, s.Title, s.Description, s.PublishedAt, s.Thumbnails))
		}

		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		token = resp.NextPageToken
	}

	return c.finish(ctx, videos, max), nil
}

// PlaylistVideos returns up to max videos of the playlist in playlist order.
// Private and deleted entries are skipped.
func (c *Client) PlaylistVideos(ctx context.Context, id string, max int) ([]model.VideoRecord, error) {
	max = lo.Ternary(max > 0, max, pageSize)

	var (
		videos []model.VideoRecord
		token  string
	)
	for len(videos) < max {
		var resp *youtube.PlaylistItemListResponse
		err := c.call(ctx, func(ctx context.Context, key googleapi.CallOption) (err error) {
			call := c.service.PlaylistItems.List([]string{"snippet", "id"}).
				PlaylistId(id).
				MaxResults(int64(min(max-len(videos), pageSize))).
				Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			resp, err = call.Do(key)
			return err
		})
		if err != nil {
			if isNotFound(err) {
				err = fmt.Errorf("%w: %w", ErrNotFound, err)
			}
			return nil, &Error{Op: "playlistItems.list", ID: id, Err: err}
		}

		for _, item := range resp.Items {
			if item == nil || item.Snippet == nil || item.Snippet.ResourceId == nil || item.Snippet.ResourceId.VideoId == "" {
				continue
			}
			s := item.Snippet
			if s.Title == "Private video" || s.Title == "Deleted video" {
				continue
			}
			videos = append(videos, c.record(s.ResourceId.VideoId, s.Title, s.Description, s.PublishedAt, s.Thumbnails))
		}

		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		token = resp.NextPageToken
	}

	return c.finish(ctx, videos, max), nil
}

func (c *Client) record(id, title, description, published string, thumbs *youtube.ThumbnailDetails) model.VideoRecord {
	v := model.VideoRecord{
		ID:           id,
		Title:        title,
		Description:  description,
		Link:         "https://www.youtube.com/watch?v=" + id,
		ThumbnailURL: thumbnail(thumbs, "high"),
	}
	if t, err := model.ParsePublished(published); err == nil {
		v.PublishedAt = t
	} else {
		c.logger().WithField("video_id", id).WithError(err).Debug("Unparseable publish date")
	}
	return v
}

func (c *Client) finish(ctx context.Context, videos []model.VideoRecord, max int) []model.VideoRecord {
	videos = lo.UniqBy(videos, func(v model.VideoRecord) string { return v.ID })
	if len(videos) > max {
		videos = videos[:max]
	}
	if c.Durations {
		c.enrichDurations(ctx, videos)
	}
	return videos
}

// enrichDurations fills Duration in place. Failures only cost the durations.
func (c *Client) enrichDurations(ctx context.Context, videos []model.VideoRecord) {
	ids := lo.Map(videos, func(v model.VideoRecord, _ int) string { return v.ID })
	durations := make(map[string]string, len(ids))

	for _, chunk := range lo.Chunk(ids, pageSize) {
		var resp *youtube.VideoListResponse
		err := c.call(ctx, func(ctx context.Context, key googleapi.CallOption) (err error) {
			resp, err = c.service.Videos.List([]string{"contentDetails"}).
				Id(strings.Join(chunk, ",")).
				Context(ctx).
				Do(key)
			return err
		})
		if err != nil {
			c.logger().WithError(err).Warn("Failed to fetch video durations")
			return
		}
		for _, item := range resp.Items {
			if item != nil && item.ContentDetails != nil {
				durations[item.Id] = item.ContentDetails.Duration
			}
		}
	}

	for i := range videos {
		raw, ok := durations[videos[i].ID]
		if !ok {
			continue
		}
		d, err := ParseDuration(raw)
		if err != nil {
			c.logger().WithField("video_id", videos[i].ID).WithError(err).Debug("Unparseable duration")
			continue
		}
		videos[i].Duration = d
	}
}

// call runs fn with the pool's current key, rotating on quota and key errors
// until every key has been tried once.
func (c *Client) call(ctx context.Context, fn func(context.Context, googleapi.CallOption) error) error {
	tried := make(map[string]bool)
	var last error

	for {
		key, err := c.keys.Next()
		if err != nil {
			return err
		}
		if tried[key] {
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, last)
		}
		tried[key] = true

		err = retry.Do(ctx, c.Retry, classify, func(ctx context.Context) error {
			return fn(ctx, googleapi.QueryParameter("key", key))
		})
		if err == nil {
			return nil
		}
		if !isKeyFailure(err) {
			return err
		}

		c.logger().WithFields(logrus.Fields{"keys": c.keys.Len()}).WithError(err).Warn("API key rejected, rotating")
		c.keys.Fail(key)
		last = err
	}
}

// classify retries server errors and transport failures. Client errors,
// including key failures that call rotates on, are final.
func classify(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

func isKeyFailure(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		// Private resources are forbidden on every key
		return !lo.ContainsBy(apiErr.Errors, func(e googleapi.ErrorItem) bool {
			return strings.HasSuffix(e.Reason, "NotAccessible")
		})
	case http.StatusBadRequest:
		return lo.ContainsBy(apiErr.Errors, func(e googleapi.ErrorItem) bool {
			return e.Reason == "keyInvalid"
		})
	}
	return false
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// thumbnail returns the URL of the preferred size, falling back to any other.
func thumbnail(t *youtube.ThumbnailDetails, prefer string) string {
	if t == nil {
		return ""
	}
	sizes := map[string]*youtube.Thumbnail{
		"default":  t.Default,
		"medium":   t.Medium,
		"high":     t.High,
		"standard": t.Standard,
		"maxres":   t.Maxres,
	}
	order := append([]string{prefer}, "high", "medium", "standard", "maxres", "default")
	for _, size := range order {
		if th := sizes[size]; th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	return logrus.StandardLogger()
}

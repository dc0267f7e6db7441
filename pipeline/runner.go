package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robertmeta/ytrss/model"
	"github.com/samber/lo"
)

// DefaultLimit is the number of videos kept per feed.
const DefaultLimit = 50

// Source supplies channel metadata and videos, newest first.
type Source interface {
	Channel(ctx context.Context, id string) (*model.ChannelInfo, error)
	Playlist(ctx context.Context, id string) (*model.ChannelInfo, error)
	ChannelVideos(ctx context.Context, id string, max int) ([]model.VideoRecord, error)
	PlaylistVideos(ctx context.Context, id string, max int) ([]model.VideoRecord, error)
}

// Runner turns jobs into feeds under OutputDir.
type Runner struct {
	Source    Source
	Builder   *Builder
	OutputDir string
	// BaseURL is the public prefix under which OutputDir is served, used
	// for the feeds' self links.
	BaseURL string
	// Limit is the number of videos kept after filtering.
	Limit int
	// Scan is how many videos are fetched when a job has a title filter.
	// Defaults to four times Limit.
	Scan int
}

// Destination returns the feed path of a job.
func (r *Runner) Destination(job model.Job) string {
	return filepath.Join(r.OutputDir, job.ID+".rss")
}

// FeedURL returns the public URL of a job's feed, or "" without a BaseURL.
func (r *Runner) FeedURL(job model.Job) string {
	if r.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(r.BaseURL, "/") + "/" + job.ID + ".rss"
}

// Run fetches the job's metadata and videos and generates its feed.
func (r *Runner) Run(ctx context.Context, job model.Job) (*Report, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	limit := r.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	fetch := limit
	if job.Filter != "" {
		fetch = r.Scan
		if fetch <= 0 {
			fetch = limit * 4
		}
		if fetch < limit {
			fetch = limit
		}
	}

	var (
		ch     *model.ChannelInfo
		videos []model.VideoRecord
		err    error
	)
	switch job.Kind {
	case model.JobPlaylist:
		if ch, err = r.Source.Playlist(ctx, job.ID); err == nil {
			videos, err = r.Source.PlaylistVideos(ctx, job.ID, fetch)
		}
	default:
		if ch, err = r.Source.Channel(ctx, job.ID); err == nil {
			videos, err = r.Source.ChannelVideos(ctx, job.ID, fetch)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", job, err)
	}

	videos = lo.Filter(videos, func(v model.VideoRecord, _ int) bool {
		return job.Matches(v.Title)
	})
	if len(videos) > limit {
		videos = videos[:limit]
	}

	info := *ch
	info.ID = job.ID
	if link := r.FeedURL(job); link != "" {
		info.SelfLink = link
	}

	// The builder never creates directories
	if r.OutputDir != "" {
		if err := r.Builder.Fs.MkdirAll(r.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return r.Builder.Build(ctx, r.Destination(job), info, videos)
}

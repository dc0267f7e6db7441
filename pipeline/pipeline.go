// Package pipeline generates one feed: it reads the previous feed at the
// destination as a URL cache, resolves what is still missing, and replaces
// the destination with the new document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertmeta/ytrss/feed"
	"github.com/robertmeta/ytrss/model"
	"github.com/robertmeta/ytrss/resolve"
	"github.com/robertmeta/ytrss/rss"
	"github.com/robertmeta/ytrss/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Store is the persistent second-tier cache and run log.
type Store interface {
	GetResolution(videoID string) (*model.Resolution, error)
	SaveResolution(r *model.Resolution) error
	SaveRun(r *model.Run) error
}

// Report summarizes one generation.
type Report struct {
	RunID       string        `json:"run_id"`
	JobID       string        `json:"job_id"`
	Title       string        `json:"title"`
	Destination string        `json:"destination"`
	Items       int           `json:"items"`
	Cached      int           `json:"cached"`
	Resolved    int           `json:"resolved"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration"`
}

// Builder generates feeds. The zero value is not usable; Fs is required.
type Builder struct {
	Fs       afero.Fs
	Resolver resolve.Resolver // nil leaves uncached videos unresolved
	Store    Store            // optional
	Log      logrus.FieldLogger

	// Indent is the per-level indentation of the document. Defaults to rss.DefaultIndent.
	Indent string
	// DefaultMimeType is used for cached URLs whose type cannot be recovered.
	DefaultMimeType string
	// Workers bounds concurrent resolutions within one feed. Defaults to 1.
	Workers int
	// Refresh ignores the previous feed and the store and resolves everything again.
	Refresh bool
}

// Build generates the feed for ch at dest. Videos are rendered in the given
// order; the caller's slice is not modified.
//
// The previous document at dest is fully indexed before anything is written.
// A video that cannot be resolved is rendered without a media enclosure. The
// destination is replaced atomically, so on error it keeps its old content.
func (b *Builder) Build(ctx context.Context, dest string, ch model.ChannelInfo, videos []model.VideoRecord) (*Report, error) {
	started := time.Now()
	run := &model.Run{
		ID:          uuid.NewString(),
		JobID:       ch.ID,
		Title:       ch.Title,
		Destination: dest,
		Items:       len(videos),
		StartedAt:   started,
	}
	log := b.logger().WithFields(logrus.Fields{"run_id": run.ID, "job": ch.ID})
	b.saveRun(log, run)

	out := make([]model.VideoRecord, len(videos))
	copy(out, videos)

	var index *feed.Index
	if !b.Refresh {
		index = feed.LoadIndex(b.Fs, dest)
		log.WithFields(logrus.Fields{"source": "feed", "entries": index.Len()}).Debug("Loaded previous feed")
	}

	var pending []int
	for i := range out {
		v := &out[i]
		switch {
		case v.IsResolved():
		case b.fromIndex(log, index, v):
			run.Cached++
		case b.fromStore(log, v):
			run.Cached++
		default:
			pending = append(pending, i)
		}
	}

	resolved, failed, err := b.resolveAll(ctx, log, out, pending)
	run.Resolved, run.Failed = resolved, failed
	if err == nil {
		err = rss.Generate(b.Fs, dest, ch, out, b.indent())
	}

	finished := time.Now()
	run.FinishedAt = &finished
	if err != nil {
		run.Error = err.Error()
	}
	b.saveRun(log, run)

	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", dest, err)
	}

	log.WithFields(logrus.Fields{
		"items":    run.Items,
		"cached":   run.Cached,
		"resolved": run.Resolved,
		"failed":   run.Failed,
	}).Info("Feed generated")

	return &Report{
		RunID:       run.ID,
		JobID:       run.JobID,
		Title:       run.Title,
		Destination: dest,
		Items:       run.Items,
		Cached:      run.Cached,
		Resolved:    run.Resolved,
		Failed:      run.Failed,
		Duration:    finished.Sub(started),
	}, nil
}

func (b *Builder) fromIndex(log logrus.FieldLogger, index *feed.Index, v *model.VideoRecord) bool {
	enc, ok := index.Lookup(v.ID)
	if !ok {
		return false
	}
	res := model.Resolution{
		VideoID:    v.ID,
		URL:        enc.URL,
		MimeType:   enc.Type,
		Size:       enc.Length,
		ResolvedAt: time.Now(),
	}
	if !b.media(&res) || !v.Resolve(res) {
		return false
	}
	log.WithFields(logrus.Fields{"source": "feed", "video_id": v.ID}).Debug("Cache hit")
	b.saveResolution(log, &res)
	return true
}

func (b *Builder) fromStore(log logrus.FieldLogger, v *model.VideoRecord) bool {
	if b.Store == nil || b.Refresh {
		return false
	}
	res, err := b.Store.GetResolution(v.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.WithFields(logrus.Fields{"source": "store", "video_id": v.ID}).WithError(err).Warn("Store lookup failed")
		}
		return false
	}
	if !b.media(res) {
		log.WithFields(logrus.Fields{"source": "store", "video_id": v.ID, "url": res.URL}).Debug("Stored resolution has no media type")
		return false
	}
	if !v.Resolve(*res) {
		return false
	}
	log.WithFields(logrus.Fields{"source": "store", "video_id": v.ID}).Debug("Cache hit")
	return true
}

// resolveAll resolves out[i] for every pending i. Individual failures are
// logged and counted; only cancellation aborts the build.
func (b *Builder) resolveAll(ctx context.Context, log logrus.FieldLogger, out []model.VideoRecord, pending []int) (resolved, failed int, err error) {
	if len(pending) == 0 {
		return 0, 0, nil
	}
	if b.Resolver == nil {
		return 0, len(pending), nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())

	for _, i := range pending {
		v := &out[i]
		g.Go(func() error {
			res, err := b.Resolver.Resolve(gctx, v.ID)
			if err == nil && (res == nil || res.URL == "") {
				err = resolve.ErrUnresolvable
			}
			if err == nil && !b.media(res) {
				err = fmt.Errorf("%w: no media type for %s", resolve.ErrUnresolvable, res.URL)
			}

			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithFields(logrus.Fields{"source": "resolver", "video_id": v.ID}).WithError(err).Warn("Resolution failed, rendering without enclosure")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			if res.VideoID == "" {
				res.VideoID = v.ID
			}
			// Each goroutine owns a distinct element of out
			v.Resolve(*res)
			b.saveResolution(log, res)

			mu.Lock()
			resolved++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return resolved, failed, err
	}
	return resolved, failed, ctx.Err()
}

// media fills in the resolution's MIME type and reports whether it names
// audio, video or an image. Anything else cannot become an enclosure.
func (b *Builder) media(res *model.Resolution) bool {
	res.MimeType = b.mimeFor(res.MimeType, res.URL)
	return model.IsMediaType(res.MimeType)
}

func (b *Builder) mimeFor(typ, rawURL string) string {
	if typ != "" {
		return typ
	}
	if u, err := url.Parse(rawURL); err == nil {
		if t := model.MimeTypeByExtension(path.Base(u.Path)); model.IsMediaType(t) {
			return t
		}
	}
	return b.DefaultMimeType
}

func (b *Builder) saveResolution(log logrus.FieldLogger, res *model.Resolution) {
	if b.Store == nil {
		return
	}
	if err := b.Store.SaveResolution(res); err != nil {
		log.WithFields(logrus.Fields{"source": "store", "video_id": res.VideoID}).WithError(err).Warn("Failed to save resolution")
	}
}

func (b *Builder) saveRun(log logrus.FieldLogger, run *model.Run) {
	if b.Store == nil {
		return
	}
	if err := b.Store.SaveRun(run); err != nil {
		log.WithFields(logrus.Fields{"source": "store"}).WithError(err).Warn("Failed to record run")
	}
}

func (b *Builder) logger() logrus.FieldLogger {
	if b.Log != nil {
		return b.Log
	}
	return logrus.StandardLogger()
}

func (b *Builder) indent() string {
	if b.Indent == "" {
		return rss.DefaultIndent
	}
	return b.Indent
}

func (b *Builder) workers() int {
	if b.Workers < 1 {
		return 1
	}
	return b.Workers
}

// Package jobs reads the list of channels and playlists to republish and
// runs one generation per entry.
package jobs

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/robertmeta/ytrss/model"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Parse reads a job list: one channel or playlist URL per line. Blank lines
// and lines starting with '#' are ignored; lines that name neither are
// skipped with a warning. Duplicate jobs keep their first occurrence.
func Parse(r io.Reader, log logrus.FieldLogger) ([]model.Job, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var jobs []model.Job
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		job, ok := ParseURL(line)
		if !ok {
			log.WithFields(logrus.Fields{"line": n, "entry": line}).Warn("Skipping unrecognized job entry")
			continue
		}
		jobs = append(jobs, job)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job list: %w", err)
	}

	return lo.UniqBy(jobs, func(j model.Job) string { return j.String() }), nil
}

// Load parses the job list at path.
func Load(fs afero.Fs, path string, log logrus.FieldLogger) ([]model.Job, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job list: %w", err)
	}
	defer f.Close()
	return Parse(f, log)
}

// ParseURL recognizes:
//
//	https://www.youtube.com/playlist?list=PL...          playlist
//	https://www.youtube.com/channel/UC...                channel
//	https://www.youtube.com/feeds/videos.xml?channel_id=UC...
//	https://www.youtube.com/feeds/videos.xml?playlist_id=PL...
//
// A "filter" query parameter sets the job's title filter. A playlist
// parameter wins over a channel path.
func ParseURL(s string) (model.Job, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return model.Job{}, false
	}
	q := u.Query()

	job := model.Job{Filter: strings.TrimSpace(q.Get("filter"))}
	switch {
	case q.Get("list") != "":
		job.Kind, job.ID = model.JobPlaylist, q.Get("list")
	case q.Get("playlist_id") != "":
		job.Kind, job.ID = model.JobPlaylist, q.Get("playlist_id")
	case q.Get("channel_id") != "":
		job.Kind, job.ID = model.JobChannel, q.Get("channel_id")
	case strings.Contains(u.Path, "/channel/"):
		rest := u.Path[strings.Index(u.Path, "/channel/")+len("/channel/"):]
		job.Kind, job.ID = model.JobChannel, strings.SplitN(rest, "/", 2)[0]
	default:
		return model.Job{}, false
	}

	job.ID = strings.TrimSpace(job.ID)
	if job.ID == "" {
		return model.Job{}, false
	}
	return job, true
}

// FromSubscriptions turns an OPML subscription list into jobs. Entries that
// are not YouTube channel or playlist feeds are dropped.
func FromSubscriptions(subs []*model.Subscription) []model.Job {
	jobs := lo.FilterMap(subs, func(s *model.Subscription, _ int) (model.Job, bool) {
		if s == nil {
			return model.Job{}, false
		}
		return ParseURL(s.URL)
	})
	return lo.UniqBy(jobs, func(j model.Job) string { return j.String() })
}

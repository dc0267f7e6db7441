package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robertmeta/ytrss/feed"
	"github.com/robertmeta/ytrss/jobs"
	"github.com/robertmeta/ytrss/local"
	"github.com/robertmeta/ytrss/model"
	"github.com/robertmeta/ytrss/opml"
	"github.com/robertmeta/ytrss/rss"
	"github.com/robertmeta/ytrss/store"
	"github.com/robertmeta/ytrss/title"
	"github.com/urfave/cli/v2"
)

func runJobs(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	var list []model.Job
	if path := c.String("opml"); path != "" {
		f, err := e.fs.Open(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
		}
		subs, err := opml.Parse(f)
		f.Close()
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to parse OPML: %v", err), ExitDataError)
		}
		list = jobs.FromSubscriptions(subs)
	} else {
		list, err = jobs.Load(e.fs, e.cfg.JobsFile, e.log)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
	}
	if len(list) == 0 {
		return cli.Exit("No jobs found", ExitDataError)
	}

	runner, s, err := e.runner(c, c.Bool("refresh"))
	if err != nil {
		return err
	}
	defer s.Close()

	d := &jobs.Dispatcher{
		Concurrency: e.cfg.Concurrency,
		Shuffle:     e.cfg.Shuffle,
		Log:         e.log,
	}
	results := d.Run(c.Context, list, runner.Run)
	failed := jobs.Failed(results)

	if err := outputJSON(map[string]interface{}{
		"jobs":    len(results),
		"failed":  len(failed),
		"results": results,
	}); err != nil {
		return err
	}

	if len(failed) > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d jobs failed", len(failed), len(results)), ExitGeneralError)
	}
	return nil
}

func generateFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Channel or playlist URL required", ExitUsageError)
	}

	job, ok := jobs.ParseURL(c.Args().First())
	if !ok {
		return cli.Exit(fmt.Sprintf("Not a channel or playlist URL: %s", c.Args().First()), ExitUsageError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}

	runner, s, err := e.runner(c, c.Bool("refresh"))
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := runner.Run(c.Context, job)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate feed: %v", err), ExitGeneralError)
	}
	return outputJSON(report)
}

func generateDirFeed(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Directory required", ExitUsageError)
	}
	dir := c.Args().First()

	e, err := setup(c)
	if err != nil {
		return err
	}

	files, err := local.Scan(e.fs, dir, c.StringSlice("ext"), c.Bool("recursive"))
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	titles := title.NewResolver(e.fs, c.Bool("metadata"), e.log)
	records, err := local.Records(c.Context, e.fs, c.String("host"), files, time.Now(), titles)
	if err != nil {
		return cli.Exit(err.Error(), ExitGeneralError)
	}

	out := c.String("out")
	ch := channelForDir(dir, out, c.String("host"), dirMeta{
		title:       c.String("title"),
		description: c.String("description"),
		author:      c.String("author"),
		link:        c.String("link"),
		image:       c.String("image"),
	})

	if parent := filepath.Dir(out); parent != "." {
		if err := e.fs.MkdirAll(parent, 0755); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output directory: %v", err), ExitGeneralError)
		}
	}
	if err := rss.Generate(e.fs, out, ch, records, rss.DefaultIndent); err != nil {
		return cli.Exit(err.Error(), ExitGeneralError)
	}

	return outputJSON(map[string]interface{}{
		"status": "success",
		"file":   out,
		"items":  len(records),
	})
}

type dirMeta struct {
	title, description, author, link, image string
}

// channelForDir describes the feed of a local directory, filling the gaps
// from the directory and output names.
func channelForDir(dir, out, host string, meta dirMeta) model.ChannelInfo {
	id := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	ch := model.ChannelInfo{
		ID:            id,
		Title:         meta.title,
		Description:   meta.description,
		Author:        meta.author,
		CanonicalLink: meta.link,
		ImageURL:      meta.image,
	}
	if ch.Title == "" {
		ch.Title = filepath.Base(filepath.Clean(dir))
	}
	if ch.Description == "" {
		ch.Description = ch.Title
	}
	if ch.CanonicalLink == "" {
		ch.CanonicalLink = host
	}
	return ch
}

func resolveVideo(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Video ID required", ExitUsageError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}

	resolver, err := e.cfg.NewResolver()
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	res, err := resolver.Resolve(c.Context, c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to resolve: %v", err), ExitGeneralError)
	}
	return outputJSON(res)
}

func lookupVideo(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("Feed file and video ID required", ExitUsageError)
	}
	path, id := c.Args().Get(0), c.Args().Get(1)

	e, err := setup(c)
	if err != nil {
		return err
	}

	enc, ok := feed.LoadIndex(e.fs, path).Lookup(id)
	if err := outputJSON(map[string]interface{}{
		"video_id": id,
		"found":    ok,
		"url":      enc.URL,
		"type":     enc.Type,
		"length":   enc.Length,
	}); err != nil {
		return err
	}
	if !ok {
		return cli.Exit("", ExitDataError)
	}
	return nil
}

func listHistory(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	opts, err := store.BuildQueryOptions(c.Int("limit"), c.Int("offset"), c.String("since"), c.String("job"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	s, err := e.openStore()
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	runs, err := s.GetRuns(opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get runs: %v", err), ExitGeneralError)
	}

	return outputJSON(map[string]interface{}{
		"count":  len(runs),
		"limit":  opts.Limit,
		"offset": opts.Offset,
		"runs":   runs,
	})
}

func pruneResolutions(c *cli.Context) error {
	before, err := store.OlderThan(c.String("older-than"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}

	s, err := e.openStore()
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	n, err := s.PruneResolutions(before)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to prune: %v", err), ExitGeneralError)
	}

	return outputJSON(map[string]interface{}{
		"status": "success",
		"pruned": n,
		"before": before,
	})
}

func exportOPML(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	s, err := e.openStore()
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	runs, err := s.LatestRuns()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get runs: %v", err), ExitGeneralError)
	}
	subs := subscriptionsFromRuns(runs, e.cfg.BaseURL)

	outputPath := c.String("output")
	if outputPath == "" {
		if err := opml.Generate(os.Stdout, opml.DefaultTitle, subs); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitGeneralError)
		}
		return nil
	}

	f, err := e.fs.Create(outputPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitGeneralError)
	}
	defer f.Close()

	if err := opml.Generate(f, opml.DefaultTitle, subs); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitGeneralError)
	}

	return outputJSON(map[string]interface{}{
		"status": "success",
		"file":   outputPath,
		"feeds":  len(subs),
	})
}

// subscriptionsFromRuns lists one subscription per generated feed. Feeds are
// addressed under baseURL when set, by their file path otherwise.
func subscriptionsFromRuns(runs []*model.Run, baseURL string) []*model.Subscription {
	subs := make([]*model.Subscription, 0, len(runs))
	for _, run := range runs {
		if run.Destination == "" {
			continue
		}
		url := run.Destination
		if baseURL != "" {
			url = strings.TrimSuffix(baseURL, "/") + "/" + filepath.Base(run.Destination)
		}
		name := run.Title
		if name == "" {
			name = run.JobID
		}
		subs = append(subs, &model.Subscription{Title: name, URL: url})
	}
	return subs
}

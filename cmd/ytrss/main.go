package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/robertmeta/ytrss/config"
	ytlog "github.com/robertmeta/ytrss/log"
	"github.com/robertmeta/ytrss/pipeline"
	"github.com/robertmeta/ytrss/store"
	"github.com/robertmeta/ytrss/youtube"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"google.golang.org/api/option"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "ytrss",
		Usage:   "Republish YouTube channels and playlists as podcast RSS feeds",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file (default: ./ytrss.yaml or ~/.config/ytrss/ytrss.yaml)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Database file path (default: ~/.config/ytrss/ytrss.db)",
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for generated feeds",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Public URL under which the output directory is served",
			},
			&cli.StringSliceFlag{
				Name:    "api-key",
				Aliases: []string{"k"},
				Usage:   "YouTube Data API key (repeatable)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Log as JSON",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Generate the feed of every job in the job list",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Usage:   "Job list file (default: list.txt)",
					},
					&cli.StringFlag{
						Name:  "opml",
						Usage: "Read jobs from an OPML subscription list instead",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Jobs run at once",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Videos per feed",
					},
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Ignore cached URLs and resolve every video again",
					},
					&cli.BoolFlag{
						Name:  "no-shuffle",
						Usage: "Start jobs in list order",
					},
				},
				Action: runJobs,
			},
			{
				Name:      "feed",
				Usage:     "Generate the feed of one channel or playlist",
				ArgsUsage: "<channel-or-playlist-url>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Usage:   "Videos in the feed",
					},
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Ignore cached URLs and resolve every video again",
					},
				},
				Action: generateFeed,
			},
			{
				Name:      "dir",
				Usage:     "Generate a feed from a directory of media files",
				ArgsUsage: "<directory>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "host",
						Usage:    "URL prefix of the served files, e.g. https://example.com/",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Feed file to write",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "ext",
						Usage: "Accepted file extension (repeatable; default: all files)",
					},
					&cli.BoolFlag{
						Name:    "recursive",
						Aliases: []string{"r"},
						Usage:   "Include subdirectories",
					},
					&cli.BoolFlag{
						Name:  "metadata",
						Usage: "Read titles from embedded media tags",
					},
					&cli.StringFlag{Name: "title", Usage: "Feed title (default: directory name)"},
					&cli.StringFlag{Name: "description", Usage: "Feed description"},
					&cli.StringFlag{Name: "author", Usage: "Feed author"},
					&cli.StringFlag{Name: "link", Usage: "Feed link (default: host)"},
					&cli.StringFlag{Name: "image", Usage: "Feed image URL"},
				},
				Action: generateDirFeed,
			},
			{
				Name:      "resolve",
				Usage:     "Resolve the media URL of one video with the configured resolver",
				ArgsUsage: "<video-id>",
				Action:    resolveVideo,
			},
			{
				Name:      "lookup",
				Usage:     "Look up the cached media URL of a video in a generated feed",
				ArgsUsage: "<feed-file> <video-id>",
				Action:    lookupVideo,
			},
			{
				Name:  "history",
				Usage: "List generation runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of runs to return",
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Offset for pagination",
					},
					&cli.StringFlag{
						Name:    "since",
						Aliases: []string{"s"},
						Usage:   "Show runs since duration (e.g., 12h, 7d, 2w)",
					},
					&cli.StringFlag{
						Name:  "job",
						Usage: "Filter by channel or playlist ID",
					},
				},
				Action: listHistory,
			},
			{
				Name:  "prune",
				Usage: "Forget resolved URLs older than a duration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "older-than",
						Value: "30d",
						Usage: "Age of the resolutions to delete (e.g., 12h, 30d)",
					},
				},
				Action: pruneResolutions,
			},
			{
				Name:  "export",
				Usage: "Export the generated feeds as OPML",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportOPML,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(ExitGeneralError)
	}
}

// env is what every command needs: configuration, logging and the file system.
type env struct {
	cfg *config.Config
	log *logrus.Logger
	fs  afero.Fs
}

func setup(c *cli.Context) (*env, error) {
	fs := afero.NewOsFs()

	cfg, err := config.Load(fs, c.String("config"), overrides(c))
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitUsageError)
	}
	if cfg.DB == "" {
		cfg.DB = getDefaultDBPath()
	}

	logger, err := ytlog.Setup(os.Stderr, cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitUsageError)
	}

	return &env{cfg: cfg, log: logger, fs: fs}, nil
}

// overrides maps the flags given on the command line to config keys.
func overrides(c *cli.Context) map[string]interface{} {
	out := make(map[string]interface{})
	for flag, key := range map[string]string{
		"db":         "db",
		"output-dir": "output_dir",
		"base-url":   "base_url",
		"log-level":  "log.level",
		"jobs":       "jobs_file",
	} {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	for flag, key := range map[string]string{
		"concurrency": "concurrency",
		"limit":       "limit",
	} {
		if c.IsSet(flag) {
			out[key] = c.Int(flag)
		}
	}
	if c.IsSet("log-json") {
		out["log.json"] = c.Bool("log-json")
	}
	if c.IsSet("no-shuffle") {
		out["shuffle"] = !c.Bool("no-shuffle")
	}
	if c.IsSet("api-key") {
		out["api_keys"] = c.StringSlice("api-key")
	}
	return out
}

func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ytrss.db"
	}
	return filepath.Join(home, ".config", "ytrss", "ytrss.db")
}

func (e *env) openStore() (*store.Store, error) {
	// Create directory if it doesn't exist
	if err := e.fs.MkdirAll(filepath.Dir(e.cfg.DB), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := store.New(e.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}

// runner wires the YouTube client, the resolver stack and the store into a
// pipeline runner. The returned store must be closed by the caller.
func (e *env) runner(c *cli.Context, refresh bool) (*pipeline.Runner, *store.Store, error) {
	if len(e.cfg.APIKeys) == 0 {
		return nil, nil, cli.Exit("No YouTube API key configured (--api-key, api_keys or YTRSS_API_KEYS)", ExitUsageError)
	}

	resolver, err := e.cfg.NewResolver()
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), ExitUsageError)
	}

	client, err := youtube.New(c.Context, youtube.NewCredentialPool(e.cfg.APIKeys...), option.WithUserAgent("ytrss/"+c.App.Version))
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), ExitUsageError)
	}
	client.Retry = e.cfg.RetryPolicy()
	client.Durations = e.cfg.Durations
	client.Log = e.log

	s, err := e.openStore()
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), ExitDataError)
	}

	return &pipeline.Runner{
		Source: client,
		Builder: &pipeline.Builder{
			Fs:              e.fs,
			Resolver:        resolver,
			Store:           s,
			Log:             e.log,
			DefaultMimeType: e.cfg.Resolver.MimeType,
			Workers:         e.cfg.Resolver.Workers,
			Refresh:         refresh,
		},
		OutputDir: e.cfg.OutputDir,
		BaseURL:   e.cfg.BaseURL,
		Limit:     e.cfg.Limit,
	}, s, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

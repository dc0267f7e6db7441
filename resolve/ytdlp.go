package resolve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/robertmeta/ytrss/model"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 2 * time.Minute

	// DefaultFormat prefers a 720p mp4, then a 360p mp4, then the best audio-only stream.
	DefaultFormat = "best[height<=720][ext=mp4]/best[height<=360][ext=mp4]/bestaudio"

	watchURL = "https://www.youtube.com/watch?v="
)

// YtDlp resolves direct media URLs by running yt-dlp as a subprocess.
type YtDlp struct {
	// Path is the yt-dlp executable. Defaults to "yt-dlp".
	Path string
	// Format is the yt-dlp format selector. Defaults to DefaultFormat.
	Format string
	// Timeout bounds a single invocation. Defaults to 2 minutes.
	Timeout time.Duration
	// ExtraArgs are passed before the video URL.
	ExtraArgs []string
}

// NewYtDlp creates a yt-dlp resolver with defaults.
func NewYtDlp() *YtDlp {
	return &YtDlp{
		Path:    defaultYtdlpPath,
		Format:  DefaultFormat,
		Timeout: defaultYtdlpTimeout,
	}
}

// Resolve implements Resolver.
func (y *YtDlp) Resolve(ctx context.Context, videoID string) (*model.Resolution, error) {
	if err := checkID("ytdlp", videoID); err != nil {
		return nil, err
	}

	if _, err := exec.LookPath(y.path()); err != nil {
		return nil, &Error{Strategy: "ytdlp", VideoID: videoID, Err: ErrYtdlpNotInstalled}
	}

	format := y.Format
	if format == "" {
		format = DefaultFormat
	}
	timeout := y.Timeout
	if timeout <= 0 {
		timeout = defaultYtdlpTimeout
	}

	args := []string{
		"-f", format,
		"--no-warnings",
		"--no-playlist",
		"--print", "%(url)s\t%(ext)s\t%(filesize,filesize_approx)s",
	}
	args = append(args, y.ExtraArgs...)
	args = append(args, "--", watchURL+videoID)

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, y.path(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &Error{Strategy: "ytdlp", VideoID: videoID, Err: ctx.Err()}
		}
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Strategy: "ytdlp", VideoID: videoID, Err: fmt.Errorf("timed out after %s", timeout)}
		}

		msg := strings.TrimSpace(stderr.String())
		if isUnavailable(msg) {
			return nil, &Error{Strategy: "ytdlp", VideoID: videoID, Err: fmt.Errorf("%w: %s", ErrUnresolvable, msg)}
		}
		return nil, &Error{Strategy: "ytdlp", VideoID: videoID, Err: fmt.Errorf("yt-dlp failed: %w: %s", err, msg)}
	}

	res, err := parseYtdlpOutput(stdout.String())
	if err != nil {
		return nil, &Error{Strategy: "ytdlp", VideoID: videoID, Err: err}
	}
	res.VideoID = videoID
	res.ResolvedAt = time.Now().UTC()
	return res, nil
}

func (y *YtDlp) path() string {
	if y.Path != "" {
		return y.Path
	}
	return defaultYtdlpPath
}

// isUnavailable reports yt-dlp errors that will not go away on retry.
func isUnavailable(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, marker := range []string{
		"video unavailable",
		"private video",
		"requested format is not available",
		"this video has been removed",
		"members-only",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// parseYtdlpOutput reads the first "url<TAB>ext<TAB>size" line printed by yt-dlp.
func parseYtdlpOutput(out string) (*model.Resolution, error) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		url := strings.TrimSpace(fields[0])
		if url == "" || url == "NA" {
			continue
		}

		res := &model.Resolution{URL: url}
		if len(fields) > 1 {
			res.MimeType = model.MimeTypeByExtension(strings.TrimSpace(fields[1]))
		}
		if len(fields) > 2 {
			res.Size = parseSize(fields[2])
		}
		return res, nil
	}
	return nil, ErrUnresolvable
}

func parseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return int64(f)
	}
	return 0
}

// Package title derives display titles for local media files.
//
// Embedded metadata is tried first through an ordered list of extractors;
// the base file name without its extension is the deterministic fallback.
package title

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ErrNoTitle means the file carries no usable title metadata.
var ErrNoTitle = errors.New("no title in metadata")

// Extractor reads a title from a media file's embedded metadata.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// FromFilename returns the base name of p without its extension. It never fails.
func FromFilename(p string) string {
	base := filepath.Base(filepath.FromSlash(p))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	// Dotfiles keep their name
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	return base
}

// Resolver picks a title for a file.
type Resolver struct {
	Extractors  []Extractor
	UseMetadata bool
	Log         logrus.FieldLogger
}

// NewResolver creates a resolver using tag parsing, then ffprobe when present.
func NewResolver(fs afero.Fs, useMetadata bool, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		Extractors:  []Extractor{&TagExtractor{Fs: fs}, NewFFProbe()},
		UseMetadata: useMetadata,
		Log:         log,
	}
}

// Title returns the first title an extractor produces, or the file name
// fallback when metadata is disabled or every extractor fails.
func (r *Resolver) Title(ctx context.Context, p string) string {
	if r.UseMetadata {
		for _, e := range r.Extractors {
			t, err := e.Extract(ctx, p)
			t = strings.TrimSpace(t)
			if err == nil && t != "" {
				return t
			}
			if r.Log != nil && err != nil && !errors.Is(err, ErrNoTitle) {
				r.Log.WithFields(logrus.Fields{"path": p, "extractor": fmt.Sprintf("%T", e)}).
					WithError(err).Debug("Title extraction failed")
			}
		}
	}
	return FromFilename(p)
}

// TagExtractor reads ID3v1/ID3v2, MP4, FLAC and OGG tags.
type TagExtractor struct {
	Fs afero.Fs
}

// Extract implements Extractor.
func (e *TagExtractor) Extract(ctx context.Context, p string) (string, error) {
	fs := e.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Open(p)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", p, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return "", ErrNoTitle
		}
		return "", fmt.Errorf("failed to read tags: %w", err)
	}
	if t := strings.TrimSpace(m.Title()); t != "" {
		return t, nil
	}
	return "", ErrNoTitle
}

// FFProbe reads the container title with ffprobe. It works on the operating
// system's file system only.
type FFProbe struct {
	Path    string
	Timeout time.Duration
}

// NewFFProbe creates an extractor using "ffprobe" from PATH.
func NewFFProbe() *FFProbe {
	return &FFProbe{Path: "ffprobe", Timeout: 30 * time.Second}
}

type ffprobeOutput struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

// Extract implements Extractor.
func (p *FFProbe) Extract(ctx context.Context, file string) (string, error) {
	bin := p.Path
	if bin == "" {
		bin = "ffprobe"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("ffprobe not available: %w", err)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, bin, "-v", "quiet", "-print_format", "json", "-show_format", "--", file)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFProbe(stdout.Bytes())
}

func parseFFProbe(data []byte) (string, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	for k, v := range out.Format.Tags {
		if strings.EqualFold(k, "title") && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", ErrNoTitle
}

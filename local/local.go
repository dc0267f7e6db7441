// Package local builds feed records from a directory of media files.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robertmeta/ytrss/model"
	"github.com/robertmeta/ytrss/title"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// Scan lists the regular files in dir, sorted and without duplicates. When
// exts is non-empty only files with one of those extensions are kept; the
// match ignores case and a leading dot. recursive descends into
// subdirectories.
func Scan(fs afero.Fs, dir string, exts []string, recursive bool) ([]string, error) {
	var files []string

	if recursive {
		err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.Mode().IsRegular() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
		}
	} else {
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.Mode().IsRegular() {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}

	if len(exts) > 0 {
		want := lo.Map(exts, func(e string, _ int) string {
			return "." + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		})
		files = lo.Filter(files, func(f string, _ int) bool {
			return lo.Contains(want, strings.ToLower(filepath.Ext(f)))
		})
	}

	files = lo.Uniq(files)
	sort.Strings(files)
	return files, nil
}

// Record builds the record of one file. host is prepended to the slash
// separated path to form the item's link and guid. Files that are not
// audio, video or images get no media enclosure. titles may be nil, in which
// case the file name is the title.
func Record(ctx context.Context, fs afero.Fs, host, path string, published time.Time, titles *title.Resolver) (model.VideoRecord, error) {
	link := host + filepath.ToSlash(path)

	name := title.FromFilename(path)
	if titles != nil {
		name = titles.Title(ctx, path)
	}

	v := model.VideoRecord{
		ID:          link,
		Title:       name,
		Description: name,
		Link:        link,
		PublishedAt: published,
	}

	mimeType := model.MimeTypeByExtension(path)
	if !model.IsMediaType(mimeType) {
		return v, nil
	}

	info, err := fs.Stat(path)
	if err != nil {
		return model.VideoRecord{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	v.ResolvedURL = link
	v.MimeType = mimeType
	v.SizeBytes = info.Size()
	return v, nil
}

// Records builds the records of files, in order, all published at the same time.
func Records(ctx context.Context, fs afero.Fs, host string, files []string, published time.Time, titles *title.Resolver) ([]model.VideoRecord, error) {
	out := make([]model.VideoRecord, 0, len(files))
	for _, f := range files {
		v, err := Record(ctx, fs, host, f, published, titles)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

package model

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// RFC822 is the pubDate layout used in generated feeds, always in UTC.
const RFC822 = "Mon, 02 Jan 2006 15:04:05 +0000"

// FormatRFC822 formats t as an RFC-822 date in UTC,
// e.g. "Mon, 22 Dec 2014 18:30:00 +0000".
func FormatRFC822(t time.Time) string {
	return t.UTC().Format(RFC822)
}

// ParsePublished parses an upstream timestamp such as "2014-12-22T18:30:00Z".
// Values without a zone are taken as UTC.
func ParsePublished(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatDuration formats d for itunes:duration: "MM:SS" below an hour, "H:MM:SS" above.
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// MimeTypeByExtension returns the MIME type for a file extension or file name.
// Returns "" if the type is unknown.
func MimeTypeByExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" && name != "" && !strings.Contains(name, ".") {
		ext = "." + strings.ToLower(name)
	}
	if t, ok := mediaTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return ""
}

// IsMediaType returns true for audio, video and image MIME types.
func IsMediaType(mimeType string) bool {
	for _, prefix := range []string{"audio/", "video/", "image/"} {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

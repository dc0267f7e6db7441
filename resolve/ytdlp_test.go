package resolve

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeYtdlp writes an executable shell script standing in for yt-dlp.
func fakeYtdlp(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestParseYtdlpOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		wantURL  string
		wantMime string
		wantSize int64
		wantErr  bool
	}{
		{
			name:     "mp4 with size",
			output:   "https://rr1.example/videoplayback?id=1\tmp4\t1048576\n",
			wantURL:  "https://rr1.example/videoplayback?id=1",
			wantMime: "video/mp4",
			wantSize: 1048576,
		},
		{
			name:     "audio without size",
			output:   "https://rr1.example/audio\tm4a\tNA\n",
			wantURL:  "https://rr1.example/audio",
			wantMime: "audio/mp4",
		},
		{
			name:     "approximate float size",
			output:   "https://rr1.example/a\twebm\t2048.5",
			wantURL:  "https://rr1.example/a",
			wantMime: "video/webm",
			wantSize: 2048,
		},
		{
			name:    "url only",
			output:  "\n\nhttps://rr1.example/only\n",
			wantURL: "https://rr1.example/only",
		},
		{
			name:    "empty",
			output:  "",
			wantErr: true,
		},
		{
			name:    "NA url",
			output:  "NA\tmp4\tNA\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseYtdlpOutput(tt.output)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnresolvable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, res.URL)
			assert.Equal(t, tt.wantMime, res.MimeType)
			assert.Equal(t, tt.wantSize, res.Size)
		})
	}
}

func TestYtDlp_Resolve(t *testing.T) {
	script := fakeYtdlp(t, `
last=""
for a in "$@"; do last="$a"; done
printf 'https://media.example/%s.mp4\tmp4\t4321\n' "${last##*=}"`)

	y := &YtDlp{Path: script, Timeout: 10 * time.Second}
	res, err := y.Resolve(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.VideoID)
	assert.Equal(t, "https://media.example/abc123.mp4", res.URL)
	assert.Equal(t, "video/mp4", res.MimeType)
	assert.Equal(t, int64(4321), res.Size)
	assert.False(t, res.ResolvedAt.IsZero())
}

func TestYtDlp_PassesFormat(t *testing.T) {
	script := fakeYtdlp(t, `
while [ $# -gt 0 ]; do
  if [ "$1" = "-f" ]; then printf 'https://m/%s\tmp3\tNA\n' "$2"; exit 0; fi
  shift
done
exit 1`)

	y := &YtDlp{Path: script, Format: "bestaudio"}
	res, err := y.Resolve(context.Background(), "v")
	require.NoError(t, err)
	assert.Equal(t, "https://m/bestaudio", res.URL)
	assert.Equal(t, "audio/mpeg", res.MimeType)
}

func TestYtDlp_Unavailable(t *testing.T) {
	script := fakeYtdlp(t, `echo "ERROR: [youtube] abc: Video unavailable" >&2; exit 1`)

	_, err := (&YtDlp{Path: script}).Resolve(context.Background(), "abc")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvable)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "ytdlp", rerr.Strategy)
	assert.False(t, classify(err))
}

func TestYtDlp_TransientFailure(t *testing.T) {
	script := fakeYtdlp(t, `echo "ERROR: HTTP Error 503: Service Unavailable" >&2; exit 1`)

	_, err := (&YtDlp{Path: script}).Resolve(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnresolvable)
	assert.True(t, classify(err))
}

func TestYtDlp_Timeout(t *testing.T) {
	script := fakeYtdlp(t, `exec sleep 5`)

	start := time.Now()
	_, err := (&YtDlp{Path: script, Timeout: 100 * time.Millisecond}).Resolve(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestYtDlp_NotInstalled(t *testing.T) {
	y := &YtDlp{Path: filepath.Join(t.TempDir(), "does-not-exist")}
	_, err := y.Resolve(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrYtdlpNotInstalled)
}

func TestYtDlp_EmptyID(t *testing.T) {
	_, err := NewYtDlp().Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyVideoID)
}

package jobs

import (
	"strings"
	"testing"

	"github.com/robertmeta/ytrss/model"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect model.Job
		ok     bool
	}{
		{
			name:   "playlist",
			input:  "https://www.youtube.com/playlist?list=PLabc",
			expect: model.Job{ID: "PLabc", Kind: model.JobPlaylist},
			ok:     true,
		},
		{
			name:   "watch url inside a playlist",
			input:  "https://www.youtube.com/watch?v=xyz&list=PLabc",
			expect: model.Job{ID: "PLabc", Kind: model.JobPlaylist},
			ok:     true,
		},
		{
			name:   "channel",
			input:  "https://www.youtube.com/channel/UC123",
			expect: model.Job{ID: "UC123", Kind: model.JobChannel},
			ok:     true,
		},
		{
			name:   "channel with trailing path and filter",
			input:  "https://www.youtube.com/channel/UC123/videos?filter=Podcast",
			expect: model.Job{ID: "UC123", Kind: model.JobChannel, Filter: "Podcast"},
			ok:     true,
		},
		{
			name:   "playlist wins over channel",
			input:  "https://www.youtube.com/channel/UC123?list=PLabc",
			expect: model.Job{ID: "PLabc", Kind: model.JobPlaylist},
			ok:     true,
		},
		{
			name:   "channel feed",
			input:  "https://www.youtube.com/feeds/videos.xml?channel_id=UC123",
			expect: model.Job{ID: "UC123", Kind: model.JobChannel},
			ok:     true,
		},
		{
			name:   "playlist feed",
			input:  "https://www.youtube.com/feeds/videos.xml?playlist_id=PLabc",
			expect: model.Job{ID: "PLabc", Kind: model.JobPlaylist},
			ok:     true,
		},
		{
			name:   "encoded filter",
			input:  "https://www.youtube.com/playlist?list=PLabc&filter=full%20episode",
			expect: model.Job{ID: "PLabc", Kind: model.JobPlaylist, Filter: "full episode"},
			ok:     true,
		},
		{name: "handle", input: "https://www.youtube.com/@someone"},
		{name: "empty channel id", input: "https://www.youtube.com/channel/"},
		{name: "not a url", input: "%%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, ok := ParseURL(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expect, job)
		})
	}
}

const jobList = `# channels
https://www.youtube.com/channel/UC123

https://www.youtube.com/playlist?list=PLabc&filter=live
   # indented comment
https://www.youtube.com/@handle
https://www.youtube.com/channel/UC123
https://www.youtube.com/channel/UC456/
`

func TestParse(t *testing.T) {
	logger, hook := test.NewNullLogger()

	jobs, err := Parse(strings.NewReader(jobList), logger)
	require.NoError(t, err)
	assert.Equal(t, []model.Job{
		{ID: "UC123", Kind: model.JobChannel},
		{ID: "PLabc", Kind: model.JobPlaylist, Filter: "live"},
		{ID: "UC456", Kind: model.JobChannel},
	}, jobs)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 6, entry.Data["line"])
}

func TestParse_CRLF(t *testing.T) {
	jobs, err := Parse(strings.NewReader("https://www.youtube.com/playlist?list=PLabc\r\n"), nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "PLabc", jobs[0].ID)
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/list.txt", []byte(jobList), 0644))

	logger, _ := test.NewNullLogger()
	jobs, err := Load(fs, "/etc/list.txt", logger)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	_, err = Load(fs, "/etc/missing.txt", logger)
	assert.Error(t, err)
}

func TestFromSubscriptions(t *testing.T) {
	subs := []*model.Subscription{
		{Title: "A", URL: "https://www.youtube.com/feeds/videos.xml?channel_id=UCa"},
		nil,
		{Title: "Blog", URL: "https://example.com/feed"},
		{Title: "B", URL: "https://www.youtube.com/feeds/videos.xml?playlist_id=PLb"},
		{Title: "A again", URL: "https://www.youtube.com/channel/UCa"},
	}

	assert.Equal(t, []model.Job{
		{ID: "UCa", Kind: model.JobChannel},
		{ID: "PLb", Kind: model.JobPlaylist},
	}, FromSubscriptions(subs))
}

package rss

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/robertmeta/ytrss/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsedDocument struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel struct {
		Title       string `xml:"title"`
		Description string `xml:"description"`
		Image       struct {
			URL   string `xml:"url"`
			Title string `xml:"title"`
		} `xml:"image"`
		Items []parsedItem `xml:"item"`
	} `xml:"channel"`
}

func parseDocument(t *testing.T, data []byte) parsedDocument {
	t.Helper()
	var doc parsedDocument
	require.NoError(t, xml.Unmarshal(data, &doc))
	return doc
}

func testChannel() model.ChannelInfo {
	return model.ChannelInfo{
		ID:            "show",
		Title:         "My Show",
		Description:   "About the show",
		Author:        "A",
		CanonicalLink: "https://x/feed",
		ImageURL:      "https://x/img.png",
	}
}

func testVideo() model.VideoRecord {
	return model.VideoRecord{
		ID:          "abc",
		Title:       "Ep 1",
		PublishedAt: time.Date(2014, 12, 22, 18, 30, 0, 0, time.UTC),
		MimeType:    "audio/mpeg",
		SizeBytes:   1234,
		ResolvedURL: "https://x/abc.mp3",
	}
}

func TestRender_EndToEnd(t *testing.T) {
	data, err := Render(testChannel(), []model.VideoRecord{testVideo()}, DefaultIndent)
	require.NoError(t, err)

	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?><rss `))
	for _, ns := range []string{"xmlns:dc=", "xmlns:content=", "xmlns:atom=", "xmlns:itunes=", "xmlns:anchor="} {
		assert.Contains(t, doc, ns)
	}
	assert.Contains(t, doc, "      <atom:link href=\"https://x/feed\" rel=\"self\" type=\"application/rss+xml\" />\n")
	assert.Contains(t, doc, "      <itunes:author>A</itunes:author>\n")
	assert.Contains(t, doc, "      <image>\n         <url>https://x/img.png</url>\n         <title>My Show</title>\n         <link>https://x/feed</link>\n      </image>\n")
	assert.Contains(t, doc, "      <itunes:image href=\"https://x/img.png\"/>\n")
	assert.True(t, strings.HasSuffix(doc, "   </channel>\n</rss>\n"))

	parsed := parseDocument(t, data)
	assert.Equal(t, "2.0", parsed.Version)
	assert.Equal(t, "My Show", parsed.Channel.Title)
	require.Len(t, parsed.Channel.Items, 1)

	item := parsed.Channel.Items[0]
	assert.Equal(t, []string{"abc"}, item.GUIDs)
	assert.Equal(t, []string{"Mon, 22 Dec 2014 18:30:00 +0000"}, item.PubDates)
	assert.Contains(t, item.Enclosures, parsedEnclosure{URL: "https://x/abc.mp3", Type: "audio/mpeg", Length: "1234"})
	assert.Contains(t, doc, `<enclosure url="https://x/abc.mp3" type="audio/mpeg" length="1234"/>`)
}

func TestRender_UnresolvedVideo(t *testing.T) {
	v := testVideo()
	v.ResolvedURL = ""

	data, err := Render(testChannel(), []model.VideoRecord{v}, DefaultIndent)
	require.NoError(t, err)

	parsed := parseDocument(t, data)
	require.Len(t, parsed.Channel.Items, 1)

	// Only the per-item link enclosure remains
	item := parsed.Channel.Items[0]
	require.Len(t, item.Enclosures, 1)
	assert.Equal(t, "abc", item.Enclosures[0].URL)
	assert.Empty(t, item.Enclosures[0].Type)
	assert.Len(t, item.Titles, 1)
	assert.Len(t, item.Descriptions, 1)
	assert.NotContains(t, string(data), "length=")
}

func TestRender_PreservesOrder(t *testing.T) {
	var videos []model.VideoRecord
	for _, id := range []string{"c", "a", "b"} {
		videos = append(videos, model.VideoRecord{ID: id, Title: "video " + id})
	}

	data, err := Render(testChannel(), videos, DefaultIndent)
	require.NoError(t, err)

	parsed := parseDocument(t, data)
	require.Len(t, parsed.Channel.Items, 3)
	assert.Equal(t, "c", parsed.Channel.Items[0].GUIDs[0])
	assert.Equal(t, "a", parsed.Channel.Items[1].GUIDs[0])
	assert.Equal(t, "b", parsed.Channel.Items[2].GUIDs[0])
}

func TestRender_EscapesChannelText(t *testing.T) {
	ch := testChannel()
	ch.Title = "Tom & Jerry <Live>"
	ch.Description = `"quotes" & 'apostrophes'`

	data, err := Render(ch, nil, DefaultIndent)
	require.NoError(t, err)

	parsed := parseDocument(t, data)
	assert.Equal(t, "Tom & Jerry <Live>", parsed.Channel.Title)
	assert.Equal(t, "Tom & Jerry <Live>", parsed.Channel.Image.Title)
	assert.Equal(t, `"quotes" & 'apostrophes'`, parsed.Channel.Description)
	assert.Empty(t, parsed.Channel.Items)
}

func TestRender_LossyReplacement(t *testing.T) {
	ch := testChannel()
	ch.Author = "bad\xffauthor"
	v := testVideo()
	v.Title = "ctrl\x01char"
	v.Description = "Ünïcödé stays"

	data, err := Render(ch, []model.VideoRecord{v}, DefaultIndent)
	require.NoError(t, err)

	parsed := parseDocument(t, data)
	require.Len(t, parsed.Channel.Items, 1)
	assert.Equal(t, "ctrl\uFFFDchar", parsed.Channel.Items[0].Titles[0])
	assert.Equal(t, "Ünïcödé stays", parsed.Channel.Items[0].Descriptions[0])
	assert.Contains(t, string(data), "<itunes:author>bad\uFFFDauthor</itunes:author>")
}

func TestRender_SelfLink(t *testing.T) {
	ch := testChannel()
	ch.SelfLink = "https://feeds.example.com/show.rss?a=1&b=2"

	data, err := Render(ch, nil, DefaultIndent)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<atom:link href="https://feeds.example.com/show.rss?a=1&amp;b=2" rel="self"`)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testChannel(), []model.VideoRecord{testVideo()}, DefaultIndent))
	assert.Equal(t, 1, strings.Count(buf.String(), "<item>"))
}

func TestGenerate_WritesDestination(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0755))

	err := Generate(fs, "/out/show.rss", testChannel(), []model.VideoRecord{testVideo()}, DefaultIndent)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/out/show.rss")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "<item>"))

	// No temp files left behind
	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "show.rss", entries[0].Name())
}

func TestGenerate_Overwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/show.rss", []byte("old content that is longer than nothing"), 0644))

	require.NoError(t, Generate(fs, "/out/show.rss", testChannel(), nil, DefaultIndent))

	data, err := afero.ReadFile(fs, "/out/show.rss")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old content")
	assert.Contains(t, string(data), "<channel>")
}

func TestGenerate_UnwritableDestinationKeepsOldFile(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/out/show.rss", []byte("previous"), 0644))
	fs := afero.NewReadOnlyFs(base)

	err := Generate(fs, "/out/show.rss", testChannel(), []model.VideoRecord{testVideo()}, DefaultIndent)
	assert.Error(t, err)

	data, err := afero.ReadFile(base, "/out/show.rss")
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

package rss

import (
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/robertmeta/ytrss/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parsedEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type parsedItem struct {
	GUIDs        []string          `xml:"guid"`
	Links        []string          `xml:"link"`
	Titles       []string          `xml:"title"`
	Descriptions []string          `xml:"description"`
	PubDates     []string          `xml:"pubDate"`
	Enclosures   []parsedEnclosure `xml:"enclosure"`
}

func parseItem(t *testing.T, s string) parsedItem {
	t.Helper()
	var item parsedItem
	require.NoError(t, xml.Unmarshal([]byte(s), &item))
	return item
}

func TestBuildItem_FullItem(t *testing.T) {
	item, err := BuildItem(Item{
		Link:        "my/web/site/media/item1",
		Title:       "Title of item 1",
		GUID:        "item1",
		Description: "This is item 1",
		PubDate:     "Mon, 22 Dec 2014 18:30:00 +0000",
	}, "   ")
	require.NoError(t, err)

	expected := "      <item>\n" +
		"         <guid isPermaLink=\"false\">item1</guid>\n" +
		"         <link>my/web/site/media/item1</link>\n" +
		"         <enclosure url=\"my/web/site/media/item1\"/>\n" +
		"         <title>Title of item 1</title>\n" +
		"         <description>This is item 1</description>\n" +
		"         <pubDate>Mon, 22 Dec 2014 18:30:00 +0000</pubDate>\n" +
		"      </item>"
	assert.Equal(t, expected, item)
}

func TestBuildItem_ValueTag(t *testing.T) {
	item, err := BuildItem(Item{
		Link:      "my/web/site/media/item2",
		Title:     "Title of item 2",
		ExtraTags: []*model.ExtraTag{model.NewTag("itunes:duration", "06:08")},
	}, " ")
	require.NoError(t, err)

	expected := "  <item>\n" +
		"   <guid isPermaLink=\"false\">my/web/site/media/item2</guid>\n" +
		"   <link>my/web/site/media/item2</link>\n" +
		"   <enclosure url=\"my/web/site/media/item2\"/>\n" +
		"   <title>Title of item 2</title>\n" +
		"   <description></description>\n" +
		"   <itunes:duration>06:08</itunes:duration>\n" +
		"  </item>"
	assert.Equal(t, expected, item)
}

func TestBuildItem_GUIDDefaultsToLink(t *testing.T) {
	item, err := BuildItem(Item{Link: "X", Title: "T"}, DefaultIndent)
	require.NoError(t, err)

	assert.Contains(t, item, `<guid isPermaLink="false">X</guid>`)
	assert.Contains(t, item, "<link>X</link>")

	parsed := parseItem(t, item)
	require.Len(t, parsed.GUIDs, 1)
	require.Len(t, parsed.Links, 1)
	assert.Equal(t, parsed.Links[0], parsed.GUIDs[0])
}

func TestBuildItem_StructureInvariant(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		hasDate bool
	}{
		{
			name:    "with date",
			item:    Item{Link: "https://x/1", Title: "a & b", Description: "<p>hi</p>", PubDate: "Mon, 22 Dec 2014 18:30:00 +0000"},
			hasDate: true,
		},
		{
			name: "without date",
			item: Item{Link: "https://x/2", Title: `"quoted" 'single'`, GUID: "g2"},
		},
		{
			name: "with extra tags",
			item: Item{
				Link:  "https://x/3",
				Title: "three",
				ExtraTags: []*model.ExtraTag{
					EnclosureTag("https://cdn/3.mp3", "audio/mpeg", 10),
					model.NewTag("itunes:duration", "01:00"),
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := BuildItem(tt.item, DefaultIndent)
			require.NoError(t, err)

			parsed := parseItem(t, s)
			assert.Len(t, parsed.GUIDs, 1)
			assert.Len(t, parsed.Links, 1)
			assert.Len(t, parsed.Titles, 1)
			assert.Len(t, parsed.Descriptions, 1)
			if tt.hasDate {
				assert.Len(t, parsed.PubDates, 1)
			} else {
				assert.Empty(t, parsed.PubDates)
			}

			// Escaped exactly once: the parser returns the original text
			assert.Equal(t, tt.item.Title, parsed.Titles[0])
			assert.Equal(t, tt.item.Description, parsed.Descriptions[0])
		})
	}
}

func TestBuildItem_SkipsNilTags(t *testing.T) {
	item, err := BuildItem(Item{
		Link:      "l",
		Title:     "t",
		ExtraTags: []*model.ExtraTag{nil, model.NewTag("a", "b"), nil},
	}, " ")
	require.NoError(t, err)
	assert.Contains(t, item, "   <a>b</a>\n")
}

func TestBuildItem_MissingTagNameFails(t *testing.T) {
	_, err := BuildItem(Item{
		Link:      "l",
		Title:     "t",
		ExtraTags: []*model.ExtraTag{{Params: []string{`url="a"`}}},
	}, " ")
	assert.ErrorIs(t, err, model.ErrMissingTagName)
}

func TestRenderTag(t *testing.T) {
	empty := ""
	tests := []struct {
		name   string
		tag    *model.ExtraTag
		expect string
	}{
		{
			name:   "value",
			tag:    model.NewTag("itunes:duration", "06:08"),
			expect: "<itunes:duration>06:08</itunes:duration>",
		},
		{
			name:   "self closing with params",
			tag:    model.NewEmptyTag("enclosure", `url="a"`, `type="b"`),
			expect: `<enclosure url="a" type="b"/>`,
		},
		{
			name:   "pre-joined params",
			tag:    model.NewEmptyTag("enclosure", `url="file.mp3" type="audio/mpeg" length="1234"`),
			expect: `<enclosure url="file.mp3" type="audio/mpeg" length="1234"/>`,
		},
		{
			name:   "bare",
			tag:    model.NewEmptyTag("itunes:block"),
			expect: "<itunes:block/>",
		},
		{
			name:   "empty value is not absent",
			tag:    &model.ExtraTag{Name: "x", Value: &empty},
			expect: "<x></x>",
		},
		{
			name:   "value with params",
			tag:    model.NewTag("category", "Tech", `domain="d"`),
			expect: `<category domain="d">Tech</category>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTag(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestEnclosureTag(t *testing.T) {
	got, err := RenderTag(EnclosureTag("https://cdn/v.mp4?a=1&b=2", "video/mp4", 0))
	require.NoError(t, err)
	assert.Equal(t, `<enclosure url="https://cdn/v.mp4?a=1&amp;b=2" type="video/mp4" length="0"/>`, got)
}

func TestVideoItem(t *testing.T) {
	v := model.VideoRecord{
		ID:           "abc",
		Title:        "Ep 1",
		Description:  "desc",
		Link:         "https://www.youtube.com/watch?v=abc",
		ThumbnailURL: "https://i.ytimg.com/vi/abc/hqdefault.jpg",
		PublishedAt:  time.Date(2014, 12, 22, 18, 30, 0, 0, time.UTC),
		Duration:     6*time.Minute + 8*time.Second,
		ResolvedURL:  "https://x/abc.mp3",
		MimeType:     "audio/mpeg",
		SizeBytes:    1234,
	}

	item := VideoItem(v)
	assert.Equal(t, "abc", item.GUID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc", item.Link)
	assert.Equal(t, "Mon, 22 Dec 2014 18:30:00 +0000", item.PubDate)
	require.Len(t, item.ExtraTags, 3)
	assert.Equal(t, "enclosure", item.ExtraTags[0].Name)
	assert.Equal(t, "itunes:duration", item.ExtraTags[1].Name)
	assert.Equal(t, "itunes:image", item.ExtraTags[2].Name)

	// Unresolved videos carry no media enclosure
	v.ResolvedURL = ""
	item = VideoItem(v)
	for _, tag := range item.ExtraTags {
		assert.NotEqual(t, "enclosure", tag.Name)
	}
}

func TestVideoItem_UnknownMimeHasNoEnclosure(t *testing.T) {
	item := VideoItem(model.VideoRecord{ID: "x", ResolvedURL: "https://x/x.bin", MimeType: "application/octet-stream"})
	assert.Empty(t, item.ExtraTags)

	rendered, err := BuildItem(item, DefaultIndent)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(rendered, "<enclosure"))
}

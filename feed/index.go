// Package feed reads previously generated feeds back as a URL cache for ytrss.
package feed

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/spf13/afero"
	"golang.org/x/net/html"
)

// Enclosure is a media enclosure recovered from a previous feed.
type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

// Index maps video IDs (item guids) to their last known media enclosure.
// A nil or empty Index is valid and misses every lookup.
type Index struct {
	entries map[string]Enclosure
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Enclosure)}
}

// Lookup returns the cached enclosure for a video ID.
func (idx *Index) Lookup(id string) (Enclosure, bool) {
	if idx == nil || idx.entries == nil {
		return Enclosure{}, false
	}
	enc, ok := idx.entries[id]
	return enc, ok
}

// Len returns the number of cached entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

func (idx *Index) add(guid, link string, candidates []Enclosure) {
	guid = strings.TrimSpace(guid)
	if guid == "" {
		return
	}
	link = strings.TrimSpace(link)

	// Every item repeats its link as a bare enclosure; the media enclosure is
	// the last one that is typed or points somewhere else.
	var found *Enclosure
	for i := range candidates {
		c := candidates[i]
		c.URL = strings.TrimSpace(c.URL)
		if c.URL == "" {
			continue
		}
		if c.Type == "" && c.URL == link {
			continue
		}
		found = &c
	}
	if found == nil {
		return
	}
	if _, ok := idx.entries[guid]; !ok {
		idx.entries[guid] = *found
	}
}

// ParseIndex builds an index from a feed document. It never fails.
//
// The document is read by the strict feed parser first. A permissive HTML
// pass then fills in items the strict parser rejected or reported without a
// media enclosure, so truncated and hand-edited files still yield whatever
// complete items they contain. When a guid appears more than once the first
// item wins.
func ParseIndex(r io.Reader) *Index {
	idx := NewIndex()
	data, err := io.ReadAll(r)
	if err != nil && len(data) == 0 {
		return idx
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return idx
	}

	parseStrict(idx, data)
	parsePermissive(idx, data)
	return idx
}

// LoadIndex reads the feed at path. A missing or unreadable file is an empty
// index, not an error.
func LoadIndex(fs afero.Fs, path string) *Index {
	f, err := fs.Open(path)
	if err != nil {
		return NewIndex()
	}
	defer f.Close()
	return ParseIndex(f)
}

// LookupCachedURL looks up the cached URL for a video ID in a raw document.
func LookupCachedURL(doc, id string) (string, bool) {
	enc, ok := ParseIndex(strings.NewReader(doc)).Lookup(id)
	if !ok {
		return "", false
	}
	return enc.URL, true
}

func parseStrict(idx *Index, data []byte) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		var candidates []Enclosure
		for _, e := range item.Enclosures {
			if e == nil {
				continue
			}
			candidates = append(candidates, Enclosure{
				URL:    e.URL,
				Type:   e.Type,
				Length: parseLength(e.Length),
			})
		}
		idx.add(item.GUID, item.Link, candidates)
	}
}

func parsePermissive(idx *Index, data []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return
	}

	doc.Find("item").Each(func(_ int, item *goquery.Selection) {
		guid := text(item.Find("guid").First())

		var candidates []Enclosure
		item.Find("enclosure").Each(func(_ int, enc *goquery.Selection) {
			url, _ := enc.Attr("url")
			typ, _ := enc.Attr("type")
			length, _ := enc.Attr("length")
			candidates = append(candidates, Enclosure{URL: url, Type: typ, Length: parseLength(length)})
		})

		idx.add(guid, linkText(item.Find("link").First()), candidates)
	})
}

// linkText recovers the text of an RSS <link> element. HTML treats <link> as
// a void element, so its text ends up in the following sibling node.
func linkText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	if t := text(sel); t != "" {
		return t
	}
	if next := sel.Get(0).NextSibling; next != nil {
		var b strings.Builder
		collectText(&b, next)
		return b.String()
	}
	return ""
}

// text returns the text of sel including CDATA sections. Outside foreign
// content the HTML parser keeps CDATA as a comment reading "[CDATA[...]]".
func text(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(&b, n)
	}
	return b.String()
}

func collectText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		if data, ok := strings.CutPrefix(n.Data, "[CDATA["); ok {
			b.WriteString(strings.TrimSuffix(data, "]]"))
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

func parseLength(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

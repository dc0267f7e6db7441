// Package opml exports generated feeds as an OPML subscription list and
// reads subscription lists (such as a YouTube subscriptions export) back.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/robertmeta/ytrss/model"
	"github.com/samber/lo"
)

// DefaultTitle is the head title of exported documents.
const DefaultTitle = "ytrss feeds"

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements (feeds).
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a feed or category in OPML.
type Outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLUrl   string    `xml:"xmlUrl,attr,omitempty"`
	Category string    `xml:"category,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Parse reads an OPML document and extracts its subscriptions in document order.
func Parse(r io.Reader) ([]*model.Subscription, error) {
	var doc OPML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	return extract(doc.Body.Outlines, ""), nil
}

// extract recursively collects subscriptions. Outlines without a category
// inherit the text of the enclosing outline.
func extract(outlines []Outline, parentCategory string) []*model.Subscription {
	var subs []*model.Subscription

	for _, outline := range outlines {
		if outline.XMLUrl != "" {
			sub := &model.Subscription{
				URL:      outline.XMLUrl,
				Title:    outline.Title,
				Category: outline.Category,
			}
			if sub.Category == "" {
				sub.Category = parentCategory
			}
			if sub.Title == "" {
				sub.Title = outline.Text
			}
			subs = append(subs, sub)
		}

		if len(outline.Outlines) > 0 {
			category := outline.Text
			if category == "" {
				category = parentCategory
			}
			subs = append(subs, extract(outline.Outlines, category)...)
		}
	}

	return subs
}

// Generate writes an OPML document listing subs. Categorized subscriptions
// are grouped under one outline per category, in alphabetical order, before
// the uncategorized ones. Invalid subscriptions are skipped.
func Generate(w io.Writer, title string, subs []*model.Subscription) error {
	if title == "" {
		title = DefaultTitle
	}

	valid := lo.Filter(subs, func(s *model.Subscription, _ int) bool {
		return s != nil && s.Validate() == nil
	})
	groups := lo.GroupBy(valid, func(s *model.Subscription) string { return s.Category })

	categories := lo.Without(lo.Keys(groups), "")
	sort.Strings(categories)

	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       title,
			DateCreated: time.Now().UTC().Format(time.RFC1123),
		},
		Body: Body{
			Outlines: []Outline{},
		},
	}

	for _, category := range categories {
		group := Outline{
			Text:     category,
			Title:    category,
			Outlines: []Outline{},
		}
		for _, sub := range groups[category] {
			group.Outlines = append(group.Outlines, outline(sub))
		}
		doc.Body.Outlines = append(doc.Body.Outlines, group)
	}

	for _, sub := range groups[""] {
		doc.Body.Outlines = append(doc.Body.Outlines, outline(sub))
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}

func outline(s *model.Subscription) Outline {
	return Outline{
		Type:     "rss",
		Text:     s.Title,
		Title:    s.Title,
		XMLUrl:   s.URL,
		Category: s.Category,
	}
}

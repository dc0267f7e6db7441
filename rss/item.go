package rss

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robertmeta/ytrss/model"
)

// DefaultIndent is the indentation unit of generated documents.
const DefaultIndent = "   "

// Item holds the fields of one RSS item.
// Link, GUID, PubDate and ExtraTags are rendered verbatim and must be pre-escaped;
// Title and Description are escaped by BuildItem.
type Item struct {
	Link        string
	Title       string
	GUID        string
	Description string
	// PubDate must be RFC-822; it is not validated. Empty omits the element.
	PubDate   string
	ExtraTags []*model.ExtraTag
}

// BuildItem renders a single <item> block. The wrapping lines are indented
// by two units of indent and the fields by three. A missing GUID falls back
// to Link. Every item carries an enclosure pointing at Link, followed by any
// caller-supplied extra tags in order.
func BuildItem(item Item, indent string) (string, error) {
	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}

	outer := strings.Repeat(indent, 2)
	inner := strings.Repeat(indent, 3)

	var b strings.Builder
	b.WriteString(outer + "<item>\n")
	fmt.Fprintf(&b, "%s<guid isPermaLink=\"false\">%s</guid>\n", inner, guid)
	fmt.Fprintf(&b, "%s<link>%s</link>\n", inner, item.Link)
	fmt.Fprintf(&b, "%s<enclosure url=\"%s\"/>\n", inner, item.Link)
	fmt.Fprintf(&b, "%s<title>%s</title>\n", inner, Escape(item.Title))
	fmt.Fprintf(&b, "%s<description>%s</description>\n", inner, Escape(item.Description))
	if item.PubDate != "" {
		fmt.Fprintf(&b, "%s<pubDate>%s</pubDate>\n", inner, item.PubDate)
	}

	for _, tag := range item.ExtraTags {
		if tag == nil {
			continue
		}
		rendered, err := RenderTag(tag)
		if err != nil {
			return "", err
		}
		b.WriteString(inner + rendered + "\n")
	}

	b.WriteString(outer + "</item>")
	return b.String(), nil
}

// RenderTag renders <name params/> when the tag has no value and
// <name params>value</name> otherwise. Nothing is escaped.
func RenderTag(tag *model.ExtraTag) (string, error) {
	if err := tag.Validate(); err != nil {
		return "", err
	}

	params := strings.Join(tag.Params, " ")
	if params != "" {
		params = " " + params
	}

	if tag.Value == nil {
		return "<" + tag.Name + params + "/>", nil
	}
	return "<" + tag.Name + params + ">" + *tag.Value + "</" + tag.Name + ">", nil
}

// EnclosureTag builds the enclosure tag for a media URL. Size 0 stands for unknown.
func EnclosureTag(url, mimeType string, size int64) *model.ExtraTag {
	return model.NewEmptyTag("enclosure",
		model.Attr("url", Escape(url)),
		model.Attr("type", Escape(mimeType)),
		model.Attr("length", strconv.FormatInt(size, 10)),
	)
}

// VideoItem maps a video record to an item. The media enclosure is present
// only when the record is resolved to an audio, video or image type.
func VideoItem(v model.VideoRecord) Item {
	item := Item{
		Link:        Escape(v.ItemLink()),
		GUID:        Escape(v.ID),
		Title:       v.Title,
		Description: v.Description,
		PubDate:     v.PubDate(),
	}

	if v.HasEnclosure() {
		item.ExtraTags = append(item.ExtraTags, EnclosureTag(v.ResolvedURL, v.MimeType, v.SizeBytes))
	}
	if v.Duration > 0 {
		item.ExtraTags = append(item.ExtraTags, model.NewTag("itunes:duration", model.FormatDuration(v.Duration)))
	}
	if v.ThumbnailURL != "" {
		item.ExtraTags = append(item.ExtraTags, model.NewEmptyTag("itunes:image", model.Attr("href", Escape(v.ThumbnailURL))))
	}

	return item
}

// Package rss renders podcast-style RSS 2.0 documents for ytrss.
package rss

import (
	"bytes"
	"fmt"
	"io"

	"github.com/robertmeta/ytrss/model"
	"github.com/spf13/afero"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<rss xmlns:dc="http://purl.org/dc/elements/1.1/"` +
	` xmlns:content="http://purl.org/rss/1.0/modules/content/"` +
	` xmlns:atom="http://www.w3.org/2005/Atom" version="2.0"` +
	` xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"` +
	` xmlns:anchor="https://anchor.fm/xmlns">` + "\n"

// Render builds the complete document in memory: the channel envelope
// followed by one item per video, in input order.
func Render(ch model.ChannelInfo, videos []model.VideoRecord, indent string) ([]byte, error) {
	var buf bytes.Buffer
	i1, i2, i3 := indent, indent+indent, indent+indent+indent

	line := func(prefix, format string, args ...interface{}) {
		buf.WriteString(prefix)
		buf.WriteString(Clean(fmt.Sprintf(format, args...)))
		buf.WriteString("\n")
	}

	link := Escape(ch.CanonicalLink)
	image := Escape(ch.ImageURL)
	title := Escape(ch.Title)

	buf.WriteString(header)
	line(i1, "<channel>")
	line(i2, `<atom:link href="%s" rel="self" type="application/rss+xml" />`, Escape(ch.FeedLink()))
	line(i2, "<title>%s</title>", title)
	line(i2, "<description>%s</description>", Escape(ch.Description))
	line(i2, "<itunes:author>%s</itunes:author>", Escape(ch.Author))
	line(i2, "<link>%s</link>", link)
	line(i2, "<image>")
	line(i3, "<url>%s</url>", image)
	line(i3, "<title>%s</title>", title)
	line(i3, "<link>%s</link>", link)
	line(i2, "</image>")
	line(i2, `<itunes:image href="%s"/>`, image)

	for _, v := range videos {
		item, err := BuildItem(VideoItem(v), indent)
		if err != nil {
			return nil, fmt.Errorf("failed to build item %s: %w", v.ID, err)
		}
		buf.WriteString(Clean(item))
		buf.WriteString("\n")
	}

	line(i1, "</channel>")
	buf.WriteString("</rss>\n")

	return buf.Bytes(), nil
}

// Write renders the document and writes it to w.
func Write(w io.Writer, ch model.ChannelInfo, videos []model.VideoRecord, indent string) error {
	data, err := Render(ch, videos, indent)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}
	return nil
}

// Generate renders the document and atomically replaces dest with it.
// The parent directory must exist. On error dest is left untouched.
func Generate(fs afero.Fs, dest string, ch model.ChannelInfo, videos []model.VideoRecord, indent string) error {
	data, err := Render(ch, videos, indent)
	if err != nil {
		return err
	}
	return WriteFileAtomic(fs, dest, data)
}

package rss

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		input  string
		expect string
	}{
		{"plain", "plain"},
		{"a & b", "a &amp; b"},
		{"<b>bold</b>", "&lt;b&gt;bold&lt;/b&gt;"},
		{`say "hi"`, "say &quot;hi&quot;"},
		{"it's", "it&#39;s"},
		{"&amp;", "&amp;amp;"},
		{"zażółć", "zażółć"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expect, Escape(tt.input))
		})
	}
}

func TestEscape_RoundTripsThroughXMLParser(t *testing.T) {
	inputs := []string{
		`Tom & Jerry <"live"> at 'Joe's'`,
		"<<>>&&''\"\"",
		"&lt; already looks escaped",
		"multi\nline\ttext",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			escaped := Escape(input)
			for _, raw := range []string{"<", ">", `"`, "'"} {
				assert.NotContains(t, escaped, raw)
			}

			// As character data
			var text struct {
				Value string `xml:",chardata"`
			}
			require.NoError(t, xml.Unmarshal([]byte("<t>"+escaped+"</t>"), &text))
			assert.Equal(t, input, text.Value)

			if strings.ContainsAny(input, "\n\t") {
				return
			}

			// As an attribute value
			var attr struct {
				Value string `xml:"v,attr"`
			}
			require.NoError(t, xml.Unmarshal([]byte(`<t v="`+escaped+`"/>`), &attr))
			assert.Equal(t, input, attr.Value)
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"valid text untouched", "Épisode 1 – 日本語 🎙", "Épisode 1 – 日本語 🎙"},
		{"whitespace kept", "a\tb\nc\rd", "a\tb\nc\rd"},
		{"ill-formed utf8", "bad\xffbyte", "bad\uFFFDbyte"},
		{"control characters", "bell\x07null\x00", "bell\uFFFDnull\uFFFD"},
		{"noncharacter", "x\uFFFEy", "x\uFFFDy"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, Clean(tt.input))
		})
	}
}

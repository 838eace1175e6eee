package adapter_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m-mizutani/gt"

	"github.com/hirosat/ermine/pkg/adapter"
)

func TestDeduplicateAndFormatSources(t *testing.T) {
	responses := []*adapter.SearchResponse{
		{
			Query: "go testing",
			Results: []adapter.SearchResult{
				{Title: "First", URL: "https://example.com/a", Content: "alpha"},
				{Title: "Second", URL: "https://example.com/b", Content: "beta"},
			},
		},
		nil,
		{
			Query: "go testing libraries",
			Results: []adapter.SearchResult{
				{Title: "First again", URL: "https://example.com/a", Content: "alpha"},
			},
		},
	}

	out := adapter.DeduplicateAndFormatSources(responses, 100, false)
	gt.S(t, out).Contains("Source First:")
	gt.S(t, out).Contains("Source Second:")
	gt.S(t, out).NotContains("First again")
}

func TestDeduplicateAndFormatSourcesTruncatesOnRuneBoundary(t *testing.T) {
	responses := []*adapter.SearchResponse{
		{
			Results: []adapter.SearchResult{
				{
					Title:      "日本語記事",
					URL:        "https://example.com/ja",
					Content:    "短い要約",
					RawContent: strings.Repeat("あ", 100),
				},
			},
		},
	}

	// A cap of 2 tokens allows 8 bytes, which lands mid-rune in a
	// 3-byte-per-character payload.
	out := adapter.DeduplicateAndFormatSources(responses, 2, true)
	gt.True(t, utf8.ValidString(out))
	gt.S(t, out).Contains("ああ... [truncated]")
	gt.S(t, out).NotContains("あああ... [truncated]")
}

func TestFormatSources(t *testing.T) {
	responses := []*adapter.SearchResponse{
		{
			Results: []adapter.SearchResult{
				{Title: "First", URL: "https://example.com/a"},
				{Title: "Dup", URL: "https://example.com/a"},
				{Title: "Second", URL: "https://example.com/b"},
			},
		},
	}

	out := adapter.FormatSources(responses)
	gt.A(t, strings.Split(out, "\n")).Length(2)
	gt.S(t, out).Contains("* First : https://example.com/a")
	gt.S(t, out).Contains("* Second : https://example.com/b")
}

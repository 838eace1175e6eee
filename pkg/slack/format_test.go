package slack_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	slackgo "github.com/slack-go/slack"

	"github.com/hirosat/ermine/pkg/slack"
)

func TestToMrkdwn(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "heading",
			input:  "## Overview\nbody",
			expect: "*Overview*\nbody",
		},
		{
			name:   "bullet",
			input:  "- first\n- second",
			expect: "• first\n\n• second",
		},
		{
			name:   "bold",
			input:  "this is **important** text",
			expect: "this is *important* text",
		},
		{
			name:   "code fence language",
			input:  "```go\nfmt.Println(1)\n```",
			expect: "```\nfmt.Println(1)\n```",
		},
		{
			name:   "collapse blank lines",
			input:  "a\n\n\n\nb",
			expect: "a\n\nb",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, slack.ToMrkdwn(tc.input)).Equal(tc.expect)
		})
	}
}

func TestSplitMessageShort(t *testing.T) {
	chunks := slack.SplitMessage("short message", 100)
	gt.A(t, chunks).Length(1)
	gt.V(t, chunks[0]).Equal("short message")
}

func TestSplitMessagePrefersParagraphs(t *testing.T) {
	first := strings.Repeat("a", 60)
	second := strings.Repeat("b", 60)
	chunks := slack.SplitMessage(first+"\n\n"+second, 100)

	gt.A(t, chunks).Length(2)
	gt.V(t, chunks[0]).Equal(first)
	gt.V(t, chunks[1]).Equal(second)
}

func TestSplitMessageHardCut(t *testing.T) {
	message := strings.Repeat("x", 250)
	chunks := slack.SplitMessage(message, 100)

	gt.A(t, chunks).Length(3)
	gt.V(t, len(chunks[0])).Equal(100)
	gt.V(t, len(chunks[2])).Equal(50)
}

func TestExtractTextFromBlocks(t *testing.T) {
	blocks := slackgo.Blocks{BlockSet: []slackgo.Block{
		slackgo.NewRichTextBlock("b1",
			slackgo.NewRichTextSection(
				slackgo.NewRichTextSectionTextElement("world", nil),
				slackgo.NewRichTextSectionTextElement("hello", nil),
				slackgo.NewRichTextSectionTextElement("world", nil),
			),
		),
		slackgo.NewDividerBlock(),
	}}

	gt.V(t, slack.ExtractTextFromBlocks(blocks)).Equal("hello world")
}

func TestExtractTextFromBlocksEmpty(t *testing.T) {
	gt.V(t, slack.ExtractTextFromBlocks(slackgo.Blocks{})).Equal("")
}

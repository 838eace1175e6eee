package slack

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	slackgo "github.com/slack-go/slack"
)

// messageCharLimit keeps rendered messages well under Slack's hard limit so
// mention prefixes and progress indicators still fit.
const messageCharLimit = 1500

var (
	headingRe   = regexp.MustCompile(`#+ (.+?)(?:\n|$)`)
	bulletRe    = regexp.MustCompile(`(?m)^\s*[-*]\s`)
	boldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	fenceLangRe = regexp.MustCompile("```" + `(\w+)` + "\n")
	newlinesRe  = regexp.MustCompile(`\n{3,}`)
	bulletGapRe = regexp.MustCompile(`([^\n])\n•`)
)

// ToMrkdwn converts Markdown text into Slack's mrkdwn dialect.
func ToMrkdwn(text string) string {
	text = headingRe.ReplaceAllString(text, "*$1*\n")
	text = bulletRe.ReplaceAllString(text, "• ")
	text = boldRe.ReplaceAllString(text, "*$1*")
	text = fenceLangRe.ReplaceAllString(text, "```\n")
	text = newlinesRe.ReplaceAllString(text, "\n\n")
	text = bulletGapRe.ReplaceAllString(text, "$1\n\n•")
	return text
}

// ExtractTextFromBlocks collects the plain text fragments of a rich_text
// message. Slack omits the text field on messages composed in the client UI.
func ExtractTextFromBlocks(blocks slackgo.Blocks) string {
	seen := map[string]bool{}
	for _, block := range blocks.BlockSet {
		rich, ok := block.(*slackgo.RichTextBlock)
		if !ok {
			continue
		}
		for _, elem := range rich.Elements {
			section, ok := elem.(*slackgo.RichTextSection)
			if !ok {
				continue
			}
			for _, inner := range section.Elements {
				if textElem, ok := inner.(*slackgo.RichTextSectionTextElement); ok && textElem.Text != "" {
					seen[textElem.Text] = true
				}
			}
		}
	}

	texts := make([]string, 0, len(seen))
	for text := range seen {
		texts = append(texts, text)
	}
	sort.Strings(texts)
	return strings.Join(texts, " ")
}

// SplitMessage cuts a long message into chunks within the character limit,
// preferring paragraph boundaries, then line breaks, then spaces.
func SplitMessage(message string, limit int) []string {
	if utf8.RuneCountInString(message) <= limit {
		return []string{message}
	}

	var chunks []string
	rest := message
	for rest != "" {
		if utf8.RuneCountInString(rest) <= limit {
			chunks = append(chunks, rest)
			break
		}

		window := string([]rune(rest)[:limit])
		split := strings.LastIndex(window, "\n\n")
		if split == -1 {
			split = strings.LastIndex(window, "\n")
		}
		if split == -1 || split < len(window)/2 {
			split = strings.LastIndex(window, " ")
		}
		if split <= 0 {
			split = len(window)
		}

		chunks = append(chunks, rest[:split])
		rest = strings.TrimLeft(rest[split:], " \t\n")
	}

	return chunks
}

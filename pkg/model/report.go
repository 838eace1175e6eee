package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ReportID string

// NewReportID generates a new unique ReportID
func NewReportID() ReportID {
	return ReportID(uuid.New().String())
}

// SearchQuery is a single query for web search, as requested from the LLM.
type SearchQuery struct {
	SearchQuery string `json:"search_query"`
}

// Grade is the pass/fail verdict of the section grader.
type Grade string

const (
	GradePass Grade = "pass"
	GradeFail Grade = "fail"
)

// Feedback is the grader's verdict on a drafted section. When the grade
// is fail, FollowUpQueries drives the next search iteration.
type Feedback struct {
	Grade           Grade         `json:"grade"`
	FollowUpQueries []SearchQuery `json:"follow_up_queries"`
}

// Quote is a notable quote attributed to a source.
type Quote struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
}

// Reference is a citation with optional metadata such as author and
// published date.
type Reference struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Section is one section of a report. Research marks whether the section
// needs web research before it can be written.
type Section struct {
	Headline    string      `json:"headline"`
	Description string      `json:"description"`
	Research    bool        `json:"research"`
	Content     string      `json:"content"`
	Quotes      []Quote     `json:"quotes,omitempty"`
	References  []Reference `json:"references,omitempty"`
}

// Article is scraped web content used as agent input.
type Article struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Markdown string            `json:"markdown"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ReportInput is the echo of the analyzed source carried into the final
// report. The scraped markdown is intentionally excluded.
type ReportInput struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Report is the final structured output of the URL research agent.
type Report struct {
	ID               ReportID    `json:"id"`
	Input            ReportInput `json:"input"`
	Title            string      `json:"title"`
	ImageURL         string      `json:"image_url"`
	Micro            string      `json:"micro"`
	Digest           []string    `json:"digest"`
	Tags             []string    `json:"tags"`
	Importance       float64     `json:"importance"`
	Sections         []Section   `json:"sections"`
	ReadState        string      `json:"readState"`
	EstimatedMinutes int         `json:"estimatedMinutes"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// FormatSections renders sections as a plain-text context block for
// prompts that write the remaining sections of a report.
func FormatSections(sections []Section) string {
	var sb strings.Builder
	for idx, section := range sections {
		content := section.Content
		if content == "" {
			content = "[Not yet written]"
		}
		fmt.Fprintf(&sb, "\n%s\nSection %d: %s\n%s\nDescription:\n%s\nRequires Research:\n%v\n\nContent:\n%s\n\n",
			strings.Repeat("=", 60), idx+1, section.Headline,
			strings.Repeat("=", 60), section.Description, section.Research, content)
	}
	return sb.String()
}

package urlresearch

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/utils/logging"
)

const (
	maxTitleRunes  = 40
	maxDigestRunes = 50
	minTags        = 5
	maxTags        = 10

	// Average reading speed in characters per minute.
	readingSpeed = 200
)

const digestFiller = "詳細はレポート本文をご覧ください。"

// compileReport assembles the final report from the written sections,
// generating the title, micro summary, digest, and tags with the LLM.
// Metadata generation failures degrade to empty values rather than
// failing the whole run.
func (a *Agent) compileReport(ctx context.Context, article *model.Article, sections []model.Section) *model.Report {
	logger := logging.From(ctx)

	contents := make([]string, 0, len(sections))
	for _, s := range sections {
		contents = append(contents, s.Content)
	}
	fullContent := strings.Join(contents, "\n\n")

	title := a.generateTitle(ctx, article, sections, fullContent)

	micro, err := a.generate(ctx, microTmpl, map[string]any{"Content": fullContent})
	if err != nil {
		logger.Warn("failed to generate micro summary", slog.Any("error", err))
	}
	micro = adjustMicro(micro)

	digestText, err := a.generate(ctx, digestTmpl, map[string]any{"Content": fullContent})
	if err != nil {
		logger.Warn("failed to generate digest", slog.Any("error", err))
	}
	digest := parseDigest(digestText)

	tagsText, err := a.generate(ctx, tagsTmpl, map[string]any{"Title": title, "Content": fullContent})
	if err != nil {
		logger.Warn("failed to generate tags", slog.Any("error", err))
	}
	tags := parseTags(tagsText, sections)

	charCount := len([]rune(fullContent))
	estimatedMinutes := int(math.Ceil(float64(charCount) / readingSpeed))
	if estimatedMinutes < 1 {
		estimatedMinutes = 1
	}

	return &model.Report{
		ID: model.NewReportID(),
		Input: model.ReportInput{
			URL:      article.URL,
			Title:    article.Title,
			Metadata: article.Metadata,
		},
		Title:            title,
		Micro:            micro,
		Digest:           digest,
		Tags:             tags,
		Importance:       math.Round((0.70+rand.Float64()*0.25)*100) / 100,
		Sections:         sections,
		ReadState:        "unread",
		EstimatedMinutes: estimatedMinutes,
		CreatedAt:        time.Now().UTC(),
	}
}

func (a *Agent) generateTitle(ctx context.Context, article *model.Article, sections []model.Section, fullContent string) string {
	baseTitle := ""
	if len(sections) > 0 && sections[0].Headline != "" {
		baseTitle = sections[0].Headline
	} else if article.Title != "" {
		baseTitle = article.Title
	} else if first, _, _ := strings.Cut(article.Markdown, "\n"); strings.TrimSpace(first) != "" {
		baseTitle = strings.TrimSpace(first)
	} else {
		baseTitle = "URLコンテンツの分析"
	}

	title, err := a.generate(ctx, titleTmpl, map[string]any{
		"BaseTitle": baseTitle,
		"Content":   fullContent,
	})
	if err != nil {
		logging.From(ctx).Warn("failed to generate title", slog.Any("error", err))
		title = baseTitle
	}

	return truncateRunes(title, maxTitleRunes)
}

func (a *Agent) generate(ctx context.Context, tmpl *template.Template, data map[string]any) (string, error) {
	prompt, err := renderPrompt(tmpl, data)
	if err != nil {
		return "", err
	}
	text, err := adapter.GenerateText(ctx, a.gemini, "", prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// adjustMicro pads or truncates the micro summary into the 60-80
// character window.
func adjustMicro(micro string) string {
	runes := []rune(micro)
	if len(runes) < 60 {
		padded := micro + "..."
		if pad := 60 - len(runes) - 3; pad > 0 {
			padded += strings.Repeat(" ", pad)
		}
		return padded
	}
	if len(runes) > 80 {
		return string(runes[:77]) + "..."
	}
	return micro
}

// parseDigest extracts exactly 3 digest lines from the LLM output,
// stripping list numbering and capping each line at 50 characters.
func parseDigest(text string) []string {
	var digest []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "返却形式:") {
			continue
		}
		clean := strings.TrimLeft(line, "0123456789.) ")
		if clean != "" {
			digest = append(digest, clean)
		}
	}

	for len(digest) < 3 {
		digest = append(digest, digestFiller)
	}
	digest = digest[:3]

	for i, line := range digest {
		digest[i] = truncateRunes(line, maxDigestRunes)
	}
	return digest
}

// parseTags splits the comma-separated tag output and backfills from
// section headlines when the LLM produced too few.
func parseTags(text string, sections []model.Section) []string {
	var tags []string
	for _, tag := range strings.Split(text, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" && len(tags) < maxTags {
			tags = append(tags, tag)
		}
	}

	if len(tags) < minTags {
		for _, section := range sections {
			if len(tags) >= maxTags {
				break
			}
			if section.Headline != "" && !slices.Contains(tags, section.Headline) {
				tags = append(tags, section.Headline)
			}
		}
	}
	return tags
}

// truncateRunes caps s at max runes, marking the cut with an ellipsis.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

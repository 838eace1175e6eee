package research

import (
	"context"
	"log/slog"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/hirosat/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
	"google.golang.org/genai"
)

const (
	keySection    = "section"
	keyQueries    = "search_queries"
	keySourceStr  = "source_str"
	keyIterations = "search_iterations"

	actionRefine flyt.Action = "refine"
	actionDone   flyt.Action = "done"
)

// SectionResearcher runs the query-search-write-grade loop for one report
// section. The loop ends when the grader passes the draft or the number of
// search iterations reaches MaxSearchDepth.
type SectionResearcher struct {
	gemini adapter.Gemini
	search adapter.Search

	// Topic frames every prompt, e.g. a research subject or
	// "Content from URL: https://...".
	Topic string

	// Context is prepended to search results as source material, such as
	// scraped page content.
	Context string

	// JSONOutput writes the section as a structured JSON object with
	// quotes and references instead of plain Markdown.
	JSONOutput bool

	NumberOfQueries    int
	MaxSearchDepth     int
	MaxTokensPerSource int
}

func NewSectionResearcher(gemini adapter.Gemini, search adapter.Search, topic string) *SectionResearcher {
	return &SectionResearcher{
		gemini:             gemini,
		search:             search,
		Topic:              topic,
		NumberOfQueries:    2,
		MaxSearchDepth:     2,
		MaxTokensPerSource: 5000,
	}
}

// Run researches and writes the section in place.
func (r *SectionResearcher) Run(ctx context.Context, section *model.Section) error {
	shared := flyt.NewSharedStore()
	shared.Set(keySection, section)
	shared.Set(keyIterations, 0)

	generate := r.newGenerateQueriesNode()
	search := r.newSearchWebNode()
	write := r.newWriteSectionNode()

	flow := flyt.NewFlow(generate)
	flow.Connect(generate, flyt.DefaultAction, search)
	flow.Connect(search, flyt.DefaultAction, write)
	flow.Connect(write, actionRefine, search)

	if err := flow.Run(ctx, shared); err != nil {
		return goerr.Wrap(err, "section research failed", goerr.V("headline", section.Headline))
	}

	return nil
}

func (r *SectionResearcher) newGenerateQueriesNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keySection)
			return v.(*model.Section), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			section := prepResult.(*model.Section)

			system, err := renderPrompt(sectionQueriesTmpl, map[string]any{
				"Topic":           r.Topic,
				"SectionTopic":    section.Description,
				"NumberOfQueries": r.NumberOfQueries,
			})
			if err != nil {
				return nil, err
			}

			text, err := adapter.GenerateJSON(ctx, r.gemini, system,
				"Generate search queries on the provided topic.", queriesSchema)
			if err != nil {
				return nil, err
			}

			return parseQueries(ctx, text, r.Topic), nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyQueries, execResult.([]model.SearchQuery))
			return flyt.DefaultAction, nil
		}),
	)
}

func (r *SectionResearcher) newSearchWebNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyQueries)
			return v.([]model.SearchQuery), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			queries := prepResult.([]model.SearchQuery)

			list := make([]string, 0, len(queries))
			for _, q := range queries {
				if q.SearchQuery != "" {
					list = append(list, q.SearchQuery)
				}
			}

			responses, err := r.search.SearchAll(ctx, list)
			if err != nil {
				// A failed search should not kill the whole report.
				logging.From(ctx).Warn("web search failed", slog.Any("error", err))
				return "No sources found.", nil
			}

			return adapter.DeduplicateAndFormatSources(responses, r.MaxTokensPerSource, true), nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keySourceStr, execResult.(string))

			n := 0
			if v, ok := shared.Get(keyIterations); ok {
				n = v.(int)
			}
			shared.Set(keyIterations, n+1)

			return flyt.DefaultAction, nil
		}),
	)
}

func (r *SectionResearcher) newWriteSectionNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			section, _ := shared.Get(keySection)
			sourceStr, _ := shared.Get(keySourceStr)
			iterations, _ := shared.Get(keyIterations)

			return map[string]any{
				"section":    section,
				"source_str": sourceStr,
				"iterations": iterations,
			}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			data := prepResult.(map[string]any)
			section := data["section"].(*model.Section)
			sourceStr := data["source_str"].(string)

			if err := r.writeSection(ctx, section, sourceStr); err != nil {
				return nil, err
			}

			feedback := r.gradeSection(ctx, section)
			return feedback, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			data := prepResult.(map[string]any)
			iterations := data["iterations"].(int)
			feedback := execResult.(*model.Feedback)

			if feedback.Grade == model.GradePass || iterations >= r.MaxSearchDepth {
				return actionDone, nil
			}

			shared.Set(keyQueries, feedback.FollowUpQueries)
			return actionRefine, nil
		}),
	)
}

// writeSection drafts or revises the section content from the gathered
// sources, synthesizing any existing content.
func (r *SectionResearcher) writeSection(ctx context.Context, section *model.Section, sourceStr string) error {
	sourceContext := sourceStr
	if r.Context != "" {
		sourceContext = "URL Content:\n" + r.Context + "\n\nAdditional Research:\n" + sourceStr
	}

	system, err := renderPrompt(sectionWriterTmpl, map[string]any{
		"Topic":          r.Topic,
		"SectionTopic":   section.Description,
		"SectionContent": section.Content,
		"Context":        sourceContext,
	})
	if err != nil {
		return err
	}

	if !r.JSONOutput {
		text, err := adapter.GenerateText(ctx, r.gemini, system,
			"Generate a report section based on the provided sources.")
		if err != nil {
			return err
		}
		section.Content = text
		return nil
	}

	system += "\n\n" + sectionWriterJSONRaw

	text, err := adapter.GenerateJSON(ctx, r.gemini, system,
		"提供されたソースに基づいて、日本語でレポートセクションを生成してください。", sectionJSONSchema)
	if err != nil {
		return err
	}

	var out struct {
		Headline   string            `json:"headline"`
		Content    string            `json:"content"`
		Quotes     []model.Quote     `json:"quotes"`
		References []model.Reference `json:"references"`
	}
	if !jsonx.Unmarshal(text, &out) {
		// Keep the raw text rather than losing the draft.
		logging.From(ctx).Warn("section output was not valid JSON, keeping raw text",
			slog.String("headline", section.Headline))
		section.Content = text
		return nil
	}

	section.Content = out.Content
	section.Quotes = out.Quotes
	section.References = out.References
	return nil
}

// gradeSection asks the grader for a verdict. Any failure degrades to a
// fail grade with a default follow-up query so the loop can still make
// progress or hit the depth cap.
func (r *SectionResearcher) gradeSection(ctx context.Context, section *model.Section) *model.Feedback {
	logger := logging.From(ctx)

	system, err := renderPrompt(sectionGraderTmpl, map[string]any{
		"Topic":        r.Topic,
		"SectionTopic": section.Description,
		"Section":      section.Content,
	})
	if err != nil {
		logger.Warn("failed to render grader prompt", slog.Any("error", err))
		return failFeedback(r.Topic)
	}

	text, err := adapter.GenerateJSON(ctx, r.gemini, system,
		"Grade the report and consider follow-up questions for missing information:", feedbackSchema)
	if err != nil {
		logger.Warn("section grading failed", slog.Any("error", err))
		return failFeedback(r.Topic)
	}

	var feedback model.Feedback
	if !jsonx.Unmarshal(text, &feedback) {
		logger.Warn("grader output was not valid JSON")
		return failFeedback(r.Topic)
	}

	if feedback.Grade != model.GradePass && len(feedback.FollowUpQueries) == 0 {
		feedback.FollowUpQueries = []model.SearchQuery{
			{SearchQuery: "More details about " + section.Description},
		}
	}

	return &feedback
}

func failFeedback(topic string) *model.Feedback {
	return &model.Feedback{
		Grade: model.GradeFail,
		FollowUpQueries: []model.SearchQuery{
			{SearchQuery: "Tell me more about " + topic},
		},
	}
}

// parseQueries decodes the structured query list, falling back to the topic
// itself when the output cannot be parsed.
func parseQueries(ctx context.Context, text, topic string) []model.SearchQuery {
	var out struct {
		Queries []model.SearchQuery `json:"queries"`
	}
	if jsonx.Unmarshal(text, &out) && len(out.Queries) > 0 {
		return out.Queries
	}

	logging.From(ctx).Warn("query output was not valid JSON, using the topic as the query")
	return []model.SearchQuery{{SearchQuery: topic}}
}

// sectionJSONSchema is the structured output schema for JSON sections.
var sectionJSONSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"headline": {
			Type:        genai.TypeString,
			Description: "セクションのタイトル（日本語で40字以内、装飾なし）",
		},
		"content": {
			Type:        genai.TypeString,
			Description: "本文（日本語で300〜400文字以内、最初の文で重要な洞察を述べる）",
		},
		"quotes": {
			Type:        genai.TypeArray,
			Description: "関連する重要な引用（正確に3件）",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"text":   {Type: genai.TypeString, Description: "引用文（80字以内）"},
					"source": {Type: genai.TypeString, Description: "出典"},
					"url":    {Type: genai.TypeString, Description: "参照元のURL"},
				},
				Required: []string{"text", "source", "url"},
			},
		},
		"references": {
			Type:        genai.TypeArray,
			Description: "参照情報源（1〜3件）",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title": {Type: genai.TypeString, Description: "参照タイトル（80字以内）"},
					"url":   {Type: genai.TypeString, Description: "参照元のURL"},
					"metadata": {
						Type:        genai.TypeObject,
						Description: "author/publishedDateが判明している場合のみ",
						Properties: map[string]*genai.Schema{
							"author":        {Type: genai.TypeString},
							"publishedDate": {Type: genai.TypeString},
						},
					},
				},
				Required: []string{"title", "url"},
			},
		},
	},
	Required: []string{"headline", "content", "quotes", "references"},
}

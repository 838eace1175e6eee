package urlresearch

import (
	"context"
	"log/slog"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/agent/research"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/hirosat/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
)

const (
	keyArticle  = "article"
	keySections = "sections"
	keyFeedback = "feedback"
	keyReport   = "report"

	actionRevise flyt.Action = "revise"

	// Caps on how much scraped markdown goes into each prompt.
	planQueryContextRunes    = 5000
	finalSectionContextRunes = 3000
)

// Agent researches the content behind a URL and produces a structured
// report. It scrapes the page, plans report sections from the page
// content plus web research, runs the section research loop for each
// planned section, and compiles the JSON report.
type Agent struct {
	gemini  adapter.Gemini
	search  adapter.Search
	scraper adapter.Scraper

	// PlanReviewer, when set, reviews the section plan before research
	// starts. Returning approved=false with feedback regenerates the plan.
	PlanReviewer research.PlanReviewer

	ReportOrganization string
	NumberOfQueries    int
	MaxSearchDepth     int
}

func New(gemini adapter.Gemini, search adapter.Search, scraper adapter.Scraper) *Agent {
	return &Agent{
		gemini:             gemini,
		search:             search,
		scraper:            scraper,
		ReportOrganization: research.DefaultReportOrganization + "\n\n重要: レポートは日本語で生成してください。",
		NumberOfQueries:    2,
		MaxSearchDepth:     2,
	}
}

// Run researches the URL and returns the compiled report.
func (a *Agent) Run(ctx context.Context, url string) (*model.Report, error) {
	shared := flyt.NewSharedStore()
	shared.Set(keyFeedback, "")

	fetch := a.newFetchNode(url)
	plan := a.newPlanNode(url)
	review := a.newReviewNode(url)
	researchNode := a.newResearchSectionsNode(url)
	compile := a.newCompileNode(url)

	flow := flyt.NewFlow(fetch)
	flow.Connect(fetch, flyt.DefaultAction, plan)
	flow.Connect(plan, flyt.DefaultAction, review)
	flow.Connect(review, actionRevise, plan)
	flow.Connect(review, flyt.DefaultAction, researchNode)
	flow.Connect(researchNode, flyt.DefaultAction, compile)

	if err := flow.Run(ctx, shared); err != nil {
		return nil, goerr.Wrap(err, "url research failed", goerr.V("url", url))
	}

	v, ok := shared.Get(keyReport)
	if !ok {
		return nil, goerr.New("url research produced no report", goerr.V("url", url))
	}
	return v.(*model.Report), nil
}

func (a *Agent) newFetchNode(url string) flyt.Node {
	return flyt.NewNode(
		flyt.WithExecFunc(func(ctx context.Context, _ any) (any, error) {
			article, err := a.scraper.Scrape(ctx, url)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to fetch url content", goerr.V("url", url))
			}
			return article, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyArticle, execResult.(*model.Article))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) newPlanNode(url string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			article, _ := shared.Get(keyArticle)
			feedback, _ := shared.Get(keyFeedback)
			return []any{article, feedback}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			pair := prepResult.([]any)
			article := pair[0].(*model.Article)
			feedback := pair[1].(string)

			planner := research.New(a.gemini, a.search)
			planner.ReportOrganization = a.ReportOrganization
			planner.NumberOfQueries = a.NumberOfQueries

			return planner.PlanSections(ctx,
				"Content from URL: "+url,
				truncateContext(article.Markdown, planQueryContextRunes),
				feedback)
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keySections, execResult.([]model.Section))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) newReviewNode(url string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keySections)
			return v.([]model.Section), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			if a.PlanReviewer == nil {
				return "", nil
			}

			sections := prepResult.([]model.Section)
			approved, feedback, err := a.PlanReviewer(sections)
			if err != nil {
				return nil, goerr.Wrap(err, "plan review failed", goerr.V("url", url))
			}
			if approved {
				return "", nil
			}
			return feedback, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			feedback := execResult.(string)
			if feedback == "" {
				return flyt.DefaultAction, nil
			}
			shared.Set(keyFeedback, feedback)
			return actionRevise, nil
		}),
	)
}

func (a *Agent) newResearchSectionsNode(url string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			sections, _ := shared.Get(keySections)
			article, _ := shared.Get(keyArticle)
			return []any{sections, article}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			pair := prepResult.([]any)
			sections := pair[0].([]model.Section)
			article := pair[1].(*model.Article)
			logger := logging.From(ctx)

			for i := range sections {
				if !sections[i].Research {
					continue
				}

				researcher := research.NewSectionResearcher(a.gemini, a.search, "Content from URL: "+url)
				researcher.JSONOutput = true
				researcher.Context = article.Markdown
				researcher.NumberOfQueries = a.NumberOfQueries
				researcher.MaxSearchDepth = a.MaxSearchDepth

				if err := researcher.Run(ctx, &sections[i]); err != nil {
					logger.Warn("section research failed, skipping section",
						slog.String("headline", sections[i].Headline),
						slog.Any("error", err))
				}
			}

			return sections, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keySections, execResult.([]model.Section))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) newCompileNode(url string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			sections, _ := shared.Get(keySections)
			article, _ := shared.Get(keyArticle)
			return []any{sections, article}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			pair := prepResult.([]any)
			sections := pair[0].([]model.Section)
			article := pair[1].(*model.Article)

			a.writeFinalSections(ctx, url, article, sections)

			return a.compileReport(ctx, article, sections), nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyReport, execResult.(*model.Report))
			return flyt.DefaultAction, nil
		}),
	)
}

// writeFinalSections fills in the sections that needed no research,
// using the researched sections and the scraped page as context. A
// failed section keeps its placeholder content.
func (a *Agent) writeFinalSections(ctx context.Context, url string, article *model.Article, sections []model.Section) {
	logger := logging.From(ctx)

	researched := make([]model.Section, 0, len(sections))
	for _, s := range sections {
		if s.Research {
			researched = append(researched, s)
		}
	}
	reportContext := "URL Content:\n" + truncateContext(article.Markdown, finalSectionContextRunes) +
		"\n\nCompleted Sections:\n" + model.FormatSections(researched)

	for i := range sections {
		if sections[i].Research {
			continue
		}
		if err := a.writeFinalSection(ctx, url, &sections[i], reportContext); err != nil {
			logger.Warn("failed to write final section",
				slog.String("headline", sections[i].Headline),
				slog.Any("error", err))
		}
	}
}

func (a *Agent) writeFinalSection(ctx context.Context, url string, section *model.Section, reportContext string) error {
	system, err := renderPrompt(finalSectionTmpl, map[string]any{
		"Topic":        "Content from URL: " + url,
		"SectionTitle": section.Headline,
		"SectionTopic": section.Description,
		"Context":      reportContext,
	})
	if err != nil {
		return err
	}

	text, err := adapter.GenerateJSON(ctx, a.gemini, system,
		"URLコンテンツと調査済みセクションに基づいて、このセクションを日本語で生成してください。", finalSectionSchema)
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
		section.Content = text
		return nil
	}

	section.Content = out.Content
	section.Quotes = out.Quotes
	section.References = out.References
	return nil
}

// truncateContext caps scraped markdown at max runes to keep prompts
// within a sane size.
func truncateContext(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/hirosat/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
)

const (
	keySections      = "sections"
	keyFeedback      = "feedback_on_report_plan"
	keyCompleted     = "completed_sections"
	keyReportContext = "report_sections_from_research"
	keyFinalReport   = "final_report"

	actionRevise flyt.Action = "revise"
)

// DefaultReportOrganization is the report structure used when none is given.
const DefaultReportOrganization = `The report structure should focus on breaking-down the user-provided topic:

1. Introduction (no research needed)
   - Brief overview of the topic area

2. Main Body Sections:
   - Each section should focus on a sub-topic of the user-provided topic

3. Conclusion
   - Aim for 1 structural element (either a list or table) that distills the main body sections
   - Provide a concise summary of the report`

// PlanReviewer reviews a generated report plan. Returning approved=false
// with feedback regenerates the plan; a nil reviewer approves every plan.
type PlanReviewer func(sections []model.Section) (approved bool, feedback string, err error)

// Agent writes a Markdown research report on a topic: plan the sections,
// research each one with the section loop, then write the remaining
// sections from the completed context.
type Agent struct {
	gemini adapter.Gemini
	search adapter.Search

	ReportOrganization string
	NumberOfQueries    int
	MaxSearchDepth     int
	PlanReviewer       PlanReviewer
}

func New(gemini adapter.Gemini, search adapter.Search) *Agent {
	return &Agent{
		gemini:             gemini,
		search:             search,
		ReportOrganization: DefaultReportOrganization,
		NumberOfQueries:    2,
		MaxSearchDepth:     2,
	}
}

// Run produces the final Markdown report for the topic.
func (a *Agent) Run(ctx context.Context, topic string) (string, error) {
	shared := flyt.NewSharedStore()
	shared.Set(keyFeedback, "")

	plan := a.newPlanNode(topic)
	review := a.newReviewNode()
	research := a.newResearchSectionsNode(topic)
	finals := a.newFinalSectionsNode(topic)
	compile := a.newCompileNode()

	flow := flyt.NewFlow(plan)
	flow.Connect(plan, flyt.DefaultAction, review)
	flow.Connect(review, actionRevise, plan)
	flow.Connect(review, flyt.DefaultAction, research)
	flow.Connect(research, flyt.DefaultAction, finals)
	flow.Connect(finals, flyt.DefaultAction, compile)

	if err := flow.Run(ctx, shared); err != nil {
		return "", goerr.Wrap(err, "research flow failed", goerr.V("topic", topic))
	}

	v, ok := shared.Get(keyFinalReport)
	if !ok {
		return "", goerr.New("research flow produced no report", goerr.V("topic", topic))
	}

	return v.(string), nil
}

// newPlanNode generates plan queries, searches the web for planning
// context, and produces the section list.
func (a *Agent) newPlanNode(topic string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyFeedback)
			return v.(string), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			feedback := prepResult.(string)
			return a.PlanSections(ctx, topic, "", feedback)
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keySections, execResult.([]model.Section))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) newReviewNode() flyt.Node {
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
				return nil, goerr.Wrap(err, "plan review failed")
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

// newResearchSectionsNode runs the section loop for every section that
// needs research, in plan order. A failed section is skipped so the rest
// of the report can still be written.
func (a *Agent) newResearchSectionsNode(topic string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keySections)
			return v.([]model.Section), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			sections := prepResult.([]model.Section)
			logger := logging.From(ctx)

			var completed []model.Section
			for i := range sections {
				if !sections[i].Research {
					continue
				}

				researcher := NewSectionResearcher(a.gemini, a.search, topic)
				researcher.NumberOfQueries = a.NumberOfQueries
				researcher.MaxSearchDepth = a.MaxSearchDepth

				if err := researcher.Run(ctx, &sections[i]); err != nil {
					logger.Warn("skipping failed section",
						"headline", sections[i].Headline, "error", err)
					continue
				}
				completed = append(completed, sections[i])
			}

			return completed, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			completed := execResult.([]model.Section)
			shared.Set(keySections, prepResult.([]model.Section))
			shared.Set(keyCompleted, completed)
			shared.Set(keyReportContext, model.FormatSections(completed))
			return flyt.DefaultAction, nil
		}),
	)
}

// newFinalSectionsNode writes the sections that do not need research,
// using the researched sections as context.
func (a *Agent) newFinalSectionsNode(topic string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			sections, _ := shared.Get(keySections)
			reportContext, _ := shared.Get(keyReportContext)
			return map[string]any{
				"sections": sections,
				"context":  reportContext,
			}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			data := prepResult.(map[string]any)
			sections := data["sections"].([]model.Section)
			reportContext := data["context"].(string)

			for i := range sections {
				if sections[i].Research {
					continue
				}
				if err := a.writeFinalSection(ctx, topic, &sections[i], reportContext); err != nil {
					return nil, err
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

func (a *Agent) newCompileNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keySections)
			return v.([]model.Section), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			sections := prepResult.([]model.Section)
			parts := make([]string, 0, len(sections))
			for _, s := range sections {
				parts = append(parts, s.Content)
			}
			return strings.Join(parts, "\n\n"), nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyFinalReport, execResult.(string))
			return flyt.DefaultAction, nil
		}),
	)
}

// PlanSections generates planning queries, gathers planning context from
// the web, and asks the planner for the section list. extraContext is
// prepended to the gathered sources (URL content for URL reports).
func (a *Agent) PlanSections(ctx context.Context, topic, extraContext, feedback string) ([]model.Section, error) {
	system, err := renderPrompt(planQueriesTmpl, map[string]any{
		"Topic":              topic,
		"ReportOrganization": a.ReportOrganization,
		"NumberOfQueries":    a.NumberOfQueries,
	})
	if err != nil {
		return nil, err
	}

	text, err := adapter.GenerateJSON(ctx, a.gemini, system,
		"Generate search queries that will help with planning the sections of the report.", queriesSchema)
	if err != nil {
		return nil, err
	}
	queries := parseQueries(ctx, text, topic)

	list := make([]string, 0, len(queries))
	for _, q := range queries {
		if q.SearchQuery != "" {
			list = append(list, q.SearchQuery)
		}
	}

	sourceStr := "No sources found."
	if responses, err := a.search.SearchAll(ctx, list); err == nil {
		sourceStr = adapter.DeduplicateAndFormatSources(responses, 1000, false)
	} else {
		logging.From(ctx).Warn("planning search failed", "error", err)
	}
	if extraContext != "" {
		sourceStr = "URL Content:\n" + extraContext + "\n\nAdditional Research:\n" + sourceStr
	}

	system, err = renderPrompt(planSectionsTmpl, map[string]any{
		"Topic":              topic,
		"ReportOrganization": a.ReportOrganization,
		"Context":            sourceStr,
		"Feedback":           feedback,
	})
	if err != nil {
		return nil, err
	}

	text, err = adapter.GenerateJSON(ctx, a.gemini, system,
		"Generate the sections of the report. Each section must have headline, description, research, and content fields.", sectionsSchema)
	if err != nil {
		return nil, err
	}

	var out struct {
		Sections []model.Section `json:"sections"`
	}
	if !jsonx.Unmarshal(text, &out) || len(out.Sections) == 0 {
		return nil, goerr.New("planner returned no sections", goerr.V("topic", topic))
	}

	return out.Sections, nil
}

func (a *Agent) writeFinalSection(ctx context.Context, topic string, section *model.Section, reportContext string) error {
	system, err := renderPrompt(finalSectionTmpl, map[string]any{
		"Topic":        topic,
		"SectionTopic": section.Description,
		"Context":      reportContext,
	})
	if err != nil {
		return err
	}

	text, err := adapter.GenerateText(ctx, a.gemini, system,
		"Generate a report section based on the provided sources.")
	if err != nil {
		return goerr.Wrap(err, "failed to write final section", goerr.V("headline", section.Headline))
	}

	section.Content = text
	return nil
}

// FormatPlan renders a section plan for human review.
func FormatPlan(sections []model.Section) string {
	var sb strings.Builder
	for _, s := range sections {
		research := "No"
		if s.Research {
			research = "Yes"
		}
		fmt.Fprintf(&sb, "Section: %s\nDescription: %s\nResearch needed: %s\n\n", s.Headline, s.Description, research)
	}
	return strings.TrimSpace(sb.String())
}

package research

import (
	"context"
	"fmt"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/hirosat/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
	"google.golang.org/genai"
)

const (
	keyQuery       = "search_query"
	keySummary     = "running_summary"
	keySources     = "sources_gathered"
	keyLoopCount   = "research_loop_count"
	keyWebResults  = "web_research_results"
	actionContinue = flyt.Action("continue")
	actionFinalize = flyt.Action("finalize")
	quickMaxLoops  = 3
)

// QuickResearcher runs a lightweight iterative research loop on a topic:
// generate one query, search, fold the results into a running summary,
// reflect to find a knowledge gap, and repeat a few times.
type QuickResearcher struct {
	gemini adapter.Gemini
	search adapter.Search

	MaxLoops int
}

func NewQuickResearcher(gemini adapter.Gemini, search adapter.Search) *QuickResearcher {
	return &QuickResearcher{
		gemini:   gemini,
		search:   search,
		MaxLoops: quickMaxLoops,
	}
}

// Run returns a Markdown summary with a trailing sources list.
func (q *QuickResearcher) Run(ctx context.Context, topic string) (string, error) {
	shared := flyt.NewSharedStore()
	shared.Set(keyLoopCount, 0)

	generate := q.newGenerateQueryNode(topic)
	search := q.newSearchNode()
	summarize := q.newSummarizeNode(topic)
	reflect := q.newReflectNode(topic)
	finalize := q.newFinalizeNode()

	flow := flyt.NewFlow(generate)
	flow.Connect(generate, flyt.DefaultAction, search)
	flow.Connect(search, flyt.DefaultAction, summarize)
	flow.Connect(summarize, flyt.DefaultAction, reflect)
	flow.Connect(reflect, actionContinue, search)
	flow.Connect(reflect, actionFinalize, finalize)

	if err := flow.Run(ctx, shared); err != nil {
		return "", goerr.Wrap(err, "quick research failed", goerr.V("topic", topic))
	}

	v, ok := shared.Get(keySummary)
	if !ok {
		return "", goerr.New("quick research produced no summary", goerr.V("topic", topic))
	}
	return v.(string), nil
}

func (q *QuickResearcher) newGenerateQueryNode(topic string) flyt.Node {
	return flyt.NewNode(
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			system, err := renderPrompt(queryWriterTmpl, map[string]any{"Topic": topic})
			if err != nil {
				return nil, err
			}

			text, err := adapter.GenerateJSON(ctx, q.gemini, system,
				"Generate a query for web search:", quickQuerySchema)
			if err != nil {
				return nil, err
			}

			var out struct {
				Query string `json:"query"`
			}
			if jsonx.Unmarshal(text, &out) && out.Query != "" {
				return out.Query, nil
			}

			logging.From(ctx).Warn("query output was not valid JSON, using the topic as the query")
			return topic, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyQuery, execResult.(string))
			return flyt.DefaultAction, nil
		}),
	)
}

func (q *QuickResearcher) newSearchNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyQuery)
			return v.(string), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			query := prepResult.(string)

			resp, err := q.search.Search(ctx, query)
			if err != nil {
				logging.From(ctx).Warn("web search failed", "query", query, "error", err)
				return map[string]string{"sources": "", "formatted": "No sources found."}, nil
			}

			responses := []*adapter.SearchResponse{resp}
			return map[string]string{
				"sources":   adapter.FormatSources(responses),
				"formatted": adapter.DeduplicateAndFormatSources(responses, 1000, true),
			}, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			data := execResult.(map[string]string)

			var sources []string
			if v, ok := shared.Get(keySources); ok {
				sources = v.([]string)
			}
			if data["sources"] != "" {
				sources = append(sources, data["sources"])
			}
			shared.Set(keySources, sources)
			shared.Set(keyWebResults, data["formatted"])

			n := 0
			if v, ok := shared.Get(keyLoopCount); ok {
				n = v.(int)
			}
			shared.Set(keyLoopCount, n+1)

			return flyt.DefaultAction, nil
		}),
	)
}

func (q *QuickResearcher) newSummarizeNode(topic string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			summary := ""
			if v, ok := shared.Get(keySummary); ok {
				summary = v.(string)
			}
			results, _ := shared.Get(keyWebResults)
			return map[string]string{
				"summary": summary,
				"results": results.(string),
			}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			data := prepResult.(map[string]string)

			var user string
			if data["summary"] != "" {
				user = fmt.Sprintf("<User Input>\n%s\n<User Input>\n\n<Existing Summary>\n%s\n<Existing Summary>\n\n<New Search Results>\n%s\n<New Search Results>",
					topic, data["summary"], data["results"])
			} else {
				user = fmt.Sprintf("<User Input>\n%s\n<User Input>\n\n<Search Results>\n%s\n<Search Results>",
					topic, data["results"])
			}

			return adapter.GenerateText(ctx, q.gemini, summarizerRaw, user)
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keySummary, execResult.(string))
			return flyt.DefaultAction, nil
		}),
	)
}

func (q *QuickResearcher) newReflectNode(topic string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			summary, _ := shared.Get(keySummary)
			count, _ := shared.Get(keyLoopCount)
			return map[string]any{
				"summary": summary,
				"count":   count,
			}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			data := prepResult.(map[string]any)
			if data["count"].(int) > q.MaxLoops {
				return "", nil
			}

			system, err := renderPrompt(reflectionTmpl, map[string]any{"Topic": topic})
			if err != nil {
				return nil, err
			}

			user := "Identify a knowledge gap and generate a follow-up web search query based on our existing knowledge: " +
				data["summary"].(string)

			text, err := adapter.GenerateJSON(ctx, q.gemini, system, user, reflectionSchema)
			if err != nil {
				logging.From(ctx).Warn("reflection failed", "error", err)
				return "Tell me more about " + topic, nil
			}

			var out struct {
				FollowUpQuery string `json:"follow_up_query"`
			}
			if jsonx.Unmarshal(text, &out) && out.FollowUpQuery != "" {
				return out.FollowUpQuery, nil
			}
			return "Tell me more about " + topic, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			data := prepResult.(map[string]any)
			if data["count"].(int) > q.MaxLoops {
				return actionFinalize, nil
			}
			shared.Set(keyQuery, execResult.(string))
			return actionContinue, nil
		}),
	)
}

func (q *QuickResearcher) newFinalizeNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			summary, _ := shared.Get(keySummary)
			var sources []string
			if v, ok := shared.Get(keySources); ok {
				sources = v.([]string)
			}
			return map[string]any{
				"summary": summary,
				"sources": sources,
			}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			data := prepResult.(map[string]any)

			report := "## Summary\n\n" + data["summary"].(string)
			if sources := data["sources"].([]string); len(sources) > 0 {
				report += "\n\n### Sources:\n"
				for _, s := range sources {
					report += s + "\n"
				}
			}
			return report, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keySummary, execResult.(string))
			return flyt.DefaultAction, nil
		}),
	)
}

var quickQuerySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"query": {
			Type:        genai.TypeString,
			Description: "The actual search query string",
		},
		"aspect": {
			Type:        genai.TypeString,
			Description: "The specific aspect of the topic being researched",
		},
		"rationale": {
			Type:        genai.TypeString,
			Description: "Brief explanation of why this query is relevant",
		},
	},
	Required: []string{"query", "aspect", "rationale"},
}

var reflectionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"knowledge_gap": {
			Type:        genai.TypeString,
			Description: "What information is missing or needs clarification",
		},
		"follow_up_query": {
			Type:        genai.TypeString,
			Description: "A specific question to address this gap",
		},
	},
	Required: []string{"knowledge_gap", "follow_up_query"},
}

package brief

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/hirosat/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
)

//go:embed prompt/queries.md
var queriesRaw string

//go:embed prompt/sections.md
var sectionsRaw string

var (
	queriesTmpl  = template.Must(template.New("queries").Parse(queriesRaw))
	sectionsTmpl = template.Must(template.New("sections").Parse(sectionsRaw))
)

const (
	keyArticle = "article"
	keyQueries = "queries"
	keyResults = "results"
	keyBrief   = "brief"
)

// Agent produces a smart brief for a URL: a short structured digest of
// the page enriched with web research, organized in a
// kishotenketsu (introduction, development, twist, conclusion) flow.
type Agent struct {
	gemini  adapter.Gemini
	search  adapter.Search
	scraper adapter.Scraper
}

func New(gemini adapter.Gemini, search adapter.Search, scraper adapter.Scraper) *Agent {
	return &Agent{
		gemini:  gemini,
		search:  search,
		scraper: scraper,
	}
}

// Run generates the brief for the URL.
func (a *Agent) Run(ctx context.Context, url string) (*model.SmartBrief, error) {
	shared := flyt.NewSharedStore()

	scrape := a.newScrapeNode(url)
	queries := a.newQueriesNode()
	search := a.newSearchNode()
	summarize := a.newSummarizeNode()

	flow := flyt.NewFlow(scrape)
	flow.Connect(scrape, flyt.DefaultAction, queries)
	flow.Connect(queries, flyt.DefaultAction, search)
	flow.Connect(search, flyt.DefaultAction, summarize)

	if err := flow.Run(ctx, shared); err != nil {
		return nil, goerr.Wrap(err, "smart brief flow failed", goerr.V("url", url))
	}

	v, ok := shared.Get(keyBrief)
	if !ok {
		return nil, goerr.New("smart brief flow produced no brief", goerr.V("url", url))
	}
	return v.(*model.SmartBrief), nil
}

func (a *Agent) newScrapeNode(url string) flyt.Node {
	return flyt.NewNode(
		flyt.WithExecFunc(func(ctx context.Context, _ any) (any, error) {
			article, err := a.scraper.Scrape(ctx, url)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to scrape url", goerr.V("url", url))
			}
			return article, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyArticle, execResult.(*model.Article))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) newQueriesNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyArticle)
			return v.(*model.Article), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			article := prepResult.(*model.Article)
			return a.generateQueries(ctx, article)
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyQueries, execResult.([]model.BriefQuery))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) generateQueries(ctx context.Context, article *model.Article) ([]model.BriefQuery, error) {
	system, err := renderPrompt(queriesTmpl, map[string]any{
		"Content":     article.Markdown,
		"CurrentDate": time.Now().Format("2006年01月02日"),
	})
	if err != nil {
		return nil, err
	}

	text, err := adapter.GenerateJSON(ctx, a.gemini, system,
		"提供されたコンテンツに基づいて、4つ以上の検索クエリを生成してください。", briefQueriesSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate brief queries")
	}

	var out struct {
		Queries []model.BriefQuery `json:"queries"`
	}
	if !jsonx.Unmarshal(text, &out) || len(out.Queries) == 0 {
		return nil, goerr.New("query generator returned no queries")
	}
	return out.Queries, nil
}

func (a *Agent) newSearchNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyQueries)
			return v.([]model.BriefQuery), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			queries := prepResult.([]model.BriefQuery)

			list := make([]string, 0, len(queries))
			for _, q := range queries {
				if q.Query != "" {
					list = append(list, q.Query)
				}
			}

			responses, err := a.search.SearchAll(ctx, list)
			if err != nil {
				logging.From(ctx).Warn("brief research failed", slog.Any("error", err))
				return []*adapter.SearchResponse{}, nil
			}
			return responses, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyResults, execResult.([]*adapter.SearchResponse))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) newSummarizeNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyResults)
			return v.([]*adapter.SearchResponse), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			responses := prepResult.([]*adapter.SearchResponse)
			return a.summarize(ctx, responses)
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyBrief, execResult.(*model.SmartBrief))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) summarize(ctx context.Context, responses []*adapter.SearchResponse) (*model.SmartBrief, error) {
	inputData, err := json.MarshalIndent(responses, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode search results")
	}

	system, err := renderPrompt(sectionsTmpl, map[string]any{
		"InputData": string(inputData),
	})
	if err != nil {
		return nil, err
	}

	text, err := adapter.GenerateJSON(ctx, a.gemini, system,
		"上記の指示に従い、4つ以上のセクションを含むレポートをJSONで出力してください。", briefSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate brief sections")
	}

	var brief model.SmartBrief
	if !jsonx.Unmarshal(text, &brief) || len(brief.Sections) == 0 {
		return nil, goerr.New("brief generator returned no sections")
	}
	return &brief, nil
}

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt", goerr.V("template", tmpl.Name()))
	}
	return sb.String(), nil
}

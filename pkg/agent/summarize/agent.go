package summarize

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
)

//go:embed prompt/summarizer.md
var summarizerRaw string

const (
	keyArticle = "article"
	keySummary = "summary"
)

// Agent summarizes the content behind a URL. Setting ExistingSummary
// extends a previous summary with the newly scraped content instead of
// starting fresh.
type Agent struct {
	gemini  adapter.Gemini
	scraper adapter.Scraper

	ExistingSummary string
}

func New(gemini adapter.Gemini, scraper adapter.Scraper) *Agent {
	return &Agent{
		gemini:  gemini,
		scraper: scraper,
	}
}

// Run scrapes the URL and returns the summary text.
func (a *Agent) Run(ctx context.Context, url string) (string, error) {
	shared := flyt.NewSharedStore()

	scrape := a.newScrapeNode(url)
	summarize := a.newSummarizeNode(url)

	flow := flyt.NewFlow(scrape)
	flow.Connect(scrape, flyt.DefaultAction, summarize)

	if err := flow.Run(ctx, shared); err != nil {
		return "", goerr.Wrap(err, "summarize flow failed", goerr.V("url", url))
	}

	v, ok := shared.Get(keySummary)
	if !ok {
		return "", goerr.New("summarize flow produced no summary", goerr.V("url", url))
	}
	return v.(string), nil
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

func (a *Agent) newSummarizeNode(url string) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyArticle)
			return v.(*model.Article), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			article := prepResult.(*model.Article)

			var user string
			if a.ExistingSummary != "" {
				user = fmt.Sprintf(
					"<User Input> \n %s \n <User Input>\n\n<Existing Summary> \n %s \n <Existing Summary>\n\n<New Search Results> \n %s \n <New Search Results>",
					url, a.ExistingSummary, article.Markdown)
			} else {
				user = fmt.Sprintf(
					"<User Input> \n %s \n <User Input>\n\n<Search Results> \n %s \n <Search Results>",
					url, article.Markdown)
			}

			return adapter.GenerateText(ctx, a.gemini, summarizerRaw, user)
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keySummary, execResult.(string))
			return flyt.DefaultAction, nil
		}),
	)
}

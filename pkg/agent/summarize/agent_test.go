package summarize

import (
	"context"
	"testing"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	adapter.Gemini
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generateFunc(ctx, contents, config)
}

type mockScraper struct {
	scrapeFunc func(ctx context.Context, url string) (*model.Article, error)
}

func (m *mockScraper) Scrape(ctx context.Context, url string) (*model.Article, error) {
	return m.scrapeFunc(ctx, url)
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()

	var gotPrompt string
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotPrompt = contents[0].Parts[0].Text
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: "a concise summary"}}}},
				},
			}, nil
		},
	}
	scraper := &mockScraper{
		scrapeFunc: func(ctx context.Context, url string) (*model.Article, error) {
			return &model.Article{URL: url, Markdown: "page body"}, nil
		},
	}

	agent := New(mockGem, scraper)
	summary, err := agent.Run(ctx, "https://example.com")
	gt.NoError(t, err)
	gt.V(t, summary).Equal("a concise summary")
	gt.S(t, gotPrompt).Contains("<Search Results>")
	gt.S(t, gotPrompt).Contains("page body")
}

func TestSummarizeExtendsExistingSummary(t *testing.T) {
	ctx := context.Background()

	var gotPrompt string
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotPrompt = contents[0].Parts[0].Text
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: "an extended summary"}}}},
				},
			}, nil
		},
	}
	scraper := &mockScraper{
		scrapeFunc: func(ctx context.Context, url string) (*model.Article, error) {
			return &model.Article{URL: url, Markdown: "new content"}, nil
		},
	}

	agent := New(mockGem, scraper)
	agent.ExistingSummary = "previous summary"

	summary, err := agent.Run(ctx, "https://example.com")
	gt.NoError(t, err)
	gt.V(t, summary).Equal("an extended summary")
	gt.S(t, gotPrompt).Contains("<Existing Summary>")
	gt.S(t, gotPrompt).Contains("previous summary")
}

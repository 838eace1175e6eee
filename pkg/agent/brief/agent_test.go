package brief

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

type mockSearch struct {
	queries []string
}

func (m *mockSearch) Search(ctx context.Context, query string) (*adapter.SearchResponse, error) {
	return &adapter.SearchResponse{
		Query:   query,
		Results: []adapter.SearchResult{{Title: "hit", URL: "https://example.com", Content: "body"}},
	}, nil
}

func (m *mockSearch) SearchAll(ctx context.Context, queries []string) ([]*adapter.SearchResponse, error) {
	m.queries = queries
	responses := make([]*adapter.SearchResponse, len(queries))
	for i, q := range queries {
		responses[i], _ = m.Search(ctx, q)
	}
	return responses, nil
}

type mockScraper struct {
	scrapeFunc func(ctx context.Context, url string) (*model.Article, error)
}

func (m *mockScraper) Scrape(ctx context.Context, url string) (*model.Article, error) {
	return m.scrapeFunc(ctx, url)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestSmartBrief(t *testing.T) {
	ctx := context.Background()

	calls := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			if calls == 1 {
				return textResponse(`{"queries":[` +
					`{"query":"q1","aspect":"市場動向","rationale":"r1"},` +
					`{"query":"q2","aspect":"技術比較","rationale":"r2"},` +
					`{"query":"q3","aspect":"実用事例","rationale":"r3"},` +
					`{"query":"q4","aspect":"将来予測","rationale":"r4"}]}`), nil
			}
			return textResponse(`{"title":"見出し","micro":"読む価値の説明","tldr":"140字要約",` +
				`"references":[{"title":"ref","url":"https://example.com"}],` +
				`"sections":[` +
				`{"headline":"起","content":"導入","quotes":[]},` +
				`{"headline":"承","content":"展開","quotes":[]},` +
				`{"headline":"転","content":"転換","quotes":[]},` +
				`{"headline":"結","content":"まとめ","quotes":[]}]}`), nil
		},
	}

	search := &mockSearch{}
	scraper := &mockScraper{
		scrapeFunc: func(ctx context.Context, url string) (*model.Article, error) {
			return &model.Article{URL: url, Title: "記事", Markdown: "記事本文"}, nil
		},
	}

	agent := New(mockGem, search, scraper)
	brief, err := agent.Run(ctx, "https://example.com/article")
	gt.NoError(t, err)
	gt.V(t, brief.Title).Equal("見出し")
	gt.V(t, brief.TLDR).Equal("140字要約")
	gt.A(t, brief.Sections).Length(4)
	gt.V(t, brief.Sections[0].Headline).Equal("起")
	gt.A(t, search.queries).Length(4)
	gt.V(t, search.queries[0]).Equal("q1")
}

package research

import (
	"context"
	"iter"
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

func (m *mockGemini) GenerateStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {}
}

type mockSearch struct {
	searchFunc func(ctx context.Context, query string) (*adapter.SearchResponse, error)
}

func (m *mockSearch) Search(ctx context.Context, query string) (*adapter.SearchResponse, error) {
	return m.searchFunc(ctx, query)
}

func (m *mockSearch) SearchAll(ctx context.Context, queries []string) ([]*adapter.SearchResponse, error) {
	responses := make([]*adapter.SearchResponse, len(queries))
	for i, q := range queries {
		responses[i], _ = m.searchFunc(ctx, q)
	}
	return responses, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func newMockSearch() *mockSearch {
	return &mockSearch{
		searchFunc: func(ctx context.Context, query string) (*adapter.SearchResponse, error) {
			return &adapter.SearchResponse{
				Query: query,
				Results: []adapter.SearchResult{
					{Title: "Result for " + query, URL: "https://example.com/" + query, Content: "content"},
				},
			}, nil
		},
	}
}

func TestSectionResearcherPassOnFirstGrade(t *testing.T) {
	ctx := context.Background()

	calls := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return textResponse(`{"queries":[{"search_query":"go concurrency"}]}`), nil
			case 2:
				return textResponse("## Concurrency\n\n**Goroutines are cheap.**"), nil
			case 3:
				return textResponse(`{"grade":"pass","follow_up_queries":[]}`), nil
			default:
				t.Fatalf("unexpected LLM call %d", calls)
				return nil, nil
			}
		},
	}

	researcher := NewSectionResearcher(mockGem, newMockSearch(), "Go runtime")
	section := &model.Section{
		Headline:    "Concurrency",
		Description: "How goroutines work",
		Research:    true,
	}

	gt.NoError(t, researcher.Run(ctx, section))
	gt.S(t, section.Content).Contains("Goroutines are cheap")
	gt.V(t, calls).Equal(3)
}

func TestSectionResearcherLoopsOnFailGrade(t *testing.T) {
	ctx := context.Background()

	calls := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return textResponse(`{"queries":[{"search_query":"scheduler design"}]}`), nil
			case 2:
				return textResponse("draft one"), nil
			case 3:
				return textResponse(`{"grade":"fail","follow_up_queries":[{"search_query":"work stealing"}]}`), nil
			case 4:
				return textResponse("draft two"), nil
			case 5:
				return textResponse(`{"grade":"pass","follow_up_queries":[]}`), nil
			default:
				t.Fatalf("unexpected LLM call %d", calls)
				return nil, nil
			}
		},
	}

	researcher := NewSectionResearcher(mockGem, newMockSearch(), "Go runtime")
	section := &model.Section{
		Headline:    "Scheduler",
		Description: "How the scheduler balances work",
		Research:    true,
	}

	gt.NoError(t, researcher.Run(ctx, section))
	gt.V(t, section.Content).Equal("draft two")
	gt.V(t, calls).Equal(5)
}

func TestSectionResearcherStopsAtMaxDepth(t *testing.T) {
	ctx := context.Background()

	grades := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			if config != nil && config.ResponseMIMEType == "application/json" {
				if config.ResponseSchema == feedbackSchema {
					grades++
					return textResponse(`{"grade":"fail","follow_up_queries":[{"search_query":"again"}]}`), nil
				}
				return textResponse(`{"queries":[{"search_query":"first"}]}`), nil
			}
			return textResponse("draft"), nil
		},
	}

	researcher := NewSectionResearcher(mockGem, newMockSearch(), "Go runtime")
	researcher.MaxSearchDepth = 2
	section := &model.Section{
		Headline:    "GC",
		Description: "Garbage collector internals",
		Research:    true,
	}

	gt.NoError(t, researcher.Run(ctx, section))
	// The loop ends at the depth cap even though every grade fails.
	gt.V(t, grades).Equal(2)
	gt.V(t, section.Content).Equal("draft")
}

func TestSectionResearcherFallbackQueryOnBrokenJSON(t *testing.T) {
	ctx := context.Background()

	var searched []string
	search := &mockSearch{
		searchFunc: func(ctx context.Context, query string) (*adapter.SearchResponse, error) {
			searched = append(searched, query)
			return &adapter.SearchResponse{Query: query}, nil
		},
	}

	calls := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return textResponse("not json at all"), nil
			case 2:
				return textResponse("draft"), nil
			default:
				return textResponse(`{"grade":"pass"}`), nil
			}
		},
	}

	researcher := NewSectionResearcher(mockGem, search, "Go runtime")
	section := &model.Section{Headline: "Intro", Description: "Overview", Research: true}

	gt.NoError(t, researcher.Run(ctx, section))
	// Broken query JSON degrades to searching the topic itself.
	gt.A(t, searched).Length(1)
	gt.V(t, searched[0]).Equal("Go runtime")
}

package marp

import (
	"context"
	"strings"
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

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestRenderDeck(t *testing.T) {
	deck := RenderDeck([]model.Slide{
		{Header: "Title", Template: model.SlideTemplateTitle, MarkdownContent: "# My Deck"},
		{Header: "Body", Template: model.SlideTemplateDefault, MarkdownContent: "## Body\n\n- point"},
	})

	gt.True(t, strings.HasPrefix(deck, "---\nmarp: true\n"))
	gt.S(t, deck).Contains("theme: default")
	gt.S(t, deck).Contains("paginate: true")
	gt.S(t, deck).Contains(`header: ""`)
	gt.S(t, deck).Contains("# My Deck\n---\n\n## Body")
}

func TestRunGeneratesSlidesFromOutline(t *testing.T) {
	ctx := context.Background()

	calls := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			switch calls {
			case 1:
				return textResponse(`{"title":"Go Deck","pages":[` +
					`{"header":"Intro","content":"opening","template":"title","policy":"short"},` +
					`{"header":"Details","content":"the meat","template":"default","policy":"bullets"}]}`), nil
			case 2:
				return textResponse(`{"header":"Intro","template":"title","markdown_content":"# Go Deck"}`), nil
			default:
				return textResponse(`{"header":"Details","template":"default","markdown_content":"## Details\n\n- fact"}`), nil
			}
		},
	}

	agent := New(mockGem, nil, nil)
	deck, err := agent.Run(ctx, "a deck about Go")
	gt.NoError(t, err)
	gt.V(t, deck.Title).Equal("Go Deck")
	gt.V(t, deck.ObjectKey).Equal("")
	gt.S(t, deck.Markdown).Contains("# Go Deck")
	gt.S(t, deck.Markdown).Contains("## Details")
	gt.V(t, calls).Equal(3)
}

func TestRunFallsBackOnBrokenOutline(t *testing.T) {
	ctx := context.Background()

	calls := 0
	mockGem := &mockGemini{
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			if calls == 1 {
				return textResponse("not an outline"), nil
			}
			return textResponse("still not json"), nil
		},
	}

	agent := New(mockGem, nil, nil)
	deck, err := agent.Run(ctx, "anything")
	gt.NoError(t, err)
	gt.V(t, deck.Title).Equal("Presentation")
	// The unparseable slide degrades to a placeholder.
	gt.S(t, deck.Markdown).Contains("# Title Slide\n\n- Content placeholder")
}

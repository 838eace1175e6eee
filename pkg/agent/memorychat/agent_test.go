package memorychat

import (
	"context"
	"iter"
	"strings"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/repository"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

type mockGemini struct {
	adapter.Gemini
	generateFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	streamChunks []string
	streamConfig *genai.GenerateContentConfig
}

func (m *mockGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generateFunc(ctx, contents, config)
}

func (m *mockGemini) GenerateStream(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	m.streamConfig = config
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range m.streamChunks {
			if !yield(textResponse(chunk), nil) {
				return
			}
		}
	}
}

func (m *mockGemini) Embedding(ctx context.Context, text string) (*genai.EmbedContentResponse, error) {
	return &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestMemoryChatStreamsAndSaves(t *testing.T) {
	ctx := context.Background()

	mockGem := &mockGemini{
		streamChunks: []string{"Hello ", "there!"},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"worth_saving":true,"content":"User likes Go","context":"Mentioned while chatting about languages"}`), nil
		},
	}
	repo := repository.NewMemory()

	var deltas []string
	agent := New(mockGem, repo)
	answer, err := agent.Run(ctx, &Input{
		UserID: "U123",
		Messages: []Message{
			{Role: "user", Content: "I really like Go"},
		},
		OnDelta: func(delta string) { deltas = append(deltas, delta) },
	})

	gt.NoError(t, err)
	gt.V(t, answer).Equal("Hello there!")
	gt.A(t, deltas).Length(2)

	memories, err := repo.ListMemories(ctx, 0, 10)
	gt.NoError(t, err)
	gt.A(t, memories).Length(1)
	gt.V(t, memories[0].Content).Equal("User likes Go")
	gt.V(t, memories[0].Author).Equal("U123")
	gt.A(t, memories[0].Embedding).Length(3)
}

func TestMemoryChatSkipsUnworthyMemory(t *testing.T) {
	ctx := context.Background()

	mockGem := &mockGemini{
		streamChunks: []string{"ok"},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"worth_saving":false,"content":"","context":""}`), nil
		},
	}
	repo := repository.NewMemory()

	agent := New(mockGem, repo)
	_, err := agent.Run(ctx, &Input{
		UserID:   "U123",
		Messages: []Message{{Role: "user", Content: "what time is it"}},
	})

	gt.NoError(t, err)
	memories, err := repo.ListMemories(ctx, 0, 10)
	gt.NoError(t, err)
	gt.A(t, memories).Length(0)
}

func TestMemoryChatRecallsSimilarMemories(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	gt.NoError(t, repo.PutMemory(ctx, &model.Memory{
		Content:   "User works on infrastructure",
		Context:   "From an earlier chat",
		Author:    "U123",
		Embedding: firestore.Vector32{0.1, 0.2, 0.3},
	}))

	mockGem := &mockGemini{
		streamChunks: []string{"answer"},
		generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(`{"worth_saving":false,"content":"","context":""}`), nil
		},
	}

	agent := New(mockGem, repo)
	_, err := agent.Run(ctx, &Input{
		UserID:   "U123",
		Messages: []Message{{Role: "user", Content: "tell me about my job"}},
	})

	gt.NoError(t, err)
	system := mockGem.streamConfig.SystemInstruction.Parts[0].Text
	gt.True(t, strings.Contains(system, "User works on infrastructure"))
}

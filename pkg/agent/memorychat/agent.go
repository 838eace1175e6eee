package memorychat

import (
	"context"
	_ "embed"
	"log/slog"
	"strings"
	"text/template"

	"cloud.google.com/go/firestore"
	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/repository"
	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/hirosat/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemRaw string

//go:embed prompt/extract.md
var extractRaw string

var systemTmpl = template.Must(template.New("system").Parse(systemRaw))

func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", goerr.Wrap(err, "failed to render prompt", goerr.V("template", tmpl.Name()))
	}
	return sb.String(), nil
}

const (
	keyMemories = "memories"
	keyAnswer   = "answer"

	recallLimit = 5
)

// Message is one turn of the conversation.
type Message struct {
	Role    string // genai.RoleUser or genai.RoleModel
	Content string
}

// Input is a conversation to answer. OnDelta, when set, receives each
// streamed response chunk as it arrives.
type Input struct {
	UserID   string
	Messages []Message
	OnDelta  func(delta string)
}

// Agent holds a conversation backed by long-term memory. Before
// answering it recalls memories similar to the latest user message, and
// after answering it extracts and stores anything worth remembering.
type Agent struct {
	gemini adapter.Gemini
	repo   repository.Repository
}

func New(gemini adapter.Gemini, repo repository.Repository) *Agent {
	return &Agent{
		gemini: gemini,
		repo:   repo,
	}
}

// Run answers the conversation and returns the full response text.
func (a *Agent) Run(ctx context.Context, input *Input) (string, error) {
	if len(input.Messages) == 0 {
		return "", goerr.New("conversation is empty")
	}

	shared := flyt.NewSharedStore()

	load := a.newLoadMemoriesNode(input)
	respond := a.newRespondNode(input)
	save := a.newSaveMemoryNode(input)

	flow := flyt.NewFlow(load)
	flow.Connect(load, flyt.DefaultAction, respond)
	flow.Connect(respond, flyt.DefaultAction, save)

	if err := flow.Run(ctx, shared); err != nil {
		return "", goerr.Wrap(err, "memory chat failed", goerr.V("user", input.UserID))
	}

	v, ok := shared.Get(keyAnswer)
	if !ok {
		return "", goerr.New("memory chat produced no answer")
	}
	return v.(string), nil
}

// newLoadMemoriesNode embeds the latest user message and recalls the
// most similar stored memories. Recall failures degrade to an empty
// memory list.
func (a *Agent) newLoadMemoriesNode(input *Input) flyt.Node {
	return flyt.NewNode(
		flyt.WithExecFunc(func(ctx context.Context, _ any) (any, error) {
			logger := logging.From(ctx)
			query := input.Messages[len(input.Messages)-1].Content

			embedding, err := adapter.EmbedText(ctx, a.gemini, query)
			if err != nil {
				logger.Warn("failed to embed recall query", slog.Any("error", err))
				return []*model.RecalledMemory{}, nil
			}

			memories, err := a.repo.SearchSimilarMemories(ctx, embedding, recallLimit)
			if err != nil {
				logger.Warn("memory recall failed", slog.Any("error", err))
				return []*model.RecalledMemory{}, nil
			}
			return memories, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyMemories, execResult.([]*model.RecalledMemory))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) newRespondNode(input *Input) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyMemories)
			return v.([]*model.RecalledMemory), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			memories := prepResult.([]*model.RecalledMemory)
			return a.respond(ctx, input, memories)
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyAnswer, execResult.(string))
			return flyt.DefaultAction, nil
		}),
	)
}

func (a *Agent) respond(ctx context.Context, input *Input, memories []*model.RecalledMemory) (string, error) {
	recalled := make([]string, 0, len(memories))
	for _, m := range memories {
		recalled = append(recalled, m.Format())
	}
	recallStr := "<recall_memory>\n" + strings.Join(recalled, "\n") + "\n</recall_memory>"

	system, err := renderPrompt(systemTmpl, map[string]any{"RecallMemories": recallStr})
	if err != nil {
		return "", err
	}

	contents := make([]*genai.Content, 0, len(input.Messages))
	for _, msg := range input.Messages {
		role := msg.Role
		if role == "" {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, genai.Role(role)))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, ""),
	}

	var sb strings.Builder
	for resp, err := range a.gemini.GenerateStream(ctx, contents, config) {
		if err != nil {
			return "", goerr.Wrap(err, "streaming response failed")
		}
		delta := adapter.ResponseText(resp)
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if input.OnDelta != nil {
			input.OnDelta(delta)
		}
	}

	return sb.String(), nil
}

// newSaveMemoryNode extracts a memory from the conversation and stores
// it. Anything going wrong here only loses the memory, never the answer.
func (a *Agent) newSaveMemoryNode(input *Input) flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			v, _ := shared.Get(keyAnswer)
			return v.(string), nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			answer := prepResult.(string)
			if err := a.saveMemory(ctx, input, answer); err != nil {
				logging.From(ctx).Warn("failed to save memory", slog.Any("error", err))
			}
			return nil, nil
		}),
	)
}

func (a *Agent) saveMemory(ctx context.Context, input *Input, answer string) error {
	var convo strings.Builder
	for _, msg := range input.Messages {
		convo.WriteString(msg.Role + ": " + msg.Content + "\n")
	}
	convo.WriteString(string(genai.RoleModel) + ": " + answer + "\n")

	text, err := adapter.GenerateJSON(ctx, a.gemini, extractRaw, convo.String(), extractSchema)
	if err != nil {
		return err
	}

	var out struct {
		WorthSaving bool   `json:"worth_saving"`
		Content     string `json:"content"`
		Context     string `json:"context"`
	}
	if !jsonx.Unmarshal(text, &out) {
		return goerr.New("memory extraction output was not valid JSON")
	}
	if !out.WorthSaving || out.Content == "" {
		return nil
	}

	memory := &model.Memory{
		ID:      model.NewMemoryID(),
		Content: out.Content,
		Context: out.Context,
		Author:  input.UserID,
	}

	embedding, err := adapter.EmbedText(ctx, a.gemini, memory.EmbeddingText())
	if err != nil {
		return err
	}
	memory.Embedding = firestore.Vector32(embedding)

	return a.repo.PutMemory(ctx, memory)
}

var extractSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"worth_saving": {
			Type:        genai.TypeBoolean,
			Description: "Whether the conversation contains information worth remembering long term",
		},
		"content": {
			Type:        genai.TypeString,
			Description: "The fact to remember, stated in one or two sentences",
		},
		"context": {
			Type:        genai.TypeString,
			Description: "When and why this came up, to help future recall",
		},
	},
	Required: []string{"worth_saving", "content", "context"},
}

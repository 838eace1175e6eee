package marp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/hirosat/ermine/pkg/adapter"
	"github.com/hirosat/ermine/pkg/agent/research"
	"github.com/hirosat/ermine/pkg/model"
	"github.com/hirosat/ermine/pkg/utils/jsonx"
	"github.com/hirosat/ermine/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mark3labs/flyt"
)

const (
	keyOutline = "outline"
	keySlides  = "slides"
	keyIndex   = "index"
	keyDeck    = "deck"

	actionNext   flyt.Action = "next"
	actionRender flyt.Action = "render"

	storagePrefix = "marp"
)

var jst = time.FixedZone("JST", 9*60*60)

// Deck is the generated presentation.
type Deck struct {
	Title    string
	Markdown string

	// ObjectKey is where the deck was saved, empty when no storage is
	// configured.
	ObjectKey string
}

// Agent generates a Marp slide deck from free-form requirements. Each
// slide topic is researched with the quick researcher before the slide
// is written.
type Agent struct {
	gemini  adapter.Gemini
	search  adapter.Search
	storage adapter.Storage
}

// New builds the agent. storage may be nil, in which case the deck is
// returned without being saved.
func New(gemini adapter.Gemini, search adapter.Search, storage adapter.Storage) *Agent {
	return &Agent{
		gemini:  gemini,
		search:  search,
		storage: storage,
	}
}

// Run generates the deck for the requirements.
func (a *Agent) Run(ctx context.Context, requirements string) (*Deck, error) {
	shared := flyt.NewSharedStore()
	shared.Set(keySlides, []model.Slide{})
	shared.Set(keyIndex, 0)

	outline := a.newOutlineNode(requirements)
	slide := a.newSlideNode()
	render := a.newRenderNode()

	flow := flyt.NewFlow(outline)
	flow.Connect(outline, flyt.DefaultAction, slide)
	flow.Connect(slide, actionNext, slide)
	flow.Connect(slide, actionRender, render)

	if err := flow.Run(ctx, shared); err != nil {
		return nil, goerr.Wrap(err, "marp generation failed")
	}

	v, ok := shared.Get(keyDeck)
	if !ok {
		return nil, goerr.New("marp generation produced no deck")
	}
	return v.(*Deck), nil
}

func (a *Agent) newOutlineNode(requirements string) flyt.Node {
	return flyt.NewNode(
		flyt.WithExecFunc(func(ctx context.Context, _ any) (any, error) {
			return a.generateOutline(ctx, requirements), nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyOutline, execResult.(*model.Outline))
			return flyt.DefaultAction, nil
		}),
	)
}

// generateOutline plans the deck. A failed or unparseable plan degrades
// to a single-page outline so the flow still produces a deck.
func (a *Agent) generateOutline(ctx context.Context, requirements string) *model.Outline {
	logger := logging.From(ctx)

	fallback := &model.Outline{
		Title: "Presentation",
		Pages: []model.OutlinePage{
			{
				Header:   "Title Slide",
				Content:  "Introduction to the topic",
				Template: model.SlideTemplateTitle,
				Policy:   "Keep it simple and clear",
			},
		},
	}

	system, err := renderPrompt(outlineTmpl, map[string]any{"Requirements": requirements})
	if err != nil {
		logger.Warn("failed to render outline prompt", slog.Any("error", err))
		return fallback
	}

	text, err := adapter.GenerateJSON(ctx, a.gemini, system,
		"Generate an outline for the Marp presentation.", outlineSchema)
	if err != nil {
		logger.Warn("outline generation failed", slog.Any("error", err))
		return fallback
	}

	var outline model.Outline
	if !jsonx.Unmarshal(text, &outline) || len(outline.Pages) == 0 {
		logger.Warn("outline output was not valid JSON")
		return fallback
	}
	if outline.Title == "" {
		outline.Title = "Presentation"
	}
	return &outline
}

func (a *Agent) newSlideNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			outline, _ := shared.Get(keyOutline)
			index, _ := shared.Get(keyIndex)
			return []any{outline, index}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			pair := prepResult.([]any)
			outline := pair[0].(*model.Outline)
			index := pair[1].(int)

			if index >= len(outline.Pages) {
				return nil, nil
			}
			return a.generateSlide(ctx, outline.Pages[index]), nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			if execResult == nil {
				return actionRender, nil
			}

			v, _ := shared.Get(keySlides)
			slides := v.([]model.Slide)
			shared.Set(keySlides, append(slides, *execResult.(*model.Slide)))

			idx, _ := shared.Get(keyIndex)
			shared.Set(keyIndex, idx.(int)+1)
			return actionNext, nil
		}),
	)
}

// generateSlide researches the slide topic and writes the slide with
// the template-specific prompt. Failures degrade to a placeholder slide.
func (a *Agent) generateSlide(ctx context.Context, page model.OutlinePage) *model.Slide {
	logger := logging.From(ctx)
	tmplType := page.Template.Normalize()

	researchContext := "Additional information about " + page.Header
	if a.search != nil {
		researcher := research.NewQuickResearcher(a.gemini, a.search)
		if summary, err := researcher.Run(ctx, page.Header); err == nil {
			researchContext = summary
		} else {
			logger.Warn("slide research failed", slog.String("header", page.Header), slog.Any("error", err))
		}
	}

	slideInfo, err := json.Marshal(map[string]any{
		"header":           page.Header,
		"content":          page.Content,
		"template":         string(tmplType),
		"policy":           page.Policy,
		"research_context": researchContext,
	})
	if err != nil {
		return placeholderSlide(page, tmplType)
	}

	system, err := renderPrompt(slideTmpls[tmplType], map[string]any{"SlideInfo": string(slideInfo)})
	if err != nil {
		logger.Warn("failed to render slide prompt", slog.Any("error", err))
		return placeholderSlide(page, tmplType)
	}

	text, err := adapter.GenerateJSON(ctx, a.gemini, system,
		"Generate content for the slide: "+page.Header+". Use the research information to create detailed and accurate content.",
		slideSchema)
	if err != nil {
		logger.Warn("slide generation failed", slog.String("header", page.Header), slog.Any("error", err))
		return placeholderSlide(page, tmplType)
	}

	var slide model.Slide
	if !jsonx.Unmarshal(text, &slide) || slide.MarkdownContent == "" {
		logger.Warn("slide output was not valid JSON", slog.String("header", page.Header))
		return placeholderSlide(page, tmplType)
	}
	slide.Template = slide.Template.Normalize()
	return &slide
}

func placeholderSlide(page model.OutlinePage, tmplType model.SlideTemplate) *model.Slide {
	return &model.Slide{
		Header:          page.Header,
		Template:        tmplType,
		MarkdownContent: "# " + page.Header + "\n\n- Content placeholder",
	}
}

func (a *Agent) newRenderNode() flyt.Node {
	return flyt.NewNode(
		flyt.WithPrepFunc(func(ctx context.Context, shared *flyt.SharedStore) (any, error) {
			outline, _ := shared.Get(keyOutline)
			slides, _ := shared.Get(keySlides)
			return []any{outline, slides}, nil
		}),
		flyt.WithExecFunc(func(ctx context.Context, prepResult any) (any, error) {
			pair := prepResult.([]any)
			outline := pair[0].(*model.Outline)
			slides := pair[1].([]model.Slide)

			deck := &Deck{
				Title:    outline.Title,
				Markdown: RenderDeck(slides),
			}

			if a.storage != nil {
				name := strings.ReplaceAll(outline.Title, " ", "_") +
					"_" + time.Now().In(jst).Format("20060102_150405") + ".md"
				key, err := a.storage.SaveMarkdown(ctx, storagePrefix, name, deck.Markdown)
				if err != nil {
					return nil, goerr.Wrap(err, "failed to save deck", goerr.V("name", name))
				}
				deck.ObjectKey = key
			}

			return deck, nil
		}),
		flyt.WithPostFunc(func(ctx context.Context, shared *flyt.SharedStore, prepResult, execResult any) (flyt.Action, error) {
			shared.Set(keyDeck, execResult.(*Deck))
			return flyt.DefaultAction, nil
		}),
	)
}

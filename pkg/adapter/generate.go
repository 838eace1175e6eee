package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GenerateText runs a single system+user exchange and returns the response text.
func GenerateText(ctx context.Context, g Gemini, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, "")
	}

	resp, err := g.GenerateContent(ctx, []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate text")
	}

	return ResponseText(resp), nil
}

// EmbedText returns the embedding vector for the text.
func EmbedText(ctx context.Context, g Gemini, text string) ([]float32, error) {
	resp, err := g.Embedding(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(resp.Embeddings) == 0 {
		return nil, goerr.New("embedding response is empty")
	}
	return resp.Embeddings[0].Values, nil
}

// GenerateJSON runs a single system+user exchange with a structured output
// schema and returns the raw JSON text.
func GenerateJSON(ctx context.Context, g Gemini, system, user string, schema *genai.Schema) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, ""),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}

	resp, err := g.GenerateContent(ctx, []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate structured output")
	}

	return ResponseText(resp), nil
}

package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hirosat/ermine/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const firecrawlEndpoint = "https://api.firecrawl.dev/v1/scrape"

type Scraper interface {
	Scrape(ctx context.Context, url string) (*model.Article, error)
}

type FirecrawlClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewFirecrawl(apiKey string) *FirecrawlClient {
	return &FirecrawlClient{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Language    string `json:"language"`
			SourceURL   string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

func (f *FirecrawlClient) Scrape(ctx context.Context, url string) (*model.Article, error) {
	body, err := json.Marshal(map[string]any{
		"url":     url,
		"formats": []string{"markdown"},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal firecrawl request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, firecrawlEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firecrawl request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call firecrawl", goerr.V("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, goerr.New("firecrawl returned non-200 status",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(data)),
		)
	}

	var result firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode firecrawl response")
	}
	if !result.Success {
		return nil, goerr.New("firecrawl scrape failed", goerr.V("url", url), goerr.V("error", result.Error))
	}

	article := &model.Article{
		URL:      url,
		Title:    result.Data.Metadata.Title,
		Markdown: result.Data.Markdown,
		Metadata: map[string]string{},
	}
	if result.Data.Metadata.Description != "" {
		article.Metadata["description"] = result.Data.Metadata.Description
	}
	if result.Data.Metadata.Language != "" {
		article.Metadata["language"] = result.Data.Metadata.Language
	}

	return article, nil
}

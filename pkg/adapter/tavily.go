package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

const tavilyEndpoint = "https://api.tavily.com/search"

type SearchResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

type Search interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
	SearchAll(ctx context.Context, queries []string) ([]*SearchResponse, error)
}

type TavilyClient struct {
	apiKey     string
	httpClient *http.Client
	maxResults int
	rawContent bool
}

type TavilyOption func(*TavilyClient)

func WithMaxResults(n int) TavilyOption {
	return func(t *TavilyClient) {
		t.maxResults = n
	}
}

func WithoutRawContent() TavilyOption {
	return func(t *TavilyClient) {
		t.rawContent = false
	}
}

func NewTavily(apiKey string, opts ...TavilyOption) *TavilyClient {
	t := &TavilyClient{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxResults: 5,
		rawContent: true,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *TavilyClient) Search(ctx context.Context, query string) (*SearchResponse, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":             t.apiKey,
		"query":               query,
		"max_results":         t.maxResults,
		"include_raw_content": t.rawContent,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal tavily request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create tavily request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call tavily", goerr.V("query", query))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, goerr.New("tavily returned non-200 status",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(data)),
		)
	}

	var result SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, goerr.Wrap(err, "failed to decode tavily response")
	}
	result.Query = query

	return &result, nil
}

// SearchAll runs the queries concurrently and returns responses in the
// same order as the queries. A failed query yields a nil entry.
func (t *TavilyClient) SearchAll(ctx context.Context, queries []string) ([]*SearchResponse, error) {
	responses := make([]*SearchResponse, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			responses[i], errs[i] = t.Search(ctx, query)
		}(i, query)
	}
	wg.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == len(queries) && len(queries) > 0 {
		return nil, goerr.Wrap(failed[0], "all searches failed", goerr.V("queries", queries))
	}

	return responses, nil
}

// DeduplicateAndFormatSources flattens search responses into a single
// text block for prompting. Results sharing a URL are kept once, and raw
// content is capped at maxTokensPerSource tokens assuming 4 chars per token.
func DeduplicateAndFormatSources(responses []*SearchResponse, maxTokensPerSource int, includeRawContent bool) string {
	var ordered []SearchResult
	seen := map[string]bool{}
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		for _, r := range resp.Results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			ordered = append(ordered, r)
		}
	}

	var sb strings.Builder
	sb.WriteString("Sources:\n\n")
	for _, r := range ordered {
		fmt.Fprintf(&sb, "Source %s:\n===\n", r.Title)
		fmt.Fprintf(&sb, "URL: %s\n===\n", r.URL)
		fmt.Fprintf(&sb, "Most relevant content from source: %s\n===\n", r.Content)
		if includeRawContent {
			limit := maxTokensPerSource * 4
			raw := r.RawContent
			if raw == "" {
				raw = r.Content
			}
			if len(raw) > limit {
				cut := limit
				for cut > 0 && !utf8.RuneStart(raw[cut]) {
					cut--
				}
				raw = raw[:cut] + "... [truncated]"
			}
			fmt.Fprintf(&sb, "Full source content limited to %d tokens: %s\n\n", maxTokensPerSource, raw)
		}
	}

	return strings.TrimSpace(sb.String())
}

// FormatSources renders a compact bullet list of titles and URLs.
func FormatSources(responses []*SearchResponse) string {
	var lines []string
	seen := map[string]bool{}
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		for _, r := range resp.Results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			lines = append(lines, fmt.Sprintf("* %s : %s", r.Title, r.URL))
		}
	}
	return strings.Join(lines, "\n")
}

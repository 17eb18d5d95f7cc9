package tavily

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/arashpm/reporter/tools/search"
)

const endpoint = "https://api.tavily.com/search"

type Search struct {
	ApiKey string
	Client *http.Client
	// BaseURL overrides the Tavily endpoint, used in tests.
	BaseURL string
}

func (s Search) Search(ctx context.Context, q string, k int) ([]search.Result, error) {
	// https://docs.tavily.com/ docs
	base := s.BaseURL
	if base == "" {
		base = endpoint
	}
	payload := map[string]any{"query": q, "max_results": k, "search_depth": "basic"}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", base, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []search.Result
	for i, it := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, search.Result{Title: it.Title, URL: it.URL, Snippet: it.Content})
	}
	return out, nil
}

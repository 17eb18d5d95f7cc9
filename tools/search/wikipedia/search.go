package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/arashpm/reporter/tools/search"
)

const endpoint = "https://en.wikipedia.org/w/api.php"

type Search struct {
	Client *http.Client
	// BaseURL overrides the MediaWiki endpoint, used in tests.
	BaseURL string
}

func (s Search) Search(ctx context.Context, q string, k int) ([]search.Result, error) {
	base := s.BaseURL
	if base == "" {
		base = endpoint
	}
	u := fmt.Sprintf("%s?action=query&list=search&srsearch=%s&srlimit=%d&format=json",
		base, url.QueryEscape(q), k)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
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
		return nil, fmt.Errorf("wikipedia returned status: %d", resp.StatusCode)
	}

	var raw struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []search.Result
	for i, it := range raw.Query.Search {
		if i >= k {
			break
		}
		out = append(out, search.Result{
			Title:   it.Title,
			Snippet: stripTags(it.Snippet),
			URL:     "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(it.Title, " ", "_")),
		})
	}
	return out, nil
}

// stripTags removes the <span> highlight markup MediaWiki embeds in snippets.
func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return b.String()
}

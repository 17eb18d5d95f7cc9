package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/arashpm/reporter/tools/search"
)

const endpoint = "http://export.arxiv.org/api/query"

type Search struct {
	Client *http.Client
	// BaseURL overrides the arXiv export endpoint, used in tests.
	BaseURL string
}

type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	ID        string   `xml:"id"`
	Published string   `xml:"published"`
	Authors   []author `xml:"author"`
}

type author struct {
	Name string `xml:"name"`
}

func (s Search) Search(ctx context.Context, q string, k int) ([]search.Result, error) {
	base := s.BaseURL
	if base == "" {
		base = endpoint
	}
	u := fmt.Sprintf("%s?search_query=%s&start=0&max_results=%d",
		base, url.QueryEscape("all:"+q), k)

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
		return nil, fmt.Errorf("arxiv returned status: %d", resp.StatusCode)
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("arxiv feed parse failed: %w", err)
	}

	var out []search.Result
	for i, e := range f.Entries {
		if i >= k {
			break
		}
		names := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			names = append(names, a.Name)
		}
		out = append(out, search.Result{
			Title:     strings.TrimSpace(e.Title),
			Snippet:   compact(e.Summary, 300),
			URL:       strings.TrimSpace(e.ID),
			Authors:   strings.Join(names, ", "),
			Published: strings.TrimSpace(e.Published),
		})
	}
	return out, nil
}

func compact(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

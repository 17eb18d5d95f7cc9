package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Result is one hit returned by any searcher.
type Result struct {
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	URL       string `json:"url"`
	Authors   string `json:"authors,omitempty"`
	Published string `json:"published,omitempty"`
}

// Searcher finds documents for a query.
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]Result, error)
}

// Decl describes a registered tool for the generative backend.
type Decl struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

var queryParams = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "The search query"}
  },
  "required": ["query"]
}`)

// Registry holds named searchers and dispatches model tool calls to them.
type Registry struct {
	tools      map[string]Searcher
	order      []string
	descs      map[string]string
	maxResults int
}

// NewRegistry creates an empty registry. maxResults bounds every call.
func NewRegistry(maxResults int) *Registry {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Registry{
		tools:      make(map[string]Searcher),
		descs:      make(map[string]string),
		maxResults: maxResults,
	}
}

// Register adds a named searcher. Registration order is the order tools are
// advertised to the model, which matters for the researcher's lookup policy.
func (r *Registry) Register(name, description string, s Searcher) {
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = s
	r.descs[name] = description
}

// Declarations lists registered tools in registration order.
func (r *Registry) Declarations() []Decl {
	out := make([]Decl, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Decl{Name: name, Description: r.descs[name], Parameters: queryParams})
	}
	return out
}

// Names lists registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Call executes the named tool with model-supplied JSON arguments and renders
// the hits as text suitable for feeding back into a generation call.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	s, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("bad arguments for %s: %w", name, err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return "", fmt.Errorf("empty query for %s", name)
	}
	hits, err := s.Search(ctx, params.Query, r.maxResults)
	if err != nil {
		return "", fmt.Errorf("%s search failed: %w", name, err)
	}
	return FormatResults(hits), nil
}

// FormatResults renders hits as a numbered plain-text list.
func FormatResults(hits []Result) string {
	if len(hits) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, h.Title)
		if h.Authors != "" {
			fmt.Fprintf(&b, "   Authors: %s\n", h.Authors)
		}
		if h.Published != "" {
			fmt.Fprintf(&b, "   Published: %s\n", h.Published)
		}
		if h.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", h.Snippet)
		}
		if h.URL != "" {
			fmt.Fprintf(&b, "   URL: %s\n", h.URL)
		}
	}
	return b.String()
}

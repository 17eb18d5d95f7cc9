package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2101.00001v1</id>
    <title>Attention Is Not All You Need</title>
    <summary>  A study of
    transformer limits.  </summary>
    <published>2021-01-01T00:00:00Z</published>
    <author><name>A. Author</name></author>
    <author><name>B. Author</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2101.00002v1</id>
    <title>Second Paper</title>
    <summary>Another summary.</summary>
    <published>2021-02-01T00:00:00Z</published>
    <author><name>C. Author</name></author>
  </entry>
</feed>`

func TestSearchParsesAtomFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search_query"); !strings.HasPrefix(got, "all:") {
			t.Errorf("search_query = %q, want all: prefix", got)
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	hits, err := Search{BaseURL: srv.URL}.Search(context.Background(), "transformers", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Title != "Attention Is Not All You Need" {
		t.Fatalf("title = %q", hits[0].Title)
	}
	if hits[0].URL != "http://arxiv.org/abs/2101.00001v1" {
		t.Fatalf("url = %q", hits[0].URL)
	}
	if hits[0].Authors != "A. Author, B. Author" {
		t.Fatalf("authors = %q", hits[0].Authors)
	}
	if hits[0].Snippet != "A study of transformer limits." {
		t.Fatalf("snippet not whitespace-collapsed: %q", hits[0].Snippet)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	hits, err := Search{BaseURL: srv.URL}.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
}

func TestSearchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := (Search{BaseURL: srv.URL}).Search(context.Background(), "q", 3); err == nil {
		t.Fatalf("expected error on 503")
	}
}

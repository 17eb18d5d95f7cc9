package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arashpm/reporter/config"
	"github.com/arashpm/reporter/internal/agent/telemetry"
	"github.com/arashpm/reporter/provider"
)

// sectionStubLLM fails generation for selected section titles and tracks
// the maximum number of calls in flight.
type sectionStubLLM struct {
	mu          sync.Mutex
	failTitles  map[string]bool
	inFlight    int
	maxInFlight int
}

func (s *sectionStubLLM) Complete(ctx context.Context, messages []provider.Message, tools []provider.ToolDecl) (provider.Completion, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()
	time.Sleep(5 * time.Millisecond)

	system := messages[0].Content
	for title := range s.failTitles {
		if strings.Contains(system, fmt.Sprintf("%q", title)) {
			return provider.Completion{}, errors.New("section backend failure")
		}
	}
	return provider.Completion{Text: "generated body"}, nil
}

func testTelemetry() *telemetry.Telemetry {
	return telemetry.NewTelemetry(config.TelemetryConfig{})
}

func TestExecuteParallelTotalCoverage(t *testing.T) {
	llm := &sectionStubLLM{failTitles: map[string]bool{
		"Abstract":    true,
		"Methodology": true,
		"Conclusion":  true,
	}}
	w := &ParallelWriter{llm: llm, tele: testTelemetry(), format: FormatAcademic, topic: "graph databases", workers: 3}

	doc, err := w.ExecuteParallel(context.Background(), "User Prompt:\ngraph databases\n\nHistory so far:\n", CanonicalSections(), 3)
	if err != nil {
		t.Fatalf("ExecuteParallel returned error: %v", err)
	}

	for _, spec := range CanonicalSections() {
		if !strings.Contains(doc, "## "+spec.Title) {
			t.Fatalf("document missing heading %q:\n%s", spec.Title, doc)
		}
	}
	for _, failed := range []string{"Abstract", "Methodology", "Conclusion"} {
		if !strings.Contains(doc, "Error generating "+failed) {
			t.Fatalf("document missing placeholder for failed section %q", failed)
		}
	}
	if strings.Contains(doc, "Error generating Introduction") {
		t.Fatalf("healthy section replaced by placeholder")
	}
}

func TestExecuteParallelConcurrencyBound(t *testing.T) {
	llm := &sectionStubLLM{}
	w := &ParallelWriter{llm: llm, tele: testTelemetry(), format: FormatAcademic, topic: "t", workers: 2}

	if _, err := w.ExecuteParallel(context.Background(), "ctx", CanonicalSections(), 2); err != nil {
		t.Fatalf("ExecuteParallel returned error: %v", err)
	}
	if llm.maxInFlight > 2 {
		t.Fatalf("concurrency limit violated: %d calls in flight", llm.maxInFlight)
	}
}

func TestAssembleTitleAndReferences(t *testing.T) {
	shared := strings.Join([]string{
		"# Survey of Graph Databases",
		"see https://example.com/a and https://example.com/b.",
		"again https://example.com/a plus https://arxiv.org/abs/1234.5678",
	}, "\n")
	w := &ParallelWriter{tele: testTelemetry(), format: FormatAcademic, topic: "graph databases"}

	doc := w.assemble(shared, CanonicalSections(), make([]string, len(canonicalSections)))

	if !strings.HasPrefix(doc, "# Survey of Graph Databases\n") {
		t.Fatalf("title not taken from context heading:\n%s", doc)
	}
	if !strings.Contains(doc, "## User Prompt\ngraph databases") {
		t.Fatalf("user prompt section missing")
	}
	if !strings.Contains(doc, "[1] https://example.com/a") ||
		!strings.Contains(doc, "[2] https://example.com/b") ||
		!strings.Contains(doc, "[3] https://arxiv.org/abs/1234.5678") {
		t.Fatalf("references not numbered by first appearance:\n%s", doc)
	}
	if strings.Contains(doc, "[4]") {
		t.Fatalf("duplicate URL was not deduplicated")
	}
}

func TestExtractReferencesCapAndPlaceholder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "https://example.com/%d ", i)
	}
	refs := extractReferences(b.String(), 10)
	if strings.Count(refs, "\n") > 10 || !strings.Contains(refs, "[10]") || strings.Contains(refs, "[11]") {
		t.Fatalf("reference cap not applied:\n%s", refs)
	}

	if got := extractReferences("no links here", 10); got != noReferencesPlaceholder+"\n" {
		t.Fatalf("missing placeholder for empty references, got %q", got)
	}
}

func TestExtractTitleFallsBackToPrompt(t *testing.T) {
	long := strings.Repeat("x", 150)
	title := extractTitle("no headings in this context", long+"\nsecond line")
	if title != strings.Repeat("x", 100) {
		t.Fatalf("fallback title not truncated to 100 chars: %d", len(title))
	}

	wide := strings.Repeat("報", 150)
	title = extractTitle("no headings in this context", wide)
	if title != strings.Repeat("報", 100) {
		t.Fatalf("fallback title split a rune: %q", title)
	}
}

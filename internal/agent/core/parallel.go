package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/arashpm/reporter/internal/agent/telemetry"
	"github.com/arashpm/reporter/provider"
)

// SectionSpec describes one independently generated report section.
type SectionSpec struct {
	Name        string
	Title       string
	Description string
	TargetWords string
}

// canonicalSections is the fixed fan-out section list. Assembly order is
// this order, regardless of which branch finishes first.
var canonicalSections = []SectionSpec{
	{Name: "abstract", Title: "Abstract", Description: "a concise summary of the whole report", TargetWords: "150-250"},
	{Name: "introduction", Title: "Introduction", Description: "motivation, scope and questions addressed", TargetWords: "300-500"},
	{Name: "background", Title: "Background/Literature Review", Description: "prior work and context from the research evidence", TargetWords: "400-700"},
	{Name: "methodology", Title: "Methodology", Description: "how the evidence was gathered and evaluated", TargetWords: "200-400"},
	{Name: "findings", Title: "Key Findings/Results", Description: "the main findings, each tied to its sources", TargetWords: "500-800"},
	{Name: "discussion", Title: "Discussion", Description: "interpretation, implications and limitations", TargetWords: "300-600"},
	{Name: "conclusion", Title: "Conclusion", Description: "closing synthesis and open directions", TargetWords: "150-300"},
}

// CanonicalSections returns a copy of the fixed section list.
func CanonicalSections() []SectionSpec {
	out := make([]SectionSpec, len(canonicalSections))
	copy(out, canonicalSections)
	return out
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

const noReferencesPlaceholder = "References will be added based on research findings."

// ParallelWriter fans one writing step out into per-section generation
// calls and reassembles them deterministically.
type ParallelWriter struct {
	llm     provider.Provider
	tele    *telemetry.Telemetry
	format  ReportFormat
	topic   string
	workers int
}

func (w *ParallelWriter) Name() string { return AgentParallelWriter }

func (w *ParallelWriter) Execute(ctx context.Context, taskContext string) (string, error) {
	return w.ExecuteParallel(ctx, taskContext, CanonicalSections(), w.workers)
}

// ExecuteParallel generates every section concurrently, bounded by limit
// outstanding calls. Branches are isolated: a failed section becomes a
// placeholder, never an error, and the assembled document always carries
// all section headings.
func (w *ParallelWriter) ExecuteParallel(ctx context.Context, sharedContext string, sections []SectionSpec, limit int) (string, error) {
	if limit <= 0 {
		limit = 3
	}

	bodies := make([]string, len(sections))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, spec := range sections {
		wg.Add(1)
		go func(i int, spec SectionSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			body, err := w.generateSection(ctx, sharedContext, spec)
			if err != nil {
				w.tele.RecordSectionFailure()
				body = fmt.Sprintf("Error generating %s", spec.Title)
			}
			bodies[i] = body
		}(i, spec)
	}
	wg.Wait()

	return w.assemble(sharedContext, sections, bodies), nil
}

func (w *ParallelWriter) generateSection(ctx context.Context, sharedContext string, spec SectionSpec) (string, error) {
	style, ok := formatStyles[w.format]
	if !ok {
		style = formatStyles[FormatAcademic]
	}
	system := fmt.Sprintf(`You are writing exactly one section of a research report: %q.
Cover %s in %s words. Write in %s.
Return only the section body in Markdown, without the section heading.`,
		spec.Title, spec.Description, spec.TargetWords, style)

	completion, err := w.llm.Complete(ctx, []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: sharedContext},
	}, nil)
	w.tele.RecordLLMRequest(err)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(completion.Text) == "" {
		return "", fmt.Errorf("empty section body")
	}
	return completion.Text, nil
}

func (w *ParallelWriter) assemble(sharedContext string, sections []SectionSpec, bodies []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", extractTitle(sharedContext, w.topic))
	fmt.Fprintf(&b, "## User Prompt\n%s\n\n", strings.TrimSpace(w.topic))
	for i, spec := range sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", spec.Title, strings.TrimSpace(bodies[i]))
	}
	b.WriteString("## References\n")
	b.WriteString(extractReferences(sharedContext, 10))
	return b.String()
}

// extractTitle takes the first Markdown heading found in the shared
// context, falling back to the first line of the original prompt capped at
// 100 characters.
func extractTitle(sharedContext, topic string) string {
	for _, line := range strings.Split(sharedContext, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if title := strings.TrimSpace(strings.TrimLeft(line, "# ")); title != "" {
				return title
			}
		}
	}
	first := strings.TrimSpace(strings.SplitN(topic, "\n", 2)[0])
	if runes := []rune(first); len(runes) > 100 {
		first = string(runes[:100])
	}
	if first == "" {
		first = "Research Report"
	}
	return first
}

// extractReferences numbers URL-like substrings in order of first
// appearance, capped at max.
func extractReferences(sharedContext string, max int) string {
	seen := make(map[string]struct{})
	var lines []string
	for _, u := range urlPattern.FindAllString(sharedContext, -1) {
		u = strings.TrimRight(u, ".,;)")
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		lines = append(lines, fmt.Sprintf("[%d] %s", len(lines)+1, u))
		if len(lines) >= max {
			break
		}
	}
	if len(lines) == 0 {
		return noReferencesPlaceholder + "\n"
	}
	return strings.Join(lines, "\n") + "\n"
}

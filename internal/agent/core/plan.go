package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/arashpm/reporter/provider"
)

// Contract step titles. The first, second and last steps of every plan are
// fixed regardless of what the plan generator proposes.
const (
	BroadSearchStep    = "Research agent: Use Tavily to perform a broad web search and collect top relevant items (title, authors, year, venue/source, URL, DOI if available)."
	TargetedSearchStep = "Research agent: For each collected item, search on arXiv to find matching preprints/versions and record arXiv URLs (if they exist)."
	FinalReportStep    = "Writer agent: Generate the final comprehensive Markdown report with inline citations and a complete References section with clickable links."
)

// DefaultPlanTitles is the hard-coded plan used whenever the plan generator
// returns something that is not a flat list of step titles.
var DefaultPlanTitles = []string{
	BroadSearchStep,
	TargetedSearchStep,
	"Research agent: Synthesize and rank findings by relevance, recency, and authority; deduplicate by title/DOI.",
	"Writer agent: Draft a structured outline based on the ranked evidence.",
	"Editor agent: Review for coherence, coverage, and citation completeness; request fixes.",
	FinalReportStep,
}

// Planner turns a topic into an ordered, bounded plan of typed steps.
type Planner struct {
	llm      provider.Provider
	logger   *log.Logger
	maxSteps int
}

func NewPlanner(llm provider.Provider, logger *log.Logger, maxSteps int) *Planner {
	if maxSteps <= 0 {
		maxSteps = 7
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PLAN] ", log.LstdFlags)
	}
	return &Planner{llm: llm, logger: logger, maxSteps: maxSteps}
}

// DefaultPlan returns the hard-coded fallback plan, assembled and tagged.
// Callers use it to seed progress before the real plan is known.
func (p *Planner) DefaultPlan() []Step {
	return p.assemble(DefaultPlanTitles)
}

const planPrompt = `You are a planning assistant for a research-report pipeline.
Given a user topic, produce an ordered list of 4 to 7 step instructions.
Each step instruction must start with one of: "Research agent:", "Analysis agent:", "Writer agent:", "Editor agent:".
Respond ONLY with a JSON array of strings, no prose and no code fences.`

// BuildPlan asks the generator for a plan and enforces the step contract.
// Any transport or parse failure falls back to the default plan.
func (p *Planner) BuildPlan(ctx context.Context, topic string) []Step {
	titles := DefaultPlanTitles
	if p.llm != nil {
		completion, err := p.llm.Complete(ctx, []provider.Message{
			{Role: "system", Content: planPrompt},
			{Role: "user", Content: fmt.Sprintf("Topic: %s", topic)},
		}, nil)
		if err != nil {
			p.logger.Printf("plan generation failed, using default plan: %v", err)
		} else if parsed, perr := ParseStepTitles(completion.Text); perr != nil {
			p.logger.Printf("plan response unusable, using default plan: %v", perr)
		} else {
			titles = parsed
		}
	}
	return p.assemble(titles)
}

// ParseStepTitles reads a list of step titles out of a generator response.
// Three representations are tolerated, tried in order: a strict JSON array,
// a single-quoted literal list, and either of those wrapped in code fences
// or surrounding quotes.
func ParseStepTitles(raw string) ([]string, error) {
	candidates := []string{raw, stripWrapper(raw)}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if titles, ok := parseJSONList(c); ok {
			return titles, nil
		}
		if titles, ok := parseLiteralList(c); ok {
			return titles, nil
		}
	}
	return nil, &PlanParseError{Raw: raw}
}

func parseJSONList(s string) ([]string, bool) {
	var titles []string
	if err := json.Unmarshal([]byte(s), &titles); err != nil {
		return nil, false
	}
	if len(titles) == 0 {
		return nil, false
	}
	return titles, true
}

// parseLiteralList accepts a single-quoted list like ['a', 'b'] by
// swapping the quote style and retrying as JSON. Titles containing double
// quotes are escaped first so the swap cannot produce invalid JSON.
func parseLiteralList(s string) ([]string, bool) {
	if !strings.HasPrefix(s, "[") || !strings.Contains(s, "'") {
		return nil, false
	}
	swapped := strings.ReplaceAll(s, `"`, `\"`)
	swapped = strings.ReplaceAll(swapped, "'", `"`)
	return parseJSONList(swapped)
}

// stripWrapper removes a fenced code block or surrounding quote pair.
func stripWrapper(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.Index(s, "\n"); i >= 0 && !strings.HasPrefix(strings.TrimSpace(s), "[") {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		return strings.TrimSpace(s)
	}
	for _, q := range []string{`"`, "'", "`"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// assemble injects the contract steps, bounds the plan and tags each step.
func (p *Planner) assemble(titles []string) []Step {
	var middle []string
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" || t == BroadSearchStep || t == TargetedSearchStep || t == FinalReportStep {
			continue
		}
		middle = append(middle, t)
	}
	if room := p.maxSteps - 3; len(middle) > room {
		middle = middle[:room]
	}

	ordered := make([]string, 0, len(middle)+3)
	ordered = append(ordered, BroadSearchStep, TargetedSearchStep)
	ordered = append(ordered, middle...)
	ordered = append(ordered, FinalReportStep)

	steps := make([]Step, len(ordered))
	for i, title := range ordered {
		steps[i] = Step{Title: title, Ordinal: i + 1, Kind: KindFromTitle(title)}
	}
	return steps
}

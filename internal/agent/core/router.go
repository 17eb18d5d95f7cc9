package core

import "strings"

// Worker agent names, used both for history records and progress rendering.
const (
	AgentResearcher     = "researcher"
	AgentAnalyst        = "analyst"
	AgentWriter         = "writer"
	AgentParallelWriter = "parallel-writer"
	AgentEditor         = "editor"
)

var analysisKeywords = []string{"analysis agent", "analyze", "synthesize", "organize", "filter", "rank"}
var editKeywords = []string{"revise", "edit", "feedback"}

// KindFromTitle converts an externally generated step title into a tagged
// kind. This is the only place title text is inspected; everything after
// plan ingestion dispatches on the tag. First matching rule wins.
func KindFromTitle(title string) StepKind {
	t := strings.ToLower(title)
	if strings.Contains(t, "research") {
		return KindResearch
	}
	for _, kw := range analysisKeywords {
		if strings.Contains(t, kw) {
			return KindAnalysis
		}
	}
	if strings.Contains(t, "draft") || strings.Contains(t, "write") {
		if strings.Contains(t, "parallel") || strings.Contains(t, "concurrent") {
			return KindParallelWrite
		}
		return KindWrite
	}
	for _, kw := range editKeywords {
		if strings.Contains(t, kw) {
			return KindEdit
		}
	}
	return KindUnknown
}

// Route resolves the worker kind for a step at execution time. A plain
// write step upgrades to the parallel section writer once the run is deep
// enough (more than two completed steps).
func Route(step Step, historyLen int) (StepKind, error) {
	kind := step.Kind
	if kind == "" {
		kind = KindFromTitle(step.Title)
	}
	if kind == KindWrite && historyLen > 2 {
		kind = KindParallelWrite
	}
	if kind == KindUnknown {
		return KindUnknown, &UnroutableStepError{Title: step.Title}
	}
	return kind, nil
}

// AgentName maps a worker kind to its agent tag.
func AgentName(kind StepKind) string {
	switch kind {
	case KindResearch:
		return AgentResearcher
	case KindAnalysis:
		return AgentAnalyst
	case KindWrite:
		return AgentWriter
	case KindParallelWrite:
		return AgentParallelWriter
	case KindEdit:
		return AgentEditor
	default:
		return "unknown"
	}
}

package core

import (
	"fmt"
	"strings"
)

// History record labels rendered into worker context.
const (
	labelDraft    = "Draft"
	labelFeedback = "Feedback"
	labelResearch = "Research"
	labelOther    = "Other"
)

// Agent name tags checked before falling back to description matching.
var agentLabels = map[string]string{
	AgentWriter:         labelDraft,
	AgentParallelWriter: labelDraft,
	AgentEditor:         labelFeedback,
	AgentResearcher:     labelResearch,
}

// BuildContext renders the topic and the full execution history as the
// textual context for the next worker. Read-only: calling it again after
// history grows yields the previous output as a strict prefix.
func BuildContext(topic string, history []HistoryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User Prompt:\n%s\n\nHistory so far:\n", topic)
	for i, rec := range history {
		fmt.Fprintf(&b, "%s (Step %d):\n%s\n\n", classifyRecord(rec), i+1, rec.Output)
	}
	return b.String()
}

// classifyRecord picks a label by exact agent tag first, then by substring
// match on the record's description.
func classifyRecord(rec HistoryRecord) string {
	if label, ok := agentLabels[rec.AgentName]; ok {
		return label
	}
	desc := strings.ToLower(rec.Description)
	switch {
	case strings.Contains(desc, "draft"):
		return labelDraft
	case strings.Contains(desc, "feedback"):
		return labelFeedback
	case strings.Contains(desc, "research"):
		return labelResearch
	default:
		return labelOther
	}
}

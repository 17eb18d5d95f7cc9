package core

import (
	"strings"
	"testing"
)

func TestBuildContextClassification(t *testing.T) {
	history := []HistoryRecord{
		{AgentName: AgentResearcher, Description: "Collected research findings and sources", Output: "r1"},
		{AgentName: AgentAnalyst, Description: "Organized and ranked the evidence", Output: "a1"},
		{AgentName: AgentWriter, Description: "Drafted the report", Output: "w1"},
		{AgentName: AgentParallelWriter, Description: "Drafted report sections in parallel", Output: "pw1"},
		{AgentName: AgentEditor, Description: "Provided editorial feedback on the draft", Output: "e1"},
		{AgentName: "mystery", Description: "wrote a draft of something", Output: "m1"},
		{AgentName: "mystery", Description: "nothing recognizable", Output: "m2"},
		{AgentName: "mystery", Description: "rewrote the summary", Output: "m3"},
		{AgentName: "mystery", Description: "edited the intro", Output: "m4"},
	}

	got := BuildContext("my topic", history)

	if !strings.HasPrefix(got, "User Prompt:\nmy topic\n\nHistory so far:\n") {
		t.Fatalf("context header wrong:\n%s", got)
	}
	wantBlocks := []string{
		"Research (Step 1):\nr1",
		"Other (Step 2):\na1",
		"Draft (Step 3):\nw1",
		"Draft (Step 4):\npw1",
		"Feedback (Step 5):\ne1",
		"Draft (Step 6):\nm1",
		"Other (Step 7):\nm2",
		"Other (Step 8):\nm3",
		"Other (Step 9):\nm4",
	}
	pos := 0
	for _, block := range wantBlocks {
		i := strings.Index(got[pos:], block)
		if i < 0 {
			t.Fatalf("missing or misordered block %q in:\n%s", block, got)
		}
		pos += i + len(block)
	}
}

func TestBuildContextPrefixMonotonicity(t *testing.T) {
	history := []HistoryRecord{
		{AgentName: AgentResearcher, Description: "research", Output: "first"},
		{AgentName: AgentWriter, Description: "draft", Output: "second"},
	}

	short := BuildContext("topic", history[:1])
	long := BuildContext("topic", history)

	if !strings.HasPrefix(long, short) {
		t.Fatalf("context for extended history does not preserve prefix:\nshort:\n%s\nlong:\n%s", short, long)
	}
}

func TestBuildContextEmptyHistory(t *testing.T) {
	got := BuildContext("just the topic", nil)
	if got != "User Prompt:\njust the topic\n\nHistory so far:\n" {
		t.Fatalf("unexpected empty-history context: %q", got)
	}
}

package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/arashpm/reporter/internal/agent/telemetry"
	"github.com/arashpm/reporter/provider"
	"github.com/arashpm/reporter/tools/search"
)

// Worker turns a context string into generated text, possibly using tools.
type Worker interface {
	Name() string
	Execute(ctx context.Context, taskContext string) (string, error)
}

var formatStyles = map[ReportFormat]string{
	FormatAcademic:   "a formal academic register with precise terminology, aimed at researchers; target 2500-4000 words overall",
	FormatExecutive:  "a crisp business register for senior leadership, leading with conclusions; target 800-1200 words overall",
	FormatTechnical:  "an implementation-focused register for practitioners, concrete and specific; target 1500-2500 words overall",
	FormatNewsletter: "an engaging conversational register for a broad audience; target 600-1000 words overall",
}

// Researcher consults background lookup before targeted web search and
// academic search, then synthesizes tool results into prose. Tool use is a
// single round trip: one generation advertising the tools, one follow-up
// generation including whatever results came back.
type Researcher struct {
	llm    provider.Provider
	tools  *search.Registry
	tele   *telemetry.Telemetry
	logger *log.Logger
}

func (r *Researcher) Name() string { return AgentResearcher }

const researcherPrompt = `You are a research agent gathering evidence for a report.
You have search tools available. Consult them in this order when relevant:
wikipedia for background and definitions first, then tavily for current web
coverage, then arxiv for academic preprints. Cite every source you use by URL.
Synthesize what you find into clear prose with inline source URLs. Do not
fabricate sources.`

func (r *Researcher) Execute(ctx context.Context, taskContext string) (string, error) {
	messages := []provider.Message{
		{Role: "system", Content: researcherPrompt},
		{Role: "user", Content: taskContext},
	}

	var decls []provider.ToolDecl
	if r.tools != nil {
		for _, d := range r.tools.Declarations() {
			decls = append(decls, provider.ToolDecl{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
		}
	}

	completion, err := r.llm.Complete(ctx, messages, decls)
	r.tele.RecordLLMRequest(err)
	if err != nil {
		return "", err
	}
	if len(completion.ToolCalls) == 0 {
		return completion.Text, nil
	}

	for _, call := range completion.ToolCalls {
		result, terr := r.tools.Call(ctx, call.Name, call.Arguments)
		r.tele.RecordToolCall(call.Name, terr)
		if terr != nil {
			r.logger.Printf("tool %s failed: %v", call.Name, terr)
			result = fmt.Sprintf("Tool %s failed: %v", call.Name, terr)
		}
		messages = append(messages, provider.ToolResultMessage(call, result))
	}
	messages = append(messages, provider.Message{
		Role:    "user",
		Content: "Using the tool results above, complete the research task. Include every source URL you relied on.",
	})

	followup, err := r.llm.Complete(ctx, messages, nil)
	r.tele.RecordLLMRequest(err)
	if err != nil {
		return "", err
	}
	return followup.Text, nil
}

// Analyst produces organizational and synthesis text only. It never emits a
// report skeleton; that is the writer's job.
type Analyst struct {
	llm  provider.Provider
	tele *telemetry.Telemetry
}

func (a *Analyst) Name() string { return AgentAnalyst }

const analystPrompt = `You are an analysis agent. Organize, rank and synthesize the
evidence in the context into structured notes: ordered findings, groupings and
gaps. Do NOT produce a report. No title, no abstract, no section skeleton.
Keep every source URL attached to the finding it supports.`

func (a *Analyst) Execute(ctx context.Context, taskContext string) (string, error) {
	completion, err := a.llm.Complete(ctx, []provider.Message{
		{Role: "system", Content: analystPrompt},
		{Role: "user", Content: taskContext},
	}, nil)
	a.tele.RecordLLMRequest(err)
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

// Writer produces one complete report skeleton in a single generation call.
type Writer struct {
	llm    provider.Provider
	tele   *telemetry.Telemetry
	format ReportFormat
}

func (w *Writer) Name() string { return AgentWriter }

func writerPrompt(format ReportFormat) string {
	style, ok := formatStyles[format]
	if !ok {
		style = formatStyles[FormatAcademic]
	}
	headings := make([]string, 0, len(canonicalSections))
	for _, s := range canonicalSections {
		headings = append(headings, "## "+s.Title)
	}
	return fmt.Sprintf(`You are a report writer. Produce ONE complete Markdown document:
a "# " title line, a "## User Prompt" section restating the topic, then these
sections in order:
%s
and finally a "## References" section with numbered clickable links.
Write in %s. Use inline citations that point at the references.`,
		strings.Join(headings, "\n"), style)
}

func (w *Writer) Execute(ctx context.Context, taskContext string) (string, error) {
	completion, err := w.llm.Complete(ctx, []provider.Message{
		{Role: "system", Content: writerPrompt(w.format)},
		{Role: "user", Content: taskContext},
	}, nil)
	w.tele.RecordLLMRequest(err)
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

// Editor revises one document into one revised document. Citation markers
// and the references section must survive in place, unrenumbered.
type Editor struct {
	llm  provider.Provider
	tele *telemetry.Telemetry
}

func (e *Editor) Name() string { return AgentEditor }

const editorPrompt = `You are an editor. Revise the draft in the context for coherence,
coverage and citation completeness. Return the full revised document.
Keep every inline citation marker exactly as written and keep the References
section in its original position with its original numbering. Never drop or
renumber a citation.`

func (e *Editor) Execute(ctx context.Context, taskContext string) (string, error) {
	completion, err := e.llm.Complete(ctx, []provider.Message{
		{Role: "system", Content: editorPrompt},
		{Role: "user", Content: taskContext},
	}, nil)
	e.tele.RecordLLMRequest(err)
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

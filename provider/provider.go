package provider

import (
	"context"
	"errors"
	"time"

	openai_provider "github.com/arashpm/reporter/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Message is a role-tagged message in a conversation.
type Message = openai_provider.Message

// ToolDecl declares a named tool the model may invoke, with a
// JSON-schema description of its parameters.
type ToolDecl = openai_provider.ToolDecl

// ToolCall is a tool invocation requested by the model.
type ToolCall = openai_provider.ToolCall

// Completion is the result of one generation call.
type Completion = openai_provider.Completion

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDecl) (Completion, error)
}

// Options carries provider construction settings.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, opts Options) (Provider, error) {
	switch client {
	case OpenAI:
		if opts.APIKey == "" {
			return nil, errors.New("OPENAI_API_KEY not set")
		}
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 120 * time.Second
		}
		return openai_provider.NewClient(opts.APIKey, opts.Model, opts.Temperature, opts.MaxTokens, timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}

// ToolResultMessage renders a tool result as a message for the follow-up
// generation call.
func ToolResultMessage(call ToolCall, result string) Message {
	return Message{
		Role:    "user",
		Content: "Tool " + call.Name + " was called with " + string(call.Arguments) + " and returned:\n" + result,
	}
}

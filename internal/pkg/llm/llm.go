// Package llm is the language-model boundary: tool declarations, chat
// sessions with function calling, and plain text generation.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable means the model could not be reached or returned nothing.
var ErrUnavailable = errors.New("language model unavailable")

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
)

// Param describes one tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
}

// Tool is a function the model may ask us to call.
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// Reply is one model turn: text, function calls, or both.
type Reply struct {
	Text  string
	Calls []FunctionCall
}

// ChatSession keeps the turns of one conversation.
type ChatSession interface {
	Send(ctx context.Context, text string) (*Reply, error)
	// SendToolResult hands the result of a requested call back to the model.
	SendToolResult(ctx context.Context, name string, result map[string]any) (*Reply, error)
}

// LanguageModel creates chat sessions and generates free text.
type LanguageModel interface {
	StartChat(instructions string, tools []Tool) ChatSession
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

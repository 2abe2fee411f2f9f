package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini is a LanguageModel backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini opens a Gemini client for model.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// StartChat opens a chat with the given system instructions and tools.
func (g *Gemini) StartChat(instructions string, tools []Tool) ChatSession {
	m := g.client.GenerativeModel(g.model)
	if instructions != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instructions)}}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, functionDeclaration(t))
		}
		m.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return &geminiSession{cs: m.StartChat()}
}

// Generate returns the text of a single prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	reply := parseResponse(resp)
	if reply.Text == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return reply.Text, nil
}

// Close releases the client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

type geminiSession struct {
	cs *genai.ChatSession
}

func (s *geminiSession) Send(ctx context.Context, text string) (*Reply, error) {
	resp, err := s.cs.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return parseResponse(resp), nil
}

func (s *geminiSession) SendToolResult(ctx context.Context, name string, result map[string]any) (*Reply, error) {
	resp, err := s.cs.SendMessage(ctx, genai.FunctionResponse{Name: name, Response: result})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return parseResponse(resp), nil
}

var schemaTypes = map[ParamType]genai.Type{
	TypeString:  genai.TypeString,
	TypeNumber:  genai.TypeNumber,
	TypeInteger: genai.TypeInteger,
	TypeBoolean: genai.TypeBoolean,
}

func functionDeclaration(t Tool) *genai.FunctionDeclaration {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(t.Params)),
	}
	for _, p := range t.Params {
		typ, ok := schemaTypes[p.Type]
		if !ok {
			typ = genai.TypeString
		}
		schema.Properties[p.Name] = &genai.Schema{
			Type:        typ,
			Description: p.Description,
			Enum:        p.Enum,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

// parseResponse collects text and function calls of the first candidate.
func parseResponse(resp *genai.GenerateContentResponse) *Reply {
	reply := &Reply{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			reply.Calls = append(reply.Calls, FunctionCall{Name: p.Name, Args: p.Args})
		case *genai.FunctionCall:
			reply.Calls = append(reply.Calls, FunctionCall{Name: p.Name, Args: p.Args})
		}
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiLLMClient implements LLMClient and ToolCallingClient using Google's Gemini API.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient creates a new Gemini LLM client.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to create gemini client: %w", err)
	}

	return &GeminiLLMClient{
		client:  client,
		modelID: modelID,
	}, nil
}

// Model returns the default model id.
func (c *GeminiLLMClient) Model() string { return c.modelID }

func (c *GeminiLLMClient) model(name string, system []string) *genai.GenerativeModel {
	if strings.TrimSpace(name) == "" {
		name = c.modelID
	}
	model := c.client.GenerativeModel(name)
	if systemText := strings.TrimSpace(strings.Join(system, "\n\n")); systemText != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
	}
	return model
}

// Complete sends a completion request to Gemini and returns the response.
func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if len(req.Messages) == 0 {
		return LLMResponse{}, errors.New("conversation: gemini requires at least one message")
	}
	model := c.model(req.Model, req.System)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	cs := model.StartChat()
	cs.History = geminiHistory(req.Messages[:len(req.Messages)-1])

	lastMsg := req.Messages[len(req.Messages)-1]
	resp, err := cs.SendMessage(ctx, genai.Text(lastMsg.Content))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: gemini completion failed: %w", err)
	}

	candidate, err := firstCandidate(resp)
	if err != nil {
		return LLMResponse{}, err
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	return LLMResponse{
		Text:       strings.TrimSpace(responseText.String()),
		StopReason: candidate.FinishReason.String(),
		Usage:      geminiUsage(resp),
	}, nil
}

// CompleteWithTools runs one function-calling round against Gemini.
func (c *GeminiLLMClient) CompleteWithTools(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	if len(req.Messages) == 0 {
		return ToolResponse{}, errors.New("conversation: gemini requires at least one message")
	}
	model := c.model(req.Model, req.System)
	model.SetTemperature(0.2)
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	}

	history := geminiHistory(req.Messages)
	if len(history) == 0 {
		return ToolResponse{}, errors.New("conversation: gemini requires a non-empty user message")
	}
	for _, ex := range req.Exchanges {
		calls := make([]genai.Part, 0, len(ex.Calls))
		for _, call := range ex.Calls {
			calls = append(calls, genai.FunctionCall{Name: call.Name, Args: call.Args})
		}
		results := make([]genai.Part, 0, len(ex.Results))
		for _, res := range ex.Results {
			results = append(results, genai.FunctionResponse{Name: res.Name, Response: res.Response})
		}
		history = append(history,
			&genai.Content{Role: "model", Parts: calls},
			&genai.Content{Role: "user", Parts: results},
		)
	}

	last := history[len(history)-1]
	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return ToolResponse{}, fmt.Errorf("conversation: gemini tool completion failed: %w", err)
	}

	candidate, err := firstCandidate(resp)
	if err != nil {
		return ToolResponse{}, err
	}

	out := ToolResponse{Usage: geminiUsage(resp)}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			out.Calls = append(out.Calls, ToolCall{Name: p.Name, Args: p.Args})
		}
	}
	out.Text = strings.TrimSpace(text.String())
	return out, nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func geminiHistory(messages []ChatMessage) []*genai.Content {
	history := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == ChatRoleSystem {
			continue
		}
		role := "user"
		if msg.Role == ChatRoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}
	return history
}

func geminiDeclarations(tools []ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(tool.Params)),
		}
		for _, p := range tool.Params {
			schema.Properties[p.Name] = &genai.Schema{Type: geminiType(p.Type), Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		decl := &genai.FunctionDeclaration{Name: tool.Name, Description: tool.Description}
		if len(tool.Params) > 0 {
			decl.Parameters = schema
		}
		decls = append(decls, decl)
	}
	return decls
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "number":
		return genai.TypeNumber
	default:
		return genai.TypeString
	}
}

func firstCandidate(resp *genai.GenerateContentResponse) (*genai.Candidate, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("conversation: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, errors.New("conversation: gemini returned empty content")
	}
	return candidate, nil
}

func geminiUsage(resp *genai.GenerateContentResponse) TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return TokenUsage{}
	}
	return TokenUsage{
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		TotalTokens:  resp.UsageMetadata.TotalTokenCount,
	}
}

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient is the alternate text-completion provider.
type BedrockLLMClient struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockLLMClient(api bedrockConverseAPI, modelID string) *BedrockLLMClient {
	if api == nil {
		panic("conversation: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api, modelID: strings.TrimSpace(modelID)}
}

// Model returns the configured model id.
func (c *BedrockLLMClient) Model() string { return c.modelID }

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = c.modelID
	}
	if modelID == "" {
		return LLMResponse{}, errors.New("conversation: bedrock model id is required")
	}

	system, messages, err := bedrockConversation(req)
	if err != nil {
		return LLMResponse{}, err
	}
	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		System:          system,
		Messages:        messages,
		InferenceConfig: bedrockInference(req),
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: bedrock converse failed: %w", err)
	}

	text, err := bedrockExtractOutputText(out)
	if err != nil {
		return LLMResponse{}, err
	}
	resp := LLMResponse{
		Text:       strings.TrimSpace(text),
		StopReason: string(out.StopReason),
	}
	if u := out.Usage; u != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(u.InputTokens),
			OutputTokens: int32OrZero(u.OutputTokens),
			TotalTokens:  int32OrZero(u.TotalTokens),
		}
	}
	return resp, nil
}

// bedrockConversation splits chat turns into Converse system blocks and
// alternating messages. System-role turns join the system prompt.
func bedrockConversation(req LLMRequest) ([]brtypes.SystemContentBlock, []brtypes.Message, error) {
	system := make([]brtypes.SystemContentBlock, 0, len(req.System)+1)
	addSystem := func(text string) {
		if text = strings.TrimSpace(text); text != "" {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: text})
		}
	}
	for _, block := range req.System {
		addSystem(block)
	}
	if req.JSON {
		addSystem("Respond with a single JSON object and nothing else.")
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		var role brtypes.ConversationRole
		switch msg.Role {
		case ChatRoleSystem:
			addSystem(content)
			continue
		case ChatRoleUser:
			role = brtypes.ConversationRoleUser
		case ChatRoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			return nil, nil, fmt.Errorf("conversation: unsupported role %q", msg.Role)
		}
		messages = append(messages, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
		})
	}
	return system, messages, nil
}

// bedrockInference maps sampling settings; a negative temperature leaves the
// model default in place.
func bedrockInference(req LLMRequest) *brtypes.InferenceConfiguration {
	cfg := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(req.MaxTokens)
	}
	if req.Temperature >= 0 {
		cfg.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP != 0 {
		cfg.TopP = aws.Float32(req.TopP)
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil && cfg.TopP == nil {
		return nil
	}
	return cfg
}

func bedrockExtractOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("conversation: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("conversation: bedrock response did not include a message output")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", errors.New("conversation: bedrock response contained no text content blocks")
	}
	return builder.String(), nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

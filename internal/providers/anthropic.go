package providers

import (
	"context"
	"strings"

	"github.com/ChamsBouzaiene/asimov/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicClient implements engine.LLMClient against the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client. An empty baseURL means the public API.
func NewAnthropicClient(apiKey, baseURL string) (*AnthropicClient, error) {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(apiKey, opts...)}, nil
}

// Chat implements engine.LLMClient.Chat.
//
// The agent records an answer and the ability output as two assistant
// messages in a row. Anthropic requires alternating roles, so consecutive
// messages with the same role are joined into one.
func (c *AnthropicClient) Chat(ctx context.Context, modelName string, messages []engine.ChatMessage, opts engine.ChatOptions) (engine.LLMResponse, error) {
	var systemParts []anthropic.MessageSystemPart
	var turns []turn

	for _, msg := range messages {
		switch msg.Role {
		case engine.RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: msg.Content,
			})
		case engine.RoleUser, engine.RoleAssistant:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			turns = appendTurn(turns, msg.Role, msg.Content)
		}
	}
	// The first turn must come from the user.
	if len(turns) == 0 || turns[0].role != engine.RoleUser {
		turns = append([]turn{{role: engine.RoleUser, parts: []string{"Begin."}}}, turns...)
	}

	anthropicMsgs := make([]anthropic.Message, 0, len(turns))
	for _, t := range turns {
		role := anthropic.RoleUser
		if t.role == engine.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		anthropicMsgs = append(anthropicMsgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(strings.Join(t.parts, "\n\n"))},
		})
	}

	maxTokens := 4096
	if opts.MaxOutputTokens > 0 {
		maxTokens = opts.MaxOutputTokens
	}

	temperature := float32(0.1)
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(modelName),
		Messages:    anthropicMsgs,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return engine.LLMResponse{}, engine.WrapLLMError(err, httpStatus, retryAfter)
	}

	var textContent string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			textContent += *block.Text
		}
	}

	finishReason := "stop"
	switch resp.StopReason {
	case "max_tokens":
		finishReason = "length"
	case "content_filtered":
		finishReason = "content_filter"
	}

	return engine.LLMResponse{
		Assistant: engine.ChatMessage{
			Role:    engine.RoleAssistant,
			Content: textContent,
		},
		Usage: engine.Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: finishReason,
	}, nil
}

type turn struct {
	role  engine.MessageRole
	parts []string
}

func appendTurn(turns []turn, role engine.MessageRole, content string) []turn {
	if n := len(turns); n > 0 && turns[n-1].role == role {
		turns[n-1].parts = append(turns[n-1].parts, content)
		return turns
	}
	return append(turns, turn{role: role, parts: []string{content}})
}

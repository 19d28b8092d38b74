package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
)

var _ model.ToolCallingChatModel = (*Chat)(nil)

// ChatConfig holds the chat model settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Provider    string
	Logger      *zap.Logger
}

// Chat is a tool-calling chat model over the chat completions endpoint.
type Chat struct {
	client      *openai.Client
	model       string
	temperature float32
	provider    string
	logger      *zap.Logger
	tools       []openai.Tool
}

// NewChat creates an OpenAI-compatible chat model.
func NewChat(cfg *ChatConfig) *Chat {
	return &Chat{
		client:      newClient(cfg.APIKey, cfg.BaseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		provider:    cfg.Provider,
		logger:      cfg.Logger,
	}
}

// WithTools returns a copy of c that declares tools on every request.
func (c *Chat) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted, err := toTools(tools)
	if err != nil {
		return nil, err
	}
	bound := *c
	bound.tools = converted
	return &bound, nil
}

// Generate sends the conversation and returns the next assistant turn.
func (c *Chat) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{Temperature: &c.temperature}, opts...)
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toMessages(messages),
		Tools:    c.tools,
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return nil, parseAPIErrorAs(err, "chat", domain.ErrExternalCall)
	}
	if len(resp.Choices) == 0 {
		metrics.ChatRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return nil, fmt.Errorf("chat response has no choices: %w", domain.ErrExternalCall)
	}

	metrics.ChatRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())
	metrics.ChatTokensTotal.WithLabelValues(c.provider, c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ChatTokensTotal.WithLabelValues(c.provider, c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return fromResponse(resp.Choices[0], resp.Usage), nil
}

// Stream delivers the Generate result as a single chunk.
func (c *Chat) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toMessages(in []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		if m == nil {
			continue
		}
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role == schema.Tool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toTools(infos []*schema.ToolInfo) ([]openai.Tool, error) {
	if len(infos) == 0 {
		return nil, nil
	}
	out := make([]openai.Tool, len(infos))
	for i, info := range infos {
		params, err := parametersSchema(info)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", info.Name, err)
		}
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        info.Name,
				Description: info.Desc,
				Parameters:  params,
			},
		}
	}
	return out, nil
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// parametersSchema renders the tool's parameters as a JSON Schema object.
func parametersSchema(info *schema.ToolInfo) (json.RawMessage, error) {
	if info.ParamsOneOf == nil {
		return emptyObjectSchema, nil
	}
	s, err := info.ParamsOneOf.ToOpenAPIV3()
	if err != nil {
		return nil, fmt.Errorf("convert parameters: %w", err)
	}
	if s == nil {
		return emptyObjectSchema, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	return raw, nil
}

func fromResponse(choice openai.ChatCompletionChoice, usage openai.Usage) *schema.Message {
	out := schema.AssistantMessage(choice.Message.Content, nil)
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID: tc.ID,
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(choice.FinishReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		},
	}
	return out
}

// Package gemini implements an eino tool-calling chat model on top of the
// Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
)

const provider = "gemini"

var _ model.ToolCallingChatModel = (*Chat)(nil)

// contentGenerator is the subset of genai.Models used by Chat.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Config holds the Gemini chat settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      *zap.Logger
}

// Chat is a tool-calling chat model backed by Gemini.
type Chat struct {
	models      contentGenerator
	model       string
	temperature float32
	logger      *zap.Logger
	tools       []*genai.Tool
}

// NewChat creates a Gemini client for the Developer API backend.
func NewChat(ctx context.Context, cfg *Config) (*Chat, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newChat(client.Models, cfg), nil
}

func newChat(models contentGenerator, cfg *Config) *Chat {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
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

// Generate sends the conversation and returns the next model turn.
func (c *Chat) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	temp := c.temperature
	options := model.GetCommonOptions(&model.Options{Temperature: &temp}, opts...)

	system, contents := toContents(messages)
	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Tools:             c.tools,
		Temperature:       options.Temperature,
	}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	duration := time.Since(start)

	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		return nil, fmt.Errorf("gemini generate content: %w: %w", domain.ErrExternalCall, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		metrics.ChatRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		return nil, fmt.Errorf("gemini response has no candidates: %w", domain.ErrExternalCall)
	}

	msg, err := fromContent(resp.Candidates[0].Content)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(provider, c.model, "error").Inc()
		return nil, err
	}

	usage := &schema.TokenUsage{}
	if u := resp.UsageMetadata; u != nil {
		usage.PromptTokens = int(u.PromptTokenCount)
		usage.CompletionTokens = int(u.CandidatesTokenCount)
		usage.TotalTokens = int(u.TotalTokenCount)
	}
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.Candidates[0].FinishReason),
		Usage:        usage,
	}

	metrics.ChatRequestsTotal.WithLabelValues(provider, c.model, "success").Inc()
	metrics.ChatRequestDuration.WithLabelValues(provider, c.model).Observe(duration.Seconds())
	metrics.ChatTokensTotal.WithLabelValues(provider, c.model, "prompt").Add(float64(usage.PromptTokens))
	metrics.ChatTokensTotal.WithLabelValues(provider, c.model, "completion").Add(float64(usage.CompletionTokens))

	return msg, nil
}

// Stream delivers the Generate result as a single chunk.
func (c *Chat) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// toContents splits out the system prompt and maps the rest of the
// conversation onto user/model turns. Consecutive tool results are folded
// into a single user turn.
func toContents(in []*schema.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	out := make([]*genai.Content, 0, len(in))
	callNames := make(map[string]string)

	for _, m := range in {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: m.Content})

		case schema.Assistant:
			c := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				callNames[tc.ID] = tc.Function.Name
				c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Function.Name,
					Args: decodeArgs(tc.Function.Arguments),
				}})
			}
			out = append(out, c)

		case schema.Tool:
			name := m.Name
			if name == "" {
				name = callNames[m.ToolCallID]
			}
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     name,
				Response: map[string]any{"result": m.Content},
			}}
			if n := len(out); n > 0 && isFunctionResponseTurn(out[n-1]) {
				out[n-1].Parts = append(out[n-1].Parts, part)
				continue
			}
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})

		default:
			out = append(out, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return system, out
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}

func toTools(infos []*schema.ToolInfo) ([]*genai.Tool, error) {
	if len(infos) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, len(infos))
	for i, info := range infos {
		params, err := parametersSchema(info)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", info.Name, err)
		}
		decls[i] = &genai.FunctionDeclaration{
			Name:        info.Name,
			Description: info.Desc,
			Parameters:  params,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// jsonSchema is the subset of JSON Schema that maps onto genai.Schema.
type jsonSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Properties  map[string]*jsonSchema `json:"properties"`
	Required    []string               `json:"required"`
	Enum        []any                  `json:"enum"`
	Items       *jsonSchema            `json:"items"`
}

var schemaTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// parametersSchema converts the tool's OpenAPI parameters into a genai.Schema.
func parametersSchema(info *schema.ToolInfo) (*genai.Schema, error) {
	if info.ParamsOneOf == nil {
		return &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}, nil
	}
	api, err := info.ParamsOneOf.ToOpenAPIV3()
	if err != nil {
		return nil, fmt.Errorf("convert parameters: %w", err)
	}
	raw, err := json.Marshal(api)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	var js jsonSchema
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if js.Type == "" {
		js.Type = "object"
	}
	return js.toGenai(), nil
}

func (js *jsonSchema) toGenai() *genai.Schema {
	out := &genai.Schema{
		Type:        schemaTypes[js.Type],
		Description: js.Description,
		Required:    js.Required,
	}
	if out.Type == "" {
		out.Type = genai.TypeString
	}
	for _, v := range js.Enum {
		out.Enum = append(out.Enum, fmt.Sprint(v))
	}
	if js.Items != nil {
		out.Items = js.Items.toGenai()
	}
	if js.Type == "object" {
		out.Properties = make(map[string]*genai.Schema, len(js.Properties))
		names := make([]string, 0, len(js.Properties))
		for name, prop := range js.Properties {
			out.Properties[name] = prop.toGenai()
			names = append(names, name)
		}
		sort.Strings(names)
		out.PropertyOrdering = names
	}
	return out
}

// fromContent maps a model turn back to an eino message. Gemini may omit
// call IDs, in which case one is generated so tool results can be matched.
func fromContent(c *genai.Content) (*schema.Message, error) {
	out := schema.AssistantMessage("", nil)
	for _, p := range c.Parts {
		switch {
		case p.FunctionCall != nil:
			args, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("encode function call args: %w", domain.ErrExternalCall)
			}
			if p.FunctionCall.Args == nil {
				args = []byte("{}")
			}
			id := p.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID: id,
				Function: schema.FunctionCall{
					Name:      p.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case p.Text != "" && !p.Thought:
			out.Content += p.Text
		}
	}
	return out, nil
}

// Package agent runs the tool-calling question answering loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/logger"
	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
	"github.com/akashkatte-1/rag-paywatch/internal/usecase/tools"
)

// DefaultMaxSteps bounds model turns per question.
const DefaultMaxSteps = 8

// SystemPrompt describes the data and the currency fallback policy to the model.
const SystemPrompt = "You are a helpful assistant that answers questions about an uploaded spreadsheet " +
	"of candidates. Use the tools to look at the data and do calculations when required; never " +
	"invent records. The columns are: Skills (free text), Exp (experience, y means years and m " +
	"means months, e.g. 2y 2m), Location, CTC (annual cost to company in INR) and Company. " +
	"Candidate names are not available. When the user asks for amounts in another currency, " +
	"call exchange_rate and convert from INR. If no exchange rate is available, give the figures " +
	"in INR and say that the conversion could not be performed."

const greeting = "I'm ready to help. What is your question?"

// ToolCallRecord is one executed tool call.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
}

// Answer is the final reply to a question.
type Answer struct {
	Text       string
	ToolCalls  []ToolCallRecord
	Generation uint64
	Steps      int
}

// Service answers questions against the live snapshot.
type Service struct {
	model     ChatModel
	snapshots SnapshotSource
	deps      tools.Deps
	maxSteps  int
	timeout   time.Duration
}

// New creates an agent service. maxSteps <= 0 selects DefaultMaxSteps.
func New(model ChatModel, snapshots SnapshotSource, deps tools.Deps, maxSteps int) *Service {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Service{model: model, snapshots: snapshots, deps: deps, maxSteps: maxSteps}
}

// WithCallTimeout bounds each chat model call. Zero disables the bound.
func (s *Service) WithCallTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Ask runs the model until it answers without requesting tools. The snapshot
// is leased for the whole run, so all tool calls see one generation even if
// uploads replace it meanwhile.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	snap, release, err := s.snapshots.Acquire()
	if err != nil {
		return Answer{}, fmt.Errorf("load snapshot: %w", err)
	}
	defer release()

	log := logger.FromContext(ctx).With(zap.Uint64("generation", snap.Generation))
	registry, err := tools.ForSnapshot(ctx, snap, s.deps)
	if err != nil {
		return Answer{}, fmt.Errorf("build tools: %w", err)
	}
	bound, err := s.model.WithTools(registry.Specs())
	if err != nil {
		return Answer{}, fmt.Errorf("bind tools: %w", err)
	}
	usage := domain.UsageFromContext(ctx)

	history := []*schema.Message{
		schema.SystemMessage(SystemPrompt),
		schema.AssistantMessage(greeting, nil),
		schema.UserMessage(question),
	}
	ans := Answer{Generation: snap.Generation}

	for step := 1; step <= s.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return Answer{}, fmt.Errorf("agent step %d: %w", step, err)
		}

		msg, err := s.generate(ctx, bound, history)
		if err != nil {
			log.Error("chat model call failed", zap.Int("step", step), zap.Error(err))
			if errors.Is(err, domain.ErrExternalCall) {
				return Answer{}, fmt.Errorf("agent step %d: %w", step, err)
			}
			return Answer{}, fmt.Errorf("agent step %d: %w: %w", step, domain.ErrExternalCall, err)
		}
		if meta := msg.ResponseMeta; meta != nil && meta.Usage != nil {
			usage.AddCompletion(meta.Usage.PromptTokens, meta.Usage.CompletionTokens)
		}

		msg.Role = schema.Assistant
		history = append(history, msg)

		if len(msg.ToolCalls) == 0 {
			ans.Text = msg.Content
			ans.Steps = step
			metrics.AgentSteps.Observe(float64(step))
			log.Debug("agent answered", zap.Int("steps", step), zap.Int("tool_calls", len(ans.ToolCalls)))
			return ans, nil
		}

		for _, call := range msg.ToolCalls {
			out := registry.Invoke(ctx, call)
			log.Debug("tool observation",
				zap.Int("step", step),
				zap.String("tool", call.Function.Name),
				zap.String("result", logger.TruncateForLog(out, 200)),
			)
			ans.ToolCalls = append(ans.ToolCalls, ToolCallRecord{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
				Result:    out,
			})
			history = append(history, &schema.Message{
				Role:       schema.Tool,
				Content:    out,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}
	}

	log.Warn("agent step limit reached", zap.Int("max_steps", s.maxSteps))
	return Answer{}, fmt.Errorf("no answer after %d steps: %w", s.maxSteps, domain.ErrAgentStepLimit)
}

func (s *Service) generate(ctx context.Context, m ChatModel, history []*schema.Message) (*schema.Message, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	msg, err := m.Generate(ctx, history)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("empty model response: %w", domain.ErrExternalCall)
	}
	return msg, nil
}

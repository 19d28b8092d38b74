package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/candidate"
	"github.com/akashkatte-1/rag-paywatch/internal/usecase/tools"
)

// --- Mocks ---

type scriptedModel struct {
	turns []*schema.Message
	err   error
	calls [][]*schema.Message
	specs []*schema.ToolInfo
}

func (m *scriptedModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls = append(m.calls, append([]*schema.Message(nil), msgs...))
	if m.err != nil {
		return nil, m.err
	}
	i := len(m.calls) - 1
	if i >= len(m.turns) {
		i = len(m.turns) - 1
	}
	turn := *m.turns[i]
	return &turn, nil
}

func (m *scriptedModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(specs []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.specs = specs
	return m, nil
}

type mockSnapshots struct {
	snap     *domain.Snapshot
	acquired int
	released int
}

func (m *mockSnapshots) Acquire() (*domain.Snapshot, func(), error) {
	if m.snap == nil {
		return nil, func() {}, domain.ErrDataNotReady
	}
	m.acquired++
	return m.snap, func() { m.released++ }, nil
}

type mockRates struct{ ok bool }

func (m *mockRates) Rate(_ context.Context, _, _ string) (float64, bool) { return 0.012, m.ok }

func testSnapshot(t *testing.T) *domain.Snapshot {
	t.Helper()
	table, err := candidate.New(
		[]string{"Skills", "Exp", "Location", "CTC", "Company"},
		[][]string{
			{"go", "2y 6m", "Pune", "1000000", "Acme"},
			{"java", "3y 0m", "Mumbai", "500000", "Globex"},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return &domain.Snapshot{Generation: 7, Table: table}
}

func withUsage(msg *schema.Message, prompt, completion int) *schema.Message {
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}}
	return msg
}

func toolTurn(calls ...schema.ToolCall) *schema.Message {
	return withUsage(schema.AssistantMessage("", calls), 10, 2)
}

func textTurn(text string) *schema.Message {
	return withUsage(schema.AssistantMessage(text, nil), 20, 5)
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}}
}

// --- Tests ---

func TestAsk_ToolLoop(t *testing.T) {
	chat := &scriptedModel{turns: []*schema.Message{
		toolTurn(
			toolCall("c1", "all_ctc_values", "{}"),
			toolCall("c2", "exchange_rate", `{"from_currency":"INR","to_currency":"USD"}`),
		),
		textTurn("The average CTC is 750000 INR (about 9000 USD)."),
	}}
	snaps := &mockSnapshots{snap: testSnapshot(t)}
	svc := New(chat, snaps, tools.Deps{Rates: &mockRates{ok: true}}, 0)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	ans, err := svc.Ask(ctx, "average ctc in usd?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	if ans.Text != "The average CTC is 750000 INR (about 9000 USD)." {
		t.Errorf("text = %q", ans.Text)
	}
	if ans.Generation != 7 || ans.Steps != 2 {
		t.Errorf("generation=%d steps=%d", ans.Generation, ans.Steps)
	}
	if len(ans.ToolCalls) != 2 || ans.ToolCalls[0].Result != "[1000000,500000]" {
		t.Fatalf("tool calls = %+v", ans.ToolCalls)
	}

	second := chat.calls[1]
	if second[0].Role != schema.System || second[0].Content != SystemPrompt {
		t.Error("system prompt missing")
	}
	if second[3].Role != schema.Assistant || len(second[3].ToolCalls) != 2 {
		t.Errorf("assistant tool turn missing from history: %+v", second[3])
	}
	last := second[len(second)-1]
	if last.Role != schema.Tool || last.ToolCallID != "c2" || last.Name != "exchange_rate" {
		t.Errorf("last history entry = %+v", last)
	}
	if !strings.Contains(last.Content, `"rate":0.012`) {
		t.Errorf("rate observation = %q", last.Content)
	}
	if len(chat.specs) != 5 {
		t.Errorf("expected 5 tool specs, got %d", len(chat.specs))
	}
	if snaps.acquired != 1 || snaps.released != 1 {
		t.Errorf("snapshot leases: acquired %d, released %d", snaps.acquired, snaps.released)
	}

	tot := usage.Totals()
	if tot.PromptTokens != 30 || tot.CompletionTokens != 7 || tot.ToolCalls != 2 {
		t.Errorf("usage = %+v", tot)
	}
}

func TestAsk_UnknownToolBecomesObservation(t *testing.T) {
	chat := &scriptedModel{turns: []*schema.Message{
		toolTurn(toolCall("x", "delete_everything", "{}")),
		textTurn("I cannot do that."),
	}}
	svc := New(chat, &mockSnapshots{snap: testSnapshot(t)}, tools.Deps{}, 0)

	ans, err := svc.Ask(context.Background(), "q")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.HasPrefix(ans.ToolCalls[0].Result, "Unknown tool") {
		t.Errorf("observation = %q", ans.ToolCalls[0].Result)
	}
}

func TestAsk_DataNotReady(t *testing.T) {
	chat := &scriptedModel{}
	_, err := New(chat, &mockSnapshots{}, tools.Deps{}, 0).Ask(context.Background(), "q")
	if !errors.Is(err, domain.ErrDataNotReady) {
		t.Fatalf("expected ErrDataNotReady, got %v", err)
	}
	if len(chat.calls) != 0 {
		t.Error("model must not be called without data")
	}
}

func TestAsk_StepLimit(t *testing.T) {
	chat := &scriptedModel{turns: []*schema.Message{
		toolTurn(toolCall("c", "all_ctc_values", "{}")),
	}}
	snaps := &mockSnapshots{snap: testSnapshot(t)}
	_, err := New(chat, snaps, tools.Deps{}, 3).Ask(context.Background(), "q")
	if !errors.Is(err, domain.ErrAgentStepLimit) {
		t.Fatalf("expected ErrAgentStepLimit, got %v", err)
	}
	if len(chat.calls) != 3 {
		t.Errorf("model called %d times, want 3", len(chat.calls))
	}
	if snaps.released != 1 {
		t.Errorf("snapshot lease not released after failure")
	}
}

func TestAsk_ModelFailureIsExternal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain error", errors.New("connection reset")},
		{"already wrapped", domain.ErrExternalCall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &scriptedModel{err: tt.err}
			_, err := New(chat, &mockSnapshots{snap: testSnapshot(t)}, tools.Deps{}, 0).Ask(context.Background(), "q")
			if !errors.Is(err, domain.ErrExternalCall) {
				t.Errorf("expected ErrExternalCall, got %v", err)
			}
		})
	}
}

func TestAsk_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chat := &scriptedModel{turns: []*schema.Message{textTurn("x")}}
	_, err := New(chat, &mockSnapshots{snap: testSnapshot(t)}, tools.Deps{}, 0).Ask(ctx, "q")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type slowModel struct{}

func (slowModel) Generate(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowModel) Stream(ctx context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m slowModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) { return m, nil }

func TestAsk_CallTimeout(t *testing.T) {
	svc := New(slowModel{}, &mockSnapshots{snap: testSnapshot(t)}, tools.Deps{}, 0).WithCallTimeout(10 * time.Millisecond)
	_, err := svc.Ask(context.Background(), "q")
	if !errors.Is(err, domain.ErrExternalCall) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected external call deadline error, got %v", err)
	}
}

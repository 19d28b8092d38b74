package domain

import (
	"context"
	"sync"
	"testing"
)

func TestUsage_Accumulates(t *testing.T) {
	ctx, u := NewContextWithUsage(context.Background())
	if UsageFromContext(ctx) != u {
		t.Fatal("expected the same collector from context")
	}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.AddEmbeddingTokens(1)
			u.AddCompletion(2, 3)
			u.AddToolCall()
		}()
	}
	wg.Wait()

	got := u.Totals()
	want := UsageTotals{EmbeddingTokens: 10, PromptTokens: 20, CompletionTokens: 30, ToolCalls: 10}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestUsage_NilSafe(t *testing.T) {
	u := UsageFromContext(context.Background())
	if u != nil {
		t.Fatal("expected nil collector")
	}
	u.AddEmbeddingTokens(5)
	u.AddCompletion(1, 1)
	u.AddToolCall()
	if u.Totals() != (UsageTotals{}) {
		t.Error("expected zero totals from nil collector")
	}
}

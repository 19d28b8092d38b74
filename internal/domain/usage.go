package domain

import (
	"context"
	"sync"
)

type usageKey struct{}

// Usage collects token usage for a single HTTP request.
// The handler puts a pointer into the context before calling the service;
// the agent and retrieval tool write to it; the handler reads it for response headers.
type Usage struct {
	mu               sync.Mutex
	embeddingTokens  int
	promptTokens     int
	completionTokens int
	toolCalls        int
}

// UsageTotals is a point-in-time copy of Usage.
type UsageTotals struct {
	EmbeddingTokens  int
	PromptTokens     int
	CompletionTokens int
	ToolCalls        int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *Usage) {
	u := &Usage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *Usage {
	u, _ := ctx.Value(usageKey{}).(*Usage)
	return u
}

// AddEmbeddingTokens records tokens consumed by query embedding.
func (u *Usage) AddEmbeddingTokens(n int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.embeddingTokens += n
	u.mu.Unlock()
}

// AddCompletion records tokens consumed by one chat completion.
func (u *Usage) AddCompletion(prompt, completion int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.promptTokens += prompt
	u.completionTokens += completion
	u.mu.Unlock()
}

// AddToolCall counts one tool invocation.
func (u *Usage) AddToolCall() {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.toolCalls++
	u.mu.Unlock()
}

// Totals returns the collected counters.
func (u *Usage) Totals() UsageTotals {
	if u == nil {
		return UsageTotals{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return UsageTotals{
		EmbeddingTokens:  u.embeddingTokens,
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		ToolCalls:        u.toolCalls,
	}
}

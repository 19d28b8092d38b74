package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/domain/intent"
	"github.com/akashkatte-1/rag-paywatch/internal/logger"
)

const retrieveCandidatesName = "retrieve_candidates"

type retrieveCandidates struct {
	snap  *domain.Snapshot
	embed Embedder
}

func (t *retrieveCandidates) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: retrieveCandidatesName,
		Desc: "Semantic search over candidates' skills. Returns the closest matches with the rest of " +
			"each row (experience, location, CTC, company) as metadata. Mention 'top N' for more than 3 results.",
		ParamsOneOf: stringParams(map[string]*schema.ParameterInfo{
			"query": {Desc: "What to look for, e.g. 'golang and kubernetes'", Required: true},
		}),
	}, nil
}

func (t *retrieveCandidates) InvokableRun(ctx context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if msg, ok := decodeArgs(retrieveCandidatesName, argsJSON, &args); !ok {
		return msg, nil
	}
	if strings.TrimSpace(args.Query) == "" {
		return "Invalid arguments for retrieve_candidates: query is required.", nil
	}
	if t.snap == nil || t.snap.Index == nil {
		return fmt.Sprintf("Error: %v.", domain.ErrDataNotReady), nil
	}
	if t.embed == nil {
		return "Semantic search is not configured.", nil
	}

	k := intent.ParseTopN(args.Query)
	emb, err := t.embed.Embed(ctx, args.Query)
	if err != nil {
		logger.FromContext(ctx).Warn("retrieval embedding failed", zap.Error(err))
		return "", fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddEmbeddingTokens(emb.TotalTokens)

	hits, err := t.snap.Index.Search(ctx, emb.Embedding, k)
	if err != nil {
		logger.FromContext(ctx).Warn("retrieval search failed", zap.Error(err))
		return "", fmt.Errorf("search candidates: %w", err)
	}
	if len(hits) == 0 {
		return noMatches, nil
	}

	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = renderHit(h.Chunk)
	}
	return strings.Join(lines, "\n"), nil
}

// renderHit formats a chunk as "Skills: <text>, Metadata: {k: v, ...}" with sorted keys.
func renderHit(c domain.Chunk) string {
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Skills: ")
	b.WriteString(c.Text)
	b.WriteString(", Metadata: {")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(c.Metadata[k])
	}
	b.WriteByte('}')
	return b.String()
}

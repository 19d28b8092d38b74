// Package tools implements the agent's callable tools over one snapshot.
//
// Every tool is an eino tool.InvokableTool. Problems the model can act on
// (bad arguments, missing data, no exchange rate) come back as the tool's
// text; the Registry renders anything else as an observation too, so a tool
// call never aborts an agent run.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
	"github.com/akashkatte-1/rag-paywatch/internal/logger"
	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
)

// Deps are the external collaborators shared by all registries.
type Deps struct {
	Rates    RateSource
	Embedder Embedder
}

// Registry dispatches tool calls by name. Tools are kept in registration order.
type Registry struct {
	infos  []*schema.ToolInfo
	byName map[string]tool.InvokableTool
}

// NewRegistry creates a registry. Tools whose name is already registered are ignored.
func NewRegistry(ctx context.Context, tools ...tool.InvokableTool) (*Registry, error) {
	r := &Registry{byName: make(map[string]tool.InvokableTool, len(tools))}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		if _, dup := r.byName[info.Name]; dup {
			continue
		}
		r.infos = append(r.infos, info)
		r.byName[info.Name] = t
	}
	return r, nil
}

// ForSnapshot builds the standard tool set bound to one snapshot, so every
// call within an agent run observes the same generation.
func ForSnapshot(ctx context.Context, snap *domain.Snapshot, deps Deps) (*Registry, error) {
	return NewRegistry(ctx,
		&rankedCTC{snap: snap},
		&experienceLocations{snap: snap},
		&allCTC{snap: snap},
		&exchangeRate{rates: deps.Rates},
		&retrieveCandidates{snap: snap, embed: deps.Embedder},
	)
}

// Specs returns the tool declarations to bind to a chat model.
func (r *Registry) Specs() []*schema.ToolInfo {
	return r.infos
}

// Invoke runs the requested tool. Unknown names, malformed arguments and tool
// errors produce an observation text for the model instead of an error.
func (r *Registry) Invoke(ctx context.Context, call schema.ToolCall) string {
	log := logger.FromContext(ctx)
	name := call.Function.Name

	t, ok := r.byName[name]
	if !ok {
		metrics.ToolInvocationsTotal.WithLabelValues("unknown", "unknown").Inc()
		log.Warn("model requested unknown tool", zap.String("tool", name))
		return fmt.Sprintf("Unknown tool %q. Available tools: %s.", name, strings.Join(r.names(), ", "))
	}

	args := strings.TrimSpace(call.Function.Arguments)
	if args == "" {
		args = "{}"
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &obj); err != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(name, "invalid_args").Inc()
		log.Warn("tool arguments are not a JSON object", zap.String("tool", name), zap.Error(err))
		return fmt.Sprintf("Invalid arguments for %s: expected a JSON object (%v).", name, err)
	}

	domain.UsageFromContext(ctx).AddToolCall()
	out, err := t.InvokableRun(ctx, args)
	if err != nil {
		metrics.ToolInvocationsTotal.WithLabelValues(name, "error").Inc()
		log.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		return fmt.Sprintf("An error occurred while running %s: %v", name, err)
	}
	metrics.ToolInvocationsTotal.WithLabelValues(name, "ok").Inc()
	log.Debug("tool invoked",
		zap.String("tool", name),
		zap.Int("result_bytes", len(out)),
	)
	return out
}

func (r *Registry) names() []string {
	out := make([]string, len(r.infos))
	for i, info := range r.infos {
		out[i] = info.Name
	}
	return out
}

// stringParams declares string-typed tool arguments.
func stringParams(params map[string]*schema.ParameterInfo) *schema.ParamsOneOf {
	for _, p := range params {
		p.Type = schema.String
	}
	return schema.NewParamsOneOfByParams(params)
}

// decodeArgs unmarshals tool arguments, rendering failures as observation text.
func decodeArgs(name, argsJSON string, dst any) (string, bool) {
	if err := json.Unmarshal([]byte(argsJSON), dst); err != nil {
		return fmt.Sprintf("Invalid arguments for %s: %v.", name, err), false
	}
	return "", true
}

func notReady(snap *domain.Snapshot) (string, bool) {
	if snap == nil || snap.Table.Len() == 0 {
		return fmt.Sprintf("Error: %v.", domain.ErrDataNotReady), true
	}
	return "", false
}

func missingColumn(column string) string {
	return fmt.Sprintf("Error: %v: the uploaded table has no %s column.", domain.ErrDataNotReady, column)
}

var (
	_ tool.InvokableTool = (*rankedCTC)(nil)
	_ tool.InvokableTool = (*experienceLocations)(nil)
	_ tool.InvokableTool = (*allCTC)(nil)
	_ tool.InvokableTool = (*exchangeRate)(nil)
	_ tool.InvokableTool = (*retrieveCandidates)(nil)
)

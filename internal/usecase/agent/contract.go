package agent

import (
	"github.com/cloudwego/eino/components/model"

	"github.com/akashkatte-1/rag-paywatch/internal/domain"
)

// ChatModel is a tool-calling chat model. Ask binds the tool set once per
// question with WithTools and calls Generate for every step.
type ChatModel = model.ToolCallingChatModel

// SnapshotSource leases the live snapshot or returns domain.ErrDataNotReady.
type SnapshotSource interface {
	Acquire() (*domain.Snapshot, func(), error)
}

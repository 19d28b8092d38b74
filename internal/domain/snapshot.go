package domain

import (
	"time"

	"github.com/akashkatte-1/rag-paywatch/internal/domain/candidate"
)

// Snapshot is one published generation of the candidate table and its index.
// A snapshot never changes after publication.
type Snapshot struct {
	Generation uint64
	Table      *candidate.Table
	Index      ChunkIndex
	Source     string
	Chunks     int
	IngestedAt time.Time
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRolePriorityOrdering(t *testing.T) {
	assert.Less(t, ChunkRoleEntry.RolePriority(), ChunkRoleDependency.RolePriority())
	assert.Less(t, ChunkRoleDependency.RolePriority(), ChunkRoleSupporting.RolePriority())
	assert.Less(t, ChunkRoleSupporting.RolePriority(), ChunkRole("unknown").RolePriority())
}

func TestIngestStatusTerminal(t *testing.T) {
	assert.True(t, IngestStatusSuccess.Terminal())
	assert.True(t, IngestStatusFailed.Terminal())
	assert.False(t, IngestStatusPending.Terminal())
	assert.False(t, IngestStatusProcessing.Terminal())
}

func TestFileRecordActionable(t *testing.T) {
	ready := FileRecord{FinishEmbedding: true}
	assert.True(t, ready.Actionable())

	// 嵌入出错的文件即使标记完成也不可检索
	broken := FileRecord{FinishEmbedding: true, EmbeddingError: "quota exceeded"}
	assert.False(t, broken.Actionable())

	pending := FileRecord{FinishEmbedding: false}
	assert.False(t, pending.Actionable())
}

func TestNewRAGContextMessage(t *testing.T) {
	unit := &ContextUnit{
		ID:        "u1",
		TextBody:  "assembled context",
		CreatedAt: time.Now(),
		ChunkIDs:  []string{"c1", "c2"},
		RoleTag:   ContextUnitRoleTag,
	}

	msg := NewRAGContextMessage(unit)
	assert.Equal(t, "u1", msg.ID)
	assert.Equal(t, MessageKindRAGContext, msg.Kind)
	assert.True(t, msg.IsRAGContext())
	assert.Equal(t, "system", msg.Role)
	assert.Equal(t, "assembled context", msg.Content)
	assert.Equal(t, []string{"c1", "c2"}, msg.ChunkIDs)
}

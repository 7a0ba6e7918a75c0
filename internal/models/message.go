package models

import "time"

// MessageKind 消息种类，封闭集合
// 检索上下文消息通过显式Kind区分，不做结构嗅探
type MessageKind string

const (
	MessageKindText       MessageKind = "text"
	MessageKindRAGContext MessageKind = "rag-context"
)

// ChatMessage 对话消息
// Kind为rag-context时携带ChunkIDs与拼接后的正文，由展示层特殊渲染
type ChatMessage struct {
	ID        string      `json:"id"`
	Kind      MessageKind `json:"kind"`
	Role      string      `json:"role"` // user, assistant, system
	Content   string      `json:"content"`
	ChunkIDs  []string    `json:"chunk_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// IsRAGContext 判断是否为检索上下文消息
func (m *ChatMessage) IsRAGContext() bool {
	return m.Kind == MessageKindRAGContext
}

// HistoryTurn 查询改写使用的历史轮次
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewRAGContextMessage 由上下文单元构造检索上下文消息
func NewRAGContextMessage(unit *ContextUnit) *ChatMessage {
	return &ChatMessage{
		ID:        unit.ID,
		Kind:      MessageKindRAGContext,
		Role:      "system",
		Content:   unit.TextBody,
		ChunkIDs:  unit.ChunkIDs,
		CreatedAt: unit.CreatedAt,
	}
}

package models

import "time"

// ChunkRole 检索分块的结构角色，由向量索引服务在检索时标注
type ChunkRole string

const (
	ChunkRoleEntry      ChunkRole = "entry"      // 入口块：与查询直接相关
	ChunkRoleDependency ChunkRole = "dependency" // 依赖块：入口块引用的内容
	ChunkRoleSupporting ChunkRole = "supporting" // 辅助块：补充背景
)

// RolePriority 返回角色的排序优先级，entry < dependency < supporting
// 未知角色排在最后
func (r ChunkRole) RolePriority() int {
	switch r {
	case ChunkRoleEntry:
		return 0
	case ChunkRoleDependency:
		return 1
	case ChunkRoleSupporting:
		return 2
	default:
		return 3
	}
}

// RetrievedChunk 向量索引服务返回的文件片段
// 返回后不可变；Role由索引侧标注，本地不重新计算
type RetrievedChunk struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	FileURL    string    `json:"file_url"`
	Text       string    `json:"text"`
	Similarity float64   `json:"similarity"` // [0,1]
	PageNumber *int      `json:"page_number,omitempty"`
	Role       ChunkRole `json:"role"`
}

// SearchRequest 语义检索请求
// RewriteQuery存在时用于实际排序；UserQuery保留用于引用与审计
type SearchRequest struct {
	MessageID    string   `json:"message_id"`
	UserQuery    string   `json:"user_query"`
	RewriteQuery string   `json:"rewrite_query,omitempty"`
	TopK         int      `json:"top_k"`
	FileIDs      []string `json:"file_ids,omitempty"`
}

// DefaultTopK 检索默认返回的分块数量
const DefaultTopK = 5

// SearchResult 语义检索结果，空分块序列是合法的非错误结果
type SearchResult struct {
	Chunks  []RetrievedChunk `json:"chunks"`
	QueryID string           `json:"query_id"`
}

// ContextUnitRoleTag 上下文单元的固定角色标记
// 下游根据此标记特殊渲染检索上下文，而不做内容嗅探
const ContextUnitRoleTag = "rag-context"

// ContextUnit 一次检索结果拼接出的上下文单元，注入模型输入序列
// 派生产物，创建后不可变；ChunkIDs为排序后的分块id顺序，用于引用匹配
type ContextUnit struct {
	ID        string    `json:"id"`
	TextBody  string    `json:"text_body"`
	CreatedAt time.Time `json:"created_at"`
	ChunkIDs  []string  `json:"chunk_ids"`
	RoleTag   string    `json:"role_tag"`
}

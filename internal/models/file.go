package models

import "time"

// IngestStatus 文件摄取子状态
// chunking与embedding两条独立轨道，各自 pending → processing → {success | failed}
// failed与success为终态；failed的文件不重新上传不会变为success
type IngestStatus string

const (
	IngestStatusPending    IngestStatus = "pending"
	IngestStatusProcessing IngestStatus = "processing"
	IngestStatusSuccess    IngestStatus = "success"
	IngestStatusFailed     IngestStatus = "failed"
)

// Terminal 判断是否为终态
func (s IngestStatus) Terminal() bool {
	return s == IngestStatusSuccess || s == IngestStatusFailed
}

// FileRecord 向量索引服务持有的文件记录
// 本服务只读：上传后由索引服务异步更新，追踪器通过轮询读取
// 不变式：FinishEmbedding == true 当且仅当 EmbeddingStatus == success
type FileRecord struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Size            int64        `json:"size"`
	FileType        string       `json:"file_type"`
	ChunkCount      int          `json:"chunk_count"`
	ChunkingStatus  IngestStatus `json:"chunking_status"`
	EmbeddingStatus IngestStatus `json:"embedding_status"`
	FinishEmbedding bool         `json:"finish_embedding"`
	ChunkingError   string       `json:"chunking_error,omitempty"`
	EmbeddingError  string       `json:"embedding_error,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Actionable 判断文件是否可用于检索
// 仅当嵌入完成且没有嵌入错误时才允许参与search
func (f *FileRecord) Actionable() bool {
	return f.FinishEmbedding && f.EmbeddingError == ""
}

// HasFailure 判断是否存在终态失败
func (f *FileRecord) HasFailure() bool {
	return f.ChunkingStatus == IngestStatusFailed || f.EmbeddingStatus == IngestStatusFailed ||
		f.ChunkingError != "" || f.EmbeddingError != ""
}

// UploadedFile 上传确认中的单个文件
type UploadedFile struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Size            int64  `json:"size"`
	URL             string `json:"url"`
	FinishEmbedding bool   `json:"finish_embedding"`
	ChunkCount      int    `json:"chunk_count"`
}

// FileUploadAck 向量索引服务对上传请求的确认
type FileUploadAck struct {
	Files []UploadedFile `json:"files"`
}

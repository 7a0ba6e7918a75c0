package ingestion

import (
	"context"
	"time"

	"github.com/chatrag/backend-go/internal/logger"
	"github.com/chatrag/backend-go/internal/metrics"
	"github.com/chatrag/backend-go/internal/models"
	"go.uber.org/zap"
)

// 轮询默认值
const (
	DefaultPollInterval       = 1000 * time.Millisecond
	DefaultSinglePollInterval = 2000 * time.Millisecond
	DefaultSingleMaxAttempts  = 30
)

// FileLister 批量获取文件记录
// 多个被追踪文件合并为一次list调用，限制对向量索引服务的请求量
type FileLister interface {
	List(ctx context.Context, tenantID string) ([]models.FileRecord, error)
}

// DisplayState 文件在界面上的展示状态
// 终态失败与"仍在处理"是两种不同的展示，客户端拉取失败不属于任何一种
type DisplayState string

const (
	DisplayStateProcessing DisplayState = "processing"
	DisplayStateReady      DisplayState = "ready"
	DisplayStateFailed     DisplayState = "failed"
)

// FileDisplayStatus 单文件的展示状态
type FileDisplayStatus struct {
	FileID string       `json:"file_id"`
	Name   string       `json:"name"`
	State  DisplayState `json:"state"`
	Detail string       `json:"detail,omitempty"`
}

// Tracker 摄取状态追踪器
// 只读：文件记录由向量索引服务独占更新，这里仅轮询
type Tracker struct {
	lister             FileLister
	pollInterval       time.Duration
	singlePollInterval time.Duration
	singleMaxAttempts  int
	logger             *zap.Logger
}

// Option 配置Tracker
type Option func(*Tracker)

// WithPollInterval 设置批量轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithSinglePoll 设置单文件轮询的间隔与最大次数
func WithSinglePoll(interval time.Duration, maxAttempts int) Option {
	return func(t *Tracker) {
		if interval > 0 {
			t.singlePollInterval = interval
		}
		if maxAttempts > 0 {
			t.singleMaxAttempts = maxAttempts
		}
	}
}

// NewTracker 创建摄取状态追踪器
func NewTracker(lister FileLister, opts ...Option) *Tracker {
	t := &Tracker{
		lister:             lister,
		pollInterval:       DefaultPollInterval,
		singlePollInterval: DefaultSinglePollInterval,
		singleMaxAttempts:  DefaultSingleMaxAttempts,
		logger:             logger.Named("ingestion"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WaitForIngestion 轮询直到所有被追踪文件嵌入完成
// 固定间隔批量拉取；ctx取消时立即返回，不泄漏定时器
// 拉取失败是瞬态的：记录日志后下个周期重试，文件的服务端状态不受影响
func (t *Tracker) WaitForIngestion(ctx context.Context, tenantID string, fileIDs []string) ([]models.FileRecord, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	tracked := make(map[string]bool, len(fileIDs))
	for _, id := range fileIDs {
		tracked[id] = true
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		records, err := t.lister.List(ctx, tenantID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.logger.Warn("status fetch failed, retrying on next interval", zap.Error(err))
		} else {
			pending := 0
			result := make([]models.FileRecord, 0, len(tracked))
			for _, rec := range records {
				if !tracked[rec.ID] {
					continue
				}
				result = append(result, rec)
				if !rec.FinishEmbedding {
					pending++
				}
			}
			if pending == 0 {
				t.logger.Info("ingestion finished for all tracked files",
					zap.Int("tracked", len(tracked)),
					zap.Int("found", len(result)))
				return result, nil
			}
			t.logger.Debug("ingestion still in progress",
				zap.Int("pending", pending),
				zap.Int("tracked", len(tracked)))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollFileReady 有界单文件轮询
// 最多singleMaxAttempts次；耗尽返回(false, nil)——超时不是错误
func (t *Tracker) PollFileReady(ctx context.Context, tenantID, fileID string) (bool, error) {
	ticker := time.NewTicker(t.singlePollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= t.singleMaxAttempts; attempt++ {
		records, err := t.lister.List(ctx, tenantID)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			t.logger.Warn("single file status fetch failed",
				zap.String("file_id", fileID),
				zap.Int("attempt", attempt),
				zap.Error(err))
		} else {
			for _, rec := range records {
				if rec.ID == fileID && rec.FinishEmbedding {
					metrics.PollAttempts.Observe(float64(attempt))
					return true, nil
				}
			}
		}

		if attempt == t.singleMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}

	t.logger.Info("single file poll exhausted without readiness",
		zap.String("file_id", fileID),
		zap.Int("max_attempts", t.singleMaxAttempts))
	metrics.PollAttempts.Observe(float64(t.singleMaxAttempts))
	return false, nil
}

// ClassifyDisplay 计算文件的展示状态
// 存在chunking/embedding错误（且状态已落定）按终态失败展示；否则按是否完成嵌入区分
func ClassifyDisplay(rec models.FileRecord) FileDisplayStatus {
	status := FileDisplayStatus{FileID: rec.ID, Name: rec.Name}

	switch {
	case rec.ChunkingStatus == models.IngestStatusFailed || rec.ChunkingError != "":
		status.State = DisplayStateFailed
		status.Detail = rec.ChunkingError
	case rec.EmbeddingStatus == models.IngestStatusFailed || rec.EmbeddingError != "":
		status.State = DisplayStateFailed
		status.Detail = rec.EmbeddingError
	case rec.FinishEmbedding:
		status.State = DisplayStateReady
	default:
		status.State = DisplayStateProcessing
	}
	return status
}

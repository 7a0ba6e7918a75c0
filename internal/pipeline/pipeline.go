package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/chatrag/backend-go/internal/assembler"
	"github.com/chatrag/backend-go/internal/errors"
	"github.com/chatrag/backend-go/internal/kafka"
	"github.com/chatrag/backend-go/internal/logger"
	"github.com/chatrag/backend-go/internal/metrics"
	"github.com/chatrag/backend-go/internal/models"
	"go.uber.org/zap"
)

// Searcher 语义检索契约，由vectorindex.Client实现
type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest, tenantID string) (*models.SearchResult, error)
}

// QueryRewriter 查询改写契约，永不失败
type QueryRewriter interface {
	Rewrite(ctx context.Context, query string, history []models.HistoryTurn, filenames []string, tenantID string) string
}

// AuditSink 检索审计事件下游
type AuditSink interface {
	SendAuditEvent(event *kafka.RetrievalAuditEvent) error
}

// RetrieveRequest 一次用户轮次的检索请求
type RetrieveRequest struct {
	TenantID  string
	MessageID string
	Query     string
	History   []models.HistoryTurn
	Filenames []string // 租户已知文件名，供改写提示词使用
	FileIDs   []string // 限定检索范围的文件id，可空
	TopK      int
}

// RetrieveResult 检索结果
// 检索无命中时Message与Unit为nil：该轮不注入上下文，不视为错误
type RetrieveResult struct {
	Message      *models.ChatMessage
	Unit         *models.ContextUnit
	RewriteQuery string
	QueryID      string
}

// Pipeline 检索上下文流水线
// 每个请求内严格串行：改写完成（成功或回退）→ 语义检索 → 上下文拼接
// 各阶段输出为不可变值，阶段间不共享可变状态
type Pipeline struct {
	searcher Searcher
	rewriter QueryRewriter
	audit    AuditSink
	logger   *zap.Logger
}

// Option 配置Pipeline
type Option func(*Pipeline)

// WithAuditSink 启用检索审计事件
func WithAuditSink(sink AuditSink) Option {
	return func(p *Pipeline) { p.audit = sink }
}

// NewPipeline 创建检索上下文流水线
func NewPipeline(searcher Searcher, rewriter QueryRewriter, opts ...Option) *Pipeline {
	p := &Pipeline{
		searcher: searcher,
		rewriter: rewriter,
		logger:   logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve 执行一轮检索：改写 → 检索 → 拼接 → 打标消息
func (p *Pipeline) Retrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResult, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, errors.NewUnauthorized("")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errors.NewValidationError("query must not be empty")
	}

	// 1. 查询改写（成功或回退后才进入检索）
	rewritten := query
	if p.rewriter != nil {
		rewritten = p.rewriter.Rewrite(ctx, query, req.History, req.Filenames, req.TenantID)
	}
	if rewritten != query {
		metrics.RewriteOutcomes.WithLabelValues("rewritten").Inc()
	} else {
		metrics.RewriteOutcomes.WithLabelValues("unchanged").Inc()
	}

	searchReq := models.SearchRequest{
		MessageID: req.MessageID,
		UserQuery: query,
		TopK:      req.TopK,
		FileIDs:   req.FileIDs,
	}
	if rewritten != query {
		searchReq.RewriteQuery = rewritten
	}

	// 2. 语义检索
	result, err := p.searcher.Search(ctx, searchReq, req.TenantID)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RetrievedChunks.Observe(float64(len(result.Chunks)))

	p.publishAudit(req, rewritten, result)

	// 3. 空结果不注入上下文，拼接器绝不接收零分块
	if len(result.Chunks) == 0 {
		metrics.SearchesTotal.WithLabelValues("empty").Inc()
		p.logger.Info("no chunks retrieved, skipping context injection",
			zap.String("message_id", req.MessageID))
		return &RetrieveResult{RewriteQuery: searchReq.RewriteQuery, QueryID: result.QueryID}, nil
	}
	metrics.SearchesTotal.WithLabelValues("ok").Inc()

	// 4. 上下文拼接
	unit, err := assembler.Assemble(result.Chunks)
	if err != nil {
		return nil, err
	}

	p.logger.Info("context unit assembled",
		zap.String("message_id", req.MessageID),
		zap.String("unit_id", unit.ID),
		zap.Int("chunks", len(unit.ChunkIDs)))

	return &RetrieveResult{
		Message:      models.NewRAGContextMessage(unit),
		Unit:         unit,
		RewriteQuery: searchReq.RewriteQuery,
		QueryID:      result.QueryID,
	}, nil
}

// publishAudit 发布审计事件，失败只记录日志
func (p *Pipeline) publishAudit(req RetrieveRequest, rewritten string, result *models.SearchResult) {
	if p.audit == nil {
		return
	}
	event := &kafka.RetrievalAuditEvent{
		TenantID:   req.TenantID,
		MessageID:  req.MessageID,
		UserQuery:  req.Query,
		QueryID:    result.QueryID,
		ChunkCount: len(result.Chunks),
		Timestamp:  time.Now(),
	}
	if rewritten != req.Query {
		event.RewriteQuery = rewritten
	}
	if err := p.audit.SendAuditEvent(event); err != nil {
		p.logger.Warn("audit event publish failed", zap.Error(err))
	}
}

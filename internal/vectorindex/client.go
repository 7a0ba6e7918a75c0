package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chatrag/backend-go/internal/errors"
	"github.com/chatrag/backend-go/internal/logger"
	"github.com/chatrag/backend-go/internal/models"
	"go.uber.org/zap"
)

// TenantHeader 租户隔离头
// 每个出站请求都必须携带非空租户标识；标识解析由请求网关完成
const TenantHeader = "X-Tenant-Id"

// Client 向量索引服务客户端
// 所有操作按租户隔离；嵌入计算、向量存储与最近邻检索均在服务端完成
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// UploadFile 待上传的单个文件
type UploadFile struct {
	Name    string
	Content io.Reader
}

// errorBody 向量索引服务的错误响应体
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewClient 创建向量索引服务客户端
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("vectorindex"),
	}
}

// Search 语义检索
// 404表示该租户尚无已索引内容，映射为空结果而不是错误
func (c *Client) Search(ctx context.Context, req models.SearchRequest, tenantID string) (*models.SearchResult, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if req.TopK <= 0 {
		req.TopK = models.DefaultTopK
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(TenantHeader, tenantID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("search returned 404, treating as empty index",
			zap.String("message_id", req.MessageID))
		return &models.SearchResult{Chunks: nil, QueryID: ""}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.asTransportError(resp.StatusCode, body)
	}

	var result models.SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	c.logger.Info("semantic search completed",
		zap.String("message_id", req.MessageID),
		zap.Int("chunks", len(result.Chunks)),
		zap.String("query_id", result.QueryID))

	return &result, nil
}

// Upload 上传文件到指定集合，multipart格式：collection字段 + 重复的files字段
func (c *Client) Upload(ctx context.Context, files []UploadFile, tenantID, collection string) (*models.FileUploadAck, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewValidationError("no files to upload")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("collection", collection); err != nil {
		return nil, fmt.Errorf("write collection field: %w", err)
	}
	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file %s: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, fmt.Errorf("copy file %s: %w", f.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set(TenantHeader, tenantID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.asTransportError(resp.StatusCode, body)
	}

	var ack models.FileUploadAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	c.logger.Info("files uploaded",
		zap.Int("count", len(ack.Files)),
		zap.String("collection", collection))

	return &ack, nil
}

// List 获取租户的全部文件记录
func (c *Client) List(ctx context.Context, tenantID string) ([]models.FileRecord, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files", nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	httpReq.Header.Set(TenantHeader, tenantID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetworkError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.asTransportError(resp.StatusCode, body)
	}

	var records []models.FileRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return records, nil
}

// Delete 删除文件，删除是终态操作
// 删除后对该文件的轮询返回404属于正常结果，不是追踪器错误
func (c *Client) Delete(ctx context.Context, fileID, tenantID string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if strings.TrimSpace(fileID) == "" {
		return errors.NewValidationError("file id must not be empty")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/files/"+fileID, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	httpReq.Header.Set(TenantHeader, tenantID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError(err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.asTransportError(resp.StatusCode, body)
	}

	c.logger.Info("file deleted", zap.String("file_id", fileID))
	return nil
}

// requireTenant 空租户标识在任何网络调用之前失败
func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return errors.NewUnauthorized("")
	}
	return nil
}

// asTransportError 将非成功响应转换为类型化错误
func (c *Client) asTransportError(status int, body []byte) error {
	message := fmt.Sprintf("vector index service returned HTTP %d", status)
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Message != "" {
		message = eb.Message
	}
	c.logger.Warn("vector index request failed",
		zap.Int("status", status),
		zap.String("message", message))
	return errors.NewTransportError(status, message)
}

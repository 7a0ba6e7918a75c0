package controllers

import (
	"net/http"

	"github.com/chatrag/backend-go/app/bootstrap"
	"github.com/chatrag/backend-go/internal/config"
	"github.com/chatrag/backend-go/internal/ingestion"
	"github.com/chatrag/backend-go/internal/logger"
	"github.com/chatrag/backend-go/internal/vectorindex"
	"go.uber.org/zap"
)

// FileController 文件上传、列表、删除与摄取状态接口
// 文件记录由向量索引服务持有，这里只做代理与状态分类
type FileController struct {
	BaseController
}

// List 获取租户的文件列表
func (c *FileController) List() {
	tenantID, ok := c.tenantID()
	if !ok {
		c.JSONError(http.StatusUnauthorized, "tenant identity not resolved")
		return
	}

	records, err := bootstrap.GetApp().VectorIndex.List(c.Ctx.Request.Context(), tenantID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(records)
}

// Upload 上传文件到向量索引服务，multipart字段名files
func (c *FileController) Upload() {
	tenantID, ok := c.tenantID()
	if !ok {
		c.JSONError(http.StatusUnauthorized, "tenant identity not resolved")
		return
	}

	fileHeaders, err := c.GetFiles("files")
	if err != nil || len(fileHeaders) == 0 {
		c.JSONError(http.StatusBadRequest, "no files provided")
		return
	}

	uploads := make([]vectorindex.UploadFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		f, err := header.Open()
		if err != nil {
			c.JSONError(http.StatusBadRequest, "cannot read uploaded file "+header.Filename)
			return
		}
		defer f.Close()
		uploads = append(uploads, vectorindex.UploadFile{Name: header.Filename, Content: f})
	}

	collection := c.GetString("collection")
	if collection == "" {
		collection = config.GetAppConfig().VectorIndex.Collection
	}

	ack, err := bootstrap.GetApp().VectorIndex.Upload(c.Ctx.Request.Context(), uploads, tenantID, collection)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	logger.Info("upload accepted",
		zap.Int("files", len(ack.Files)),
		zap.String("collection", collection))
	c.JSONSuccess(ack)
}

// Delete 删除文件，删除是终态操作
func (c *FileController) Delete() {
	tenantID, ok := c.tenantID()
	if !ok {
		c.JSONError(http.StatusUnauthorized, "tenant identity not resolved")
		return
	}

	fileID := c.Ctx.Input.Param(":id")
	if fileID == "" {
		c.JSONError(http.StatusBadRequest, "file id required")
		return
	}

	if err := bootstrap.GetApp().VectorIndex.Delete(c.Ctx.Request.Context(), fileID, tenantID); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(nil)
}

// Status 返回每个文件的展示状态（processing / ready / failed）
// 终态失败与"仍在处理"分开展示
func (c *FileController) Status() {
	tenantID, ok := c.tenantID()
	if !ok {
		c.JSONError(http.StatusUnauthorized, "tenant identity not resolved")
		return
	}

	records, err := bootstrap.GetApp().VectorIndex.List(c.Ctx.Request.Context(), tenantID)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	statuses := make([]ingestion.FileDisplayStatus, 0, len(records))
	for _, rec := range records {
		statuses = append(statuses, ingestion.ClassifyDisplay(rec))
	}
	c.JSONSuccess(statuses)
}

// WaitReady 有界轮询单个文件直到嵌入完成或尝试耗尽
// 耗尽返回ready=false，不是错误
func (c *FileController) WaitReady() {
	tenantID, ok := c.tenantID()
	if !ok {
		c.JSONError(http.StatusUnauthorized, "tenant identity not resolved")
		return
	}

	fileID := c.Ctx.Input.Param(":id")
	if fileID == "" {
		c.JSONError(http.StatusBadRequest, "file id required")
		return
	}

	ready, err := bootstrap.GetApp().Tracker.PollFileReady(c.Ctx.Request.Context(), tenantID, fileID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"ready": ready})
}

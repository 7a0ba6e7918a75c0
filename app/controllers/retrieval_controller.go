package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/chatrag/backend-go/app/bootstrap"
	"github.com/chatrag/backend-go/internal/models"
	"github.com/chatrag/backend-go/internal/pipeline"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RetrievalController 检索上下文接口
type RetrievalController struct {
	BaseController
}

// RetrieveContextRequest 检索上下文请求体
type RetrieveContextRequest struct {
	MessageID string               `json:"message_id" validate:"required"`
	Query     string               `json:"query" validate:"required,min=1,max=4000"`
	History   []models.HistoryTurn `json:"history,omitempty"`
	Filenames []string             `json:"filenames,omitempty"`
	FileIDs   []string             `json:"file_ids,omitempty"`
	TopK      int                  `json:"top_k,omitempty" validate:"gte=0,lte=50"`
}

// RetrieveContext 执行一轮检索：改写 → 语义检索 → 上下文拼接
// 无命中时返回message=null，调用方该轮不注入上下文
func (c *RetrievalController) RetrieveContext() {
	tenantID, ok := c.tenantID()
	if !ok {
		c.JSONError(http.StatusUnauthorized, "tenant identity not resolved")
		return
	}

	var req RetrieveContextRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	result, err := bootstrap.GetApp().Pipeline.Retrieve(c.Ctx.Request.Context(), pipeline.RetrieveRequest{
		TenantID:  tenantID,
		MessageID: req.MessageID,
		Query:     req.Query,
		History:   req.History,
		Filenames: req.Filenames,
		FileIDs:   req.FileIDs,
		TopK:      req.TopK,
	})
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"message":       result.Message,
		"rewrite_query": result.RewriteQuery,
		"query_id":      result.QueryID,
	})
}

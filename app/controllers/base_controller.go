package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"github.com/chatrag/backend-go/app/middleware"
	apperrors "github.com/chatrag/backend-go/internal/errors"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 将类型化错误映射为HTTP响应
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.GetAppError(err)
	c.JSON(appErr.HTTPStatus(), map[string]interface{}{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	})
}

// tenantID 读取中间件解析出的租户标识
// 中间件已拒绝无租户的请求，这里的空值属于路由配置错误
func (c *BaseController) tenantID() (string, bool) {
	tenantID, ok := c.Ctx.Input.GetData(middleware.TenantKey).(string)
	if !ok || tenantID == "" {
		return "", false
	}
	return tenantID, true
}

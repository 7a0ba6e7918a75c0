package controllers

import (
	"net/http"
	"time"
)

// RootController 根路径
type RootController struct {
	BaseController
}

// Index 服务信息
func (c *RootController) Index() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"service": "chatrag-backend",
		"status":  "running",
	})
}

// HealthController 健康检查
type HealthController struct {
	BaseController
}

// Health 存活检查
func (c *HealthController) Health() {
	c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

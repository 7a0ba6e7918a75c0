package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/chatrag/backend-go/app/controllers"
	"github.com/chatrag/backend-go/app/middleware"
	"github.com/chatrag/backend-go/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	// 租户解析只覆盖业务API，健康检查与指标不要求租户
	web.InsertFilter("/api/*", web.BeforeRouter, middleware.TenantMiddleware)

	retrievalController := &controllers.RetrievalController{}
	web.Router("/api/retrieval/context", retrievalController, "post:RetrieveContext")

	fileController := &controllers.FileController{}
	web.Router("/api/files", fileController, "get:List;post:Upload")
	// 具体路由必须在参数路由之前注册
	web.Router("/api/files/status", fileController, "get:Status")
	web.Router("/api/files/:id/wait", fileController, "post:WaitReady")
	web.Router("/api/files/:id", fileController, "delete:Delete")

	if cfg := config.GetAppConfig(); cfg != nil && cfg.Metrics.Enabled {
		web.Handler("/metrics", promhttp.Handler())
	}
}

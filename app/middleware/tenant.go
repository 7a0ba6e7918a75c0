package middleware

import (
	"fmt"
	"net/http"
	"strings"

	beecontext "github.com/beego/beego/v2/server/web/context"
	"github.com/chatrag/backend-go/internal/config"
	"github.com/chatrag/backend-go/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TenantKey 请求上下文中租户标识的键
const TenantKey = "tenant_id"

// TenantMiddleware 请求网关：解析调用方的租户标识
// 未解析出租户的请求在进入任何核心组件之前被401拒绝；
// 核心组件本身不重复实现该检查，只校验标识非空
func TenantMiddleware(ctx *beecontext.Context) {
	tenantID := resolveTenant(ctx)
	if tenantID == "" {
		logger.Warn("request without resolvable tenant",
			zap.String("path", ctx.Request.RequestURI),
			zap.String("method", ctx.Request.Method))
		ctx.Output.SetStatus(http.StatusUnauthorized)
		ctx.Output.JSON(map[string]interface{}{
			"success": false,
			"error":   "tenant identity not resolved",
		}, false, false)
		return
	}
	ctx.Input.SetData(TenantKey, tenantID)
}

// resolveTenant 依次尝试：Bearer JWT的tenant_id声明 → X-Tenant-Id头
func resolveTenant(ctx *beecontext.Context) string {
	if auth := ctx.Input.Header("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if tenantID := tenantFromToken(parts[1]); tenantID != "" {
				return tenantID
			}
		}
	}
	return strings.TrimSpace(ctx.Input.Header("X-Tenant-Id"))
}

// tenantFromToken 校验HS256 JWT并取tenant_id声明
func tenantFromToken(tokenString string) string {
	cfg := config.GetAppConfig()
	if cfg == nil || cfg.JWT.Secret == "" {
		return ""
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	tenantID, _ := claims[TenantKey].(string)
	return strings.TrimSpace(tenantID)
}

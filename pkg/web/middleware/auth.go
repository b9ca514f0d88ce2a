package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/security"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/errors"
)

// ClaimsKey 校验通过后 Claims 在 gin.Context 中的键
const ClaimsKey = "jwt_claims"

// JWTAuth 校验请求头中的 Token，通过后把 Claims 放入上下文
func JWTAuth(m *security.JWTManager, l logger.Logger) gin.HandlerFunc {
	log := l.Named("web.auth")
	return func(c *gin.Context) {
		claims, err := m.ValidateToken(c.GetHeader(m.HeaderName()))
		if err != nil {
			log.Debug("token rejected", "path", c.Request.URL.Path, "ip", c.ClientIP(), "error", err)
			abortWithAuthError(c, http.StatusUnauthorized, errors.CodeUnauthorized, "unauthorized")
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims 取出 JWTAuth 放入的 Claims
func GetClaims(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok
}

// RequireRole 要求 Token 中的角色等于 role，需放在 JWTAuth 之后
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			abortWithAuthError(c, http.StatusUnauthorized, errors.CodeUnauthorized, "unauthorized")
			return
		}
		if claims.Role != role {
			abortWithAuthError(c, http.StatusForbidden, errors.CodeForbidden, "permission denied")
			return
		}
		c.Next()
	}
}

// IPFilter 按客户端 IP 过滤请求
func IPFilter(f *security.IPFilter, l logger.Logger) gin.HandlerFunc {
	log := l.Named("web.ipfilter")
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !f.Allow(ip) {
			log.Warn("ip denied", "path", c.Request.URL.Path, "ip", ip)
			abortWithAuthError(c, http.StatusForbidden, errors.CodeForbidden, "access denied")
			return
		}
		c.Next()
	}
}

func abortWithAuthError(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

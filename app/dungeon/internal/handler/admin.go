package handler

import (
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-dungeon/pkg/logger"
	"github.com/lk2023060901/xdooria-dungeon/pkg/security"
	"github.com/lk2023060901/xdooria-dungeon/pkg/web/middleware"
)

// AdminConfig 管理接口鉴权配置
type AdminConfig struct {
	// Enabled 关闭时管理接口不做鉴权，只应在内网部署时使用
	Enabled bool `mapstructure:"enabled"`

	// Role Token 载荷中要求的 role，为空则只校验 Token
	Role string `mapstructure:"role"`

	JWT security.JWTConfig `mapstructure:"jwt"`

	// IPFilter 为空表示不限制来源 IP
	IPFilter *security.IPFilterConfig `mapstructure:"ip_filter"`
}

// AdminGuards 作用于管理接口的中间件
type AdminGuards []gin.HandlerFunc

// NewAdminGuards 按配置组装管理接口鉴权，先过滤 IP 再校验 Token
func NewAdminGuards(cfg *AdminConfig, l logger.Logger) (AdminGuards, error) {
	if cfg == nil || !cfg.Enabled {
		l.Named("handler.admin").Warn("admin endpoints are not protected")
		return nil, nil
	}

	var guards AdminGuards
	if cfg.IPFilter != nil && len(cfg.IPFilter.IPs) > 0 {
		f, err := security.NewIPFilter(cfg.IPFilter)
		if err != nil {
			return nil, errors.Wrap(err, "create admin ip filter")
		}
		guards = append(guards, middleware.IPFilter(f, l))
	}

	m, err := security.NewJWTManager(&cfg.JWT)
	if err != nil {
		return nil, errors.Wrap(err, "create admin jwt manager")
	}
	guards = append(guards, middleware.JWTAuth(m, l))
	if cfg.Role != "" {
		guards = append(guards, middleware.RequireRole(cfg.Role))
	}
	return guards, nil
}

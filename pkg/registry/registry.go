package registry

import (
	"context"
	"errors"
)

// ServiceInfo 服务信息
type ServiceInfo struct {
	// ServiceName 服务名称
	ServiceName string `json:"service_name"`
	// Address 服务地址（如 192.168.1.10:8080）
	Address string `json:"address"`
	// Metadata 元数据（如 version, 负载指标等）
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Registrar 服务注册接口
type Registrar interface {
	// Register 注册服务
	Register(ctx context.Context, info *ServiceInfo) error
	// Deregister 取消注册
	Deregister(ctx context.Context) error
	// UpdateMetadata 更新元数据
	UpdateMetadata(ctx context.Context, metadata map[string]string) error
}

// 注册错误
var (
	ErrNotRegistered     = errors.New("registry: service not registered")
	ErrAlreadyRegistered = errors.New("registry: service already registered")
)

package web

import (
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultAddr = ":8080"

// Config HTTP 服务配置
type Config struct {
	// Addr 监听地址 host:port，端口为 0 时由系统分配
	Addr string `mapstructure:"addr"`
	// Mode gin 运行模式：debug、release、test
	Mode string `mapstructure:"mode"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	// ShutdownTimeout Stop 等待在途请求的上限
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`

	// CertFile 与 KeyFile 同时设置时启用 TLS
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:              defaultAddr,
		Mode:              gin.ReleaseMode,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
		ShutdownTimeout:   5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Validate 检查监听地址与证书配置
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("%w: addr %q: %v", ErrInvalidConfig, c.Addr, err)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("%w: cert_file and key_file must be set together", ErrInvalidConfig)
	}
	return nil
}

// TLS 是否启用 TLS
func (c *Config) TLS() bool {
	return c.CertFile != ""
}

// Port 监听端口，Addr 未设置时取默认端口
func (c *Config) Port() string {
	addr := c.Addr
	if addr == "" {
		addr = defaultAddr
	}
	_, port, _ := net.SplitHostPort(addr)
	return port
}

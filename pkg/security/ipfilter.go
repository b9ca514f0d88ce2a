package security

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
)

// IP 过滤模式
const (
	IPFilterModeWhitelist = "whitelist"
	IPFilterModeBlacklist = "blacklist"
)

// IPFilterConfig IP 过滤配置
type IPFilterConfig struct {
	Mode string `mapstructure:"mode"`
	// IPs 单个地址或 CIDR，如 "127.0.0.1"、"10.0.0.0/8"、"::1"
	IPs []string `mapstructure:"ips"`
}

// DefaultIPFilterConfig 默认白名单
func DefaultIPFilterConfig() *IPFilterConfig {
	return &IPFilterConfig{Mode: IPFilterModeWhitelist}
}

// IPFilter 创建后只读，可并发使用
type IPFilter struct {
	deny     bool
	prefixes []netip.Prefix
}

// NewIPFilter 解析配置中的地址列表
func NewIPFilter(cfg *IPFilterConfig) (*IPFilter, error) {
	merged, err := config.MergeConfig(DefaultIPFilterConfig(), cfg)
	if err != nil {
		return nil, err
	}

	f := &IPFilter{}
	switch merged.Mode {
	case IPFilterModeWhitelist:
	case IPFilterModeBlacklist:
		f.deny = true
	default:
		return nil, ErrModeInvalid
	}

	for _, s := range merged.IPs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		p, err := parsePrefix(s)
		if err != nil {
			return nil, err
		}
		f.prefixes = append(f.prefixes, p)
	}
	if len(f.prefixes) == 0 {
		return nil, ErrIPListEmpty
	}
	return f, nil
}

// parsePrefix 单个地址按全长前缀处理
func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %s", ErrCIDRInvalid, s)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %s", ErrIPInvalid, s)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Allow 判断客户端地址是否放行，无法解析的地址一律拒绝
func (f *IPFilter) Allow(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return f.contains(addr.Unmap()) != f.deny
}

func (f *IPFilter) contains(addr netip.Addr) bool {
	for _, p := range f.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

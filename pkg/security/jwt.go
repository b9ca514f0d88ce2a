package security

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lk2023060901/xdooria-dungeon/pkg/config"
)

// JWTConfig 管理 Token 配置
//
// HS* 算法只需 secret_key；RS*/ES* 校验需要 public_key_file，
// 只有本进程也签发 Token 时才需要 private_key_file。
type JWTConfig struct {
	Algorithm      string        `mapstructure:"algorithm"`
	SecretKey      string        `mapstructure:"secret_key"`
	PublicKeyFile  string        `mapstructure:"public_key_file"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	TTL            time.Duration `mapstructure:"ttl"`
	// Leeway 容忍的时钟偏差
	Leeway time.Duration `mapstructure:"leeway"`
	// Issuer / Audience 非空时签发写入、校验要求一致
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`

	HeaderName  string `mapstructure:"header_name"`
	TokenPrefix string `mapstructure:"token_prefix"`
}

// DefaultJWTConfig 默认 HS256，一小时有效
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		Algorithm:   "HS256",
		TTL:         time.Hour,
		Leeway:      5 * time.Second,
		HeaderName:  "Authorization",
		TokenPrefix: "Bearer ",
	}
}

// Claims 管理 Token 载荷
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// JWTManager 签发与校验管理 Token
type JWTManager struct {
	cfg    *JWTConfig
	method jwt.SigningMethod
	// verifyKey 与 signKey 在 HS* 下是同一个密钥，signKey 为空时不能签发
	verifyKey any
	signKey   any
	parser    *jwt.Parser
}

// NewJWTManager 创建 JWTManager
func NewJWTManager(cfg *JWTConfig) (*JWTManager, error) {
	merged, err := config.MergeConfig(DefaultJWTConfig(), cfg)
	if err != nil {
		return nil, err
	}

	method := jwt.GetSigningMethod(strings.ToUpper(merged.Algorithm))
	if method == nil || method == jwt.SigningMethodNone {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmInvalid, merged.Algorithm)
	}

	m := &JWTManager{cfg: merged, method: method}
	if m.verifyKey, m.signKey, err = loadKeys(method.Alg(), merged); err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithLeeway(merged.Leeway),
		jwt.WithExpirationRequired(),
	}
	if merged.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(merged.Issuer))
	}
	if merged.Audience != "" {
		opts = append(opts, jwt.WithAudience(merged.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

// GenerateToken 签发 Token
// claims 中未填写的过期时间、签发者与受众按配置补齐
func (m *JWTManager) GenerateToken(claims *Claims) (string, error) {
	if m.signKey == nil {
		return "", ErrPrivateKeyLoad
	}

	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.cfg.TTL))
	}
	if claims.Issuer == "" {
		claims.Issuer = m.cfg.Issuer
	}
	if len(claims.Audience) == 0 && m.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.cfg.Audience}
	}

	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// ValidateToken 校验请求头中的值，前缀可有可无
func (m *JWTManager) ValidateToken(header string) (*Claims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, m.cfg.TokenPrefix))
	if raw == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(raw, claims, m.keyFunc); err != nil {
		return nil, translate(err)
	}
	return claims, nil
}

// HeaderName 携带 Token 的请求头
func (m *JWTManager) HeaderName() string {
	return m.cfg.HeaderName
}

func (m *JWTManager) keyFunc(*jwt.Token) (any, error) {
	return m.verifyKey, nil
}

// translate 把 jwt 库错误映射为包内错误，顺序按具体程度排列
func translate(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrAlgorithmMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotValidYet
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

// loadKeys 按算法族准备校验与签名密钥
func loadKeys(alg string, cfg *JWTConfig) (verify, sign any, err error) {
	if strings.HasPrefix(alg, "HS") {
		if cfg.SecretKey == "" {
			return nil, nil, ErrSecretKeyEmpty
		}
		secret := []byte(cfg.SecretKey)
		return secret, secret, nil
	}

	var parsePub func([]byte) (any, error)
	var parsePriv func([]byte) (any, error)
	switch {
	case strings.HasPrefix(alg, "RS"), strings.HasPrefix(alg, "PS"):
		parsePub = func(b []byte) (any, error) { return jwt.ParseRSAPublicKeyFromPEM(b) }
		parsePriv = func(b []byte) (any, error) { return jwt.ParseRSAPrivateKeyFromPEM(b) }
	case strings.HasPrefix(alg, "ES"):
		parsePub = func(b []byte) (any, error) { return jwt.ParseECPublicKeyFromPEM(b) }
		parsePriv = func(b []byte) (any, error) { return jwt.ParseECPrivateKeyFromPEM(b) }
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrAlgorithmInvalid, alg)
	}

	if cfg.PublicKeyFile == "" {
		return nil, nil, fmt.Errorf("%w: public_key_file is required for %s", ErrPublicKeyLoad, alg)
	}
	if verify, err = readPEM(cfg.PublicKeyFile, parsePub); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPublicKeyLoad, err)
	}
	if cfg.PrivateKeyFile != "" {
		if sign, err = readPEM(cfg.PrivateKeyFile, parsePriv); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPrivateKeyLoad, err)
		}
	}
	return verify, sign, nil
}

func readPEM(path string, parse func([]byte) (any, error)) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

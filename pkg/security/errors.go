package security

import "errors"

// JWT 错误
var (
	ErrSecretKeyEmpty    = errors.New("security: secret key is empty")
	ErrPublicKeyLoad     = errors.New("security: failed to load public key")
	ErrPrivateKeyLoad    = errors.New("security: failed to load private key")
	ErrTokenMissing      = errors.New("security: token is missing")
	ErrTokenInvalid      = errors.New("security: token is invalid")
	ErrTokenExpired      = errors.New("security: token has expired")
	ErrTokenNotValidYet  = errors.New("security: token is not valid yet")
	ErrTokenMalformed    = errors.New("security: token is malformed")
	ErrSignatureInvalid  = errors.New("security: signature is invalid")
	ErrAlgorithmInvalid  = errors.New("security: invalid algorithm")
	ErrAlgorithmMismatch = errors.New("security: algorithm mismatch")
)

// IP 过滤错误
var (
	ErrIPInvalid   = errors.New("security: invalid IP address")
	ErrCIDRInvalid = errors.New("security: invalid CIDR")
	ErrModeInvalid = errors.New("security: invalid mode, must be 'whitelist' or 'blacklist'")
	ErrIPListEmpty = errors.New("security: IP list is empty")
)

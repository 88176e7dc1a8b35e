package config

import "github.com/ceyewan/discovery/xerrors"

// ErrValidationFailed 配置校验失败
var ErrValidationFailed = xerrors.New("configuration validation failed")

// IsValidationError 判断错误是否来自配置校验
func IsValidationError(err error) bool {
	return xerrors.Is(err, ErrValidationFailed)
}

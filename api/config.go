package api

import (
	"github.com/ceyewan/discovery/xerrors"
)

// Config HTTP 接口配置
//
//	api:
//	  write_rate_limit: 200
//	  write_burst: 400
type Config struct {
	// WriteRateLimit 写接口（公告与删除）每秒允许的请求数，0 表示不限制
	WriteRateLimit float64 `mapstructure:"write_rate_limit"`

	// WriteBurst 令牌桶容量，未设置时等于 WriteRateLimit 向上取整
	WriteBurst int `mapstructure:"write_burst"`

	// StatsWindowSize 查询耗时统计的窗口大小（默认：5000）
	StatsWindowSize int `mapstructure:"stats_window_size"`
}

func (c *Config) setDefaults() {
	if c.WriteRateLimit > 0 && c.WriteBurst == 0 {
		c.WriteBurst = int(c.WriteRateLimit)
		if float64(c.WriteBurst) < c.WriteRateLimit {
			c.WriteBurst++
		}
	}
	if c.StatsWindowSize == 0 {
		c.StatsWindowSize = 5000
	}
}

func (c *Config) validate() error {
	if c.WriteRateLimit < 0 || c.WriteBurst < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "api: write rate limit must not be negative")
	}
	if c.StatsWindowSize < 1 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "api: stats_window_size must be positive")
	}
	return nil
}

package registry

import (
	"time"

	"github.com/ceyewan/discovery/xerrors"
)

// Config 注册中心存储配置
//
//	registry:
//	  max_age: 30s
//	  dynamic_refresh_interval: 1s
//	  static_refresh_interval: 1s
//	  page_size: 1000
//	  serializer: json
//	  stats_window_size: 5000
type Config struct {
	// MaxAge 动态公告的存活时长，默认 30s
	MaxAge time.Duration `mapstructure:"max_age"`

	// DynamicRefreshInterval 动态存储两次重载之间的间隔，默认 1s
	DynamicRefreshInterval time.Duration `mapstructure:"dynamic_refresh_interval"`

	// StaticRefreshInterval 静态存储两次重载之间的间隔，默认 1s
	StaticRefreshInterval time.Duration `mapstructure:"static_refresh_interval"`

	// PageSize 重载时每页读取的行数，默认 1000
	PageSize int `mapstructure:"page_size"`

	// Serializer 行值的编码方式：json 或 msgpack，默认 json
	Serializer string `mapstructure:"serializer"`

	// StatsWindowSize 耗时统计保留的样本数，默认 5000，最小 100
	StatsWindowSize int `mapstructure:"stats_window_size"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxAge:                 30 * time.Second,
		DynamicRefreshInterval: time.Second,
		StaticRefreshInterval:  time.Second,
		PageSize:               1000,
		Serializer:             SerializerJSON,
		StatsWindowSize:        5000,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.MaxAge == 0 {
		c.MaxAge = d.MaxAge
	}
	if c.DynamicRefreshInterval == 0 {
		c.DynamicRefreshInterval = d.DynamicRefreshInterval
	}
	if c.StaticRefreshInterval == 0 {
		c.StaticRefreshInterval = d.StaticRefreshInterval
	}
	if c.PageSize == 0 {
		c.PageSize = d.PageSize
	}
	if c.Serializer == "" {
		c.Serializer = d.Serializer
	}
	if c.StatsWindowSize == 0 {
		c.StatsWindowSize = d.StatsWindowSize
	}
}

func (c *Config) validate() error {
	switch {
	case c.MaxAge < time.Second:
		return xerrors.Wrapf(ErrInvalidConfig, "max_age %s must be at least 1s", c.MaxAge)
	case c.DynamicRefreshInterval <= 0 || c.StaticRefreshInterval <= 0:
		return xerrors.Wrap(ErrInvalidConfig, "refresh intervals must be positive")
	case c.PageSize < 1:
		return xerrors.Wrapf(ErrInvalidConfig, "page_size %d", c.PageSize)
	case c.StatsWindowSize < 100:
		return xerrors.Wrapf(ErrInvalidConfig, "stats_window_size %d must be at least 100", c.StatsWindowSize)
	}
	if _, err := NewSerializer(c.Serializer); err != nil {
		return err
	}
	return nil
}

// resolve 返回补齐默认值并校验后的副本
func (c *Config) resolve() (*Config, error) {
	var cfg Config
	if c != nil {
		cfg = *c
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// dynamicTTL 行的物理 TTL：MaxAge 截断到秒，至少 1 秒
func (c *Config) dynamicTTL() time.Duration {
	return max(c.MaxAge.Truncate(time.Second), time.Second)
}

package cache

import (
	"time"

	"github.com/ceyewan/discovery/xerrors"
)

// Config 本地服务缓存配置
//
//	cache:
//	  refresh_interval: 5s
//	  too_old: 30s
//	  capacity: 10000
//	  idle_expiry: 10m
type Config struct {
	// RefreshInterval 超过该时长后由一个调用方负责刷新，其他调用方继续使用旧列表（默认：5s）
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// TooOld 超过该时长后所有调用方都会刷新（默认：30s）
	TooOld time.Duration `mapstructure:"too_old"`

	// Capacity 最多缓存多少个 (type, pool) 组合（默认：10000）
	Capacity int `mapstructure:"capacity"`

	// IdleExpiry 组合多久未被访问后淘汰（默认：10m）
	IdleExpiry time.Duration `mapstructure:"idle_expiry"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: 5 * time.Second,
		TooOld:          30 * time.Second,
		Capacity:        10000,
		IdleExpiry:      10 * time.Minute,
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.RefreshInterval == 0 {
		c.RefreshInterval = d.RefreshInterval
	}
	if c.TooOld == 0 {
		c.TooOld = d.TooOld
	}
	if c.Capacity == 0 {
		c.Capacity = d.Capacity
	}
	if c.IdleExpiry == 0 {
		c.IdleExpiry = d.IdleExpiry
	}
}

func (c *Config) validate() error {
	if c.RefreshInterval < 0 || c.TooOld < c.RefreshInterval {
		return xerrors.Wrapf(xerrors.ErrInvalidInput,
			"cache: too_old (%s) must not be shorter than refresh_interval (%s)", c.TooOld, c.RefreshInterval)
	}
	if c.Capacity < 1 || c.IdleExpiry < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "cache: capacity must be positive")
	}
	return nil
}

// Package config 为 discovery 提供统一的配置加载能力，基于 Viper 实现。
//
// 配置优先级（高到低）：
//
//	环境变量 (DISCOVERY_*) > .env 文件 > config.<DISCOVERY_ENV>.yaml > config.yaml > 默认值
//
// 环境变量名由配置 key 转换而来：前缀 + 大写 + "." 替换为 "_"，
// 例如 registry.max_age 对应 DISCOVERY_REGISTRY_MAX_AGE。
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Paths: []string{"./config"}},
//		config.WithDefaults(map[string]any{"registry.max_age": "30s"}))
//	if err := loader.Load(ctx); err != nil { ... }
//	var cfg bootstrap.Config
//	_ = loader.Unmarshal(&cfg)
//
//	ch, _ := loader.Watch(ctx, "log.level")
//	for ev := range ch { ... }
package config

import (
	"context"
	"strings"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置，并开始监听配置文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体，字段使用 mapstructure 标签
	Unmarshal(v any) error

	// UnmarshalKey 将指定 key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听指定 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// ConfigFileUsed 返回实际加载的配置文件路径，未找到文件时为空
	ConfigFileUsed() string
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}

// Config 加载器配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string   // 配置文件类型，默认 "yaml"
	EnvPrefix string   // 环境变量前缀，默认 "DISCOVERY"
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "config"
	}
	if len(c.Paths) == 0 {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "DISCOVERY"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
}

// New 创建配置加载器，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	return newLoader(cfg, applyOptions(opts...)), nil
}

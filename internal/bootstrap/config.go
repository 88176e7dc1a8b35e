package bootstrap

import (
	"context"
	"time"

	"github.com/ceyewan/discovery/api"
	"github.com/ceyewan/discovery/cache"
	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/config"
	"github.com/ceyewan/discovery/connector"
	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/trace"
	"github.com/ceyewan/discovery/xerrors"
)

// 存储驱动
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
	DriverEtcd   = "etcd"
	DriverBadger = "badger"
)

// Config 服务端完整配置
type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Log      clog.Config     `mapstructure:"log"`
	Metrics  metrics.Config  `mapstructure:"metrics"`
	Trace    trace.Config    `mapstructure:"trace"`
	Registry registry.Config `mapstructure:"registry"`
	Cache    cache.Config    `mapstructure:"cache"`
	Store    StoreConfig     `mapstructure:"store"`
	Events   EventsConfig    `mapstructure:"events"`
	API      api.Config      `mapstructure:"api"`
}

// AppConfig 节点身份与 HTTP 监听
type AppConfig struct {
	registry.NodeInfo `mapstructure:",squash"`

	// HTTPAddr 监听地址（默认：:4111）
	HTTPAddr string `mapstructure:"http_addr"`

	// HTTPURI 对外公告的地址，为空时由主机名和端口推导
	HTTPURI string `mapstructure:"http_uri"`

	// AnnounceInterval 自身公告的间隔（默认：max_age / 3）
	AnnounceInterval time.Duration `mapstructure:"announce_interval"`

	// ShutdownTimeout 优雅退出的最长等待时间（默认：10s）
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig 持久化后端
type StoreConfig struct {
	Driver    string                `mapstructure:"driver"`
	KeyPrefix string                `mapstructure:"key_prefix"`
	Provision store.ProvisionConfig `mapstructure:"provision"`
	Breaker   store.BreakerConfig   `mapstructure:"breaker"`

	// PurgeInterval SQL 后端清理过期行的间隔（默认：max_age）
	PurgeInterval time.Duration `mapstructure:"purge_interval"`

	SQLite connector.SQLiteConfig `mapstructure:"sqlite"`
	MySQL  connector.MySQLConfig  `mapstructure:"mysql"`
	Redis  connector.RedisConfig  `mapstructure:"redis"`
	Etcd   connector.EtcdConfig   `mapstructure:"etcd"`
	Badger connector.BadgerConfig `mapstructure:"badger"`
}

// EventsConfig 审计事件与消息中间件连接
type EventsConfig struct {
	event.Config `mapstructure:",squash"`

	NATS  connector.NATSConfig  `mapstructure:"nats"`
	Kafka connector.KafkaConfig `mapstructure:"kafka"`
}

// defaults 注册所有可被环境变量覆盖的 key
func defaults() map[string]any {
	return map[string]any{
		"app.environment":       "",
		"app.node_id":           "",
		"app.pool":              "general",
		"app.location":          "",
		"app.http_addr":         ":4111",
		"app.http_uri":          "",
		"app.announce_interval": "0s",
		"app.shutdown_timeout":  "10s",

		"log.level":  "info",
		"log.format": "json",
		"log.output": "stdout",

		"metrics.enabled":      true,
		"metrics.service_name": "discovery",
		"metrics.path":         "/metrics",
		"metrics.port":         0,
		"metrics.runtime":      true,

		"trace.enabled":      false,
		"trace.service_name": "discovery",
		"trace.endpoint":     "localhost:4317",
		"trace.sampler":      0.1,
		"trace.insecure":     true,

		"registry.max_age":                  "30s",
		"registry.dynamic_refresh_interval": "1s",
		"registry.static_refresh_interval":  "1s",
		"registry.page_size":                1000,
		"registry.serializer":               registry.SerializerJSON,
		"registry.stats_window_size":        5000,

		"cache.refresh_interval": "5s",
		"cache.too_old":          "30s",
		"cache.capacity":         10000,
		"cache.idle_expiry":      "10m",

		"store.driver":             DriverMemory,
		"store.key_prefix":         "discovery",
		"store.provision.attempts": 30,
		"store.provision.backoff":  "1s",
		"store.breaker.enabled":    false,
		"store.sqlite.path":        "discovery.db",
		"store.mysql.dsn":          "",
		"store.redis.addr":         "",
		"store.redis.password":     "",
		"store.etcd.endpoints":     []string{},
		"store.badger.path":        "",
		"store.badger.in_memory":   false,

		"events.enabled":    "",
		"events.driver":     event.DriverLog,
		"events.subject":    "discovery.events",
		"events.nats.url":   "",
		"events.kafka.seed": []string{},

		"api.write_rate_limit":  0,
		"api.write_burst":       0,
		"api.stats_window_size": 5000,
	}
}

// Load 从 dir 读取 config.yaml，叠加环境覆盖文件与 DISCOVERY_* 环境变量
func Load(ctx context.Context, dir string, opts ...config.Option) (*Config, config.Loader, error) {
	var paths []string
	if dir != "" {
		paths = []string{dir}
	}
	opts = append([]config.Option{config.WithDefaults(defaults())}, opts...)
	loader, err := config.New(&config.Config{Paths: paths}, opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, xerrors.Wrap(err, "load config")
	}
	var cfg Config
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, nil, xerrors.Wrap(err, "unmarshal config")
	}
	if err := cfg.resolve(); err != nil {
		return nil, nil, err
	}
	return &cfg, loader, nil
}

// resolve 补齐依赖其他字段的默认值并校验
func (c *Config) resolve() error {
	if c.App.Environment == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "app.environment is required")
	}
	if c.App.NodeID == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "app.node_id is required")
	}
	if c.App.Pool == "" {
		c.App.Pool = "general"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":4111"
	}
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	maxAge := c.Registry.MaxAge
	if maxAge == 0 {
		maxAge = registry.DefaultConfig().MaxAge
	}
	if c.App.AnnounceInterval <= 0 {
		c.App.AnnounceInterval = maxAge / 3
	}
	if c.App.AnnounceInterval >= maxAge {
		return xerrors.Wrapf(xerrors.ErrInvalidInput,
			"app.announce_interval %s must be shorter than registry.max_age %s", c.App.AnnounceInterval, maxAge)
	}
	if c.Store.PurgeInterval <= 0 {
		c.Store.PurgeInterval = maxAge
	}

	switch c.Store.Driver {
	case "":
		c.Store.Driver = DriverMemory
	case DriverMemory, DriverSQLite, DriverMySQL, DriverRedis, DriverEtcd, DriverBadger:
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown store driver %q", c.Store.Driver)
	}

	c.Events.SetDefaults()
	return c.Events.Validate()
}

package connector

import (
	"fmt"
	"time"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name     string `mapstructure:"name"`     // 连接器名称 (默认: "default")
	Addr     string `mapstructure:"addr"`     // [必填] 例如 "127.0.0.1:6379"
	Password string `mapstructure:"password"` // [可选]
	DB       int    `mapstructure:"db"`       // [可选] 默认 0

	PoolSize     int           `mapstructure:"pool_size"`      // 默认 10
	MinIdleConns int           `mapstructure:"min_idle_conns"` // 默认 0
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // 默认 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // 默认 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // 默认 3s
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis db must be >= 0")
	}
	return nil
}

// MySQLConfig MySQL 连接配置，DSN 优先于 Host/Port 等分项
type MySQLConfig struct {
	Name     string `mapstructure:"name"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"` // 默认 3306
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Charset  string `mapstructure:"charset"` // 默认 utf8mb4

	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 默认 10
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 默认 100
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 默认 1h
}

func (c *MySQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

func (c *MySQLConfig) validate() error {
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("mysql host is required")
	}
	if c.Username == "" {
		return fmt.Errorf("mysql username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	return nil
}

func (c *MySQLConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// SQLiteConfig SQLite 连接配置
type SQLiteConfig struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"` // 文件路径，":memory:" 表示内存数据库
}

func (c *SQLiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Path == "" {
		c.Path = "discovery.db"
	}
}

func (c *SQLiteConfig) inMemory() bool {
	return c.Path == ":memory:"
}

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	Name        string        `mapstructure:"name"`
	Endpoints   []string      `mapstructure:"endpoints"` // [必填]
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"` // 默认 5s
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	return nil
}

// BadgerConfig Badger 嵌入式存储配置
type BadgerConfig struct {
	Name           string        `mapstructure:"name"`
	Path           string        `mapstructure:"path"`             // 数据目录，InMemory 时忽略
	InMemory       bool          `mapstructure:"in_memory"`        // 纯内存模式，进程退出即丢失
	GCInterval     time.Duration `mapstructure:"gc_interval"`      // value log GC 间隔，默认 5m
	GCDiscardRatio float64       `mapstructure:"gc_discard_ratio"` // 默认 0.7
}

func (c *BadgerConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.GCInterval == 0 {
		c.GCInterval = 5 * time.Minute
	}
	if c.GCDiscardRatio == 0 {
		c.GCDiscardRatio = 0.7
	}
}

func (c *BadgerConfig) validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("badger path is required unless in_memory is set")
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf("badger gc_discard_ratio must be in (0, 1)")
	}
	return nil
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	Name          string        `mapstructure:"name"`
	URL           string        `mapstructure:"url"` // [必填] 例如 "nats://127.0.0.1:4222"
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Token         string        `mapstructure:"token"`
	Timeout       time.Duration `mapstructure:"timeout"`        // 默认 5s
	MaxReconnects int           `mapstructure:"max_reconnects"` // 默认 60
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"` // 默认 2s
	PingInterval  time.Duration `mapstructure:"ping_interval"`  // 默认 2m
}

func (c *NATSConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 2 * time.Minute
	}
}

func (c *NATSConfig) validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats url is required")
	}
	return nil
}

// KafkaConfig Kafka 连接配置
type KafkaConfig struct {
	Name           string        `mapstructure:"name"`
	Seed           []string      `mapstructure:"seed"` // [必填] broker 列表
	ClientID       string        `mapstructure:"client_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // 默认 10s
}

func (c *KafkaConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.ClientID == "" {
		c.ClientID = "discovery"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

func (c *KafkaConfig) validate() error {
	if len(c.Seed) == 0 {
		return fmt.Errorf("kafka seed brokers are required")
	}
	return nil
}

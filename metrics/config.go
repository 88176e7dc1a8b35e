package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "discovery"
//	  version: "v1.0.0"
//	  port: 9090
//	  path: "/metrics"
//	  runtime: true
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `mapstructure:"enabled"`

	// ServiceName 写入 OTel Resource 的 service.name
	ServiceName string `mapstructure:"service_name"`

	// Version 写入 OTel Resource 的 service.version
	Version string `mapstructure:"version"`

	// Port 大于 0 时启动独立的 Prometheus HTTP 服务器
	Port int `mapstructure:"port"`

	// Path Prometheus 采集路径，默认 "/metrics"
	Path string `mapstructure:"path"`

	// Runtime 是否采集 Go 运行时指标（GC、goroutine、内存）
	Runtime bool `mapstructure:"runtime"`
}

// NewDevDefaultConfig 开发环境默认配置，不启动 HTTP 服务器
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
		Path:        "/metrics",
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "discovery"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

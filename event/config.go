package event

import (
	"github.com/ceyewan/discovery/xerrors"
)

// 投递方式
const (
	DriverLog   = "log"
	DriverNATS  = "nats"
	DriverKafka = "kafka"
)

// Config 审计事件配置
//
//	events:
//	  enabled: "DynamicAnnouncement, ServiceQuery"
//	  driver: nats
//	  subject: discovery.events
type Config struct {
	// Enabled 启用的事件类型，"*" 表示全部（默认：空，即全部关闭）
	Enabled string `mapstructure:"enabled"`

	// Driver 投递方式：log | nats | kafka（默认：log）
	Driver string `mapstructure:"driver"`

	// Subject NATS subject 或 Kafka topic（默认：discovery.events）
	Subject string `mapstructure:"subject"`
}

// SetDefaults 填充默认值
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = DriverLog
	}
	if c.Subject == "" {
		c.Subject = "discovery.events"
	}
}

// Validate 校验投递方式和启用列表
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverLog, DriverNATS, DriverKafka:
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "event: unknown driver %q", c.Driver)
	}
	_, err := ParseTypes(c.Enabled)
	return err
}

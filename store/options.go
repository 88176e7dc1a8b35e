package store

import (
	"github.com/benbjohnson/clock"

	"github.com/ceyewan/discovery/clog"
)

// Option 存储选项
type Option func(*options)

type options struct {
	logger clog.Logger
	clock  clock.Clock
	prefix string
}

// WithLogger 注入 Logger
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("store")
		}
	}
}

// WithClock 注入时钟，内存与 SQL 后端用它判断物理过期
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithKeyPrefix 设置键前缀，用于 Redis、Etcd 这类共享键空间的后端，默认 "discovery"
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		clock:  clock.New(),
		prefix: "discovery",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

package config

import "github.com/ceyewan/discovery/clog"

// Option 加载器选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	defaults  map[string]any
	validator func(Loader) error
	watch     bool
}

// WithLogger 注入 Logger
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("config")
		}
	}
}

// WithDefaults 注册默认值
//
// 只有注册过的 key 才能被环境变量覆盖后参与 Unmarshal，
// 因此所有需要通过环境变量配置的 key 都应在这里给出默认值。
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) {
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// WithValidator 注册加载完成后的校验函数
func WithValidator(fn func(Loader) error) Option {
	return func(o *options) {
		o.validator = fn
	}
}

// WithoutWatch 关闭配置文件监听，主要用于命令行工具和测试
func WithoutWatch() Option {
	return func(o *options) {
		o.watch = false
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		logger:   clog.Discard(),
		defaults: make(map[string]any),
		watch:    true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

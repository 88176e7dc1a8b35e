package store

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/xerrors"
)

// BreakerConfig 存储熔断配置
type BreakerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MaxRequests 半开状态下允许通过的探测请求数
	MaxRequests uint32 `mapstructure:"max_requests"`
	// Interval 闭合状态下的统计周期，0 表示不清空
	Interval time.Duration `mapstructure:"interval"`
	// Timeout 打开状态持续时间，超时后进入半开
	Timeout time.Duration `mapstructure:"timeout"`
	// FailureRatio 触发熔断的失败率
	FailureRatio float64 `mapstructure:"failure_ratio"`
	// MinimumRequests 统计周期内至少这么多请求才会判断失败率
	MinimumRequests uint32 `mapstructure:"minimum_requests"`
}

// DefaultBreakerConfig 返回默认熔断配置（默认关闭）
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:     1,
		Interval:        time.Minute,
		Timeout:         10 * time.Second,
		FailureRatio:    0.6,
		MinimumRequests: 10,
	}
}

func (c *BreakerConfig) setDefaults() {
	d := DefaultBreakerConfig()
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = d.FailureRatio
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = d.MinimumRequests
	}
}

// breakerStore 在 RowStore 外包一层熔断器，后端持续失败时直接快速失败
type breakerStore struct {
	next RowStore
	cb   *gobreaker.CircuitBreaker[any]
}

// WithBreaker 为 rs 加上熔断保护。熔断打开时返回的错误带有 xerrors.ErrUnavailable。
// 被包装的存储若实现了 Provisioner，返回值同样实现，且初始化不经过熔断器。
func WithBreaker(rs RowStore, name string, cfg BreakerConfig, logger clog.Logger) RowStore {
	cfg.setDefaults()
	if logger == nil {
		logger = clog.Discard()
	}
	logger = logger.WithNamespace("breaker").With(clog.String("breaker", name))

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinimumRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store breaker state changed",
				clog.String("from", from.String()),
				clog.String("to", to.String()))
		},
		// 调用方主动取消不算后端故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidKey)
		},
	}

	b := &breakerStore{next: rs, cb: gobreaker.NewCircuitBreaker[any](settings)}
	if p, ok := rs.(Provisioner); ok {
		return &provisioningBreakerStore{breakerStore: b, p: p}
	}
	return b
}

func (b *breakerStore) exec(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, xerrors.Unavailable(err, "store breaker "+b.cb.Name())
	}
	return v, err
}

func (b *breakerStore) WriteRow(ctx context.Context, key string, value []byte, writeTime int64, ttl time.Duration) error {
	_, err := b.exec(func() (any, error) {
		return nil, b.next.WriteRow(ctx, key, value, writeTime, ttl)
	})
	return err
}

func (b *breakerStore) DeleteRow(ctx context.Context, key string, tombstoneTime int64) error {
	_, err := b.exec(func() (any, error) {
		return nil, b.next.DeleteRow(ctx, key, tombstoneTime)
	})
	return err
}

func (b *breakerStore) ReadLatest(ctx context.Context, key string) (*Row, error) {
	v, err := b.exec(func() (any, error) {
		return b.next.ReadLatest(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	row, _ := v.(*Row)
	return row, nil
}

func (b *breakerStore) ScanRange(ctx context.Context, startExclusive string, limit int) ([]Row, error) {
	v, err := b.exec(func() (any, error) {
		return b.next.ScanRange(ctx, startExclusive, limit)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := v.([]Row)
	return rows, nil
}

type provisioningBreakerStore struct {
	*breakerStore
	p Provisioner
}

func (s *provisioningBreakerStore) Provision(ctx context.Context) error {
	return s.p.Provision(ctx)
}

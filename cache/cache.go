// Package cache 为高频的按 (type, pool) 查询提供无锁的本地缓存。
//
// 每个组合对应一个条目，保存上次刷新时刻和一份不可变的服务列表。读路径只有
// 原子读和一次 CAS，不加锁：
//
//   - 列表不存在，或距上次刷新超过 RefreshInterval 时，尝试用 CAS 把刷新时刻改为当前时刻
//   - CAS 成功、列表不存在、或已超过 TooOld 时，从合并视图重新计算并整体替换列表
//   - 总是返回当前已安装的列表
//
// 多个调用方可能同时刷新（首次访问、CAS 失败但已过 TooOld），刷新是幂等的，
// 重复计算只浪费 CPU，不影响正确性。
//
//	c, _ := cache.New(view, cache.DefaultConfig(), cache.WithLogger(logger))
//	services := c.GetInPool("storage", "general")
package cache

import (
	"context"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/xerrors"
)

const metricRefreshes = "discovery_cache_refreshes_total"

type key struct {
	typ  string
	pool string
}

type entry struct {
	lastRefresh atomic.Int64 // Unix 毫秒
	list        atomic.Pointer[[]registry.Service]
}

// LocalServiceCache 按 (type, pool) 缓存合并视图的查询结果
type LocalServiceCache struct {
	view      registry.Lookup
	refresh   int64 // 毫秒
	tooOld    int64 // 毫秒
	clock     clock.Clock
	logger    clog.Logger
	refreshes metrics.Counter

	entries *otter.Cache[key, *entry]
}

var _ registry.Lookup = (*LocalServiceCache)(nil)

// New 创建本地服务缓存，cfg 为 nil 时使用默认配置
func New(view registry.Lookup, cfg *Config, opts ...Option) (*LocalServiceCache, error) {
	if view == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "cache: view is required")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard(), clock: clock.New()}
	for _, opt := range opts {
		opt(o)
	}

	entries, err := otter.New(&otter.Options[key, *entry]{
		MaximumSize:      c.Capacity,
		ExpiryCalculator: otter.ExpiryAccessing[key, *entry](c.IdleExpiry),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: build otter cache")
	}

	refreshes, err := o.meter.Counter(metricRefreshes, "本地服务缓存重新计算次数")
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: create counter")
	}

	return &LocalServiceCache{
		view:      view,
		refresh:   c.RefreshInterval.Milliseconds(),
		tooOld:    c.TooOld.Milliseconds(),
		clock:     o.clock,
		logger:    o.logger,
		refreshes: refreshes,
		entries:   entries,
	}, nil
}

// GetInPool 返回指定类型和池的服务，调用方不得修改返回的切片
func (c *LocalServiceCache) GetInPool(typ, pool string) []registry.Service {
	e := c.entry(key{typ: typ, pool: pool})

	now := c.clock.Now().UnixMilli()
	list := e.list.Load()
	last := e.lastRefresh.Load()
	age := now - last

	if list == nil || age > c.refresh {
		claimed := e.lastRefresh.CompareAndSwap(last, now)
		if claimed || list == nil || age > c.tooOld {
			fresh := c.view.GetInPool(typ, pool)
			e.list.Store(&fresh)
			c.refreshes.Inc(context.Background())
			return fresh
		}
	}
	return *list
}

func (c *LocalServiceCache) entry(k key) *entry {
	if e, ok := c.entries.GetIfPresent(k); ok {
		return e
	}
	// 并发插入时以先写入者为准
	e, _ := c.entries.SetIfAbsent(k, &entry{})
	return e
}

// Len 当前缓存的组合数量（近似值）
func (c *LocalServiceCache) Len() int {
	return c.entries.EstimatedSize()
}

// Invalidate 清空全部条目，下一次查询会重新计算
func (c *LocalServiceCache) Invalidate() {
	c.entries.InvalidateAll()
	c.logger.Debug("local service cache invalidated")
}

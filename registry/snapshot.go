package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/xerrors"
)

// snapshotStore 动态与静态存储共用的部分：不可变快照、分页重载与后台循环
type snapshotStore struct {
	name   string
	rows   store.RowStore
	cfg    *Config
	ser    Serializer
	clock  clock.Clock
	logger clog.Logger
	stats  *storeStats

	// 快照只整体替换，从不原地修改
	snapshot atomic.Pointer[[]Service]
	loop     *reloader

	// decode 把一行解析为服务列表；ok 为 false 表示该行应当忽略
	decode func(row store.Row, cutoff int64) (services []Service, ok bool, err error)
	// cutoff 本轮重载的过期阈值（Unix 毫秒），不过期的存储返回 0
	cutoff func() int64
}

func newSnapshotStore(name string, rows store.RowStore, cfg *Config, interval time.Duration, o *options) (*snapshotStore, error) {
	if rows == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "row store is required")
	}
	ser, err := NewSerializer(cfg.Serializer)
	if err != nil {
		return nil, err
	}
	logger := o.logger.WithNamespace(name)
	s := &snapshotStore{
		name:   name,
		rows:   rows,
		cfg:    cfg,
		ser:    ser,
		clock:  o.clock,
		logger: logger,
		stats:  newStoreStats(o.meter, name, cfg.StatsWindowSize),
	}
	empty := []Service{}
	s.snapshot.Store(&empty)
	s.loop = newReloader(interval, o.clock, logger, s.Reload)
	return s, nil
}

// GetAll 返回当前快照，调用方不得修改返回的切片
func (s *snapshotStore) GetAll() []Service {
	return *s.snapshot.Load()
}

// Get 返回指定类型的服务
func (s *snapshotStore) Get(typ string) []Service {
	return FilterByType(s.GetAll(), typ)
}

// GetInPool 返回指定类型和池的服务
func (s *snapshotStore) GetInPool(typ, pool string) []Service {
	return FilterByTypeAndPool(s.GetAll(), typ, pool)
}

// Reload 分页读取整张表并整体替换快照。失败时保留旧快照。
func (s *snapshotStore) Reload(ctx context.Context) error {
	return s.stats.loadAll.Time(ctx, func() error {
		cutoff := s.cutoff()
		var (
			services []Service
			rows     int
			skipped  int
		)
		err := store.Paginate(ctx, s.rows.ScanRange, s.cfg.PageSize, func(page []store.Row) error {
			for _, row := range page {
				rows++
				decoded, ok, err := s.decode(row, cutoff)
				if err != nil {
					skipped++
					s.logger.Warn("skip undecodable row", clog.String("key", row.Key), clog.Error(err))
					continue
				}
				if ok {
					services = append(services, decoded...)
				}
			}
			return nil
		})
		if err != nil {
			return xerrors.Wrapf(err, "reload %s", s.name)
		}

		next := Union(services)
		s.snapshot.Store(&next)
		s.stats.size.Set(ctx, float64(len(next)), metrics.L(metrics.LabelStore, s.name))
		s.logger.Debug("snapshot reloaded",
			clog.Int("rows", rows),
			clog.Int("skipped", skipped),
			clog.Int("services", len(next)))
		return nil
	})
}

// Start 启动后台重载循环，首次重载立即执行。重复调用返回 ErrAlreadyInitialized。
func (s *snapshotStore) Start() error {
	if err := s.loop.start(); err != nil {
		return err
	}
	s.logger.Info("reload loop started", clog.Duration("interval", s.loop.interval))
	return nil
}

// Close 停止调度并等待循环退出
func (s *snapshotStore) Close() error {
	s.loop.close()
	return nil
}

// PutStats 写入耗时统计
func (s *snapshotStore) PutStats() *metrics.TimedStat { return s.stats.put }

// DeleteStats 删除耗时统计
func (s *snapshotStore) DeleteStats() *metrics.TimedStat { return s.stats.delete }

// LoadAllStats 重载耗时统计
func (s *snapshotStore) LoadAllStats() *metrics.TimedStat { return s.stats.loadAll }

// now 当前时刻，Unix 毫秒
func (s *snapshotStore) now() int64 {
	return s.clock.Now().UnixMilli()
}

// writeError 写路径上的存储错误标记为不可用
func writeError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if xerrors.Is(err, xerrors.ErrUnavailable) {
		return xerrors.Wrap(err, msg)
	}
	return xerrors.Unavailable(err, msg)
}

package bootstrap

import (
	"context"

	"github.com/benbjohnson/clock"
	"gorm.io/gorm"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/connector"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/xerrors"
)

// purger 能清理已过期行的后端
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

type memoryPurger struct {
	m *store.Memory
}

func (p memoryPurger) Purge(context.Context) (int64, error) {
	return int64(p.m.Purge()), nil
}

// backend 按驱动打开的一对存储及其连接
type backend struct {
	dynamic store.RowStore
	static  store.RowStore
	// purgers 需要定期清理的原始存储，不经过熔断器
	purgers   []purger
	connector connector.Connector
}

func (b *backend) close() error {
	if b.connector == nil {
		return nil
	}
	return b.connector.Close()
}

// openBackend 连接配置的后端并创建动态、静态两张表
func openBackend(ctx context.Context, cfg *StoreConfig, clk clock.Clock, logger clog.Logger, meter metrics.Meter, tracing bool) (*backend, error) {
	connOpts := []connector.Option{connector.WithLogger(logger), connector.WithMeter(meter)}
	if tracing {
		connOpts = append(connOpts, connector.WithTracing())
	}
	storeOpts := []store.Option{store.WithLogger(logger), store.WithClock(clk), store.WithKeyPrefix(cfg.KeyPrefix)}

	b := &backend{}
	switch cfg.Driver {
	case DriverMemory:
		dynamic := store.NewMemory(storeOpts...)
		b.dynamic = dynamic
		b.static = store.NewMemory(storeOpts...)
		b.purgers = []purger{memoryPurger{dynamic}}
		return b, nil

	case DriverSQLite, DriverMySQL:
		var (
			conn connector.TypedConnector[*gorm.DB]
			err  error
		)
		if cfg.Driver == DriverSQLite {
			conn, err = connector.NewSQLite(&cfg.SQLite, connOpts...)
		} else {
			conn, err = connector.NewMySQL(&cfg.MySQL, connOpts...)
		}
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		b.connector = conn
		dynamic, err := store.NewSQL(conn.GetClient(), store.TableDynamic, storeOpts...)
		if err != nil {
			return nil, closeOnError(b, err)
		}
		static, err := store.NewSQL(conn.GetClient(), store.TableStatic, storeOpts...)
		if err != nil {
			return nil, closeOnError(b, err)
		}
		b.dynamic, b.static = dynamic, static
		b.purgers = []purger{dynamic}
		return b, nil

	case DriverRedis:
		conn, err := connector.NewRedis(&cfg.Redis, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		b.connector = conn
		if b.dynamic, err = store.NewRedis(conn.GetClient(), store.TableDynamic, storeOpts...); err != nil {
			return nil, closeOnError(b, err)
		}
		if b.static, err = store.NewRedis(conn.GetClient(), store.TableStatic, storeOpts...); err != nil {
			return nil, closeOnError(b, err)
		}
		return b, nil

	case DriverEtcd:
		conn, err := connector.NewEtcd(&cfg.Etcd, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		b.connector = conn
		if b.dynamic, err = store.NewEtcd(conn.GetClient(), store.TableDynamic, storeOpts...); err != nil {
			return nil, closeOnError(b, err)
		}
		if b.static, err = store.NewEtcd(conn.GetClient(), store.TableStatic, storeOpts...); err != nil {
			return nil, closeOnError(b, err)
		}
		return b, nil

	case DriverBadger:
		conn, err := connector.NewBadger(&cfg.Badger, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		b.connector = conn
		if b.dynamic, err = store.NewBadger(conn.GetClient(), store.TableDynamic, storeOpts...); err != nil {
			return nil, closeOnError(b, err)
		}
		if b.static, err = store.NewBadger(conn.GetClient(), store.TableStatic, storeOpts...); err != nil {
			return nil, closeOnError(b, err)
		}
		return b, nil
	}
	return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown store driver %q", cfg.Driver)
}

// withBreakers 按配置给两张表各包一层熔断器
func (b *backend) withBreakers(cfg store.BreakerConfig, logger clog.Logger) {
	if !cfg.Enabled {
		return
	}
	b.dynamic = store.WithBreaker(b.dynamic, store.TableDynamic, cfg, logger)
	b.static = store.WithBreaker(b.static, store.TableStatic, cfg, logger)
}

func closeOnError(b *backend, err error) error {
	return xerrors.Combine(err, b.close())
}

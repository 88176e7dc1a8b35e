package connector

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ceyewan/discovery/clog"
)

// NewSQLite 创建 SQLite 连接器
//
// 内存数据库的每个连接都是独立的库，因此 ":memory:" 时连接池限制为 1。
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (SQLiteConnector, error) {
	if cfg == nil {
		cfg = &SQLiteConfig{}
	}
	cfg.setDefaults()
	o := applyOptions(opts)

	return &gormConnector{
		kind:    "sqlite",
		name:    cfg.Name,
		tracing: o.tracing,
		open:    func() gorm.Dialector { return sqlite.Open(cfg.Path) },
		tune: func(db *gorm.DB) error {
			if !cfg.inMemory() {
				return nil
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			sqlDB.SetMaxOpenConns(1)
			return nil
		},
		logger: o.logger.With(clog.String("connector", "sqlite"), clog.String("name", cfg.Name),
			clog.String("path", cfg.Path)),
		metrics: newConnMetrics(o.meter, "sqlite", cfg.Name),
	}, nil
}

package connector

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ceyewan/discovery/clog"
)

// NewMySQL 创建 MySQL 连接器
func NewMySQL(cfg *MySQLConfig, opts ...Option) (MySQLConnector, error) {
	if cfg == nil {
		return nil, configError("mysql", ErrNotConnected)
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, configError("mysql", err)
	}
	o := applyOptions(opts)

	return &gormConnector{
		kind:    "mysql",
		name:    cfg.Name,
		tracing: o.tracing,
		open:    func() gorm.Dialector { return mysql.Open(cfg.dsn()) },
		tune: func(db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			return nil
		},
		logger: o.logger.With(clog.String("connector", "mysql"), clog.String("name", cfg.Name),
			clog.String("host", cfg.Host), clog.String("database", cfg.Database)),
		metrics: newConnMetrics(o.meter, "mysql", cfg.Name),
	}, nil
}

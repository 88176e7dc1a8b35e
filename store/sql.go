package store

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/xerrors"
)

// sqlRow 表结构，过期时刻存为 Unix 毫秒以避开各方言的时区差异
type sqlRow struct {
	RowKey    string `gorm:"column:row_key;primaryKey;size:191"`
	Value     []byte `gorm:"column:value"`
	WriteTime int64  `gorm:"column:write_time;not null"`
	ExpiresAt *int64 `gorm:"column:expires_at"`
}

// SQL 基于 GORM 的表存储，适用于 SQLite 和 MySQL
//
// TTL 通过 expires_at 列实现：读取时过滤掉已过期的行，过期行由 Purge 清理。
type SQL struct {
	db     *gorm.DB
	table  string
	clock  clock.Clock
	logger clog.Logger
}

var (
	_ RowStore    = (*SQL)(nil)
	_ Provisioner = (*SQL)(nil)
)

// NewSQL 创建绑定到 table 的 SQL 存储
func NewSQL(db *gorm.DB, table string, opts ...Option) (*SQL, error) {
	if db == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "gorm db is nil")
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &SQL{
		db:     db,
		table:  table,
		clock:  o.clock,
		logger: o.logger.WithNamespace("sql").With(clog.String("table", table)),
	}, nil
}

func (s *SQL) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Provision 建表（已存在时补齐缺失的列）
func (s *SQL) Provision(ctx context.Context) error {
	if err := s.tx(ctx).AutoMigrate(&sqlRow{}); err != nil {
		return xerrors.Wrapf(err, "migrate table %s", s.table)
	}
	return nil
}

func (s *SQL) WriteRow(ctx context.Context, key string, value []byte, writeTime int64, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	row := sqlRow{RowKey: key, Value: value, WriteTime: writeTime}
	if exp := expiresAt(writeTime, ttl); exp != 0 {
		row.ExpiresAt = &exp
	}
	err := s.tx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "row_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "write_time", "expires_at"}),
	}).Create(&row).Error
	return xerrors.Wrapf(err, "upsert %s/%s", s.table, key)
}

func (s *SQL) DeleteRow(ctx context.Context, key string, _ int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	err := s.tx(ctx).Where("row_key = ?", key).Delete(&sqlRow{}).Error
	return xerrors.Wrapf(err, "delete %s/%s", s.table, key)
}

func (s *SQL) ReadLatest(ctx context.Context, key string) (*Row, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var rows []sqlRow
	err := s.live(ctx).Where("row_key = ?", key).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s/%s", s.table, key)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0].toRow()
	return &r, nil
}

func (s *SQL) ScanRange(ctx context.Context, startExclusive string, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []sqlRow
	err := s.live(ctx).
		Where("row_key > ?", startExclusive).
		Order("row_key ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, xerrors.Wrapf(err, "scan %s after %q", s.table, startExclusive)
	}
	out := make([]Row, len(rows))
	for i := range rows {
		out[i] = rows[i].toRow()
	}
	return out, nil
}

// Purge 删除已过期的行，返回删除数量
func (s *SQL) Purge(ctx context.Context) (int64, error) {
	res := s.tx(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.clock.Now().UnixMilli()).
		Delete(&sqlRow{})
	if res.Error != nil {
		return 0, xerrors.Wrapf(res.Error, "purge %s", s.table)
	}
	if res.RowsAffected > 0 {
		s.logger.Debug("expired rows purged", clog.Int64("rows", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *SQL) live(ctx context.Context) *gorm.DB {
	return s.tx(ctx).Where("(expires_at IS NULL OR expires_at > ?)", s.clock.Now().UnixMilli())
}

func (r *sqlRow) toRow() Row {
	return Row{Key: r.RowKey, Value: r.Value, WriteTime: r.WriteTime}
}

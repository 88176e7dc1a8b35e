// Package store 定义注册中心与持久化列存之间的边界。
//
// 每个 RowStore 实例绑定一张表，表中每行由一个字符串主键、一段不透明的值
// 以及写入时间（Unix 毫秒）组成，可选地附带 TTL。上层的动态/静态公告存储
// 只依赖这四个操作：
//
//	WriteRow    按主键覆盖写入，ttl <= 0 表示永不过期
//	DeleteRow   按主键删除
//	ReadLatest  读取单行，行不存在或已物理过期时返回 (nil, nil)
//	ScanRange   按主键升序返回 startExclusive 之后最多 limit 个存活行
//
// 后端实现：内存（测试）、GORM（SQLite/MySQL）、Redis、Etcd、Badger。
// 冲突策略是最后到达的操作生效，不按写入时间戳裁决。
//
// 分页读取使用 Paginate，每页多取一行判断是否还有下一页，内存占用以页为上限。
// 建表等初始化由 Initializer 在启动时带重试地执行一次。
package store

import (
	"context"
	"regexp"
	"time"

	"github.com/ceyewan/discovery/xerrors"
)

// 表名
const (
	TableDynamic = "dynamic_announcements"
	TableStatic  = "static_announcements"
)

var (
	// ErrInvalidKey 主键为空
	ErrInvalidKey = xerrors.New("store: row key must not be empty")
	// ErrInvalidTable 表名不合法
	ErrInvalidTable = xerrors.New("store: invalid table name")
	// ErrCorruptRow 行数据无法解析
	ErrCorruptRow = xerrors.New("store: corrupt row")
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Row 一行数据
type Row struct {
	Key       string
	Value     []byte
	WriteTime int64 // Unix 毫秒
}

// RowStore 持久化列存的最小操作集合，实现必须并发安全
type RowStore interface {
	WriteRow(ctx context.Context, key string, value []byte, writeTime int64, ttl time.Duration) error
	DeleteRow(ctx context.Context, key string, tombstoneTime int64) error
	ReadLatest(ctx context.Context, key string) (*Row, error)
	ScanRange(ctx context.Context, startExclusive string, limit int) ([]Row, error)
}

// Provisioner 可在启动时初始化自身（建表、探活）的存储
type Provisioner interface {
	Provision(ctx context.Context) error
}

// Provisioners 合并多个存储的初始化，按顺序执行，未实现 Provisioner 的存储跳过
func Provisioners(stores ...RowStore) Provisioner {
	return provisionerList(stores)
}

type provisionerList []RowStore

func (l provisionerList) Provision(ctx context.Context) error {
	for _, s := range l {
		p, ok := s.(Provisioner)
		if !ok {
			continue
		}
		if err := p.Provision(ctx); err != nil {
			return err
		}
	}
	return nil
}

func validateTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return xerrors.Wrapf(ErrInvalidTable, "%q", table)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}

// expiresAt 返回行的物理过期时刻（Unix 毫秒），ttl <= 0 时返回 0 表示永不过期
func expiresAt(writeTime int64, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return writeTime + ttl.Milliseconds()
}

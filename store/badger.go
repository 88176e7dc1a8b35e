package store

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/xerrors"
)

// Badger 嵌入式 LSM 存储，主键映射为 <table>/<key>
//
// TTL 使用 Badger 原生的条目过期，精度为秒；迭代器会自动跳过过期和已删除的条目。
type Badger struct {
	db     *badger.DB
	table  string
	prefix []byte
	logger clog.Logger
}

var (
	_ RowStore    = (*Badger)(nil)
	_ Provisioner = (*Badger)(nil)
)

// NewBadger 创建绑定到 table 的 Badger 存储
func NewBadger(db *badger.DB, table string, opts ...Option) (*Badger, error) {
	if db == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "badger db is nil")
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Badger{
		db:     db,
		table:  table,
		prefix: []byte(table + "/"),
		logger: o.logger.WithNamespace("badger").With(clog.String("table", table)),
	}, nil
}

func (s *Badger) key(key string) []byte {
	return append(append([]byte(nil), s.prefix...), key...)
}

// Provision 确认数据库处于打开状态
func (s *Badger) Provision(context.Context) error {
	if s.db.IsClosed() {
		return xerrors.Wrap(badger.ErrDBClosed, "badger")
	}
	return nil
}

func (s *Badger) WriteRow(ctx context.Context, key string, value []byte, writeTime int64, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeEnvelope(writeTime, value)
	if err != nil {
		return xerrors.Wrapf(err, "encode %s/%s", s.table, key)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(s.key(key), data)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	return xerrors.Wrapf(err, "write %s/%s", s.table, key)
}

func (s *Badger) DeleteRow(ctx context.Context, key string, _ int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
	return xerrors.Wrapf(err, "delete %s/%s", s.table, key)
}

func (s *Badger) ReadLatest(ctx context.Context, key string) (*Row, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var row *Row
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		r, err := decodeEnvelope(key, data)
		if err != nil {
			return err
		}
		row = &r
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s/%s", s.table, key)
	}
	return row, nil
}

func (s *Badger) ScanRange(ctx context.Context, startExclusive string, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seek := s.prefix
	if startExclusive != "" {
		seek = append(s.key(startExclusive), 0)
	}
	out := make([]Row, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: min(limit, 100), Prefix: s.prefix})
		defer it.Close()
		for it.Seek(seek); it.ValidForPrefix(s.prefix) && len(out) < limit; it.Next() {
			item := it.Item()
			key := string(item.Key()[len(s.prefix):])
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			row, err := decodeEnvelope(key, data)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "scan %s after %q", s.table, startExclusive)
	}
	return out, nil
}

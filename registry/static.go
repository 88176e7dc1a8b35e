package registry

import (
	"context"

	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/xerrors"
)

// StaticStore 人工登记的静态服务，不过期，直到被显式删除
type StaticStore struct {
	*snapshotStore
}

// NewStaticStore 创建静态存储，cfg 为 nil 时使用默认配置
func NewStaticStore(rows store.RowStore, cfg *Config, opts ...Option) (*StaticStore, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	base, err := newSnapshotStore("static", rows, cfg, cfg.StaticRefreshInterval, o)
	if err != nil {
		return nil, err
	}
	s := &StaticStore{snapshotStore: base}
	base.decode = s.decode
	base.cutoff = func() int64 { return 0 }
	return s, nil
}

// Put 按 ServiceID 覆盖写入
func (s *StaticStore) Put(ctx context.Context, svc Service) error {
	if svc.ID == "" {
		return invalid("service id is required")
	}
	return s.stats.put.Time(ctx, func() error {
		value, err := s.ser.Marshal(&svc)
		if err != nil {
			return xerrors.Wrapf(err, "encode service %s", svc.ID)
		}
		return writeError(s.rows.WriteRow(ctx, svc.ID, value, s.now(), 0), "put static service")
	})
}

// Delete 删除服务，不存在时同样成功
func (s *StaticStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return invalid("service id is required")
	}
	return s.stats.delete.Time(ctx, func() error {
		return writeError(s.rows.DeleteRow(ctx, id, s.now()), "delete static service")
	})
}

func (s *StaticStore) decode(row store.Row, _ int64) ([]Service, bool, error) {
	var svc Service
	if err := s.ser.Unmarshal(row.Value, &svc); err != nil {
		return nil, false, xerrors.Join(store.ErrCorruptRow, err)
	}
	svc.ID = row.Key
	return []Service{svc}, true, nil
}

package registry

import (
	"context"

	"github.com/ceyewan/discovery/store"
	"github.com/ceyewan/discovery/xerrors"
)

// DynamicStore 节点周期性续约的动态公告
//
// 每个节点一行，行值是该节点全部服务，整体带 TTL 写入。一行在 writeTime+MaxAge
// 之后逻辑过期：后端 TTL 负责物理清理，重载时按时钟再过滤一次，以时钟判断为准。
// 读操作只访问内存快照，快照由后台循环每 DynamicRefreshInterval 重建一次，
// 因此 Put 之后最多一个刷新周期才能被查询到。
type DynamicStore struct {
	*snapshotStore
}

// NewDynamicStore 创建动态存储，cfg 为 nil 时使用默认配置
func NewDynamicStore(rows store.RowStore, cfg *Config, opts ...Option) (*DynamicStore, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	base, err := newSnapshotStore("dynamic", rows, cfg, cfg.DynamicRefreshInterval, o)
	if err != nil {
		return nil, err
	}
	d := &DynamicStore{snapshotStore: base}
	base.decode = d.decode
	base.cutoff = d.expirationCutoff
	return d, nil
}

// Put 覆盖写入节点的公告并重置 TTL，成功时总是返回 true。不修改快照。
func (d *DynamicStore) Put(ctx context.Context, nodeID string, ann DynamicAnnouncement) (bool, error) {
	if nodeID == "" {
		return false, invalid("node id is required")
	}
	err := d.stats.put.Time(ctx, func() error {
		value, err := d.ser.Marshal(&dynamicRecord{
			Pool:     ann.Pool,
			Location: ann.Location,
			Services: ann.Services,
		})
		if err != nil {
			return xerrors.Wrapf(err, "encode announcement of %s", nodeID)
		}
		return writeError(d.rows.WriteRow(ctx, nodeID, value, d.now(), d.cfg.dynamicTTL()), "put dynamic announcement")
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete 删除节点的公告，返回删除前是否存在未过期的公告。
// 存在性检查与删除之间没有同步，并发 Put 可能让返回值过时。
func (d *DynamicStore) Delete(ctx context.Context, nodeID string) (bool, error) {
	if nodeID == "" {
		return false, invalid("node id is required")
	}
	var existed bool
	err := d.stats.delete.Time(ctx, func() error {
		row, err := d.rows.ReadLatest(ctx, nodeID)
		if err != nil {
			return writeError(err, "read dynamic announcement")
		}
		existed = row != nil && row.WriteTime > d.expirationCutoff()
		return writeError(d.rows.DeleteRow(ctx, nodeID, d.now()), "delete dynamic announcement")
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

func (d *DynamicStore) expirationCutoff() int64 {
	return d.now() - d.cfg.MaxAge.Milliseconds()
}

func (d *DynamicStore) decode(row store.Row, cutoff int64) ([]Service, bool, error) {
	if row.WriteTime <= cutoff {
		return nil, false, nil
	}
	var rec dynamicRecord
	if err := d.ser.Unmarshal(row.Value, &rec); err != nil {
		return nil, false, xerrors.Join(store.ErrCorruptRow, err)
	}
	return rec.services(row.Key), true, nil
}

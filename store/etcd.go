package store

import (
	"context"
	"math"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/xerrors"
)

// Etcd 主键映射为 <prefix>/<table>/<key>，值为带写入时间的信封
//
// TTL 通过为每次写入申请租约实现，租约最小粒度为 1 秒，向上取整。
type Etcd struct {
	client *clientv3.Client
	table  string
	base   string
	logger clog.Logger
}

var (
	_ RowStore    = (*Etcd)(nil)
	_ Provisioner = (*Etcd)(nil)
)

// NewEtcd 创建绑定到 table 的 Etcd 存储
func NewEtcd(client *clientv3.Client, table string, opts ...Option) (*Etcd, error) {
	if client == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "etcd client is nil")
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Etcd{
		client: client,
		table:  table,
		base:   "/" + strings.Trim(o.prefix, "/") + "/" + table + "/",
		logger: o.logger.WithNamespace("etcd").With(clog.String("table", table)),
	}, nil
}

// Provision 确认集群可读
func (s *Etcd) Provision(ctx context.Context) error {
	_, err := s.client.Get(ctx, s.base, clientv3.WithPrefix(), clientv3.WithCountOnly())
	return xerrors.Wrap(err, "probe etcd")
}

func (s *Etcd) WriteRow(ctx context.Context, key string, value []byte, writeTime int64, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encodeEnvelope(writeTime, value)
	if err != nil {
		return xerrors.Wrapf(err, "encode %s/%s", s.table, key)
	}
	var putOpts []clientv3.OpOption
	if ttl > 0 {
		lease, err := s.client.Grant(ctx, leaseSeconds(ttl))
		if err != nil {
			return xerrors.Wrapf(err, "grant lease for %s/%s", s.table, key)
		}
		putOpts = append(putOpts, clientv3.WithLease(lease.ID))
	}
	_, err = s.client.Put(ctx, s.base+key, string(data), putOpts...)
	return xerrors.Wrapf(err, "put %s/%s", s.table, key)
}

func (s *Etcd) DeleteRow(ctx context.Context, key string, _ int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := s.client.Delete(ctx, s.base+key)
	return xerrors.Wrapf(err, "delete %s/%s", s.table, key)
}

func (s *Etcd) ReadLatest(ctx context.Context, key string) (*Row, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	resp, err := s.client.Get(ctx, s.base+key)
	if err != nil {
		return nil, xerrors.Wrapf(err, "get %s/%s", s.table, key)
	}
	if len(resp.Kvs) == 0 {
		return nil, nil
	}
	row, err := decodeEnvelope(key, resp.Kvs[0].Value)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Etcd) ScanRange(ctx context.Context, startExclusive string, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, nil
	}
	from := s.base
	if startExclusive != "" {
		// 严格大于 startExclusive 的最小键
		from = s.base + startExclusive + "\x00"
	}
	resp, err := s.client.Get(ctx, from,
		clientv3.WithRange(clientv3.GetPrefixRangeEnd(s.base)),
		clientv3.WithLimit(int64(limit)),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	)
	if err != nil {
		return nil, xerrors.Wrapf(err, "range %s after %q", s.table, startExclusive)
	}
	out := make([]Row, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		row, err := decodeEnvelope(strings.TrimPrefix(string(kv.Key), s.base), kv.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func leaseSeconds(ttl time.Duration) int64 {
	return max(1, int64(math.Ceil(ttl.Seconds())))
}

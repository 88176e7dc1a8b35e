package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/xerrors"
)

const (
	redisFieldValue = "v"
	redisFieldTime  = "t"
)

// pruneIndexScript 仅当行哈希已不存在时才从索引中移除主键，避免误删并发写入的新行
var pruneIndexScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return redis.call("ZREM", KEYS[2], ARGV[1])
end
return 0
`)

// Redis 每行一个哈希（字段 v、t），TTL 用 PEXPIRE 实现；
// 另维护一个分值全为 0 的有序集合作为主键索引，用 ZRANGE BYLEX 做有序扫描。
// 哈希过期后索引中残留的主键在扫描时惰性清理。
type Redis struct {
	client redis.UniversalClient
	table  string
	index  string
	prefix string
	logger clog.Logger
}

var (
	_ RowStore    = (*Redis)(nil)
	_ Provisioner = (*Redis)(nil)
)

// NewRedis 创建绑定到 table 的 Redis 存储
func NewRedis(client redis.UniversalClient, table string, opts ...Option) (*Redis, error) {
	if client == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "redis client is nil")
	}
	if err := validateTable(table); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	base := o.prefix + ":" + table
	return &Redis{
		client: client,
		table:  table,
		index:  base + ":index",
		prefix: base + ":row:",
		logger: o.logger.WithNamespace("redis").With(clog.String("table", table)),
	}, nil
}

func (s *Redis) rowKey(key string) string {
	return s.prefix + key
}

// Provision Redis 无需建表，这里只确认服务可达
func (s *Redis) Provision(ctx context.Context) error {
	return xerrors.Wrap(s.client.Ping(ctx).Err(), "ping redis")
}

func (s *Redis) WriteRow(ctx context.Context, key string, value []byte, writeTime int64, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	hk := s.rowKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk, redisFieldValue, value, redisFieldTime, writeTime)
		if ttl > 0 {
			pipe.PExpire(ctx, hk, ttl)
		} else {
			pipe.Persist(ctx, hk)
		}
		pipe.ZAdd(ctx, s.index, redis.Z{Score: 0, Member: key})
		return nil
	})
	return xerrors.Wrapf(err, "write %s/%s", s.table, key)
}

func (s *Redis) DeleteRow(ctx context.Context, key string, _ int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.rowKey(key))
		pipe.ZRem(ctx, s.index, key)
		return nil
	})
	return xerrors.Wrapf(err, "delete %s/%s", s.table, key)
}

func (s *Redis) ReadLatest(ctx context.Context, key string) (*Row, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	vals, err := s.client.HMGet(ctx, s.rowKey(key), redisFieldValue, redisFieldTime).Result()
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s/%s", s.table, key)
	}
	row, ok, err := parseRedisRow(key, vals)
	if err != nil || !ok {
		return nil, err
	}
	return &row, nil
}

func (s *Redis) ScanRange(ctx context.Context, startExclusive string, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, nil
	}
	out := make([]Row, 0, limit)
	cursor := startExclusive
	for len(out) < limit {
		want := limit - len(out)
		members, err := s.client.ZRangeArgs(ctx, redis.ZRangeArgs{
			Key:    s.index,
			Start:  lexStart(cursor),
			Stop:   "+",
			ByLex:  true,
			Offset: 0,
			Count:  int64(want),
		}).Result()
		if err != nil {
			return nil, xerrors.Wrapf(err, "scan %s index", s.table)
		}
		if len(members) == 0 {
			break
		}

		cmds := make([]*redis.SliceCmd, len(members))
		_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, m := range members {
				cmds[i] = pipe.HMGet(ctx, s.rowKey(m), redisFieldValue, redisFieldTime)
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, xerrors.Wrapf(err, "scan %s rows", s.table)
		}

		for i, m := range members {
			row, ok, err := parseRedisRow(m, cmds[i].Val())
			if err != nil {
				return nil, err
			}
			if !ok {
				s.pruneIndex(ctx, m)
				continue
			}
			out = append(out, row)
		}
		if len(members) < want {
			break
		}
		cursor = members[len(members)-1]
	}
	return out, nil
}

func (s *Redis) pruneIndex(ctx context.Context, key string) {
	err := pruneIndexScript.Run(ctx, s.client, []string{s.rowKey(key), s.index}, key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("prune stale index entry failed", clog.String("key", key), clog.Error(err))
	}
}

func lexStart(cursor string) string {
	if cursor == "" {
		return "-"
	}
	return "(" + cursor
}

// parseRedisRow 解析 HMGET 的结果，哈希不存在时 ok 为 false
func parseRedisRow(key string, vals []any) (Row, bool, error) {
	if len(vals) != 2 || vals[0] == nil {
		return Row{}, false, nil
	}
	value, ok := vals[0].(string)
	if !ok {
		return Row{}, false, xerrors.Wrapf(ErrCorruptRow, "key %q: value type %T", key, vals[0])
	}
	ts, _ := vals[1].(string)
	writeTime, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Row{}, false, xerrors.Wrapf(xerrors.Join(ErrCorruptRow, err), "key %q: write time", key)
	}
	return Row{Key: key, Value: []byte(value), WriteTime: writeTime}, true, nil
}

package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type memoryRow struct {
	value     []byte
	writeTime int64
	expiresAt int64
}

// Memory 进程内的有序表，物理过期按注入的时钟判断
//
// 用于测试和 store.driver=memory 的单机部署，进程退出后数据丢失。
type Memory struct {
	clock clock.Clock

	mu   sync.RWMutex
	keys []string // 升序
	rows map[string]memoryRow
}

var _ RowStore = (*Memory)(nil)

// NewMemory 创建内存表
func NewMemory(opts ...Option) *Memory {
	o := applyOptions(opts)
	return &Memory{clock: o.clock, rows: make(map[string]memoryRow)}
}

func (m *Memory) WriteRow(ctx context.Context, key string, value []byte, writeTime int64, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[key]; !ok {
		i, _ := slices.BinarySearch(m.keys, key)
		m.keys = slices.Insert(m.keys, i, key)
	}
	m.rows[key] = memoryRow{
		value:     slices.Clone(value),
		writeTime: writeTime,
		expiresAt: expiresAt(writeTime, ttl),
	}
	return nil
}

func (m *Memory) DeleteRow(ctx context.Context, key string, _ int64) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

func (m *Memory) ReadLatest(ctx context.Context, key string) (*Row, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.clock.Now().UnixMilli()
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rows[key]
	if !ok || r.expired(now) {
		return nil, nil
	}
	return &Row{Key: key, Value: slices.Clone(r.value), WriteTime: r.writeTime}, nil
}

func (m *Memory) ScanRange(ctx context.Context, startExclusive string, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	now := m.clock.Now().UnixMilli()
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.keys), func(i int) bool {
		return strings.Compare(m.keys[i], startExclusive) > 0
	})
	out := make([]Row, 0, min(limit, len(m.keys)-i))
	for ; i < len(m.keys) && len(out) < limit; i++ {
		key := m.keys[i]
		r := m.rows[key]
		if r.expired(now) {
			continue
		}
		out = append(out, Row{Key: key, Value: slices.Clone(r.value), WriteTime: r.writeTime})
	}
	return out, nil
}

// Provision 内存表无需初始化
func (m *Memory) Provision(context.Context) error { return nil }

// Purge 删除所有已物理过期的行，返回删除数量
func (m *Memory) Purge() int {
	now := m.clock.Now().UnixMilli()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for key, r := range m.rows {
		if r.expired(now) {
			m.removeLocked(key)
			n++
		}
	}
	return n
}

// Len 当前保存的行数，包含尚未清理的过期行
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

func (m *Memory) removeLocked(key string) {
	if _, ok := m.rows[key]; !ok {
		return
	}
	delete(m.rows, key)
	if i, found := slices.BinarySearch(m.keys, key); found {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
}

func (r memoryRow) expired(now int64) bool {
	return r.expiresAt != 0 && r.expiresAt <= now
}

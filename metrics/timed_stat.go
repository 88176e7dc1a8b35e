package metrics

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// TimedStat 记录一类操作的次数与耗时分布
//
// 保留最近 windowSize 次的耗时用于计算分位数，同时把每次耗时以毫秒
// 写入可选的 Histogram 供 Prometheus 采集。并发安全。
type TimedStat struct {
	hist   Histogram
	labels []Label

	count    atomic.Int64
	failures atomic.Int64

	mu     sync.Mutex
	window []time.Duration
	next   int
	filled bool
}

// TimedStatSnapshot TimedStat 在某一时刻的统计结果，分布只基于窗口内的样本
type TimedStatSnapshot struct {
	Count    int64         `json:"count"`
	Failures int64         `json:"failures"`
	Samples  int           `json:"samples"`
	Min      time.Duration `json:"min"`
	Max      time.Duration `json:"max"`
	Mean     time.Duration `json:"mean"`
	P50      time.Duration `json:"p50"`
	P90      time.Duration `json:"p90"`
	P99      time.Duration `json:"p99"`
}

// NewTimedStat 创建 TimedStat，hist 可以为 nil
func NewTimedStat(windowSize int, hist Histogram, labels ...Label) *TimedStat {
	if windowSize < 1 {
		windowSize = 1
	}
	if hist == nil {
		hist = noopHistogram{}
	}
	return &TimedStat{
		hist:   hist,
		labels: labels,
		window: make([]time.Duration, windowSize),
	}
}

// Add 记录一次耗时
func (s *TimedStat) Add(ctx context.Context, d time.Duration) {
	s.count.Add(1)
	s.mu.Lock()
	s.window[s.next] = d
	s.next++
	if s.next == len(s.window) {
		s.next = 0
		s.filled = true
	}
	s.mu.Unlock()
	s.hist.Record(ctx, float64(d)/float64(time.Millisecond), s.labels...)
}

// Time 执行 fn 并记录其耗时，fn 返回错误时同时计入失败次数
func (s *TimedStat) Time(ctx context.Context, fn func() error) error {
	start := time.Now()
	err := fn()
	if err != nil {
		s.failures.Add(1)
	}
	s.Add(ctx, time.Since(start))
	return err
}

// Count 累计调用次数
func (s *TimedStat) Count() int64 {
	return s.count.Load()
}

// Snapshot 计算当前窗口内的统计值
func (s *TimedStat) Snapshot() TimedStatSnapshot {
	s.mu.Lock()
	n := s.next
	if s.filled {
		n = len(s.window)
	}
	samples := make([]time.Duration, n)
	copy(samples, s.window[:n])
	s.mu.Unlock()

	snap := TimedStatSnapshot{
		Count:    s.count.Load(),
		Failures: s.failures.Load(),
		Samples:  n,
	}
	if n == 0 {
		return snap
	}

	slices.Sort(samples)
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	snap.Min = samples[0]
	snap.Max = samples[n-1]
	snap.Mean = sum / time.Duration(n)
	snap.P50 = percentile(samples, 0.50)
	snap.P90 = percentile(samples, 0.90)
	snap.P99 = percentile(samples, 0.99)
	return snap
}

// percentile 最近秩法，sorted 必须非空且已排序
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

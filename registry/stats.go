package registry

import (
	"github.com/ceyewan/discovery/metrics"
)

const (
	metricStoreDuration = "discovery_store_operation_duration_ms"
	metricSnapshotSize  = "discovery_snapshot_services"
)

// storeStats 一个存储的 put/delete/loadAll 耗时统计
type storeStats struct {
	put     *metrics.TimedStat
	delete  *metrics.TimedStat
	loadAll *metrics.TimedStat
	size    metrics.Gauge
}

func newStoreStats(m metrics.Meter, storeName string, window int) *storeStats {
	hist, err := m.Histogram(metricStoreDuration, "注册中心存储操作耗时", metrics.WithUnit("ms"))
	if err != nil {
		hist = nil
	}
	size, err := m.Gauge(metricSnapshotSize, "当前快照中的服务数量")
	if err != nil {
		size, _ = metrics.Discard().Gauge(metricSnapshotSize, "")
	}
	label := metrics.L(metrics.LabelStore, storeName)
	return &storeStats{
		put:     metrics.NewTimedStat(window, hist, label, metrics.L(metrics.LabelOperation, "put")),
		delete:  metrics.NewTimedStat(window, hist, label, metrics.L(metrics.LabelOperation, "delete")),
		loadAll: metrics.NewTimedStat(window, hist, label, metrics.L(metrics.LabelOperation, "load_all")),
		size:    size,
	}
}

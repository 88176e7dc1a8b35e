package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/registry"
)

const metricQueryDuration = "discovery_query_duration_ms"

// queryStats 三类查询的耗时统计
type queryStats struct {
	byType        *metrics.TimedStat
	byTypeAndPool *metrics.TimedStat
	allServices   *metrics.TimedStat
}

func newQueryStats(m metrics.Meter, window int) *queryStats {
	hist, err := m.Histogram(metricQueryDuration, "服务查询耗时", metrics.WithUnit("ms"))
	if err != nil {
		hist = nil
	}
	op := func(name string) metrics.Label { return metrics.L(metrics.LabelOperation, name) }
	return &queryStats{
		byType:        metrics.NewTimedStat(window, hist, op("by_type")),
		byTypeAndPool: metrics.NewTimedStat(window, hist, op("by_type_and_pool")),
		allServices:   metrics.NewTimedStat(window, hist, op("all_services")),
	}
}

func (s *Server) allServices(c *gin.Context) {
	s.query(c, s.queries.allServices, event.Event{}, s.view.GetAll)
}

func (s *Server) servicesByType(c *gin.Context) {
	typ := c.Param("type")
	s.query(c, s.queries.byType, event.Event{ServiceType: typ}, func() []registry.Service {
		return s.view.Get(typ)
	})
}

func (s *Server) servicesByTypeAndPool(c *gin.Context) {
	typ, pool := c.Param("type"), c.Param("pool")
	s.query(c, s.queries.byTypeAndPool, event.Event{ServiceType: typ, Pool: pool}, func() []registry.Service {
		return s.pools.GetInPool(typ, pool)
	})
}

func (s *Server) query(c *gin.Context, stat *metrics.TimedStat, e event.Event, fetch func() []registry.Service) {
	ctx := c.Request.Context()
	start := s.recorder.Begin()

	var services []registry.Service
	_ = stat.Time(ctx, func() error {
		services = fetch()
		return nil
	})

	e.Type = event.ServiceQuery
	e.Success = true
	e.RemoteAddress = c.ClientIP()
	e.ResultCount = len(services)
	s.recorder.Record(ctx, start, e)

	c.JSON(http.StatusOK, s.wrap(services))
}

// StatsReport GET /v1/stats 的应答
type StatsReport struct {
	Dynamic map[string]metrics.TimedStatSnapshot `json:"dynamic"`
	Static  map[string]metrics.TimedStatSnapshot `json:"static"`
	Query   map[string]metrics.TimedStatSnapshot `json:"query"`
}

type statsSource interface {
	PutStats() *metrics.TimedStat
	DeleteStats() *metrics.TimedStat
	LoadAllStats() *metrics.TimedStat
}

func storeReport(src statsSource) map[string]metrics.TimedStatSnapshot {
	return map[string]metrics.TimedStatSnapshot{
		"put":     src.PutStats().Snapshot(),
		"delete":  src.DeleteStats().Snapshot(),
		"loadAll": src.LoadAllStats().Snapshot(),
	}
}

// Stats 当前统计快照
func (s *Server) Stats() StatsReport {
	return StatsReport{
		Dynamic: storeReport(s.dynamic),
		Static:  storeReport(s.static),
		Query: map[string]metrics.TimedStatSnapshot{
			"byType":        s.queries.byType.Snapshot(),
			"byTypeAndPool": s.queries.byTypeAndPool.Snapshot(),
			"allServices":   s.queries.allServices.Snapshot(),
		},
	}
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.Stats())
}

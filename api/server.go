// Package api 以 HTTP/JSON 暴露注册中心。
//
//	PUT    /v1/announcement/:node_id         动态公告，202
//	DELETE /v1/announcement/:node_id         删除动态公告，204 或 404
//	POST   /v1/announcement/static           新增静态服务，201
//	GET    /v1/announcement/static           列出静态服务
//	DELETE /v1/announcement/static/:id       删除静态服务，204
//	GET    /v1/service[/:type[/:pool]]       查询合并视图
//	GET    /v1/stats                         存储与查询耗时统计
//	GET    /healthz
//
// 存储不可用时写接口返回 503，读接口始终基于内存快照应答。
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ceyewan/discovery/clog"
	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/metrics"
	"github.com/ceyewan/discovery/registry"
	"github.com/ceyewan/discovery/trace"
	"github.com/ceyewan/discovery/xerrors"
)

// Deps Server 依赖的组件
type Deps struct {
	// Environment 本节点所属环境，公告中的环境必须与之相同
	Environment string
	Dynamic     *registry.DynamicStore
	Static      *registry.StaticStore
	View        *registry.View
	// Pools 按类型和池查询时使用，通常是本地缓存；为空时直接查 View
	Pools    registry.Lookup
	Recorder *event.Recorder
}

// Server HTTP 接口
type Server struct {
	env      string
	dynamic  *registry.DynamicStore
	static   *registry.StaticStore
	view     *registry.View
	pools    registry.Lookup
	recorder *event.Recorder
	logger   clog.Logger
	queries  *queryStats

	engine *gin.Engine
}

// New 创建 Server 并注册路由，cfg 为 nil 时使用默认配置
func New(deps Deps, cfg *Config, opts ...Option) (*Server, error) {
	if deps.Environment == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "api: environment is required")
	}
	if deps.Dynamic == nil || deps.Static == nil || deps.View == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "api: dynamic store, static store and view are required")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	pools := deps.Pools
	if pools == nil {
		pools = deps.View
	}
	s := &Server{
		env:      deps.Environment,
		dynamic:  deps.Dynamic,
		static:   deps.Static,
		view:     deps.View,
		pools:    pools,
		recorder: deps.Recorder,
		logger:   o.logger,
		queries:  newQueryStats(o.meter, c.StatsWindowSize),
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(o.meter, "discovery")
	if err != nil {
		return nil, xerrors.Wrap(err, "api: create http metrics")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if o.traceService != "" {
		r.Use(trace.GinMiddleware(o.traceService))
	}
	r.Use(metrics.GinHTTPMiddleware(httpMetrics))

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if c.WriteRateLimit > 0 {
		limit = writeLimiter(rate.NewLimiter(rate.Limit(c.WriteRateLimit), c.WriteBurst))
	}

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	if o.metricsPath != "" {
		r.GET(o.metricsPath, gin.WrapH(metrics.Handler()))
	}

	v1 := r.Group("/v1")
	v1.PUT("/announcement/:node_id", limit, s.putDynamic)
	v1.DELETE("/announcement/:node_id", limit, s.deleteDynamic)
	v1.POST("/announcement/static", limit, s.postStatic)
	v1.GET("/announcement/static", s.listStatic)
	v1.DELETE("/announcement/static/:id", limit, s.deleteStatic)
	v1.GET("/service", s.allServices)
	v1.GET("/service/:type", s.servicesByType)
	v1.GET("/service/:type/:pool", s.servicesByTypeAndPool)
	v1.GET("/stats", s.stats)

	s.engine = r
	return s, nil
}

// Handler 返回可挂载到 http.Server 的处理器
func (s *Server) Handler() http.Handler {
	return s.engine
}

// writeLimiter 写接口的全局令牌桶，超限返回 429
func writeLimiter(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
				"code":  xerrors.CodeRateLimited,
			})
			return
		}
		c.Next()
	}
}

// fail 按错误码映射状态码
func (s *Server) fail(c *gin.Context, err error) {
	code := xerrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case xerrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case xerrors.CodeNotFound:
		status = http.StatusNotFound
	case xerrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	default:
		code = xerrors.CodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed",
			clog.String("route", c.FullPath()),
			clog.ErrorWithCode(err, code))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}

func (s *Server) checkEnvironment(c *gin.Context, provided string) bool {
	if provided == s.env {
		return true
	}
	c.String(http.StatusBadRequest, "Environment mismatch. Expected: %s, Provided: %s", s.env, provided)
	return false
}

func badRequest(err error) error {
	return xerrors.WithCode(err, xerrors.CodeInvalidInput)
}

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture 同时充当 Counter 与 Histogram，记录每次调用的标签
type capture struct {
	mu      sync.Mutex
	records [][]Label
}

func (c *capture) Inc(ctx context.Context, labels ...Label) { c.Record(ctx, 1, labels...) }

func (c *capture) Add(ctx context.Context, v float64, labels ...Label) { c.Record(ctx, v, labels...) }

func (c *capture) Record(_ context.Context, _ float64, labels ...Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, append([]Label(nil), labels...))
}

func (c *capture) last(t *testing.T) map[string]string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.records)
	out := make(map[string]string)
	for _, l := range c.records[len(c.records)-1] {
		out[l.Key] = l.Value
	}
	return out
}

func TestGinHTTPMiddlewareLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	counter, hist := &capture{}, &capture{}
	router := gin.New()
	router.Use(GinHTTPMiddleware(&HTTPServerMetrics{service: "discovery", requestTotal: counter, duration: hist}))
	router.GET("/v1/service/:type", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"services": []string{}}) })
	router.PUT("/v1/announcement/:node_id", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	router.DELETE("/v1/announcement/:node_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.POST("/v1/announcement/static", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	tests := []struct {
		method, path string
		route        string
		class        string
		outcome      string
	}{
		{http.MethodGet, "/v1/service/billing", "/v1/service/:type", "2xx", OutcomeSuccess},
		{http.MethodPut, "/v1/announcement/n1", "/v1/announcement/:node_id", "2xx", OutcomeSuccess},
		{http.MethodDelete, "/v1/announcement/n1", "/v1/announcement/:node_id", "4xx", OutcomeError},
		{http.MethodPost, "/v1/announcement/static", "/v1/announcement/static", "5xx", OutcomeError},
		{http.MethodGet, "/v1/not-a-route/abc", UnknownRoute, "4xx", OutcomeError},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, nil))

			for _, got := range []map[string]string{counter.last(t), hist.last(t)} {
				assert.Equal(t, tt.route, got[LabelRoute])
				assert.Equal(t, tt.method, got[LabelMethod])
				assert.Equal(t, tt.class, got[LabelStatusClass])
				assert.Equal(t, tt.outcome, got[LabelOutcome])
			}
		})
	}
	assert.Len(t, counter.records, len(tests))
}

func TestGinHTTPMiddlewareNilMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinHTTPMiddleware(nil))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawCounters(t *testing.T) {
	started := testutil.ToFloat64(drawsStarted)
	RecordDrawStarted()
	assert.Equal(t, started+1, testutil.ToFloat64(drawsStarted))

	rejected := testutil.ToFloat64(drawsRejected.WithLabelValues("empty_pool"))
	RecordDrawRejected("empty_pool")
	assert.Equal(t, rejected+1, testutil.ToFloat64(drawsRejected.WithLabelValues("empty_pool")))

	won := testutil.ToFloat64(winners)
	RecordDrawCompleted(3, true)
	RecordDrawCompleted(2, false)
	assert.Equal(t, won+3, testutil.ToFloat64(winners), "unrecorded draws add no winners")

	SetActiveSessions(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(activeSessions))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(Handler()))

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/items/:id", "200"))
	for _, path := range []string{"/items/1", "/items/2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/items/:id", "200")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "lucky_draw_http_requests_total")
}

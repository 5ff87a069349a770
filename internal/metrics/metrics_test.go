package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptFinalizedCounts(t *testing.T) {
	before := testutil.ToFloat64(FinalizedCounter().WithLabelValues("auto_submitted"))
	AttemptFinalized("auto_submitted")
	AttemptFinalized("auto_submitted")
	after := testutil.ToFloat64(FinalizedCounter().WithLabelValues("auto_submitted"))
	assert.Equal(t, before+2, after)
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	AnswerRecorded()

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `quiz_http_requests_total{method="GET",route="/ping",status="204"}`))
	assert.True(t, strings.Contains(body, "quiz_answers_recorded_total"))
}

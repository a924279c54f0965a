package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestQuizRecorder(t *testing.T) {
	var r QuizRecorder

	before := testutil.ToFloat64(QuizAnswers.WithLabelValues("timeout"))
	r.AnswerRecorded(true, true)
	assert.Equal(t, before+1, testutil.ToFloat64(QuizAnswers.WithLabelValues("timeout")))

	before = testutil.ToFloat64(QuizAnswers.WithLabelValues("correct"))
	r.AnswerRecorded(true, false)
	assert.Equal(t, before+1, testutil.ToFloat64(QuizAnswers.WithLabelValues("correct")))

	before = testutil.ToFloat64(QuizSessionsStarted.WithLabelValues("exam"))
	r.SessionStarted("exam")
	assert.Equal(t, before+1, testutil.ToFloat64(QuizSessionsStarted.WithLabelValues("exam")))
}

func TestMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	Init()
	Init()

	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", PrometheusHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `http_requests_total{endpoint="/ping",method="GET",status="200"}`))
}

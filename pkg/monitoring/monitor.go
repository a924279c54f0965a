package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	QuizSessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Quiz sessions started, by mode",
		},
		[]string{"mode"},
	)

	QuizSessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_finished_total",
			Help: "Quiz sessions finished, by final level",
		},
		[]string{"level"},
	)

	QuizAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Answers submitted, by outcome",
		},
		[]string{"outcome"},
	)

	QuizFinalScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_final_score",
			Help:    "Distribution of final quiz scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(QuizSessionsStarted)
		prometheus.MustRegister(QuizSessionsFinished)
		prometheus.MustRegister(QuizAnswers)
		prometheus.MustRegister(QuizFinalScore)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// QuizRecorder reports quiz events to the collectors above.
type QuizRecorder struct{}

func (QuizRecorder) SessionStarted(mode string) {
	QuizSessionsStarted.WithLabelValues(mode).Inc()
}

func (QuizRecorder) AnswerRecorded(correct, timedOut bool) {
	outcome := "incorrect"
	switch {
	case timedOut:
		outcome = "timeout"
	case correct:
		outcome = "correct"
	}
	QuizAnswers.WithLabelValues(outcome).Inc()
}

func (QuizRecorder) SessionFinished(level string, score int) {
	QuizSessionsFinished.WithLabelValues(level).Inc()
	QuizFinalScore.Observe(float64(score))
}

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "knolstudy"

// Metrics holds the Prometheus collectors of the service. It implements
// study.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ReviewsTotal         *prometheus.CounterVec
	ConflictRetriesTotal prometheus.Counter
	LoadWarningsTotal    prometheus.Counter
	QuizSkippedTotal     prometheus.Counter
	RequestDuration      *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry, so several
// servers can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// Labels: rating (again, hard, good, easy)
		ReviewsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reviews_total",
				Help:      "Total number of reviews recorded by rating",
			},
			[]string{"rating"},
		),
		ConflictRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "review_conflict_retries_total",
				Help:      "Total number of reviews recomputed after a concurrent update of the same card",
			},
		),
		LoadWarningsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_warnings_total",
				Help:      "Total number of queues returned with a heavy study day warning",
			},
		),
		QuizSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quiz_cards_skipped_total",
				Help:      "Total number of cards left out of quizzes for lack of a question shape",
			},
		),
		// Labels: method, route, status
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ReviewRecorded(rating domain.Rating) {
	m.ReviewsTotal.WithLabelValues(rating.String()).Inc()
}

func (m *Metrics) ConflictRetried() { m.ConflictRetriesTotal.Inc() }
func (m *Metrics) LoadWarned()      { m.LoadWarningsTotal.Inc() }

func (m *Metrics) QuizSkipped(n int) {
	m.QuizSkippedTotal.Add(float64(n))
}

// Middleware records the duration of every request. Routes are labeled by
// their pattern to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RequestDuration.WithLabelValues(
				c.Request().Method,
				route,
				strconv.Itoa(c.Response().Status),
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

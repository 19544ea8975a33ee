package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	VisitsBooked    prometheus.Counter
	Reschedules     *prometheus.CounterVec
	Conflicts       prometheus.Counter
	WeekVisits      prometheus.Gauge
	RequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers the service metrics on reg. A nil reg gets a fresh
// registry, which keeps tests independent of the global one.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		VisitsBooked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_booked_total",
			Help:      "The total number of visits booked",
		}),
		Reschedules: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_reschedules_total",
			Help:      "Reschedule attempts by result",
		}, []string{"result"}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visit_conflicts_total",
			Help:      "Bookings rejected because the window was already held",
		}),
		WeekVisits: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "visits_current_week",
			Help:      "Non-cancelled visits in the current week",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

// Middleware observes request latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			m.RequestDuration.
				WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "http_request_duration_milliseconds",
	Help:    "HTTP request latency by route and status code.",
	Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
}, []string{"method", "route", "code"})

func init() {
	prometheus.MustRegister(requestDuration)
}

// Metrics records request latency labelled by the matched route template so
// ids do not explode the label set.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
}

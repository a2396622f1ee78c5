package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/culturequiz/backend/internal/observability"
)

func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.APIRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.APILatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

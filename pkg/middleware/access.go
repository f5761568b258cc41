package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/roSievers/worksheet-elm/pkg/logger"
	"github.com/roSievers/worksheet-elm/pkg/metrics"
)

// RequestLogger logs one line per request and counts it in metrics.HTTPRequests.
// The route label is the matched pattern (e.g. /api/sheet/:uid), never the raw path.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		latency := time.Since(start)
		switch {
		case status >= 500:
			logger.Errorf("%s %s -> %d (%s) %s", c.Request.Method, c.Request.URL.Path, status, latency, c.Errors.String())
		case status >= 400:
			logger.Warnf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, latency)
		default:
			logger.Infof("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, status, latency)
		}
	}
}

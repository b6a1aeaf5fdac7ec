package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	statusWarnThreshold  = 400
	statusErrorThreshold = 500
	metricsPath          = "/metrics"
)

// ZerologLogger is a Gin middleware that logs one line per request.
func ZerologLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		req := c.Request
		target := req.URL.Path
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}
		status := c.Writer.Status()
		log.WithLevel(requestLevel(status, req.URL.Path)).
			Int("status", status).
			Str("method", req.Method).
			Str("path", target).
			Str("route", c.FullPath()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Str("user_agent", req.UserAgent()).
			Msg("http request completed")
	}
}

// requestLevel picks the log level for a finished request. Successful
// metrics scrapes are demoted to debug.
func requestLevel(status int, path string) zerolog.Level {
	switch {
	case status >= statusErrorThreshold:
		return zerolog.ErrorLevel
	case status >= statusWarnThreshold:
		return zerolog.WarnLevel
	case path == metricsPath:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// BodyLimit caps the request body at n bytes. Handlers see an
// *http.MaxBytesError once the limit is crossed.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

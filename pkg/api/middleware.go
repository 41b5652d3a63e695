package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/metrics"
)

const correlationHeader = "X-Correlation-ID"

const correlationKey = "correlation_id"

// correlation assigns every request a correlation id, honoring one supplied
// by the caller, and threads it into the request context so outbound GLPI
// calls carry the same id.
func correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationKey, id)
		c.Header(correlationHeader, id)
		c.Request = c.Request.WithContext(glpi.WithCorrelation(c.Request.Context(), id))
		c.Next()
	}
}

func correlationID(c *gin.Context) string {
	return c.GetString(correlationKey)
}

// cors allows the dashboard frontend to call from any origin. The service is
// read-only, so a permissive policy carries no write risk.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+correlationHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger logs one line per served request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("Request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"correlation_id", correlationID(c))
	}
}

// instrument records inbound request metrics against the route template so
// label cardinality stays bounded.
func instrument(observer *metrics.Observer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.HTTPRequest(route, c.Writer.Status(), time.Since(start))
	}
}

// recovery converts panics into the standard error envelope.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		logger.Error("Handler panicked",
			"path", c.Request.URL.Path,
			"panic", err,
			"correlation_id", correlationID(c))
		respondError(c, http.StatusInternalServerError, "erro interno do servidor")
	})
}

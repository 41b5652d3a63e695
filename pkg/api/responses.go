package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/centralti/glpi-metrics/pkg/glpi"
)

// Envelope wraps every successful payload.
type Envelope struct {
	Success       bool   `json:"success"`
	Data          any    `json:"data"`
	Timestamp     string `json:"timestamp"`
	TempoExecucao int64  `json:"tempo_execucao"` // milliseconds
}

// ErrorEnvelope wraps every failure.
type ErrorEnvelope struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	Errors        []string `json:"errors,omitempty"`
	CorrelationID string   `json:"correlation_id"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status       string           `json:"status"`
	Checks       HealthChecks     `json:"checks"`
	ActiveAlerts []string         `json:"active_alerts"`
	Probe        glpi.ProbeResult `json:"glpi"`
}

// HealthChecks carries the individual subsystem checks.
type HealthChecks struct {
	GLPI  string `json:"glpi"`
	Cache int    `json:"cache_entries"`
}

func respond(c *gin.Context, data any, start time.Time) {
	c.JSON(http.StatusOK, Envelope{
		Success:       true,
		Data:          data,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TempoExecucao: time.Since(start).Milliseconds(),
	})
}

func respondError(c *gin.Context, status int, message string, details ...string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Success:       false,
		Error:         message,
		Errors:        details,
		CorrelationID: correlationID(c),
	})
}

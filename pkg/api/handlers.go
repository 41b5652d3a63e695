package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/models"
	"github.com/centralti/glpi-metrics/pkg/ranking"
	"github.com/centralti/glpi-metrics/pkg/tickets"
)

type dateRangeQuery struct {
	Start string `form:"start_date"`
	End   string `form:"end_date"`
}

// getMetrics handles GET /api/metrics and /api/metrics/filtered.
func (s *Server) getMetrics(c *gin.Context) {
	start := time.Now()

	var q dateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "parâmetros inválidos", err.Error())
		return
	}

	snapshot, err := s.dashboard.Dashboard(c.Request.Context(), q.Start, q.End)
	if err != nil {
		s.fail(c, err, "erro ao montar métricas do dashboard")
		return
	}
	respond(c, snapshot, start)
}

type rankingQuery struct {
	Start  string `form:"start_date"`
	End    string `form:"end_date"`
	Level  string `form:"level" binding:"omitempty,oneof=n1 n2 n3 n4 N1 N2 N3 N4"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Entity string `form:"entity_id" binding:"omitempty,number"`
}

// getRanking handles GET /api/ranking.
func (s *Server) getRanking(c *gin.Context) {
	start := time.Now()

	var q rankingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "parâmetros inválidos", err.Error())
		return
	}

	opts := ranking.Options{
		Start:  q.Start,
		End:    q.End,
		Limit:  q.Limit,
		Entity: q.Entity,
	}
	if q.Level != "" {
		opts.Level = models.ParseLevel(q.Level)
	}

	ranked, err := s.ranker.Rank(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err, "erro ao montar ranking de técnicos")
		return
	}
	respond(c, ranked, start)
}

type newTicketsQuery struct {
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=50"`
	Priority   string `form:"priority" binding:"omitempty,number"`
	Category   string `form:"category" binding:"omitempty,number"`
	Technician string `form:"technician" binding:"omitempty,number"`
	Start      string `form:"start_date"`
	End        string `form:"end_date"`
}

// getNewTickets handles GET /api/tickets/new. The listing degrades to an
// empty list on upstream trouble, so this handler never reports 500.
func (s *Server) getNewTickets(c *gin.Context) {
	start := time.Now()

	var q newTicketsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "parâmetros inválidos", err.Error())
		return
	}

	list := s.tickets.NewTickets(c.Request.Context(), tickets.Filters{
		Limit:      q.Limit,
		Priority:   q.Priority,
		Category:   q.Category,
		Technician: q.Technician,
		Start:      q.Start,
		End:        q.End,
	})
	respond(c, list, start)
}

// getTicket handles GET /api/ticket/:id.
func (s *Server) getTicket(c *gin.Context) {
	start := time.Now()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "id de ticket inválido")
		return
	}

	ticket, err := s.tickets.Ticket(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "erro ao consultar ticket")
		return
	}
	if ticket == nil {
		respondError(c, http.StatusNotFound, "ticket não encontrado")
		return
	}
	respond(c, ticket, start)
}

// getStatus handles GET /api/status.
func (s *Server) getStatus(c *gin.Context) {
	start := time.Now()
	respond(c, s.prober.Status(c.Request.Context()), start)
}

// getHealth handles GET /health.
func (s *Server) getHealth(c *gin.Context) {
	probe := s.prober.Status(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if probe.Status == glpi.ProbeOffline {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else if probe.Status == glpi.ProbeWarning {
		status = "degraded"
	}

	c.JSON(httpStatus, HealthResponse{
		Status: status,
		Checks: HealthChecks{
			GLPI:  probe.Status,
			Cache: s.cache.Len(),
		},
		ActiveAlerts: []string{},
		Probe:        probe,
	})
}

// fail maps an engine error to the right HTTP status. Caller mistakes
// (malformed dates) surface as 400; everything else is an internal error
// with no upstream details leaked.
func (s *Server) fail(c *gin.Context, err error, message string) {
	if glpi.IsKind(err, glpi.KindInvalidArgument) {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("Handler error",
		"path", c.Request.URL.Path,
		"error", err,
		"correlation_id", correlationID(c))
	respondError(c, http.StatusInternalServerError, message)
}

// Package api is the HTTP façade: route registration, request middleware,
// and the response envelope around the query engines.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/centralti/glpi-metrics/pkg/cache"
	"github.com/centralti/glpi-metrics/pkg/glpi"
	"github.com/centralti/glpi-metrics/pkg/metrics"
	"github.com/centralti/glpi-metrics/pkg/models"
	"github.com/centralti/glpi-metrics/pkg/ranking"
	"github.com/centralti/glpi-metrics/pkg/tickets"
)

// Dashboarder builds dashboard snapshots (dashboard.Assembler).
type Dashboarder interface {
	Dashboard(ctx context.Context, start, end string) (*models.DashboardMetrics, error)
}

// Ranker builds the technician ranking (ranking.Engine).
type Ranker interface {
	Rank(ctx context.Context, opts ranking.Options) ([]models.Technician, error)
}

// TicketQuerier answers ticket listings and detail lookups (tickets.Service).
type TicketQuerier interface {
	NewTickets(ctx context.Context, f tickets.Filters) []models.NewTicket
	Ticket(ctx context.Context, id int) (*models.Ticket, error)
}

// StatusProber checks GLPI liveness (glpi.Probe).
type StatusProber interface {
	Status(ctx context.Context) glpi.ProbeResult
}

// Server wires the engines behind the HTTP surface.
type Server struct {
	dashboard Dashboarder
	ranker    Ranker
	tickets   TicketQuerier
	prober    StatusProber
	cache     *cache.Store
	observer  *metrics.Observer
	logger    *slog.Logger
}

// NewServer creates the API server.
func NewServer(dashboard Dashboarder, ranker Ranker, ticketSvc TicketQuerier, prober StatusProber, store *cache.Store, observer *metrics.Observer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		dashboard: dashboard,
		ranker:    ranker,
		tickets:   ticketSvc,
		prober:    prober,
		cache:     store,
		observer:  observer,
		logger:    logger,
	}
}

// Router builds the gin engine with all routes and middleware registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recovery(s.logger), correlation(), cors(), requestLogger(s.logger), instrument(s.observer))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/metrics", s.getMetrics)
		apiGroup.GET("/metrics/filtered", s.getMetrics)
		apiGroup.GET("/ranking", s.getRanking)
		apiGroup.GET("/tickets/new", s.getNewTickets)
		apiGroup.GET("/ticket/:id", s.getTicket)
		apiGroup.GET("/status", s.getStatus)
	}

	r.GET("/health", s.getHealth)
	r.GET("/metrics", gin.WrapH(s.observer.Handler()))
	return r
}

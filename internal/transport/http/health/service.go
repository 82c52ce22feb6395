// Package health reports liveness, queue depth and host resources.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"vietscribe-go/internal/platform/observability"
	"vietscribe-go/internal/platform/sysinfo"
	httptransport "vietscribe-go/internal/transport/http"
)

// QueueStats reports queued and running jobs.
type QueueStats interface {
	Stats() (queued, running int)
}

// Service answers GET /api/health.
type Service struct {
	queue   QueueStats
	backend string
	started time.Time
}

func NewService(queue QueueStats, backend string) *Service {
	return &Service{queue: queue, backend: backend, started: time.Now()}
}

func (s *Service) Register(_ context.Context, api *gin.RouterGroup) {
	api.GET("/health", s.handleHealth)
}

func (s *Service) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	host, _ := sysinfo.Collect(ctx)

	data := gin.H{
		"status":  "ok",
		"backend": s.backend,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"host":    host,
		"metrics": observability.Snapshot(),
	}
	if s.queue != nil {
		queued, running := s.queue.Stats()
		data["queue"] = gin.H{"queued": queued, "running": running}
	}
	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

// Package api exposes mujina's status/control boundary: a REST surface
// (gin) for operators and a thin gRPC surface for programmatic clients,
// both reading from the same internal/status Sink.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jbride/mujina/internal/backplane"
	"github.com/jbride/mujina/internal/health"
	"github.com/jbride/mujina/internal/status"
)

// Server is the REST status/control boundary.
type Server struct {
	sink   *status.Sink
	engine *gin.Engine
	http   *http.Server
}

type boardDTO struct {
	DevicePath string `json:"device_path"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	ChipCount  int    `json:"chip_count,omitempty"`
}

type healthResponse struct {
	UptimeSeconds float64          `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemUsedPct    float64          `json:"mem_used_pct"`
	Boards        []boardDTO       `json:"boards"`
}

func boardStateString(s backplane.BoardState) string {
	switch s {
	case backplane.StateHealthy:
		return "healthy"
	case backplane.StateFailed:
		return "failed"
	default:
		return "initializing"
	}
}

// NewServer builds the REST API bound to addr.
func NewServer(addr string, sink *status.Sink) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{sink: sink, engine: engine}

	v1 := engine.Group("/api/v1")
	v1.GET("/healthz", s.handleHealth)
	v1.GET("/boards", s.handleBoards)
	v1.POST("/boards/:path/reinitialize", s.handleReinitialize)

	s.http = &http.Server{Addr: addr, Handler: engine}
	return s
}

func (s *Server) boardDTOs() []boardDTO {
	snap := s.sink.Boards()
	out := make([]boardDTO, 0, len(snap))
	for path, b := range snap {
		dto := boardDTO{
			DevicePath: path,
			State:      boardStateString(b.State),
			Reason:     b.Reason,
		}
		if b.Board != nil {
			dto.ChipCount = b.Board.Info().ChipCount
		}
		out = append(out, dto)
	}
	return out
}

func (s *Server) handleHealth(c *gin.Context) {
	hostStats := health.Snapshot()
	c.JSON(http.StatusOK, healthResponse{
		UptimeSeconds: s.sink.Uptime().Seconds(),
		CPUPercent:    hostStats.CPUPercent,
		MemUsedPct:    hostStats.MemUsedPct,
		Boards:        s.boardDTOs(),
	})
}

func (s *Server) handleBoards(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"boards": s.boardDTOs()})
}

// handleReinitialize answers 202 with "reinit requested". It does not reach
// the backplane and does not reinitialize any board.
func (s *Server) handleReinitialize(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{"device_path": c.Param("path"), "status": "reinit requested"})
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully with a 5s timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/response"
	"github.com/stemsi/jlpt-proctor/internal/service"
)

const (
	keepAliveInterval = 30 * time.Second
	snapshotTimeout   = 5 * time.Second
)

// MonitorHandler serves the proctor dashboard.
type MonitorHandler struct {
	monitor *service.MonitorService
	log     zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitor *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor: monitor,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// RecentViolations godoc
// GET /api/v1/monitor/violations?limit=
func (h *MonitorHandler) RecentViolations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	snap, err := h.monitor.Snapshot(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load violation snapshot")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, snap)
}

// StreamViolations godoc
// GET /api/v1/monitor/stream
// Server-sent events: one snapshot, then every violation as it happens.
func (h *MonitorHandler) StreamViolations(c *gin.Context) {
	reqCtx := c.Request.Context()

	stream, err := h.monitor.StreamViolations(reqCtx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to subscribe to violations")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	snapCtx, cancel := context.WithTimeout(reqCtx, snapshotTimeout)
	snap, err := h.monitor.Snapshot(snapCtx, 0)
	cancel()
	if err != nil {
		h.log.Warn().Err(err).Msg("Snapshot unavailable, streaming live events only")
	} else {
		c.SSEvent("snapshot", snap)
	}
	c.Writer.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	h.log.Info().Msg("Proctor attached to violation stream")
	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Proctor detached from violation stream")
			return
		case rec, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent("violation", rec)
			c.Writer.Flush()
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

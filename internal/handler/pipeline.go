package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/favron1/ev-ace-advisor-sub003/internal/detector"
	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/notify"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
)

// PassRunner is the slice of detector.Service the HTTP trigger needs.
type PassRunner interface {
	RunPass(ctx context.Context) (detector.PassResult, error)
}

type PipelineHandler struct {
	Repo     repository.Repository
	Detector PassRunner
}

func (h *PipelineHandler) Register(r *gin.Engine) {
	r.POST("/api/v2/detect", h.detect)
	r.GET("/api/v2/pipeline/health", h.health)
}

// @Summary Run one detection pass now
// @Tags pipeline
// @Success 200 {object} detector.PassResult
// @Failure 502 {object} apiResponse
// @Router /api/v2/detect [post]
func (h *PipelineHandler) detect(c *gin.Context) {
	if h.Detector == nil {
		Error(c, http.StatusInternalServerError, "detector unavailable", nil)
		return
	}
	res, err := h.Detector.RunPass(c.Request.Context())
	if err != nil {
		if errors.Is(err, detector.ErrOddsKeyMissing) {
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{
			"events_polled": res.EventsPolled,
		})
		return
	}
	notify.AuditBestEffort(c, "detection_pass_triggered", map[string]any{
		"events_polled": res.EventsPolled,
		"edges_found":   res.EdgesFound,
	})
	Ok(c, res, nil)
}

// @Summary Pipeline health counters
// @Tags pipeline
// @Param fresh_window query string false "snapshot freshness window (default 30m)"
// @Success 200 {object} map[string]any
// @Router /api/v2/pipeline/health [get]
func (h *PipelineHandler) health(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	now := time.Now().UTC()

	marketsTotal, _ := h.Repo.CountWatchedMarkets(ctx, repository.ListWatchedMarketsParams{
		IncludeNullSource: true,
	})
	marketsWatching, _ := h.Repo.CountWatchedMarkets(ctx, repository.ListWatchedMarketsParams{
		IncludeNullSource:  true,
		MonitoringStatuses: []string{models.MonitoringWatching, models.MonitoringTriggered},
	})

	freshWindow := durationQuery(c, "fresh_window", 30*time.Minute)
	freshSince := now.Add(-freshWindow)
	snapshotsTotal, _ := h.Repo.CountSharpSnapshots(ctx, nil)
	snapshotsFresh, _ := h.Repo.CountSharpSnapshots(ctx, &freshSince)

	signalsActive, _ := h.Repo.CountActiveSignals(ctx)

	resp := gin.H{
		"markets_total":    marketsTotal,
		"markets_watching": marketsWatching,
		"snapshots_total":  snapshotsTotal,
		"snapshots_fresh":  snapshotsFresh,
		"signals_active":   signalsActive,
		"fresh_window":     freshWindow.String(),
	}

	if state, err := h.Repo.GetSyncState(ctx, detector.PassScope); err == nil && state != nil {
		lastPass := gin.H{
			"last_attempt_at": state.LastAttemptAt,
			"last_success_at": state.LastSuccessAt,
		}
		if state.LastError != nil {
			lastPass["last_error"] = *state.LastError
		}
		if len(state.StatsJSON) > 0 {
			lastPass["stats"] = state.StatsJSON
		}
		resp["last_pass"] = lastPass
	}

	c.JSON(http.StatusOK, resp)
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/favron1/ev-ace-advisor-sub003/internal/models"
	"github.com/favron1/ev-ace-advisor-sub003/internal/notify"
	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
)

type SignalHandler struct {
	Repo repository.Repository
}

func (h *SignalHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v2/signals")
	group.GET("", h.listSignals)
	group.GET("/:id", h.getSignal)
	group.POST("/:id/dismiss", h.dismissSignal)
	group.POST("/:id/execute", h.executeSignal)
}

// @Summary List signal opportunities
// @Tags signals
// @Param status query string false "active | executed | expired | dismissed"
// @Param tier query string false "static | strong | elite"
// @Param sport query string false "sport code, e.g. NBA"
// @Param event query string false "substring match on event name"
// @Param sort_by query string false "created_at | updated_at | edge | confidence | expires_at"
// @Param order query string false "asc | desc (default desc)"
// @Param limit query int false "page size (default 50)"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /api/v2/signals [get]
func (h *SignalHandler) listSignals(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	orderBy := parseOrder(c.Query("sort_by"), map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"edge":       "edge_percent",
		"confidence": "confidence_score",
		"expires_at": "expires_at",
	})
	if orderBy == "" {
		orderBy = "created_at"
	}
	asc := strings.EqualFold(strings.TrimSpace(c.Query("order")), "asc")

	params := repository.ListSignalsParams{
		Status:  strQueryPtr(c, "status"),
		Tier:    strQueryPtr(c, "tier"),
		Sport:   strQueryPtr(c, "sport"),
		Event:   strQueryPtr(c, "event"),
		OrderBy: orderBy,
		Asc:     boolPtr(asc),
		Limit:   limit,
		Offset:  offset,
	}

	items, err := h.Repo.ListSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountSignals(c.Request.Context(), repository.ListSignalsParams{
		Status: params.Status,
		Tier:   params.Tier,
		Sport:  params.Sport,
		Event:  params.Event,
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

// @Summary Fetch one signal
// @Tags signals
// @Param id path int true "signal id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v2/signals/{id} [get]
func (h *SignalHandler) getSignal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64PathParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetSignal(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Dismiss a signal
// @Tags signals
// @Param id path int true "signal id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Router /api/v2/signals/{id}/dismiss [post]
func (h *SignalHandler) dismissSignal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64PathParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetSignal(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	if err := h.Repo.UpdateSignalStatus(c.Request.Context(), id, models.SignalDismissed); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	notify.AuditBestEffort(c, "signal_dismissed", map[string]any{
		"signal_id": id,
		"event":     item.EventName,
	})
	Ok(c, map[string]any{"id": id, "status": models.SignalDismissed}, nil)
}

// @Summary Mark a signal executed
// @Tags signals
// @Param id path int true "signal id"
// @Success 200 {object} apiResponse
// @Failure 404 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/v2/signals/{id}/execute [post]
func (h *SignalHandler) executeSignal(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64PathParam(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetSignal(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "signal not found", nil)
		return
	}
	if item.Status != models.SignalActive {
		Error(c, http.StatusConflict, "signal not active", map[string]any{"status": item.Status})
		return
	}
	if err := h.Repo.UpdateSignalStatus(c.Request.Context(), id, models.SignalExecuted); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	notify.AuditBestEffort(c, "signal_executed", map[string]any{
		"signal_id": id,
		"event":     item.EventName,
		"outcome":   item.RecommendedOutcome,
		"tier":      item.SignalTier,
	})
	Ok(c, map[string]any{"id": id, "status": models.SignalExecuted}, nil)
}

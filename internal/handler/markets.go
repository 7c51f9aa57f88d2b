package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/favron1/ev-ace-advisor-sub003/internal/repository"
)

type MarketHandler struct {
	Repo repository.Repository
}

func (h *MarketHandler) Register(r *gin.Engine) {
	r.GET("/api/v2/markets", h.listMarkets)
}

// @Summary List watched exchange markets
// @Tags markets
// @Param source query string false "api | firecrawl (comma separated)"
// @Param status query string false "active | closed"
// @Param monitoring query string false "idle | watching | triggered | expired (comma separated)"
// @Param sport query string false "sport code filter (comma separated)"
// @Param min_volume query number false "minimum 24h volume in USD"
// @Param limit query int false "page size (default 100)"
// @Param offset query int false "page offset"
// @Success 200 {object} apiResponse
// @Router /api/v2/markets [get]
func (h *MarketHandler) listMarkets(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)

	params := repository.ListWatchedMarketsParams{
		Sources:            splitQuery(c, "source"),
		Status:             strings.TrimSpace(c.Query("status")),
		MonitoringStatuses: splitQuery(c, "monitoring"),
		SportCodes:         splitQuery(c, "sport"),
		MinVolume:          floatQueryPtr(c, "min_volume"),
		OrderByStartAsc:    true,
		Limit:              limit,
		Offset:             offset,
	}

	items, err := h.Repo.ListWatchedMarkets(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	countParams := params
	countParams.Limit = 0
	countParams.Offset = 0
	total, err := h.Repo.CountWatchedMarkets(c.Request.Context(), countParams)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func splitQuery(c *gin.Context, key string) []string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

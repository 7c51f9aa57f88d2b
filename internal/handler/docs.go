package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func RegisterDocs(r *gin.Engine) {
	r.GET("/docs", func(c *gin.Context) {
		c.Header("Content-Type", "text/markdown; charset=utf-8")
		c.String(http.StatusOK, `# Mispricing Detector

Compares sharp sportsbook consensus against exchange prices for the same
games and surfaces tiered trading signals.

## Routes

- GET /healthz
- GET /readyz
- GET /swagger/index.html
- POST /api/v2/detect
- GET /api/v2/signals
- GET /api/v2/signals/:id
- POST /api/v2/signals/:id/dismiss
- POST /api/v2/signals/:id/execute
- GET /api/v2/markets
- GET /api/v2/pipeline/health

## Auth

When an auth token is configured, all /api/* routes require
"Authorization: Bearer <token>". Health endpoints are always open.

## Signal lifecycle

Signals are created active and expire at event start. Dismissing a signal is
terminal; the detector never reactivates it. Executing is only valid from the
active state.
`)
	})
}

package notify

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey int

const notifierCtxKey ctxKey = 1

func WithNotifier(ctx context.Context, n *Notifier) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, notifierCtxKey, n)
}

func FromContext(ctx context.Context) *Notifier {
	if ctx == nil {
		return nil
	}
	v := ctx.Value(notifierCtxKey)
	n, _ := v.(*Notifier)
	return n
}

// InjectMiddleware makes the notifier reachable from request contexts so
// handlers can emit audit events without holding a reference themselves.
func InjectMiddleware(n *Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n != nil && c.Request != nil {
			c.Request = c.Request.WithContext(WithNotifier(c.Request.Context(), n))
		}
		c.Next()
	}
}

func notifierFromGin(c *gin.Context) *Notifier {
	if c == nil || c.Request == nil {
		return nil
	}
	return FromContext(c.Request.Context())
}

// AuditBestEffort records a user action as a structured audit entry. It never
// fails the request.
func AuditBestEffort(c *gin.Context, action string, details map[string]any) {
	n := notifierFromGin(c)
	if n == nil {
		return
	}
	n.Audit(action, details)
}

// AuditBestEffortCtx is AuditBestEffort for non-HTTP callers.
func AuditBestEffortCtx(ctx context.Context, action string, details map[string]any) {
	n := FromContext(ctx)
	if n == nil {
		return
	}
	n.Audit(action, details)
}

// Audit writes one audit record through the notifier's logger.
func (n *Notifier) Audit(action string, details map[string]any) {
	if n == nil || n.logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(details)+1)
	fields = append(fields, zap.String("action", action))
	for k, v := range details {
		fields = append(fields, zap.Any(k, v))
	}
	n.logger.Info("audit", fields...)
}

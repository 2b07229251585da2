package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mbenaiss/InsightRun/internal/auth"
	"github.com/mbenaiss/InsightRun/internal/identity"
	"github.com/mbenaiss/InsightRun/internal/metrics"
	"github.com/mbenaiss/InsightRun/internal/notifications"
)

// requireAppKey gates all proxied work behind the shared application
// secret. It runs before any quota state is touched, so unauthenticated
// probing never consumes quota.
func (h *Handler) requireAppKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.verifier.Verify(r.Header.Get(auth.AppKeyHeader)); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid app key", nil)
			return
		}
		next(w, r)
	}
}

// withQuota enforces the fixed-window limit around the wrapped handler.
// The count is consulted before dispatch and reserved only after the
// handler completes: rate-limited requests never count, while a request
// that reaches the upstream and fails there still does.
func (h *Handler) withQuota(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := identity.Resolve(r.Header)

		count, err := h.limiter.Consult(ctx, id)
		if err != nil {
			slog.Error("failed to read quota", "error", err, "identity", id)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to read quota", nil)
			return
		}

		if !h.limiter.Allowed(count) {
			metrics.RecordRateLimitHit()
			resetIn, ttlErr := h.limiter.ResetIn(ctx, id)
			if ttlErr != nil {
				resetIn = h.limiter.Window()
			}
			slog.Warn("rate limit exceeded", "identity", id, "count", count)
			notifications.Notify(h.notifier, notifications.Notification{
				Type:     notifications.NotificationRateLimited,
				Identity: id,
				Message:  "caller exceeded request quota",
				Data:     map[string]interface{}{"count": count, "limit": h.limiter.Limit()},
			})
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", map[string]interface{}{
				"limit":      h.limiter.Limit(),
				"retryAfter": int(resetIn.Seconds()),
			})
			return
		}

		next(w, r)

		// The request context may already be canceled if the client went
		// away mid-stream; accounting still has to land.
		reserveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := h.limiter.Reserve(reserveCtx, id, count+1); err != nil {
			slog.Warn("failed to reserve quota", "error", err, "identity", id)
		}
	}
}

package web

import (
	"context"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	middleware "github.com/go-chi/chi/v5/middleware"
	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	metrics "github.com/inference-gateway/adgate/internal/metrics"
	zap "go.uber.org/zap"
)

// Identity headers set by the trusted front end
const (
	HeaderUserID         = "X-User-ID"
	HeaderOrganizationID = "X-Organization-ID"
	HeaderSessionID      = "X-Session-ID"
)

type identityKey struct{}

type identity struct {
	UserID         string
	OrganizationID string
	SessionID      string
}

func (id identity) request(toolName string, params map[string]any) domain.ToolCallRequest {
	return domain.ToolCallRequest{
		ToolName:       toolName,
		Params:         params,
		UserID:         id.UserID,
		OrganizationID: id.OrganizationID,
		SessionID:      id.SessionID,
	}
}

func identityFrom(ctx context.Context) identity {
	id, _ := ctx.Value(identityKey{}).(identity)
	return id
}

// requireIdentity rejects requests without a user id
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity{
			UserID:         r.Header.Get(HeaderUserID),
			OrganizationID: r.Header.Get(HeaderOrganizationID),
			SessionID:      r.Header.Get(HeaderSessionID),
		}
		if id.UserID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + HeaderUserID + " header", Code: "unauthenticated"})
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = logger.With(ctx, zap.String("user_id", id.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request and records its latency by route pattern
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx := logger.With(r.Context(), zap.String("request_id", middleware.GetReqID(r.Context())))
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, status, duration)

		logger.L(ctx).Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", duration))
	})
}

package server

import (
	"context"
	"net"
	"net/http"

	chi "github.com/go-chi/chi/v5/middleware"
	"github.com/voyago/audittrail/internal/audit"
	"github.com/voyago/audittrail/pkg/reqid"
)

// ActorHeader carries the authenticated actor identity, resolved by the
// auth layer in front of this service.
const ActorHeader = "X-Actor-Id"

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(chi.RequestIDHeader)
		if requestID == "" {
			requestID = reqid.NextRequestID()
		}
		ctx := context.WithValue(r.Context(), chi.RequestIDKey, requestID)
		w.Header().Set(chi.RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorContext resolves the mutation's actor, IP and user agent from the
// request and attaches them to the context for the tracking hooks.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		ctx := audit.WithActor(r.Context(), audit.ActorContext{
			Actor:     r.Header.Get(ActorHeader),
			IP:        ip,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Package api serves a read-only HTTP view of the graph.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/internal/graph"
	"github.com/mesh-intelligence/loom/internal/sqlite"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// EventSource lists committed events. *sqlite.Backend implements it.
type EventSource interface {
	Events(ctx context.Context, f sqlite.EventFilter) ([]types.Event, error)
}

// NewRouter mounts the query routes over e. events may be nil, in which case
// GET /events is not served.
func NewRouter(e *graph.Engine, events EventSource, log *zap.Logger) chi.Router {
	h := &Handler{graph: e, events: events, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/counters", h.Counters)

	r.Route("/characters/{id}", func(r chi.Router) {
		r.Get("/", h.Character)
		r.Get("/linklists/{linkType}", h.BoundLinklist)
		r.Get("/linking/{linkType}", h.Linking)
		r.Get("/notes/{noteID}", h.Note)
	})
	r.Get("/handles/{handle}", h.CharacterByHandle)
	r.Get("/addresses/{address}/primary", h.PrimaryCharacter)
	r.Get("/addresses/{address}/link-module", h.AddressLinkModule)
	r.Get("/linklists/{id}", h.Linklist)
	r.Get("/mint-nfts/{address}", h.MintNFT)
	r.Get("/targets/{kind}/{key}", h.Target)

	if events != nil {
		r.Get("/events", h.Events)
	}
	return r
}

// requestLogger logs one line per request at debug level.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

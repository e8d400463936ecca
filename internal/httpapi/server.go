// Package httpapi is the local control surface of the daemon: the thin
// boundary where the presentation collaborators (GUI, CLI, voice) talk
// to the orchestration core over loopback HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adapterd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Answer(ctx context.Context, req types.QueryRequest) (types.QueryResponse, error)
	Adapters() types.AdaptersResponse
	Attach(ctx context.Context, ids []string) (types.AttachmentState, error)
	Detach(ctx context.Context) (types.AttachmentState, error)
	Uninstall(ctx context.Context, id string) error
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/query", func(w http.ResponseWriter, r *http.Request) {
		var req types.QueryRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			writeJSONError(w, http.StatusBadRequest, "query is required")
			return
		}

		start := time.Now()
		logStart(r, "query", req.AdapterIDs)
		// Join server base context with request context so shutdown
		// cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		resp, err := svc.Answer(joinedCtx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeError(w, err)
			logEnd(r, "query", statusForError(err), time.Since(start), err)
			return
		}
		writeJSON(w, resp)
		logEnd(r, "query", http.StatusOK, time.Since(start), nil)
	})

	r.Get("/adapters", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Adapters())
	})

	r.Delete("/adapters/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Uninstall(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, svc.Adapters())
	})

	r.Post("/attach", func(w http.ResponseWriter, r *http.Request) {
		var req types.AttachRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		start := time.Now()
		st, err := svc.Attach(r.Context(), req.AdapterIDs)
		if err != nil {
			writeError(w, err)
			logEnd(r, "attach", statusForError(err), time.Since(start), err)
			return
		}
		writeJSON(w, st)
		logEnd(r, "attach", http.StatusOK, time.Since(start), nil)
	})

	r.Post("/detach", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Detach(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, st)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeJSON enforces the content type and body size limit, then decodes
// into v. It writes the error response itself and reports success.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func logStart(r *http.Request, op string, adapters []string) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Str("path", r.URL.Path).Str("op", op)
	if len(adapters) > 0 {
		z = z.Strs("adapters", adapters)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Msg("request start")
}

func logEnd(r *http.Request, op string, status int, dur time.Duration, err error) {
	if zlog == nil {
		return
	}
	z := zlog.Info().Str("op", op).Int("status", status).Dur("dur", dur)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	if err != nil {
		z = z.Err(err)
	}
	z.Msg("request end")
}

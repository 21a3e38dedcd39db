package api

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"aiolists/handlers"
)

const requestIDHeader = "X-Request-ID"

// corsMiddleware opens every route to any origin; add-on clients call from
// arbitrary web origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.wrote = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

// requestIDMiddleware tags each request with an id and logs its outcome by
// route name. Paths are never logged since the config segment carries keys.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil && current.GetName() != "" {
			route = current.GetName()
		}
		log.Printf("[api] %s %s %d %s id=%s", r.Method, route, rec.status, time.Since(start).Round(time.Millisecond), id)
	})
}

// recoveryMiddleware turns a handler panic into the degraded add-on answer
// when nothing has been written yet.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			route := "unknown"
			if current := mux.CurrentRoute(r); current != nil && current.GetName() != "" {
				route = current.GetName()
			}
			log.Printf("[api] panic in %s: %v\n%s", route, p, debug.Stack())
			if !rec.wrote {
				handlers.Degraded(rec, r)
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Register mounts the add-on endpoints onto r. A nil limiter disables rate
// limiting.
func Register(r *mux.Router, addon *handlers.AddonHandler, limiter *IPRateLimiter) {
	r.Use(corsMiddleware)
	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware)

	r.HandleFunc("/health", health).Methods(http.MethodGet).Name("health")

	addonRoutes := r.NewRoute().Subrouter()
	addonRoutes.Use(rateLimitMiddleware(limiter))

	addonRoutes.HandleFunc("/manifest.json", addon.ServeManifest).Methods(http.MethodGet).Name("manifest")
	addonRoutes.HandleFunc("/{config}/manifest.json", addon.ServeManifest).Methods(http.MethodGet).Name("manifest")
	addonRoutes.HandleFunc("/{config}/catalog/{type}/{id}/{extra}.json", addon.Catalog).Methods(http.MethodGet).Name("catalog")
	addonRoutes.HandleFunc("/{config}/catalog/{type}/{id}.json", addon.Catalog).Methods(http.MethodGet).Name("catalog")
	addonRoutes.HandleFunc("/{config}/meta/{type}/{id}.json", addon.Meta).Methods(http.MethodGet).Name("meta")

	// Preflight requests never reach a GET-only route otherwise.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

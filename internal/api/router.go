package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-swing/internal/api/handlers"
	"github.com/wonny/aegis-swing/pkg/logger"
)

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Universe *handlers.UniverseHandler
	Trading  *handlers.TradingHandler
	Pipeline *handlers.PipelineHandler
	Hub      *Hub
	Metrics  http.Handler // nil = /metrics not mounted
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics).Methods("GET")
	}
	if h.Hub != nil {
		r.Handle("/ws/events", h.Hub).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Universe endpoints ("current" before the {week} pattern)
	api.HandleFunc("/universe/current", h.Universe.GetCurrent).Methods("GET")
	api.HandleFunc("/universe/{week}", h.Universe.GetWeek).Methods("GET")

	// Trading endpoints
	api.HandleFunc("/positions", h.Trading.GetPositions).Methods("GET")
	api.HandleFunc("/positions/closed", h.Trading.GetClosed).Methods("GET")
	api.HandleFunc("/exits", h.Trading.GetExits).Methods("GET")

	// Pipeline & scheduler endpoints
	api.HandleFunc("/pipeline/last", h.Pipeline.GetLastRun).Methods("GET")
	api.HandleFunc("/scheduler/jobs", h.Pipeline.GetJobs).Methods("GET")
	api.HandleFunc("/scheduler/jobs/{name}/run", h.Pipeline.RunJob).Methods("POST")
	api.HandleFunc("/scheduler/jobs/{name}/history", h.Pipeline.GetJobHistory).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "aegis-swing",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

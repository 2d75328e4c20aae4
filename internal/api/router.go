package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rstrack/rstrack/internal/api/handlers"
	"github.com/rstrack/rstrack/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	instrumentHandler *handlers.InstrumentHandler,
	pipelineHandler *handlers.PipelineHandler,
	scoreHandler *handlers.ScoreHandler,
	settingsHandler *handlers.SettingsHandler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Instrument registry
	api.HandleFunc("/instruments", instrumentHandler.List).Methods("GET")
	api.HandleFunc("/instruments/upload", instrumentHandler.Upload).Methods("POST")
	api.HandleFunc("/instruments/{symbol}", instrumentHandler.Deactivate).Methods("DELETE")

	// Pipeline control
	api.HandleFunc("/pipeline/refresh", pipelineHandler.Refresh).Methods("POST")
	api.HandleFunc("/pipeline/status", pipelineHandler.GetStatus).Methods("GET")

	// Published results
	api.HandleFunc("/scores", scoreHandler.GetScores).Methods("GET")
	api.HandleFunc("/groups", scoreHandler.GetGroups).Methods("GET")

	// Settings
	api.HandleFunc("/settings/weights", settingsHandler.GetWeights).Methods("GET")
	api.HandleFunc("/settings/weights", settingsHandler.UpdateWeights).Methods("PUT")
	api.HandleFunc("/settings/benchmark", settingsHandler.UpdateBenchmark).Methods("PUT")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "rstrack-api",
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics.
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

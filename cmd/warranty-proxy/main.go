// Command warranty-proxy exposes the TechDirect warranty client over HTTP:
// single and bulk service-tag lookups, connection testing, client status,
// health, and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hwsync/dell-warranty-client/pkg/bulk"
	"github.com/hwsync/dell-warranty-client/pkg/client"
	"github.com/hwsync/dell-warranty-client/pkg/config"
	"github.com/hwsync/dell-warranty-client/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	level := logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	if cfg.DebugMode {
		level = logging.LevelDebug
	}
	logger := logging.Setup(logging.Config{
		Level:  level,
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	})

	// Redis enables the lookup cache; without it the proxy hits the vendor
	// on every request.
	var redisClient *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis_url", redisURL).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis_url", redisURL).Msg("Lookup cache enabled")
	}

	apiClient, err := client.New(client.Config{
		API:   cfg,
		Redis: redisClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create vendor client")
	}

	orchestrator := bulk.New(apiClient, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/assets/{tag}", assetHandler(apiClient))
	mux.HandleFunc("POST /api/assets/bulk", bulkHandler(orchestrator))
	mux.HandleFunc("GET /api/status", statusHandler(apiClient))
	mux.HandleFunc("POST /api/test-connection", testConnectionHandler(apiClient))

	addr := ":" + getEnv("PORT", "8080")
	logger.Info().Str("addr", addr).Msg("Starting warranty proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// assetHandler looks up one service tag.
func assetHandler(apiClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		record, err := apiClient.GetAssetInfo(ctx, r.PathValue("tag"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// bulkRequest is the POST body for bulk lookups.
type bulkRequest struct {
	ServiceTags []string `json:"serviceTags"`
}

// bulkResponse carries per-row results plus the run summary.
type bulkResponse struct {
	Results []bulk.Result `json:"results"`
	Summary bulk.Summary  `json:"summary"`
}

func bulkHandler(orchestrator *bulk.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		results, err := orchestrator.Process(r.Context(), req.ServiceTags, nil)
		if err != nil {
			if errors.Is(err, bulk.ErrNoInput) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			// Cancellation mid-run: report what completed.
			writeJSON(w, http.StatusOK, bulkResponse{Results: results, Summary: bulk.Summarize(results)})
			return
		}
		writeJSON(w, http.StatusOK, bulkResponse{Results: results, Summary: bulk.Summarize(results)})
	}
}

func statusHandler(apiClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, apiClient.Status())
	}
}

func testConnectionHandler(apiClient *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		result := apiClient.TestConnection(ctx)
		status := http.StatusOK
		if !result.Success {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, result)
	}
}

// writeError maps the client error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch client.KindOf(err) {
	case client.KindInvalidIdentifier:
		status = http.StatusBadRequest
	case client.KindNotFound:
		status = http.StatusNotFound
	case client.KindRateLimited:
		status = http.StatusTooManyRequests
	case client.KindConfiguration:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudshield/internal/handlers"
	"cloudshield/internal/metrics"
	"cloudshield/internal/mockapi"
	"cloudshield/internal/realtime"
	"cloudshield/internal/session"
	"cloudshield/internal/store"
	"cloudshield/internal/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		configFile = flag.String("config", "configs/cloudshield.yaml", "Configuration file path (YAML)")
		port       = flag.String("port", "", "API server port (overrides config)")
	)
	flag.Parse()

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		config.Server.Port = *port
	}

	logger := utils.NewLogger(config.Logging.Level, config.Logging.Format)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatalf("Failed to register metrics: %v", err)
	}

	// Build the synthetic dataset everything else serves from.
	st := store.New(logger)
	gen := store.NewGenerator(config.Seed.RandomSeed)
	store.Seed(st, gen, store.SeedSpec{
		Logs:           config.Seed.Logs,
		Anomalies:      config.Seed.Anomalies,
		TimeSeriesDays: config.Seed.TimeSeriesDays,
	}, time.Now())
	logger.Infof("Seeded store with %d logs and %d anomalies", config.Seed.Logs, config.Seed.Anomalies)

	api := mockapi.NewService(st, gen, mockapi.Config{
		LatencyMin:  config.API.LatencyMin(),
		LatencyMax:  config.API.LatencyMax(),
		FailureRate: config.API.FailureRate,
		AdminRate:   config.API.AdminRate,
		TokenSecret: config.API.TokenSecret,
		TokenTTL:    config.API.TokenTTL(),
		TrainStep:   config.API.TrainStep(),
	}, logger)

	simulator := realtime.New(st, gen, config.Realtime.Interval(), config.Realtime.AnomalyProbability, logger)

	state, err := session.NewFileStore(config.Session.StatePath)
	if err != nil {
		logger.Fatalf("Failed to open session state at %s: %v", config.Session.StatePath, err)
	}
	sess := session.NewManager(api, state, logger)
	sess.Rehydrate()

	h := handlers.NewHandlers(api, sess, simulator, logger)

	router := mux.NewRouter()
	router.Use(corsMiddleware(config.Server.AllowedOrigins))

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	// Auth endpoints
	apiRouter.HandleFunc("/auth/login", h.Login).Methods("POST")
	apiRouter.HandleFunc("/auth/register", h.Register).Methods("POST")
	apiRouter.HandleFunc("/auth/logout", h.Logout).Methods("POST")

	// Dashboard endpoints
	apiRouter.HandleFunc("/stats", h.GetStats).Methods("GET")
	apiRouter.HandleFunc("/stats/timeseries", h.GetTimeSeries).Methods("GET")

	// Anomaly endpoints
	apiRouter.HandleFunc("/anomalies", h.GetAnomalies).Methods("GET")
	apiRouter.HandleFunc("/anomalies/{id}", h.GetAnomaly).Methods("GET")
	apiRouter.HandleFunc("/anomalies/{id}/review", h.ReviewAnomaly).Methods("PATCH")
	apiRouter.HandleFunc("/explanations/{anomalyId}", h.GetExplanation).Methods("GET")

	// Log endpoints
	apiRouter.HandleFunc("/logs", h.GetLogs).Methods("GET")
	apiRouter.HandleFunc("/logs/upload", h.UploadLog).Methods("POST")

	// User management endpoints
	apiRouter.HandleFunc("/users", h.GetUsers).Methods("GET")
	apiRouter.HandleFunc("/users", h.AddUser).Methods("POST")
	apiRouter.HandleFunc("/users/{id}/status", h.SetUserStatus).Methods("PATCH")
	apiRouter.HandleFunc("/users/{id}/role", h.SetUserRole).Methods("PATCH")

	// Model management endpoints
	apiRouter.HandleFunc("/models", h.GetModels).Methods("GET")
	apiRouter.HandleFunc("/models/{id}/toggle", h.ToggleModel).Methods("POST")
	apiRouter.HandleFunc("/models/{id}/train", h.TrainModel).Methods("POST")
	apiRouter.HandleFunc("/models/{id}/progress", h.TrainingProgress).Methods("GET")

	// Realtime stream
	apiRouter.HandleFunc("/stream/events", h.StreamEvents).Methods("GET")

	// Health check and metrics
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	addr := fmt.Sprintf(":%s", config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
	}

	logger.Infof("API server starting on port %s", config.Server.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down API server...")
		simulator.Unsubscribe()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}

func corsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowOrigin := "*"
			if origin != "" {
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						allowOrigin = origin
						break
					}
				}
			}

			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if allowOrigin != "*" {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/banksim/backend/docs"
	"github.com/banksim/backend/internal/config"
	"github.com/banksim/backend/internal/database"
	"github.com/banksim/backend/internal/handlers"
	"github.com/banksim/backend/internal/lock"
	mW "github.com/banksim/backend/internal/middleware"
	"github.com/banksim/backend/internal/services"
	"github.com/banksim/backend/internal/store"
	"github.com/banksim/backend/internal/webhook"
)

// @title Bank Sandbox API
// @version 1.0
// @description Bank-partner sandbox with TAN-gated change requests, card authorizations and fraud cases
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("engine.change_request_ttl", "CHANGE_REQUEST_TTL")
	viper.BindEnv("engine.tan_length", "CHANGE_REQUEST_TAN_LENGTH")
	viper.BindEnv("engine.lock_ttl", "PERSON_LOCK_TTL")
	viper.BindEnv("engine.watchdog_timeout", "FRAUD_WATCHDOG_TIMEOUT")
	viper.BindEnv("engine.webhook_endpoint", "WEBHOOK_ENDPOINT")
	viper.BindEnv("engine.webhook_secret", "WEBHOOK_SECRET")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("jwt.secret_key", "sandbox-jwt-secret")
	viper.SetDefault("jwt.expiry_hours", 1)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Bank Sandbox API"
	docs.SwaggerInfo.Description = "Bank-partner sandbox with TAN-gated change requests, card authorizations and fraud cases"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize infrastructure
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	engineConfig := config.LoadEngineConfig()

	personStore := store.NewPostgresPersonStore(db)

	var locker lock.Locker
	if redisClient != nil {
		locker = lock.NewRedisLocker(redisClient)
	} else {
		locker = lock.NewLocalLocker()
	}

	dispatcher := webhook.NewHTTPDispatcher(engineConfig.WebhookEndpoint, engineConfig.WebhookSecret)

	// Initialize services
	authService := services.NewAuthService(db)
	if clientID := os.Getenv("SANDBOX_CLIENT_ID"); clientID != "" {
		if err := authService.RegisterClient(clientID, os.Getenv("SANDBOX_CLIENT_SECRET")); err != nil {
			log.Printf("Warning: failed to register sandbox client: %v", err)
		}
	}

	settlementService := services.NewSettlementService()
	reservationService := services.NewReservationService(personStore, locker, dispatcher, engineConfig)
	scaService := services.NewSCAService(personStore, locker, dispatcher, engineConfig)
	changeRequestService := services.NewChangeRequestService(personStore, locker, dispatcher, settlementService, engineConfig)

	watchdog, err := services.NewFraudWatchdog(personStore, locker, dispatcher, engineConfig)
	if err != nil {
		log.Fatalf("Failed to initialize fraud watchdog: %v", err)
	}
	if err := watchdog.Recover(context.Background()); err != nil {
		log.Printf("Warning: fraud case recovery scan failed: %v", err)
	}

	authorizationHandler := handlers.NewAuthorizationHandler(reservationService, scaService)
	changeRequestHandler := handlers.NewChangeRequestHandler(changeRequestService)
	fraudCaseHandler := handlers.NewFraudCaseHandler(watchdog)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/oauth/token", authService.Token)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			// Change requests
			r.Post("/persons/{personId}/change_requests", changeRequestHandler.Create)
			r.Post("/change_requests/{id}/authorize", changeRequestHandler.Authorize)
			r.Post("/change_requests/{id}/confirm", changeRequestHandler.Confirm)
			r.Get("/change_requests/{id}/qr", changeRequestHandler.QR)

			// Card authorizations
			r.Post("/persons/{personId}/accounts/{accountId}/authorizations", authorizationHandler.CreateReservation)
			r.Post("/persons/{personId}/accounts/{accountId}/authorizations/sca", authorizationHandler.RequestSCAChallenge)
			r.Post("/persons/{personId}/accounts/{accountId}/authorizations/{reservationId}", authorizationHandler.UpdateReservation)
			r.Patch("/persons/{personId}/accounts/{accountId}/authorizations/{reservationId}", authorizationHandler.UpdateReservation)
			r.Post("/persons/{personId}/accounts/{accountId}/credit_presentments", authorizationHandler.CreditPresentment)

			// Fraud cases
			r.Post("/persons/{personId}/fraud_cases", fraudCaseHandler.Report)
			r.Post("/persons/{personId}/fraud_cases/{id}/whitelist", fraudCaseHandler.Whitelist)
			r.Post("/persons/{personId}/fraud_cases/{id}/confirm", fraudCaseHandler.Confirm)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

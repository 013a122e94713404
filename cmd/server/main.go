package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/RationemOpum/opum-ledger/docs"
	"github.com/RationemOpum/opum-ledger/internal/database"
	mW "github.com/RationemOpum/opum-ledger/internal/middleware"
	"github.com/RationemOpum/opum-ledger/internal/services"
)

// @title Opum Ledger API
// @version 1.0
// @description Double-entry bookkeeping service with ledgers, hierarchical accounts, commodities and balanced transactions
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("server.port", "SERVER_PORT")

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

	viper.BindEnv("auth.rw_api_key", "AUTH_RW_API_KEY")
	viper.BindEnv("auth.ro_api_key", "AUTH_RO_API_KEY")

	viper.BindEnv("ratelimit.requests", "RATELIMIT_REQUESTS")
	viper.BindEnv("ratelimit.window", "RATELIMIT_WINDOW")

	viper.SetDefault("auth.rw_api_key", "secret")
	viper.SetDefault("auth.ro_api_key", "")
	viper.SetDefault("ratelimit.requests", 0) // disabled by default
	viper.SetDefault("ratelimit.window", time.Minute)

	if err := viper.ReadInConfig(); err != nil {
		logger.Info("Config file not found, using defaults", zap.Error(err))
	}

	db, err := database.InitDB()
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerService := services.NewLedgerService(db)
	accountService := services.NewAccountService(db)
	commodityService := services.NewCommodityService(db)
	transactionService := services.NewTransactionService(db)

	apiKeys := mW.APIKeys{
		ReadWrite: viper.GetString("auth.rw_api_key"),
		ReadOnly:  viper.GetString("auth.ro_api_key"),
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(mW.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(mW.RateLimit(redisClient,
		viper.GetInt("ratelimit.requests"),
		viper.GetDuration("ratelimit.window")))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-Match", "X-API-Key"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.APIKeyAuth(apiKeys))

		// Read endpoints (reader or writer key)
		r.Get("/ledgers", ledgerService.ListLedgers)
		r.Get("/ledgers/{ledger_id}", ledgerService.GetLedger)

		r.Get("/accounts/tree/{ledger_id}", accountService.GetAccountsTree)
		r.Get("/accounts/{ledger_id}", accountService.ListAccounts)
		r.Get("/accounts/{ledger_id}/{account_id}", accountService.GetAccount)
		r.Get("/accounts/{ledger_id}/{account_id}/balance", accountService.GetAccountBalance)

		r.Get("/commodities/{ledger_id}", commodityService.ListCommodities)
		r.Get("/commodities/{ledger_id}/{commodity_id}", commodityService.GetCommodity)

		r.Get("/transactions/{ledger_id}", transactionService.ListTransactions)
		r.Get("/transactions/{ledger_id}/{transaction_id}", transactionService.GetTransaction)

		// Mutations (writer key required)
		r.Group(func(r chi.Router) {
			r.Use(mW.RequireWriter)

			r.Post("/ledgers", ledgerService.CreateLedger)
			r.Put("/ledgers/{ledger_id}", ledgerService.UpdateLedger)
			r.Delete("/ledgers/{ledger_id}", ledgerService.DeleteLedger)

			r.Post("/accounts/{ledger_id}", accountService.CreateAccount)
			r.Put("/accounts/{ledger_id}/{account_id}", accountService.UpdateAccount)
			r.Delete("/accounts/{ledger_id}/{account_id}", accountService.DeleteAccount)

			r.Post("/commodities/{ledger_id}", commodityService.CreateCommodity)
			r.Put("/commodities/{ledger_id}/{commodity_id}", commodityService.UpdateCommodity)
			r.Delete("/commodities/{ledger_id}/{commodity_id}", commodityService.DeleteCommodity)

			r.Post("/transactions/{ledger_id}", transactionService.CreateTransaction)
			r.Put("/transactions/{ledger_id}/{transaction_id}", transactionService.UpdateTransaction)
			r.Delete("/transactions/{ledger_id}/{transaction_id}", transactionService.DeleteTransaction)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = viper.GetString("server.port")
	}
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("Server starting", zap.String("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

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

	"github.com/otomarket/backend/docs"
	"github.com/otomarket/backend/internal/audit"
	"github.com/otomarket/backend/internal/database"
	mW "github.com/otomarket/backend/internal/middleware"
	"github.com/otomarket/backend/internal/services"
)

// @title Oto Market Backend API
// @version 1.0
// @description Storefront and credit ledger API for the auto parts shop
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

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

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.BindEnv("server.public_url", "SERVER_PUBLIC_URL")
	viper.BindEnv("orders.shipping_cost", "ORDERS_SHIPPING_COST")
	viper.BindEnv("orders.free_shipping_threshold", "ORDERS_FREE_SHIPPING_THRESHOLD")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("server.public_url", "http://localhost:8080")
	viper.SetDefault("orders.shipping_cost", 4999)
	viper.SetDefault("orders.free_shipping_threshold", 50000)

	docs.SwaggerInfo.Title = "Oto Market Backend API"
	docs.SwaggerInfo.Description = "Storefront and credit ledger API for the auto parts shop"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.MustConnect()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	auditLogger := audit.NewLogger(redisClient)
	defer auditLogger.Close()

	ledgerService := services.NewCreditLedgerService(db)
	accountService := services.NewAccountService(db, auditLogger)
	transactionService := services.NewTransactionService(db, ledgerService, auditLogger)
	saleService := services.NewSaleService(db, ledgerService, auditLogger)
	catalogService := services.NewCatalogService(db, auditLogger)
	orderService := services.NewOrderService(db, auditLogger)
	dashboardService := services.NewDashboardService(db)
	authService := services.NewAuthService(db, redisClient, auditLogger)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Public storefront endpoints
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/categories", catalogService.ListCategories)
		r.Get("/products", catalogService.ListProducts)
		r.Get("/products/{id}", catalogService.GetProduct)
		r.Post("/orders", orderService.CreateOrder)

		// Back-office endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/me", authService.Me)

			r.Get("/admin/dashboard", dashboardService.GetStats)

			r.Get("/admin/orders", orderService.ListOrders)
			r.Get("/admin/orders/{id}", orderService.GetOrder)
			r.Put("/admin/orders/{id}/status", orderService.UpdateOrderStatus)
			r.Get("/admin/orders/{id}/qr", orderService.OrderTrackingQR)

			r.Post("/admin/categories", catalogService.CreateCategory)
			r.Put("/admin/categories/{id}", catalogService.UpdateCategory)
			r.Post("/admin/products", catalogService.CreateProduct)
			r.Put("/admin/products/{id}", catalogService.UpdateProduct)
			r.Delete("/admin/products/{id}", catalogService.DeleteProduct)
			r.Put("/admin/products/{id}/stock", catalogService.AdjustStock)

			r.Get("/admin/technical-services", accountService.ListAccounts)
			r.Post("/admin/technical-services", accountService.CreateAccount)
			r.Get("/admin/technical-services/{id}", accountService.GetAccount)
			r.Put("/admin/technical-services/{id}", accountService.UpdateAccount)
			r.Delete("/admin/technical-services/{id}", accountService.DeleteAccount)
			r.Get("/admin/technical-services/{id}/history", accountService.GetHistory)

			r.Get("/admin/technical-services/{id}/transactions", transactionService.ListTransactions)
			r.Post("/admin/technical-services/{id}/transactions", transactionService.RecordTransaction)
			r.Get("/admin/technical-services/{id}/sales", saleService.ListSales)
			r.Post("/admin/technical-services/{id}/sales", saleService.RecordSale)
		})
	})

	port := os.Getenv("PORT")
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

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

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

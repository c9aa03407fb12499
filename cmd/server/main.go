package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mverih/tezga/internal/config"
	"github.com/mverih/tezga/internal/currency"
	"github.com/mverih/tezga/internal/es"
	"github.com/mverih/tezga/internal/filestore"
	"github.com/mverih/tezga/internal/handlers"
	"github.com/mverih/tezga/internal/lifecycle"
	"github.com/mverih/tezga/internal/logging"
	"github.com/mverih/tezga/internal/middleware/auth"
	"github.com/mverih/tezga/internal/mykafka"
	httpserver "github.com/mverih/tezga/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	var producer *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatalf("es init error: %v", err)
	}

	var redisClient *redis.Client
	if configuration.REDIS_ADDR != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: configuration.REDIS_ADDR})
	}

	files, err := filestore.NewDisk(configuration.UPLOAD_DIR)
	if err != nil {
		log.Fatalf("upload dir error: %v", err)
	}

	rates := &currency.CachedSource{
		Source: &currency.HTTPSource{BaseURL: configuration.RATE_API_URL},
		Redis:  redisClient,
		TTL:    time.Hour,
	}
	countries := &currency.CountriesClient{
		BaseURL: "https://restcountries.com",
		Redis:   redisClient,
		TTL:     24 * time.Hour,
	}

	manager := &lifecycle.Manager{DB: db}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), middleware.CORS())
	e.Use(logging.Middleware(logger))

	const productIndex = "products"

	deps := httpserver.Deps{
		DB:   db,
		Auth: &auth.Middleware{DB: db, JWTSecret: jwtSecret},
		AuthHandler: &handlers.AuthHandler{
			DB: db, JWTSecret: jwtSecret, Producer: producer,
		},
		ProductHandler: &handlers.ProductHandler{
			DB: db, Producer: producer, Files: files, ES: esClient, ESIndex: productIndex,
		},
		CategoryHandler: &handlers.CategoryHandler{DB: db, Producer: producer},
		OrderHandler: &handlers.OrderHandler{
			DB: db, Producer: producer, Lifecycle: manager,
		},
		AdminHandler: &handlers.AdminHandler{DB: db, Producer: producer},
		ModeratorHandler: &handlers.ModeratorHandler{
			DB: db, Producer: producer, ES: esClient, ESIndex: productIndex,
		},
		CurrencyHandler: &handlers.CurrencyHandler{Rates: rates, Countries: countries},
		UploadDir:       configuration.UPLOAD_DIR,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}

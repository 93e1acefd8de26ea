package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-blog/pkg/simpleblog/api"
	"github.com/tendant/simple-blog/pkg/simpleblog/config"
	"github.com/tendant/simple-blog/pkg/simpleblog/metrics"
	"github.com/tendant/simple-blog/pkg/simpleblog/ratelimit"
)

// ServerEnv holds the bootstrap knobs read before the config package takes
// over. Everything else (DATABASE_URL, STORAGE_URL, ...) is parsed by
// config.WithEnv.
type ServerEnv struct {
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"60s"`
}

func main() {
	var env ServerEnv
	if err := cleanenv.ReadEnv(&env); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv(""))
	if err != nil {
		log.Fatalf("Failed to load server configuration: %v", err)
	}

	components, err := serverConfig.Build(logger)
	if err != nil {
		log.Fatalf("Failed to build service: %v", err)
	}

	production := serverConfig.Environment == "production"
	limiter := ratelimit.NewFixedWindow()
	collector := metrics.NewCollector("simple_blog")

	blogHandler := api.NewBlogHandler(components.Service,
		api.WithLogger(logger),
		api.WithProduction(production),
	)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(api.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(env.RequestTimeout))
	r.Use(collector.Middleware)

	// CORS for development.
	if !production {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", "X-Request-ID"},
		}))
	}

	r.With(api.RateLimit(limiter, ratelimit.TierHealth, logger, production)).
		Get("/health", blogHandler.Health)
	r.Handle("/metrics", collector.Handler())

	r.Mount("/blogs", blogHandler.Routes(serverConfig.APIKey, limiter))

	// Signed blob reads exist only on backends without native presigning.
	if components.HMACSigner != nil {
		blobHandler := api.NewBlobHandler(components.BlobStore, components.HMACSigner,
			api.WithLogger(logger),
			api.WithProduction(production),
		)
		r.Mount("/blobs", blobHandler.Routes())
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: r,
	}

	go func() {
		log.Printf("Simple Blog Server starting on port %s (env: %s, storage: %s, database: %s)",
			serverConfig.Port, serverConfig.Environment, serverConfig.StorageType, serverConfig.DatabaseType)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

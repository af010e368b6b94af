package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"gorm.io/gorm/logger"

	"real-estate-cms/internal/cleanup"
	"real-estate-cms/internal/config"
	"real-estate-cms/internal/database"
	"real-estate-cms/internal/handlers"
	"real-estate-cms/internal/lifecycle"
	"real-estate-cms/internal/ratelimit"
	"real-estate-cms/internal/scheduler"
	"real-estate-cms/internal/search"
)

// store is what every database backend provides
type store interface {
	lifecycle.Store
	handlers.ListingRepository
	cleanup.Repository
	InitSchema() error
	Close() error
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	configPath := getEnv("CONFIG_PATH", "/app/config/config.yaml")
	appConfig, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config from %s: %v, using defaults\n", configPath, err)
		appConfig = config.DefaultConfig()
	}
	appConfig.ApplyEnv()

	log := newLogger(os.Stdout, appConfig.Logging)
	slog.SetDefault(log)
	log.Info("configuration loaded", "path", configPath, "database", appConfig.Database.Type)

	db, err := openStore(appConfig, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	svc := lifecycle.NewService(db, lifecycle.WithLogger(log))

	var index handlers.SearchIndex
	if appConfig.Search.Meilisearch.Enabled {
		searchClient := search.NewSearchClient(appConfig.Search.Meilisearch.Host, appConfig.Search.Meilisearch.APIKey)
		if err := searchClient.InitIndex(); err != nil {
			log.Warn("failed to initialize search index", "error", err)
		}
		index = searchClient
	}

	rateLimiter := ratelimit.NewRateLimiter(
		appConfig.RateLimit.RequestsPerMinute,
		appConfig.RateLimit.RequestsPerHour,
		appConfig.RateLimit.Enabled,
	)
	log.Info("rate limiter initialized",
		"per_minute", appConfig.RateLimit.RequestsPerMinute,
		"per_hour", appConfig.RateLimit.RequestsPerHour,
		"enabled", appConfig.RateLimit.Enabled)

	var remover cleanup.IndexRemover
	if index != nil {
		remover = index
	}
	cleanupService := cleanup.NewService(db, svc, remover, log)
	cleanupDefaults := cleanup.CleanupConfig{
		RetentionDays:    appConfig.Cleanup.RetentionDays,
		MaxDeletionCount: appConfig.Cleanup.MaxDeletionCount,
		DryRun:           appConfig.Cleanup.DryRun,
	}

	appScheduler := scheduler.NewScheduler(cleanupService, rateLimiter, appConfig.Cleanup, log)
	if err := appScheduler.Start(); err != nil {
		log.Warn("failed to start scheduler", "error", err)
	}
	defer appScheduler.Stop()

	if appConfig.Logging.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := handlers.NewEngine(appConfig.Server.TrustedProxies)
	if err != nil {
		log.Error("failed to create router", "error", err)
		os.Exit(1)
	}
	r.Use(gin.Recovery(), handlers.RequestID())
	if appConfig.Logging.LogRequests {
		r.Use(handlers.RequestLogger(log))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     appConfig.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
	}))

	var publicLimiter *ratelimit.RateLimiter
	if appConfig.RateLimit.Enabled {
		publicLimiter = rateLimiter
	}
	handlers.RegisterRoutes(r,
		handlers.NewListingHandler(db, svc, index, log),
		handlers.NewAdminHandler(db, cleanupService, cleanupDefaults, index, publicLimiter, log),
		publicLimiter,
	)

	srv := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", appConfig.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
}

// openStore connects the configured database backend
func openStore(cfg *config.Config, log *slog.Logger) (store, error) {
	gormLevel := logger.Warn
	if cfg.Logging.SlogLevel() == slog.LevelDebug {
		gormLevel = logger.Info
	}

	switch cfg.Database.Type {
	case "mysql":
		log.Info("using MySQL with GORM")
		m := cfg.Database.MySQL
		return database.NewGormDB(
			database.MySQLDialector(m.Host, strconv.Itoa(m.Port), m.User, m.Password, m.Database),
			gormLevel,
		)
	case "postgres":
		p := cfg.Database.Postgres
		if p.UseGorm {
			log.Info("using PostgreSQL with GORM")
			return database.NewGormDB(
				database.PostgresDialector(p.Host, strconv.Itoa(p.Port), p.User, p.Password, p.Database, p.SSLMode),
				gormLevel,
			)
		}
		log.Info("using PostgreSQL")
		return database.NewDB(p.Host, strconv.Itoa(p.Port), p.User, p.Password, p.Database, p.SSLMode)
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		return database.NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Database.Type)
	}
}

// newLogger builds the process logger: colored text for terminals, JSON otherwise
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := cfg.SlogLevel()
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
	}))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ignisight/attendance-server/internal/attendance"
	"github.com/Ignisight/attendance-server/internal/config"
	"github.com/Ignisight/attendance-server/internal/handler"
	"github.com/Ignisight/attendance-server/internal/httpmiddleware"
	"github.com/Ignisight/attendance-server/internal/logger"
	"github.com/Ignisight/attendance-server/internal/store"
	"github.com/Ignisight/attendance-server/internal/users"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("invalid timezone, using UTC", zap.String("timezone", cfg.Timezone))
		loc = time.UTC
	}

	att := attendance.NewService(st, attendance.Config{
		AllowedDomain:         cfg.AllowedDomain,
		SessionDuration:       cfg.SessionDuration,
		GeofenceRadiusM:       cfg.GeofenceRadiusM,
		Policy:                cfg.SessionPolicy,
		AllowSupersededSubmit: cfg.AllowSupersededSubmit,
		RetentionAge:          cfg.RetentionAge,
		Location:              loc,
	}, log, nil)
	accounts := users.NewService(st, log, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stale data from a previous run must not linger: purge before
	// the listener starts.
	if _, err := att.RetentionSweep(ctx, time.Now()); err != nil {
		return err
	}
	sweeper := attendance.NewSweeper(att, log, cfg.ExpirySweepInterval, cfg.RetentionInterval)
	go sweeper.Run(ctx)

	var redisClient *store.Redis
	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		limiter = httpmiddleware.NewRedisFixedWindow(redisClient.Client, cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(limiter.GinMiddleware())

	r.LoadHTMLGlob(cfg.TemplateGlob)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handler.New(att, accounts, cfg, log, redisClient)
	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("store", cfg.StoreBackend),
			zap.String("policy", cfg.SessionPolicy))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

func openStore(cfg config.App) (store.Store, error) {
	if cfg.StoreBackend == "postgres" {
		return store.OpenPostgres(cfg.DatabaseURL)
	}
	return store.OpenFile(cfg.DataFile)
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"geoattend/internal/attendance"
	"geoattend/internal/audit"
	"geoattend/internal/auth"
	"geoattend/internal/config"
	"geoattend/internal/enrollment"
	"geoattend/internal/handler"
	"geoattend/internal/httpmiddleware"
	"geoattend/internal/logging"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
	"geoattend/internal/report"
	"geoattend/internal/shift"
	"geoattend/internal/store"
	"geoattend/internal/user"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	userRepo := user.NewPostgresRepository(db.Client)
	users := user.NewService(userRepo)
	if err := bootstrapAdmin(ctx, users, logger); err != nil {
		return err
	}

	events := audit.NewPostgresRepository(db.Client)
	sink, closeSink, err := newSink(cfg, events, redisClient, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	loc := cfg.Office.Location
	records := attendance.NewRepository(db.Client)
	shifts := shift.NewRegistry(shift.NewPostgresRepository(db.Client))
	att := attendance.NewService(records, shifts, cfg.Office.Fence(), sink,
		attendance.WithLocation(loc),
		attendance.WithMetrics(m),
		attendance.WithLogger(logger.Named("attendance")),
	)

	h := handler.New(handler.Deps{
		Users:      users,
		Attendance: att,
		Shifts:     shifts,
		Enrollment: enrollment.NewPolicy(loc, time.Now),
		Reports:    report.NewService(users, records),
		Events:     events,
		Tokens:     auth.NewManager(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL),
		Location:   loc,
		Logger:     logger.Named("http"),
	})

	var limiter httpmiddleware.Limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.RateLimit(limiter, logger.Named("ratelimit")))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})
	h.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("office_tz", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// newSink picks where security events go. Queue mode with the in-memory
// backend would have no consumer, so it records synchronously instead.
func newSink(cfg config.App, events audit.Repository, rdb *store.Redis, logger *zap.Logger) (audit.Sink, func(), error) {
	storeSink := audit.NewStoreSink(events, logger.Named("audit"))
	if cfg.AuditMode != "queue" {
		return storeSink, func() {}, nil
	}
	if cfg.QueueBackend == "memory" {
		logger.Warn("AUDIT_MODE=queue needs a redis or kafka backend, recording synchronously")
		return storeSink, func() {}, nil
	}
	q, closeQ, err := queue.Open(queue.Options{
		Backend:      cfg.QueueBackend,
		Redis:        rdb.Client,
		RedisKey:     audit.QueueKey,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	}, logger.Named("queue"))
	if err != nil {
		return nil, nil, err
	}
	return audit.NewQueueSink(q, logger.Named("audit")), closeQ, nil
}

// bootstrapAdmin creates the first admin from ADMIN_USERNAME/ADMIN_PASSWORD
// when set. Admins cannot self-register.
func bootstrapAdmin(ctx context.Context, users *user.Service, logger *zap.Logger) error {
	username, password := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}
	_, err := users.Register(ctx, user.RegisterInput{Username: username, Password: password, Role: user.RoleAdmin})
	switch {
	case errors.Is(err, user.ErrUsernameTaken):
		return nil
	case err != nil:
		return err
	}
	logger.Info("admin account created", zap.String("username", username))
	return nil
}

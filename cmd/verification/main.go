package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/questmap/treasure-hunt/internal/decision"
	"github.com/questmap/treasure-hunt/internal/fraud"
	"github.com/questmap/treasure-hunt/internal/oracle"
	"github.com/questmap/treasure-hunt/internal/submissions"
	"github.com/questmap/treasure-hunt/internal/verification"
	"github.com/questmap/treasure-hunt/migrations"
	"github.com/questmap/treasure-hunt/pkg/common"
	"github.com/questmap/treasure-hunt/pkg/config"
	"github.com/questmap/treasure-hunt/pkg/database"
	"github.com/questmap/treasure-hunt/pkg/health"
	"github.com/questmap/treasure-hunt/pkg/logger"
	"github.com/questmap/treasure-hunt/pkg/metrics"
	"github.com/questmap/treasure-hunt/pkg/middleware"
	"github.com/questmap/treasure-hunt/pkg/ratelimit"
	"github.com/questmap/treasure-hunt/pkg/redis"
	"github.com/questmap/treasure-hunt/pkg/storage"
)

const serviceName = "verification"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Pool for the request path, plus a database/sql handle for migrations
	// and the decision audit repository.
	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to open database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	proofStorage, err := storage.NewS3Storage(context.Background(), storage.Config{
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		BaseURL:       cfg.Storage.BaseURL,
		MaxFileSizeMB: cfg.Storage.MaxFileSizeMB,
	})
	if err != nil {
		logger.Fatal("Failed to initialize proof storage", zap.Error(err))
	}

	// Domain wiring.
	submissionRepo := submissions.NewRepository(pool)
	decisionRepo := decision.NewRepository(sqlDB)
	oracleClient := oracle.NewClient(cfg.Oracle)
	recorder := metrics.NewRedisRecorder(redisClient)

	thresholds := decision.NewThresholds(cfg.Decision.AutoApproveThreshold, cfg.Decision.AutoRejectThreshold)
	policy := decision.NewPolicy(thresholds)

	fraudEngine := fraud.NewEngine(fraud.Config{
		WalkingSpeedMPS:         cfg.Fraud.WalkingSpeedMPS,
		DrivingSpeedMPS:         cfg.Fraud.DrivingSpeedMPS,
		FlightSpeedMPS:          cfg.Fraud.FlightSpeedMPS,
		DailySubmissionCap:      cfg.Fraud.DailySubmissionCap,
		MinIntervalSeconds:      cfg.Fraud.MinIntervalSeconds,
		ProofTypeDominanceRatio: fraud.DefaultConfig().ProofTypeDominanceRatio,
		MinHistoryForDominance:  fraud.DefaultConfig().MinHistoryForDominance,
		MinAvgCompletionSeconds: fraud.DefaultConfig().MinAvgCompletionSeconds,
	})

	preValidator := submissions.NewPreValidator(submissions.DefaultPreValidatorConfig())

	service := verification.NewService(
		submissionRepo,
		oracleClient,
		decisionRepo,
		policy,
		fraudEngine,
		preValidator,
		recorder,
	)
	handler := verification.NewHandler(service, proofStorage, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tuning.Enabled {
		tuner := decision.NewTuner(thresholds, decisionRepo, cfg.Tuning)
		go tuner.Run(ctx)
		logger.Info("threshold tuner started",
			zap.Int("interval_minutes", cfg.Tuning.IntervalMinutes),
			zap.Int("window_hours", cfg.Tuning.WindowHours))
	}

	router := buildRouter(cfg, redisClient, pool, handler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("verification service starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildRouter(cfg *config.Config, redisClient *redis.Client, pool *pgxpool.Pool, handler *verification.Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, "1.0.0", map[string]func() error{
		"database": health.DatabaseChecker(pool),
		"redis":    health.RedisChecker(redisClient.Client),
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1/verification")
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	if cfg.RateLimit.Enabled {
		api.Use(ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit).Middleware())
	}
	handler.RegisterRoutes(api)

	return router
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"gitlab.com/omj-2025.net/internal/adapter/ai"
	"gitlab.com/omj-2025.net/internal/adapter/crypto"
	"gitlab.com/omj-2025.net/internal/adapter/logging"
	memcounter "gitlab.com/omj-2025.net/internal/adapter/memory/counterport"
	"gitlab.com/omj-2025.net/internal/adapter/postgres/submissionrepository"
	"gitlab.com/omj-2025.net/internal/adapter/postgres/userrepository"
	rediscounter "gitlab.com/omj-2025.net/internal/adapter/redis/counterport"
	"gitlab.com/omj-2025.net/internal/adapter/storage"
	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	auth2 "gitlab.com/omj-2025.net/internal/core/services/auth"
	"gitlab.com/omj-2025.net/internal/core/services/notify"
	"gitlab.com/omj-2025.net/internal/core/services/ratelimit"
	"gitlab.com/omj-2025.net/internal/core/services/submission"
	logger2 "gitlab.com/omj-2025.net/internal/global/logger"
	http2 "gitlab.com/omj-2025.net/internal/http"
)

func main() {
	InitReader()
	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	logger2.Info("Starting submission grading service")

	sysCfg := config.NewSystemConfig()

	logger := logger2.Logger
	if sysCfg.DebugMode {
		logger = logging.NewDevelopmentLogger()
	}

	db, err := setupDatabase(sysCfg.PostgresConfig)
	if err != nil {
		panic(err)
	}

	// SECONDARY PORTS
	var counters secondary.AdmissionCounters
	var redisClient *redis.Client
	if sysCfg.RateLimitConfig.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     sysCfg.RedisConfig.Url,
			Password: sysCfg.RedisConfig.Password,
			DB:       sysCfg.RedisConfig.DB,
		})
		counters = rediscounter.NewRedisCounters(redisClient, logger)
	} else {
		counters = memcounter.NewMemoryCounters()
	}

	taskStore, err := storage.NewTaskStore(sysCfg.StorageConfig, logger)
	if err != nil {
		panic(err)
	}
	uploadStore := storage.NewUploadStore(sysCfg.StorageConfig, logger)
	submissionRepo := submissionrepository.NewSubmissionRepository(db, logger)
	userPort := userrepository.New(db, logger)

	provider, err := ai.NewProvider(sysCfg.AIConfig, sysCfg.StorageConfig, logger)
	if err != nil {
		panic(err)
	}
	logger.Info("Grading provider ready", "provider", provider.Name())

	//primary ports
	jwtProvider := crypto.NewJWTService(sysCfg.JwtConfig)

	//services
	limiter := ratelimit.NewRateLimitService(counters, sysCfg.RateLimitConfig, logger)
	hub := notify.NewHub(logger)
	sweeperStop := make(chan struct{})
	hub.StartSweeper(sweeperStop, time.Minute)
	submissionSvc := submission.NewSubmissionService(
		submissionRepo, taskStore, provider, limiter, hub, logger,
		sysCfg.AIConfig.GradingTimeout,
	)
	ggAuth := auth2.NewGoogleAuthService(userPort, jwtProvider, sysCfg.RateLimitConfig, sysCfg.GGAuthConfig)
	localAuth := auth2.NewLocalAuthService(userPort, jwtProvider, sysCfg.RateLimitConfig)
	serviceProvider := http2.NewServiceProvider(submissionSvc, uploadStore, hub, jwtProvider, ggAuth, localAuth)

	//server
	port := serverPort()
	httServer := http2.NewServer(port, "omjGrader", *serviceProvider, sysCfg.UploadConfig, sysCfg.GGAuthConfig, logger)
	err = httServer.Init()
	if err != nil {
		panic(err)
	}
	httServer.Start(context.Background())

	<-quit
	logger.Info("Shutting down server...")

	close(sweeperStop)
	httServer.Stop()
	db.Close()
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("successfully shutdown server")
}

// setupDatabase sets up the PostgreSQL connection
func setupDatabase(cfg *config.PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Url)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func serverPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil || port <= 0 {
		return 8082
	}
	return port
}

func InitReader() {
	if len(os.Args) < 2 {
		// No environment argument: rely on the process environment
		_ = godotenv.Load()
		return
	}
	environment := os.Args[1]
	err := godotenv.Load(environment + ".env")
	if err != nil {
		log.Fatalf("Error loading %s.env file", environment)
	}
}

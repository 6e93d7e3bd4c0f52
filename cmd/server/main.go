package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	clubapi "github.com/openclub/clubd/api/echo"
	"github.com/openclub/clubd/cache"
	redisstore "github.com/openclub/clubd/cache/redis"
	"github.com/openclub/clubd/config"
	"github.com/openclub/clubd/internal/alert"
	"github.com/openclub/clubd/internal/auth"
	"github.com/openclub/clubd/middleware"
	"github.com/openclub/clubd/mongodb"
	"github.com/openclub/clubd/services"
	"github.com/openclub/clubd/token"
)

const keyPrefix = "clubd"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Logger
	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	if parseErr != nil {
		log.Warn().Str("configured", cfg.LogLevel).Msg("Invalid LOG_LEVEL, defaulting to info")
	}
	log.Info().Str("http_port", cfg.HTTPPort).Str("mongo_db", cfg.MongoDBName).Msg("Starting clubd server")

	if err := alert.Init(cfg.SentryDSN, "production"); err != nil {
		log.Error().Err(err).Msg("Failed to initialize alerting, continuing without it")
	}
	defer alert.Flush()

	// --- Initialize Dependencies ---
	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		log.Fatal().Err(initErr).Msg("Failed to initialize MongoDB connection")
	}
	defer mongodb.CloseMongoDB(ctx)
	db := mongodb.GetDB()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
		log.Fatal().Err(pingErr).Str("addr", cfg.RedisAddr).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Repositories
	memberRepo, err := mongodb.NewMemberRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MemberRepository")
	}
	blacklistRepo, err := mongodb.NewBlacklistRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BlacklistRepository")
	}
	lockRepo := mongodb.NewAccountLockRepository(db)
	sharedAccountRepo, err := mongodb.NewSharedAccountRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize SharedAccountRepository")
	}

	// Stores. Session entries live exactly as long as the refresh token.
	var sessions cache.SessionStore = redisstore.NewSessionStore(redisClient, keyPrefix, cfg.RefreshTokenTTL())
	var attempts cache.AttemptStore = redisstore.NewAttemptStore(redisClient, keyPrefix, cfg.IPAttemptMax, cfg.IPAttemptWindow())

	// Services
	hasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	notifier := alert.SentryNotifier{}
	codec := token.NewCodec(cfg.JWTSecretKey, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	lockoutService := services.NewLockoutService(lockRepo, notifier, cfg.LoginMaxFailures, cfg.LoginLockDuration())
	authService := services.NewAuthService(memberRepo, sessions, attempts, lockoutService, codec, hasher)
	memberService := services.NewMemberService(memberRepo, sessions, hasher)
	sharedAccountService := services.NewSharedAccountService(sharedAccountRepo)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sharedAccountService.StartSweeper(sweepCtx)

	// --- HTTP Server ---
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	ipGate := middleware.NewIPGate(blacklistRepo, attempts)
	authenticator := middleware.NewAuthenticator(codec, sessions)
	e.Use(ipGate.Gate, authenticator.Authenticate)

	api := clubapi.NewClubAPI(authService, memberService, lockoutService, sharedAccountService, blacklistRepo)
	api.RegisterRoutes(e)

	docGate := middleware.NewDocGate(memberRepo, attempts, notifier, hasher, cfg.DocAllowedIPs)
	docs := e.Group(cfg.DocPath, docGate.Gate)
	docs.Static("", "docs")

	go func() {
		if serveErr := e.Start(":" + cfg.HTTPPort); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Fatal().Err(serveErr).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

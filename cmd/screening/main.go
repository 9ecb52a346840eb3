package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/calebdris/venue-booking/internal/alerts"
	"github.com/calebdris/venue-booking/internal/audit"
	"github.com/calebdris/venue-booking/internal/booking"
	"github.com/calebdris/venue-booking/internal/risk"
	"github.com/calebdris/venue-booking/internal/watchlist"
	"github.com/calebdris/venue-booking/pkg/common"
	"github.com/calebdris/venue-booking/pkg/config"
	"github.com/calebdris/venue-booking/pkg/database"
	"github.com/calebdris/venue-booking/pkg/logger"
	"github.com/calebdris/venue-booking/pkg/middleware"
	"github.com/calebdris/venue-booking/pkg/redis"
	"github.com/calebdris/venue-booking/pkg/secrets"
	"github.com/calebdris/venue-booking/pkg/tracing"
)

const serviceName = "screening"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
		}); err != nil {
			logger.Warn("failed to initialize sentry", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, serviceName, &cfg.Tracing)
	if err != nil {
		logger.Warn("failed to initialize tracing", zap.Error(err))
	} else {
		defer shutdownTracing(context.Background())
	}

	resolveSecrets(ctx, cfg)

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("connected to postgres")

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, velocity tracking degraded", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info("connected to redis")
	}

	// Repositories
	auditRepo := audit.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	watchlistRepo := watchlist.NewRepository(db)
	riskRepo := risk.NewRepository(db, auditRepo)

	// Services
	watchlistService := watchlist.NewService(watchlistRepo)

	var slackNotifier alerts.SlackNotifier
	if slack := alerts.NewSlackClient(cfg.Slack.WebhookURL, cfg.Slack.Channel); slack != nil {
		slackNotifier = slack
	}
	dispatcher := alerts.NewService(slackNotifier, smsSender(cfg), cfg.Slack.SendLowRiskBookings)

	var velocity risk.VelocityCounter
	if redisClient != nil {
		velocity = redisClient
	}

	var geo risk.GeoResolver
	if len(cfg.Risk.GeoTable) > 0 {
		geo = risk.NewStaticGeoResolver(cfg.Risk.GeoTable)
	}

	analyzers := []risk.Analyzer{
		risk.NewEmailAnalyzer(),
		risk.NewPhoneAnalyzer(),
		risk.NewNameAnalyzer(),
		risk.NewIPAnalyzer(cfg.Risk.TorExitIPs, geo),
		risk.NewBehavioralAnalyzer(bookingRepo, velocity),
	}

	aggregator := risk.NewAggregator(risk.NewLLMAdvisor(cfg.LLM), cfg.Risk.AIScreeningEnabled)

	riskService := risk.NewService(&cfg.Risk, analyzers, aggregator,
		watchlistService, riskRepo, bookingRepo, auditRepo, dispatcher)

	riskHandler := risk.NewHandler(riskService)
	watchlistHandler := watchlist.NewHandler(watchlistService)

	router := buildRouter(cfg, db, riskHandler, watchlistHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("screening service starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildRouter(cfg *config.Config, db *pgxpool.Pool,
	riskHandler *risk.Handler, watchlistHandler *watchlist.Handler) *gin.Engine {

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.SecurityHeaders())

	if cfg.Sentry.Enabled {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, "1.0.0", map[string]func() error{
		"postgres": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		},
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(timeout.New(
		timeout.WithTimeout(25*time.Second),
		timeout.WithResponse(func(c *gin.Context) {
			common.ErrorResponse(c, http.StatusGatewayTimeout, "request timed out")
		}),
	))

	// Reviewer and admin surface
	riskGroup := api.Group("/risk", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireRole("admin", "reviewer"))
	riskHandler.RegisterRoutes(riskGroup)

	watchlistGroup := api.Group("/risk", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireRole("admin"))
	watchlistHandler.RegisterRoutes(watchlistGroup)

	// Service-to-service surface
	internal := api.Group("/internal")
	riskHandler.RegisterInternalRoutes(internal)

	return router
}

// resolveSecrets overrides sensitive config values from Vault when enabled.
// Environment variables remain the fallback for local development.
func resolveSecrets(ctx context.Context, cfg *config.Config) {
	if !cfg.Vault.Enabled {
		return
	}

	manager, err := secrets.NewManager(secrets.Config{
		Provider:     secrets.ProviderVault,
		AuditEnabled: true,
		Vault: secrets.VaultConfig{
			Address: cfg.Vault.Address,
			Token:   cfg.Vault.Token,
		},
	})
	if err != nil {
		logger.Warn("vault unavailable, using environment secrets", zap.Error(err))
		return
	}
	defer manager.Close()

	lookups := []struct {
		name   string
		typ    secrets.SecretType
		path   string
		target *string
	}{
		{"llm-api-key", secrets.SecretLLM, "screening/llm#api_key", &cfg.LLM.APIKey},
		{"slack-webhook", secrets.SecretSlack, "screening/slack#webhook_url", &cfg.Slack.WebhookURL},
		{"twilio-auth-token", secrets.SecretTwilio, "screening/twilio#auth_token", &cfg.Twilio.AuthToken},
		{"jwt-secret", secrets.SecretJWTKeys, "screening/jwt#secret", &cfg.JWT.Secret},
	}

	for _, l := range lookups {
		ref, err := secrets.ParseReference(l.name, l.typ, l.path)
		if err != nil {
			continue
		}
		if value, err := manager.GetString(ctx, ref); err == nil && value != "" {
			*l.target = value
		}
	}
}

func smsSender(cfg *config.Config) alerts.SMSSender {
	if !cfg.Twilio.Enabled {
		return nil
	}
	sender := alerts.NewTwilioSender(cfg.Twilio)
	if sender == nil {
		return nil
	}
	return sender
}

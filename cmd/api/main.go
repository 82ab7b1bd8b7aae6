package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/statelyrides/chauffeur/internal/bookings"
	"github.com/statelyrides/chauffeur/internal/calendar"
	"github.com/statelyrides/chauffeur/internal/directions"
	"github.com/statelyrides/chauffeur/internal/enhancements"
	"github.com/statelyrides/chauffeur/internal/notify"
	"github.com/statelyrides/chauffeur/internal/payments"
	"github.com/statelyrides/chauffeur/internal/quotes"
	"github.com/statelyrides/chauffeur/internal/rules"
	"github.com/statelyrides/chauffeur/pkg/cache"
	"github.com/statelyrides/chauffeur/pkg/common"
	"github.com/statelyrides/chauffeur/pkg/config"
	"github.com/statelyrides/chauffeur/pkg/database"
	"github.com/statelyrides/chauffeur/pkg/eventbus"
	"github.com/statelyrides/chauffeur/pkg/logger"
	"github.com/statelyrides/chauffeur/pkg/middleware"
	redisclient "github.com/statelyrides/chauffeur/pkg/redis"
)

const (
	serviceName = "chauffeur-api"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting chauffeur API",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	cacheManager := cache.NewManager(redisClient)
	logger.Info("Connected to redis")

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.Name = serviceName
		bus, err = eventbus.New(busCfg)
		if err != nil {
			logger.Warn("Failed to connect to NATS, continuing without events", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
			logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
		}
	}

	ruleService := rules.NewService(rules.NewRepository(db), cacheManager)
	calendarService := calendar.NewService(calendar.NewRepository(db), cacheManager)

	var primaryOracle directions.Oracle
	fallbackOracle := directions.NewHaversineOracle(cfg.Directions.AvgSpeedMph)
	if cfg.Directions.GoogleAPIKey != "" {
		primaryOracle = directions.NewGoogleOracle(&cfg.Directions)
	} else {
		logger.Warn("No routing API key configured; estimating routes from straight-line distance")
		primaryOracle = fallbackOracle
	}
	oracle := directions.NewService(primaryOracle, fallbackOracle)

	composer := quotes.NewComposer(
		ruleService,
		calendarService,
		oracle,
		enhancements.NewCalculator(enhancements.DefaultPriceBook()),
		&cfg.Pricing,
	)
	quoteRepo := quotes.NewRepository(db)
	quoteService := quotes.NewService(quoteRepo, composer, cacheManager, bus)

	var notifier bookings.Notifier
	var sms notify.SMSSender
	var email notify.EmailSender
	if cfg.Twilio.Enabled {
		sms = notify.NewSMSClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
	}
	if cfg.SMTP.Enabled {
		email = notify.NewEmailClient(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.FromEmail, cfg.SMTP.FromName)
	}
	if sms != nil || email != nil {
		notifier = notify.NewNotifier(sms, email)
	}

	var processor bookings.PaymentProcessor
	if cfg.Stripe.Enabled && cfg.Stripe.APIKey != "" {
		processor = payments.NewStripeProcessor(cfg.Stripe.APIKey)
		logger.Info("Stripe payment handoff enabled")
	}

	bookingService := bookings.NewService(
		bookings.NewRepository(db),
		quoteService,
		ruleService,
		notifier,
		processor,
		bus,
		&cfg.Policy,
	)

	quoteHandler := quotes.NewHandler(quoteService)
	bookingHandler := bookings.NewHandler(bookingService)
	calendarHandler := calendar.NewHandler(calendarService)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(serviceName))

	router.GET("/healthz", common.HealthCheck(serviceName, version))
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, map[string]func() error{
		"database": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.Ping(ctx)
		},
		"redis": func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Client.Ping(ctx).Err()
		},
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	quoteHandler.RegisterRoutes(v1)
	calendarHandler.RegisterRoutes(v1)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	bookingHandler.RegisterRoutes(authed)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

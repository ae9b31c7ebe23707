package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"crm-gateway/internal/common/cache"
	commonhttp "crm-gateway/internal/common/http"
	"crm-gateway/internal/common/logging"
	"crm-gateway/internal/config"
	"crm-gateway/internal/handlers"
	"crm-gateway/internal/middleware"
	"crm-gateway/internal/oauth2"
	"crm-gateway/internal/providers/airtable"
	"crm-gateway/internal/providers/leadingest"
	"crm-gateway/internal/providers/mailchimp"
	"crm-gateway/internal/providers/mautic"
	"crm-gateway/internal/ratelimit"
	"crm-gateway/internal/redis"
	"crm-gateway/internal/server"
)

func main() {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.InitGlobalLogger(cfg.LogLevel, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.MustSync()

	// Redis is optional. Without it the token cache and rate counters are
	// process local.
	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisClient, err = redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       redis.ParseDB(cfg.RedisDB),
		})
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis", logging.String("address", cfg.RedisAddress))
	}

	var tokenStore cache.Cache
	if redisClient != nil {
		tokenStore = cache.NewRedisCache(redisClient.Underlying(), "crm-gateway:")
	} else {
		tokenStore = cache.NewLocalCache(time.Hour, 10*time.Minute)
	}

	base := handlers.NewBase(cfg, logger)
	retry := base.RetryConfig()
	httpClient := commonhttp.NewHTTPClient()

	var airtableClient *airtable.Client
	if cfg.IsConfigured(config.ProviderAirtable) {
		airtableClient = airtable.NewClient(airtable.Config{
			APIKey:    cfg.AirtableAPIKey,
			BaseID:    cfg.AirtableBaseID,
			TableName: cfg.AirtableTableName,
		}, httpClient, retry, logger)
	}

	var mailchimpClient *mailchimp.Client
	if cfg.IsConfigured(config.ProviderMailchimp) {
		mailchimpClient = mailchimp.NewClient(mailchimp.Config{
			APIKey:       cfg.MailchimpAPIKey,
			ListID:       cfg.MailchimpListID,
			ServerPrefix: cfg.MailchimpServerPrefix,
		}, httpClient, retry, logger)
	}

	var mauticClient *mautic.Client
	var mauticTokens *oauth2.Manager
	if cfg.IsConfigured(config.ProviderMautic) {
		mauticTokens = oauth2.NewManager(oauth2.Config{
			TokenURL:     mautic.TokenURL(cfg.MauticBaseURL),
			ClientID:     cfg.MauticClientID,
			ClientSecret: cfg.MauticClientSecret,
		}, tokenStore, "mautic", httpClient, logger)
		mauticClient = mautic.NewClient(mautic.Config{
			BaseURL:    cfg.MauticBaseURL,
			CampaignID: cfg.MauticCampaignID,
		}, mauticTokens, httpClient, retry, logger)
	}

	var forwarder *leadingest.Client
	if cfg.IsConfigured(config.ProviderLeadIngest) {
		forwarder = leadingest.NewClient(cfg.LeadIngestURL, httpClient, retry, logger)
	}

	// Proactive token refresh keeps request paths off the token-fetch
	// latency. The sweep is harmless when the token is fresh.
	scheduler := cron.New()
	if mauticTokens != nil {
		if _, err := scheduler.AddFunc("@every 5m", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := mauticTokens.RefreshIfExpiring(ctx, 10*time.Minute); err != nil {
				logger.Warn("Token refresh sweep failed", logging.Err(err))
			}
		}); err != nil {
			log.Fatalf("Failed to schedule token refresh: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	limiter := ratelimit.NewLimiter(redisClient, &ratelimit.Config{
		DefaultLimit:  cfg.RateLimitRequests(),
		DefaultWindow: cfg.RateLimitDuration(),
		Enabled:       cfg.RateLimitEnabled,
	}, logger)

	router := mux.NewRouter()
	router.Use(middleware.CORS, middleware.Logging)

	router.Handle("/health", handlers.NewHealthHandler(base, redisClient)).Methods(http.MethodGet, http.MethodOptions)

	integrations := router.PathPrefix("/integrations").Subrouter()
	integrations.Handle("/airtable/sync", handlers.NewAirtableHandler(base, airtableClient))
	integrations.Handle("/mailchimp/sync", handlers.NewMailchimpHandler(base, mailchimpClient))
	integrations.Handle("/mautic/sync", handlers.NewMauticHandler(base, mauticClient))

	webhooks := router.PathPrefix("/webhooks").Subrouter()
	webhooks.Use(middleware.RateLimit(limiter))
	webhooks.Handle("/mautic", handlers.NewMauticWebhookHandler(base, forwarder))
	webhooks.Handle("/lead", handlers.NewLeadWebhookHandler(base, forwarder))

	srv := server.New(router, cfg.Port, cfg.TLSCert, cfg.TLSKey, logger)
	srv.Start()

	logger.Info("CRM gateway started",
		logging.String("port", cfg.Port),
		logging.Bool("redis", redisClient != nil),
		logging.Bool("airtable", airtableClient != nil),
		logging.Bool("mailchimp", mailchimpClient != nil),
		logging.Bool("mautic", mauticClient != nil),
		logging.Bool("lead_ingest", forwarder != nil),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/bakehouse-in/storefront/checkout"
	"github.com/bakehouse-in/storefront/clients"
	"github.com/bakehouse-in/storefront/config"
	"github.com/bakehouse-in/storefront/controllers"
	"github.com/bakehouse-in/storefront/gateway"
	"github.com/bakehouse-in/storefront/logger"
	"github.com/bakehouse-in/storefront/models"
	"github.com/bakehouse-in/storefront/routes"
	"github.com/bakehouse-in/storefront/session"
	"github.com/bakehouse-in/storefront/store"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Initialize(cfg.Env)
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Token persistence: redis when configured, in-memory otherwise.
	var tokenStore session.TokenStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.Fatal("failed to connect to redis", zap.Error(err))
		}
		tokenStore = session.NewRedisStore(redisClient, 2*cfg.TokenRefreshInterval)
		logger.Log.Info("using redis token store", zap.String("addr", cfg.RedisAddr))
	} else {
		tokenStore = session.NewMemoryStore()
	}

	provider := &session.StaticProvider{
		Identity: session.Principal{
			ID:    cfg.PrincipalID,
			Name:  cfg.PrincipalName,
			Email: cfg.PrincipalEmail,
			Phone: cfg.PrincipalPhone,
		},
		Bearer: cfg.IdentityToken,
	}

	manager := session.NewManager(provider, tokenStore, cfg.TokenRefreshInterval, logger.Log)
	manager.Acquire(ctx)
	go manager.Run(ctx)

	api := clients.NewAPIClient(cfg.APIBaseURL, cfg.RequestTimeout, manager, logger.Log)
	commerceStore := store.NewCommerceStore(api, manager, logger.Log)
	if err := commerceStore.Load(ctx); err != nil {
		logger.Log.Warn("initial commerce state load failed", zap.Error(err))
	}

	pricing := models.PricingRules{
		DeliveryCharge:        cfg.DeliveryCharge,
		FreeDeliveryThreshold: cfg.FreeDeliveryThreshold,
	}

	gw := gateway.NewCallbackGateway()
	orchestrator := checkout.NewOrchestrator(commerceStore, api, gw, manager, pricing, cfg.Currency, logger.Log)

	commerceController := controllers.NewCommerceController(commerceStore, pricing)
	checkoutController := controllers.NewCheckoutController(orchestrator, gw, cfg.ServiceablePincodes, cfg.GatewayKeyID, logger.Log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	routes.Register(r, commerceController, checkoutController)

	logger.Log.Info("storefront listening", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Log.Fatal("server error", zap.Error(err))
	}
}

// internal/app/components.go
package app

import (
	"context"
	"fmt"

	"rewardjar-service/internal/config"
	"rewardjar-service/internal/db"
	"rewardjar-service/internal/domain/wallet"
	"rewardjar-service/internal/pkg/apns"
	"rewardjar-service/internal/pkg/cooldown"
	"rewardjar-service/internal/pkg/walletpass/apple"
	"rewardjar-service/internal/pkg/walletpass/google"
	"rewardjar-service/internal/repository/postgres"
	cardsvc "rewardjar-service/internal/service/card"
	walletsvc "rewardjar-service/internal/service/wallet"
	"rewardjar-service/internal/websocket"
	wsHandlers "rewardjar-service/internal/websocket/handler"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Components is the service graph shared by the API server and walletctl.
type Components struct {
	Pool      *pgxpool.Pool
	Redis     redis.UniversalClient
	Hub       *websocket.Hub
	Relay     *websocket.Relay
	Wallet    *walletsvc.WalletService
	Cards     *cardsvc.CardService
	Processor *walletsvc.Processor
}

// BuildComponents connects to PostgreSQL and Redis, then assembles
// repositories and services. Platforms whose configuration is incomplete are
// left disabled. servesClients is set by processes that hold PWA connections.
func BuildComponents(ctx context.Context, cfg config.AppConfig, servesClients bool, logger *zap.Logger) (*Components, error) {
	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(db.PostgresConfig{URL: cfg.DatabaseURL, MaxConns: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	comp := &Components{Pool: pool}

	// ----- Redis -----
	var guard *cooldown.Guard
	client, err := db.Connect(db.RedisConfig{
		Addresses: cfg.RedisAddrs,
		Password:  cfg.RedisPass,
		PoolSize:  10,
	})
	if err != nil {
		// the cooldown guard fails open, so a missing Redis only disables it
		// and keeps PWA updates inside one process
		logger.Warn("redis unavailable, scan cooldown and pass update relay disabled", zap.Error(err))
	} else {
		comp.Redis = client
		comp.Relay = websocket.NewRelay(client, logger)
		guard = cooldown.NewGuard(client, cfg.Cooldown, logger)
		logger.Info("redis connected", zap.Strings("addrs", cfg.RedisAddrs))
	}

	// ----- Repositories -----
	dbWrapper := postgres.NewDB(pool)
	cardRepo := postgres.NewCardRepository(pool)
	passRepo := postgres.NewWalletPassRepository(pool)
	deviceRepo := postgres.NewWalletDeviceRepository(pool, dbWrapper)
	queueRepo := postgres.NewWalletQueueRepository(pool, dbWrapper)

	// ----- Platforms -----
	opts := walletsvc.Options{
		BaseURL:         cfg.BaseURL,
		MaxAttempts:     cfg.Queue.MaxAttempts,
		DefaultCurrency: cfg.DefaultCurrency,
		DefaultLocale:   cfg.DefaultLocale,
	}
	if cfg.Apple.AuthTokenSecret != "" {
		opts.Tokens = apple.NewAuthTokens(cfg.Apple.AuthTokenSecret)
	}
	if cfg.Apple.Enabled() {
		opts.Apple = apple.NewBuilder(apple.Config{
			PassTypeIdentifier: cfg.Apple.PassTypeIdentifier,
			TeamIdentifier:     cfg.Apple.TeamIdentifier,
			OrganizationName:   cfg.Apple.OrganizationName,
			WebServiceURL:      cfg.Apple.WebServiceURL,
		}, opts.Tokens)
	} else {
		logger.Info("apple wallet disabled: pass type or team identifier missing")
	}

	googleCfg := google.Config{
		IssuerID:            cfg.Google.IssuerID,
		ServiceAccountEmail: cfg.Google.ServiceAccountEmail,
		PrivateKey:          cfg.Google.PrivateKey,
		StampClassSuffix:    cfg.Google.StampClassSuffix,
		MembershipClass:     cfg.Google.MembershipClass,
		Origins:             cfg.Google.Origins,
	}
	if cfg.Google.Enabled() {
		opts.Google = google.NewBuilder(googleCfg)
	} else {
		logger.Info("google wallet disabled: issuer or service account missing")
	}

	walletService := walletsvc.NewWalletService(passRepo, deviceRepo, queueRepo, cardRepo, opts, logger)

	// ----- WebSocket Hub -----
	var verifier websocket.TokenVerifier
	if opts.Tokens != nil {
		verifier = opts.Tokens
	}
	hub := websocket.NewHub(verifier, logger)
	hub.RegisterHandler(wsHandlers.NewPassStateHandler(walletService))

	// ----- Deliverers -----
	deliverers := map[wallet.Platform]walletsvc.Deliverer{}
	pwa, claimPlatforms := pwaDelivery(comp.Relay, hub, servesClients, logger)
	if pwa != nil {
		deliverers[wallet.PlatformPWA] = pwa
	}
	if cfg.Apple.PushEnabled() {
		pusher, err := apns.NewClient(apns.Config{
			Host:     cfg.Apple.APNsHost,
			CertFile: cfg.Apple.CertFile,
			KeyFile:  cfg.Apple.KeyFile,
			Password: cfg.Apple.CertPassword,
			Timeout:  cfg.Queue.CallTimeout,
		})
		if err != nil {
			logger.Error("apns client unavailable, apple updates will be dead-lettered", zap.Error(err))
		} else {
			deliverers[wallet.PlatformApple] = walletsvc.NewAppleDeliverer(deviceRepo, pusher, logger)
		}
	}
	if opts.Google != nil {
		client, err := google.NewClient(ctx, googleCfg, cfg.Google.APIBaseURL, cfg.Queue.CallTimeout)
		if err != nil {
			logger.Error("google wallet client unavailable", zap.Error(err))
		} else {
			deliverers[wallet.PlatformGoogle] = walletsvc.NewGoogleDeliverer(walletService, client)
		}
	}

	processor := walletsvc.NewProcessor(walletService, deliverers, walletsvc.ProcessorConfig{
		BatchSize:   cfg.Queue.BatchSize,
		BaseBackoff: cfg.Queue.BaseBackoff,
		MaxBackoff:  cfg.Queue.MaxBackoff,
		ClaimTTL:    cfg.Queue.ClaimTTL,
		CallTimeout: cfg.Queue.CallTimeout,
		Platforms:   claimPlatforms,
	}, logger)

	comp.Hub = hub
	comp.Wallet = walletService
	comp.Processor = processor
	comp.Cards = cardsvc.NewCardService(cardRepo, passRepo, walletService, guard, logger)
	return comp, nil
}

// pwaDelivery picks how PWA updates leave this process. Without a relay only a
// process holding the connections can deliver them; any other process gets no
// deliverer and a claim filter that leaves PWA items pending.
func pwaDelivery(relay *websocket.Relay, hub *websocket.Hub, servesClients bool, logger *zap.Logger) (walletsvc.Deliverer, []wallet.Platform) {
	switch {
	case relay != nil:
		return walletsvc.NewPWADeliverer(relay, logger), nil
	case servesClients:
		return walletsvc.NewPWADeliverer(hub, logger), nil
	default:
		logger.Warn("pass update relay unavailable, pwa queue items left to the api server")
		return nil, []wallet.Platform{wallet.PlatformApple, wallet.PlatformGoogle}
	}
}

// Close releases the connection pools.
func (c *Components) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			zap.L().Warn("failed to close redis", zap.Error(err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rewardjar-service/internal/config"
	cardHandler "rewardjar-service/internal/handlers/card"
	walletHandler "rewardjar-service/internal/handlers/wallet"
	wsHandler "rewardjar-service/internal/handlers/websocket"
	"rewardjar-service/internal/middleware"
	"rewardjar-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg     config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	httpSrv *http.Server
	comp    *Components
	cancel  context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

// Start wires every component and blocks serving HTTP until Shutdown is
// called or the listener fails.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	s.logger = logger

	// ----- Services -----
	comp, err := BuildComponents(ctx, s.cfg, true, logger)
	if err != nil {
		return err
	}
	s.comp = comp

	// Start hub
	go comp.Hub.Run(ctx)
	if comp.Relay != nil {
		go comp.Relay.Run(ctx, comp.Hub)
	}

	// ----- Identity provider tokens -----
	verifier, err := jwt.LoadVerifier(s.cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Handlers -----
	handlers := &Handlers{
		CardHandler:    cardHandler.NewCardHandler(comp.Cards, comp.Wallet),
		PassKitHandler: walletHandler.NewPassKitHandler(comp.Wallet, logger),
		AdminHandler:   walletHandler.NewAdminHandler(comp.Wallet, comp.Processor),
		PWAHandler:     walletHandler.NewPWAHandler(comp.Wallet),
		WSHandler:      wsHandler.NewWebSocketHandler(comp.Hub, s.cfg.CORSOrigins, logger),
		AuthMiddleware: middleware.NewAuthMiddleware(verifier),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.CORSOrigins),
	)

	// ----- Router -----
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	s.httpSrv = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("server running",
		zap.String("addr", s.cfg.HTTPAddr),
		zap.Any("platforms", comp.Wallet.PlatformStatus()))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes websocket clients and releases
// the database and Redis pools.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.comp != nil {
		s.comp.Close()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return err
}

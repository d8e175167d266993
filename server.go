package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketplace/api/handlers"
	"marketplace/api/routes"
	"marketplace/config"
	"marketplace/db"
	"marketplace/logging"
	"marketplace/realtime"
	"marketplace/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	conf, err := config.LoadConfig(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logger, err := logging.New(conf.Logs.Level)
	if err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(conf, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(conf *config.ConfigSchema, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orm, err := db.ConnectDB(conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(orm); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()

	storage, err := services.NewLocalStorage(conf.Storage.RootDir)
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	broker, err := realtime.NewBroker(ctx, conf, hub)
	if err != nil {
		return err
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("failed to close channel layer", zap.Error(err))
		}
	}()

	messages := services.NewMessageService(orm)
	users := services.NewUserService(orm, services.NewTokenIssuer(conf.Auth.JWTSecret, conf.Auth.TokenTTL))
	h := &handlers.Handler{
		Users:      users,
		Categories: services.NewCategoryService(orm),
		Orders:     services.NewOrderService(orm, storage),
		Comments:   services.NewCommentService(orm),
		Chats:      services.NewChatService(orm),
		Messages:   messages,
		Gateway: realtime.NewGateway(hub, broker, messages, realtime.WithRejection(func(err error) bool {
			return errors.Is(err, services.ErrNotParticipant) || errors.Is(err, services.ErrNotFound)
		})),
		MaxUploadBytes: conf.Storage.MaxUploadMB << 20,
	}

	if conf.Logs.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    conf.ListenAddr(),
		Handler: routes.NewRouter(logger, h, users, storage.Root()),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server...", zap.String("addr", srv.Addr), zap.String("channel_layer", conf.ChannelLayer.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Backend.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// hijacked websocket connections are not tracked by Shutdown
	hub.Shutdown()
	return err
}

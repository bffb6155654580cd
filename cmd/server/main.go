// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/handlers"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/pool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("Shutdown complete.")
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	g := game.NewUnoGame(cfg.Rules, logger)
	grp, gctx := errgroup.WithContext(ctx)

	if cfg.DatabaseURL != "" {
		if err := database.ConnectDB(ctx, cfg.DatabaseURL, logger); err != nil {
			return err
		}
		defer database.Close()
		g.OnGameEnd = func(result game.Result) {
			rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := database.RecordGameResult(rctx, database.DB, result); err != nil {
				logger.WithError(err).Error("Failed to record game result.")
				return
			}
			logger.WithField("game", result.GameID).Info("Game result recorded.")
		}
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publisher := cache.NewPublisher(rdb, cfg.QueueName, 1024, logger)
		g.ActionSink = publisher.Enqueue
		grp.Go(func() error {
			return publisher.Run(gctx)
		})
	}

	workers, err := pool.New(gctx, cfg.Workers, logger)
	if err != nil {
		return err
	}
	gs := handlers.NewGameServer(g, logger, cfg.WriteTimeout)

	tcp := handlers.NewTCPGateway(gs, workers, cfg.IdleTimeout, logger)
	grp.Go(func() error {
		return tcp.ListenAndServe(gctx, cfg.TCPAddr)
	})

	if cfg.WSAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", middleware.LogMiddleware(logger)(
			handlers.GameWSHandler(logger, gs, workers, cfg.IdleTimeout),
		))
		srv := &http.Server{Addr: cfg.WSAddr, Handler: mux}
		grp.Go(func() error {
			logger.Infof("WebSocket gateway running on %s", cfg.WSAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		grp.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	// sessions close their connections once gctx is done, so the pool drains on its own
	grp.Go(func() error {
		<-gctx.Done()
		workers.Shutdown()
		return nil
	})

	return grp.Wait()
}

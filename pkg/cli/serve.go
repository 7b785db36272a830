package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/cli/config"
	controller "github.com/secmon-lab/threatlens/pkg/controller/http"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var (
		serverCfg    config.Server
		intelCfg     config.Intel
		feedCfg      config.Feed
		firestoreCfg config.Firestore
		slackCfg     config.Slack
		noFeed       bool
	)

	flags := joinFlags(
		serverCfg.Flags(),
		intelCfg.Flags(),
		feedCfg.Flags(),
		firestoreCfg.Flags(),
		slackCfg.Flags(),
		[]cli.Flag{
			&cli.BoolFlag{
				Name:        "no-feed",
				Usage:       "Disable the live threat feed",
				Category:    "Feed",
				Sources:     cli.EnvVars("THREATLENS_NO_FEED"),
				Destination: &noFeed,
			},
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Start HTTP server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting threatlens server",
				slog.Any("server", serverCfg),
				slog.Any("intel", intelCfg),
				slog.Any("feed", feedCfg),
				slog.Any("firestore", firestoreCfg),
				slog.Any("slack", slackCfg),
				slog.Bool("no_feed", noFeed),
			)

			client := intelCfg.NewClient()
			intelUC, err := intelCfg.Configure(ctx, client)
			if err != nil {
				return err
			}
			proxy := controller.NewProxyHandler(client, intelCfg.ProxyConfig())

			var feed *usecase.Feed
			var feedUC interfaces.Feed
			if !noFeed {
				f, closeFeed, err := configureFeed(ctx, intelUC, &feedCfg, &firestoreCfg, &slackCfg)
				if err != nil {
					return err
				}
				// Runs after stopFeed below, so the repository outlives Run
				defer closeFeed()
				feed, feedUC = f, f
			}

			server, err := controller.NewServer(
				ctx,
				serverCfg.Addr,
				proxy,
				intelUC,
				feedUC,
				serverCfg.Options()...,
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			stopFeed := startFeed(ctx, feed)
			defer stopFeed()

			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			stopFeed()
			logger.Info("Server shutdown complete")
			return nil
		},
	}
}

// configureFeed builds the live feed and returns a function releasing its
// repository
func configureFeed(
	ctx context.Context,
	intelUC *usecase.ThreatIntel,
	feedCfg *config.Feed,
	firestoreCfg *config.Firestore,
	slackCfg *config.Slack,
) (*usecase.Feed, func(), error) {
	if err := feedCfg.Validate(); err != nil {
		return nil, nil, err
	}

	notifier, err := slackCfg.Configure(ctx)
	if err != nil {
		return nil, nil, err
	}

	repo, err := firestoreCfg.Configure(ctx, feedCfg.Size)
	if err != nil {
		return nil, nil, err
	}
	closeRepo := func() {
		if err := repo.Close(); err != nil {
			ctxlog.From(ctx).Warn("Failed to close feed repository", slog.Any("error", err))
		}
	}

	var extra []usecase.FeedOption
	if notifier != nil {
		extra = append(extra, usecase.WithNotifier(notifier))
	}

	feed, err := usecase.NewFeed(intelUC, repo, feedCfg.Options(extra...)...)
	if err != nil {
		closeRepo()
		return nil, nil, goerr.Wrap(err, "failed to create live feed")
	}

	return feed, closeRepo, nil
}

// startFeed runs feed in a new goroutine. The returned function cancels it
// and waits until Run has returned; calling it again is a no-op. A nil feed
// starts nothing.
func startFeed(ctx context.Context, feed *usecase.Feed) func() {
	if feed == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- feed.Run(ctx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			if err := <-done; err != nil {
				ctxlog.From(ctx).Error("Live feed stopped with error", slog.Any("error", err))
			}
		})
	}
}

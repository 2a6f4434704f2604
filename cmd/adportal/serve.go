package main

import (
	"context"
	"time"

	"adportal/internal/bot"
	"adportal/internal/httpapi"
	"adportal/internal/quote"
	"adportal/internal/storage"
	stateredis "adportal/internal/storage/redis"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal API and, when a token is configured, the Telegram bot",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := connect(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if migrateOnStart {
		if err := storage.RunMigrations(ctx, d.storage.DB(), log); err != nil {
			return err
		}
	}

	var notifier httpapi.Notifier
	var tgBot *bot.Bot
	if cfg.Telegram.Token != "" {
		tgBot, err = bot.New(cfg, d.quotes, stateredis.New(d.redis, cfg.Redis.StateTTL), log)
		if err != nil {
			return err
		}
		notifier = tgBot
	} else {
		log.Info("Telegram bot disabled - no token configured")
	}

	server := httpapi.New(cfg.HTTP, d.quotes, d.storage, notifier, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	if tgBot != nil {
		g.Go(func() error {
			return tgBot.Start(gctx)
		})
	}
	if cfg.Backend.SyncInterval > 0 {
		g.Go(func() error {
			syncLoop(gctx, d.quotes, cfg.Backend.SyncInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Service stopped with error", zap.Error(err))
		return err
	}
	log.Info("Service shutdown gracefully")
	return nil
}

// syncLoop retries unsynced quotes every interval until ctx is done.
func syncLoop(ctx context.Context, quotes *quote.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := quotes.SyncPending(ctx, syncBatch)
			if err != nil {
				log.Warn("Periodic sync failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("Periodic sync pushed quotes", zap.Int("count", n))
			}
		}
	}
}

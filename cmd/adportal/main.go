package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"adportal/internal/config"
	"adportal/internal/pricing"
	"adportal/internal/quote"
	"adportal/internal/storage"
	"adportal/pkg/api"
	"adportal/pkg/logger"
	"adportal/pkg/redis"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ENTRY POINT

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "adportal",
	Short:         "Advert and leaflet quote engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		log, err = logger.New(cfg.Env)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, syncCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps is everything the commands share.
type deps struct {
	redis   *redis.Client
	storage *storage.PostgresStorage
	quotes  *quote.Service
}

func (d *deps) Close() {
	if err := d.storage.Close(); err != nil {
		log.Warn("Failed to close PostgreSQL storage", zap.Error(err))
	}
	d.redis.Close()
}

func connect(ctx context.Context) (*deps, error) {
	card, err := loadRateCard()
	if err != nil {
		return nil, err
	}

	redisClient := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := redisClient.Ping(ctx); err != nil {
		log.Warn("Redis is not reachable, caches and wizard state will fail until it is", zap.Error(err))
	}

	pg, err := storage.NewPostgresStorage(ctx, cfg.Database, redisClient, log)
	if err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("failed to init PostgreSQL storage: %w", err)
	}

	var backend quote.Backend
	if cfg.Backend.BaseURL != "" {
		client := api.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.RequestTimeout, log)
		backend = quote.NewAPIBackend(client)
	} else {
		log.Info("Backend sync disabled - no base URL configured")
	}

	return &deps{
		redis:   redisClient,
		storage: pg,
		quotes:  quote.NewService(pg, backend, card, log, quote.WithSyncMaxElapsed(cfg.Backend.SyncMaxElapsed)),
	}, nil
}

func loadRateCard() (*pricing.RateCard, error) {
	if cfg.Pricing.RateCardPath == "" {
		return pricing.DefaultRateCard()
	}
	card, err := pricing.LoadRateCardFile(cfg.Pricing.RateCardPath)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded rate card", zap.String("path", cfg.Pricing.RateCardPath))
	return card, nil
}

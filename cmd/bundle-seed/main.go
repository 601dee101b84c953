// Command bundle-seed loads shop configurations into the database for local
// development and prints the configuration entry for an API key.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bundle-discount/internal/domain/auth"
	"github.com/xenking/bundle-discount/internal/domain/shopconfig"
	"github.com/xenking/bundle-discount/internal/storage/postgres"
)

type seedConfig struct {
	ShopDomain string `json:"shopDomain"`
	shopconfig.SaveRequest
}

func main() {
	var (
		databaseURL  string
		configsFile  string
		apiKey       string
		apiKeyName   string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&configsFile, "configs-file", "", "JSON array of shop configurations to upsert")
	flag.StringVar(&apiKey, "api-key", "", "API key to print a BUNDLE_API_KEYS entry for")
	flag.StringVar(&apiKeyName, "api-key-name", "default", "name of the API key entry")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BUNDLE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BUNDLE_API_KEY_PEPPER")
	}

	if apiKey != "" {
		fmt.Printf("%s:%s\n", apiKeyName, auth.HashKey([]byte(apiKeyPepper), apiKey))
	}
	if configsFile == "" {
		return
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, configsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, configsFile string) error {
	data, err := os.ReadFile(configsFile)
	if err != nil {
		return errors.Wrap(err, "read configs file")
	}
	var seeds []seedConfig
	if err := json.Unmarshal(data, &seeds); err != nil {
		return errors.Wrap(err, "parse configs JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedConfigs(ctx, pool, seeds)
}

func seedConfigs(ctx context.Context, pool *pgxpool.Pool, seeds []seedConfig) error {
	repo := postgres.NewShopConfigRepository(pool)
	svc := shopconfig.NewService(repo)

	for _, s := range seeds {
		if s.ShopDomain == "" {
			return errors.New("shopDomain is required")
		}
		req := s.SaveRequest
		if err := svc.Validate(&req); err != nil {
			return errors.Wrapf(err, "config for %s", s.ShopDomain)
		}

		cfg, err := repo.Upsert(ctx, &shopconfig.Config{
			ShopDomain:  s.ShopDomain,
			BundleSize:  req.BundleSize,
			BundlePrice: req.BundlePrice,
			Label:       req.Label,
			VariantIDs:  req.VariantIDs,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert config for %s", s.ShopDomain)
		}
		slog.Info("upserted config",
			slog.String("shop", cfg.ShopDomain),
			slog.String("label", cfg.Label),
			slog.Int("variants", len(cfg.VariantIDs)),
		)
	}
	return nil
}

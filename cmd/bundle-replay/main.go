// Command bundle-replay re-evaluates captured function inputs stored as gzip
// compressed NDJSON and logs what the bundle discount would have granted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"

	"github.com/xenking/bundle-discount/internal/domain/bundle"
	"github.com/xenking/bundle-discount/internal/function"
	"github.com/xenking/bundle-discount/internal/replay"
)

func main() {
	var (
		pattern    string
		configFile string
		outputFile string
		dedup      bool
		expected   uint
	)

	flag.StringVar(&pattern, "input", "data/*.ndjson.gz", "glob of gzip NDJSON files with function inputs")
	flag.StringVar(&configFile, "config", "", "configuration document replacing each input's configuration")
	flag.StringVar(&outputFile, "output", "", "write output documents to this gzip NDJSON file")
	flag.BoolVar(&dedup, "dedup", false, "skip documents already replayed from any file")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of documents, sizes the dedup filter")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, configFile, outputFile, replay.Options{Dedup: dedup, Expected: expected}); err != nil {
		slog.Error("replay failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, pattern, configFile, outputFile string, opts replay.Options) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match input files")
	}
	if len(files) == 0 {
		return errors.Errorf("no input files match %q", pattern)
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return errors.Wrap(err, "read config document")
		}
		cfg, err := function.DecodeConfiguration(data)
		if err != nil {
			return errors.Wrap(err, "parse config document")
		}
		opts.Configuration = &cfg
		logConfiguration(cfg.Normalize())
	}

	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		defer func() { _ = f.Close() }()

		gz := pgzip.NewWriter(f)
		defer func() {
			if err := gz.Close(); err != nil {
				slog.Error("close output", slog.String("error", err.Error()))
			}
		}()
		opts.Output = gz
	}

	slog.Info("replaying", slog.Int("files", len(files)), slog.Bool("dedup", opts.Dedup))

	st, err := replay.New(opts).Files(ctx, files)
	if err != nil {
		return err
	}

	slog.Info("replay completed",
		slog.Int64("documents", st.Documents),
		slog.Int64("discounted", st.Discounted),
		slog.Int64("discounts", st.Discounts),
		slog.Int64("skipped", st.Skipped),
		slog.Int64("malformed", st.Malformed),
		slog.String("amount", st.Amount.StringFixed(2)),
	)
	return nil
}

func logConfiguration(cfg bundle.Configuration) {
	slog.Info("configuration override",
		slog.Int("bundle_quantity", cfg.BundleQuantity),
		slog.String("bundle_price", cfg.BundlePrice.StringFixed(2)),
		slog.Int("variants", len(cfg.VariantIDs)),
	)
}

// package main loads the artworks dataset into MeiliSearch.
//
// Three indexes are filled with the same documents and different ranking rules:
// artWorks (engine default), artWorksAsc and artWorksDesc (sorted by year).
// Indexes which already hold the whole dataset are skipped, so it is safe to run
// on every deploy.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/pg2es/artworks-setup/artwork"
	"github.com/pg2es/artworks-setup/populate"
	"github.com/pg2es/artworks-setup/search"
)

var Version = "master"

func initLogger(format, level string) (logger *zap.Logger, err error) {
	cfg := zap.NewProductionConfig() // default
	if format == "cli" {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.DisableCaller = true // disable file:line
	cfg.DisableStacktrace = true
	cfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func main() {
	var f flags
	cmd := &cobra.Command{
		Use:           "artworks-setup",
		Short:         "Create and populate artworks search indexes",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := FromEnv()
			f.apply(cmd, cfg)
			return execute(cmd.Context(), cfg)
		},
	}
	f.bind(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute runs the population, and the status server next to it if configured.
func execute(ctx context.Context, cfg *Config) error {
	logger, _ := initLogger(cfg.LogFormat, cfg.LogLevel)
	defer logger.Sync()
	logger.Info("Starting artworks setup", zap.String("version", Version))

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	if cfg.Address != "" {
		server := &http.Server{Addr: cfg.Address, Handler: statusMux()}
		g.Go(func() error {
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return errors.Wrap(err, "status server")
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-done:
			case <-ctx.Done():
			}
			wtimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(wtimeout)
		})
	}

	g.Go(func() error {
		defer close(done)
		if err := run(ctx, cfg, logger); err != nil {
			state.Store("failed")
			logger.Error("setup failed", zap.Error(err))
			return err
		}
		state.Store("done")
		return nil
	})
	return g.Wait()
}

func run(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	// configuration first: nothing is sent to the engine if any of it is wrong
	settings := populate.DefaultSettings()
	if cfg.SettingsFile != "" {
		var err error
		if settings, err = populate.LoadSettings(cfg.SettingsFile); err != nil {
			return err
		}
	}
	indexes := populate.DefaultIndexes()
	if cfg.Indexes != "" {
		var err error
		if indexes, err = populate.ParseIndexes(cfg.Indexes); err != nil {
			return err
		}
	}
	indexes, err := populate.Select(indexes, cfg.Only...)
	if err != nil {
		return err
	}

	client, err := search.NewClient(cfg.Search.Host, cfg.Search.APIKey, logger)
	if err != nil {
		return errors.Wrap(err, "connecting to Search")
	}
	state.Store("connecting")
	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.Health(hctx)
	cancel()
	if err != nil {
		return errors.Wrap(err, "connecting to Search")
	}

	state.Store("loading dataset")
	dataset, err := artwork.Load(cfg.Dataset)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded", zap.String("path", cfg.Dataset), zap.String("documents", humanize.Comma(int64(len(dataset)))))

	opts := populate.Options{
		UpdateTimeout: cfg.Search.UpdateTimeout,
		PollInterval:  cfg.Search.UpdatePollInterval,
		Retry:         populate.DefaultRetryPolicy(),
		Force:         cfg.Force,
	}
	opts.Retry.MaxRetries = cfg.Search.Retries

	state.Store("populating")
	start := time.Now()
	reports, err := populate.Run(ctx, populate.ClientOpener(client), populate.Job{
		Dataset:   dataset,
		BatchSize: cfg.BatchSize,
		Indexes:   indexes,
		Settings:  settings,
		Options:   opts,
	}, logger)
	if err != nil {
		return err
	}

	var skipped, populated int
	for _, r := range reports {
		if r.Skipped {
			skipped++
		} else {
			populated++
		}
	}
	logger.Info("setup finished",
		zap.Int("populated", populated),
		zap.Int("skipped", skipped),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
	)
	return nil
}

// Package populate fills artworks indexes: it applies index settings and uploads
// document batches one at a time, waiting for each one to be processed.
package populate

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pg2es/artworks-setup/artwork"
	"github.com/pg2es/artworks-setup/search"
)

// Index is the part of the search engine contract needed to populate an index.
// *search.Index implements it.
type Index interface {
	Stats(ctx context.Context) (search.Stats, error)
	UpdateSettings(ctx context.Context, settings search.Settings) (search.UpdateID, error)
	AddDocuments(ctx context.Context, body []byte) (search.UpdateID, error)
	WaitForUpdate(ctx context.Context, id search.UpdateID, interval time.Duration) (search.Update, error)
}

// Options of a population run.
type Options struct {
	// UpdateTimeout bounds the wait for a single update (settings or one batch).
	UpdateTimeout time.Duration
	// PollInterval between update status requests.
	PollInterval time.Duration
	Retry        RetryPolicy
	// Force skips the population check.
	Force bool
}

// DefaultOptions wait up to 100s per batch.
func DefaultOptions() Options {
	return Options{
		UpdateTimeout: 100 * time.Second,
		PollInterval:  50 * time.Millisecond,
		Retry:         DefaultRetryPolicy(),
	}
}

// Populator reconciles one index with the dataset.
type Populator struct {
	config IndexConfig
	index  Index
	opts   Options
	logger *zap.Logger
}

func NewPopulator(config IndexConfig, index Index, opts Options, logger *zap.Logger) *Populator {
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = DefaultOptions().UpdateTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	return &Populator{
		config: config,
		index:  index,
		opts:   opts,
		logger: logger.With(zap.String("index", config.Name)),
	}
}

// IsPopulated tells whether the index holds exactly expected documents.
// expected is the length of the source dataset. Any other count, partial or not,
// means the index has to be populated (again).
func (p *Populator) IsPopulated(ctx context.Context, expected int) (bool, error) {
	var stats search.Stats
	err := p.retry(ctx, "stats", func() (err error) {
		stats, err = p.index.Stats(ctx)
		return err
	})
	if err != nil {
		return false, errors.Wrapf(err, "check population of %s", p.config.Name)
	}
	metricIndexDocuments.WithLabelValues(p.config.Name).Set(float64(stats.NumberOfDocuments))

	if stats.NumberOfDocuments != int64(expected) && stats.NumberOfDocuments != 0 {
		p.logger.Warn("unexpected document count, index will be populated again",
			zap.Int64("documents", stats.NumberOfDocuments), zap.Int("expected", expected))
	}
	return stats.NumberOfDocuments == int64(expected), nil
}

// Populate applies settings, then uploads batches in order. Each batch is confirmed
// before the next one is sent. First error stops the upload; batches confirmed so far
// stay in the index.
func (p *Populator) Populate(ctx context.Context, base search.Settings, batches [][]artwork.Document) error {
	settings := p.config.Settings(base)

	var id search.UpdateID
	err := p.retry(ctx, "update_settings", func() (err error) {
		id, err = p.index.UpdateSettings(ctx, settings)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "apply settings to %s", p.config.Name)
	}
	if err := p.await(ctx, id); err != nil {
		return errors.Wrapf(err, "apply settings to %s", p.config.Name)
	}
	p.logger.Info("settings added", zap.Strings("ranking_rules", settings.RankingRules))

	p.logger.Info("adding documents", zap.Int("batches", len(batches)))
	for seq, docs := range batches {
		if err := p.upload(ctx, seq, docs); err != nil {
			return errors.Wrapf(err, "populate %s", p.config.Name)
		}
	}
	return nil
}

func (p *Populator) upload(ctx context.Context, seq int, docs []artwork.Document) error {
	run := newBatchRun(p.config.Name, seq, len(docs), p.logger)

	body, err := search.EncodeDocuments(docs)
	if err != nil {
		run.moveTo(BatchFailed, err)
		return errors.Wrapf(err, "encode batch %d", seq)
	}

	err = p.retry(ctx, "add_documents", func() (err error) {
		run.update, err = p.index.AddDocuments(ctx, body)
		return err
	})
	if err != nil {
		run.moveTo(BatchFailed, err)
		return errors.Wrapf(err, "submit batch %d", seq)
	}
	run.moveTo(BatchPending, nil)

	err = p.await(ctx, run.update)
	switch {
	case errors.Is(err, search.ErrUpdateTimeout):
		run.moveTo(BatchTimedOut, err)
	case err != nil:
		run.moveTo(BatchFailed, err)
	default:
		run.moveTo(BatchConfirmed, nil)
	}
	return errors.Wrapf(err, "batch %d", seq)
}

// await waits for the update to be processed, within UpdateTimeout.
func (p *Populator) await(ctx context.Context, id search.UpdateID) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.UpdateTimeout)
	defer cancel()

	err := p.retry(ctx, "wait_update", func() error {
		_, err := p.index.WaitForUpdate(ctx, id, p.opts.PollInterval)
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, search.ErrUpdateTimeout) {
		// deadline hit while backing off between polls
		return errors.Wrapf(search.ErrUpdateTimeout, "update %d", id)
	}
	return err
}

func (p *Populator) retry(ctx context.Context, op string, fn func() error) error {
	return p.opts.Retry.do(ctx, fn, func(err error, wait time.Duration) {
		metricRetries.WithLabelValues(p.config.Name, op).Inc()
		p.logger.Warn("temporary error, retrying", zap.String("operation", op), zap.Duration("backoff", wait), zap.Error(err))
	})
}

package populate

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pg2es/artworks-setup/artwork"
	"github.com/pg2es/artworks-setup/batch"
	"github.com/pg2es/artworks-setup/search"
)

// Opener returns the index with given name, creating it (with PrimaryKey) when missing.
type Opener func(ctx context.Context, name string) (Index, error)

// ClientOpener adapts a search client to Opener.
func ClientOpener(client *search.Client) Opener {
	return func(ctx context.Context, name string) (Index, error) {
		idx, err := client.GetOrCreateIndex(ctx, name, PrimaryKey)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
}

// Job is everything a run needs, apart from the engine.
type Job struct {
	Dataset   []artwork.Raw
	BatchSize int
	Indexes   []IndexConfig
	Settings  search.Settings
	Options   Options
}

// IndexReport is the outcome of one index.
type IndexReport struct {
	Name      string
	Skipped   bool // already populated
	Documents int
	Batches   int
	Duration  time.Duration
}

// Run normalizes and batches the dataset, then populates indexes one after another,
// in the order of job.Indexes. The first error stops the run; later indexes are left
// untouched. Reports of finished indexes are returned along with the error.
func Run(ctx context.Context, open Opener, job Job, logger *zap.Logger) ([]IndexReport, error) {
	docs, err := artwork.NormalizeAll(job.Dataset)
	if err != nil {
		return nil, errors.Wrap(err, "normalize dataset")
	}
	batches, err := batch.Split(docs, job.BatchSize)
	if err != nil {
		return nil, errors.Wrap(err, "split dataset")
	}
	logger.Info("dataset ready",
		zap.String("documents", humanize.Comma(int64(len(docs)))),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", job.BatchSize),
	)

	// all indexes exist before any of them is populated
	indexes := make([]Index, len(job.Indexes))
	for i, cfg := range job.Indexes {
		if indexes[i], err = open(ctx, cfg.Name); err != nil {
			return nil, errors.Wrapf(err, "open index %s", cfg.Name)
		}
	}

	reports := make([]IndexReport, 0, len(job.Indexes))
	for i, cfg := range job.Indexes {
		p := NewPopulator(cfg, indexes[i], job.Options, logger)
		report := IndexReport{Name: cfg.Name}
		start := time.Now()

		if !job.Options.Force {
			populated, err := p.IsPopulated(ctx, len(job.Dataset))
			if err != nil {
				return reports, err
			}
			if populated {
				p.logger.Info("already exists")
				report.Skipped = true
				reports = append(reports, report)
				continue
			}
		}

		if err := p.Populate(ctx, job.Settings, batches); err != nil {
			return reports, err
		}
		report.Documents = len(docs)
		report.Batches = len(batches)
		report.Duration = time.Since(start)
		reports = append(reports, report)

		p.logger.Info("documents added",
			zap.String("documents", humanize.Comma(int64(report.Documents))),
			zap.Duration("duration", report.Duration.Truncate(time.Millisecond)),
			zap.String("rate", rate(report.Documents, report.Duration)),
		)
	}
	return reports, nil
}

// rate formats documents per second.
func rate(docs int, d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	return humanize.CommafWithDigits(float64(docs)/d.Seconds(), 1) + " docs/sec"
}

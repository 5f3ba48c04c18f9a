package populate

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pg2es/artworks-setup/search"
)

// BatchState is the progress of one bulk upload.
//
//	submitted -> pending -> confirmed
//	    |           |-----> failed
//	    |           '-----> timed out
//	    '-----> failed
type BatchState int

const (
	BatchSubmitted BatchState = iota // request being sent
	BatchPending                     // accepted, update id known, not processed yet
	BatchConfirmed                   // processed by the engine
	BatchFailed                      // rejected, on submission or processing
	BatchTimedOut                    // not processed within the update timeout
)

var batchStateNames = [...]string{
	BatchSubmitted: "submitted",
	BatchPending:   "pending",
	BatchConfirmed: "confirmed",
	BatchFailed:    "failed",
	BatchTimedOut:  "timed_out",
}

func (s BatchState) String() string {
	if s < 0 || int(s) >= len(batchStateNames) {
		return "unknown"
	}
	return batchStateNames[s]
}

// Final states never change.
func (s BatchState) Final() bool {
	return s == BatchConfirmed || s == BatchFailed || s == BatchTimedOut
}

var errInvalidTransition = errors.New("invalid batch state transition")

func (s BatchState) canMove(to BatchState) bool {
	switch s {
	case BatchSubmitted:
		return to == BatchPending || to == BatchFailed
	case BatchPending:
		return to == BatchConfirmed || to == BatchFailed || to == BatchTimedOut
	}
	return false
}

// batchRun follows one batch from submission to a final state.
type batchRun struct {
	index  string
	seq    int
	size   int
	state  BatchState
	update search.UpdateID
	start  time.Time
	err    error
	logger *zap.Logger
}

func newBatchRun(index string, seq, size int, logger *zap.Logger) *batchRun {
	return &batchRun{
		index:  index,
		seq:    seq,
		size:   size,
		state:  BatchSubmitted,
		start:  time.Now(),
		logger: logger.With(zap.Int("batch", seq), zap.Int("size", size)),
	}
}

func (b *batchRun) moveTo(to BatchState, err error) error {
	if !b.state.canMove(to) {
		return errors.Wrapf(errInvalidTransition, "batch %d: %s -> %s", b.seq, b.state, to)
	}
	from := b.state
	b.state = to
	b.err = err

	if ce := b.logger.Check(zap.DebugLevel, "batch state"); ce != nil {
		ce.Write(zap.Stringer("state", to), zap.Int64("update_id", int64(b.update)))
	}
	if !to.Final() {
		return nil
	}

	metricBatches.WithLabelValues(b.index, to.String()).Inc()
	if from == BatchPending {
		metricUpdateWait.WithLabelValues(b.index).Observe(time.Since(b.start).Seconds())
	}
	if to == BatchConfirmed {
		metricDocuments.WithLabelValues(b.index).Add(float64(b.size))
	} else {
		b.logger.Error("batch not indexed", zap.Stringer("state", to), zap.Int64("update_id", int64(b.update)), zap.Error(err))
	}
	return nil
}

// RetryPolicy bounds retries of requests failed with temporary errors.
// Failed updates and timeouts are never retried.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries 3 times, waiting about 0.5s, 0.75s, 1.1s (randomized).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0 // bounded by retries and context
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// do runs op until it succeeds, fails with a non temporary error, or retries are exhausted.
// op is not called at all once ctx is done.
func (p RetryPolicy) do(ctx context.Context, op func() error, notify func(err error, wait time.Duration)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !search.IsTemporary(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), notify)
}

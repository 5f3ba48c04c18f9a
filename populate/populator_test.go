package populate

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pg2es/artworks-setup/batch"
	"github.com/pg2es/artworks-setup/search"
)

func TestPopulateOrder(t *testing.T) {
	is := require.New(t)
	idx := newFakeIndex()
	cfg := DefaultIndexes()[1]
	p := NewPopulator(cfg, idx, fastOptions(), zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 25), 10)
	is.NoError(err)
	is.NoError(p.Populate(context.Background(), DefaultSettings(), batches))

	is.Equal([]string{
		"settings", "wait",
		"add:10", "wait",
		"add:10", "wait",
		"add:5", "wait",
	}, idx.calls)
	is.Equal(1, idx.maxOut, "only one update may be outstanding")
	is.Len(idx.docs, 25)

	is.Len(idx.settings, 1)
	is.Equal(cfg.RankingRules, idx.settings[0].RankingRules)
	is.Equal("asc(DateToSortBy)", idx.settings[0].RankingRules[0])
	is.Equal([]string{"a", "an", "the"}, idx.settings[0].StopWords)
}

func TestIsPopulated(t *testing.T) {
	tests := []struct {
		name     string
		existing int
		expected int
		want     bool
	}{
		{"empty index", 0, 25, false},
		{"partial", 10, 25, false},
		{"complete", 25, 25, true},
		{"more than dataset", 30, 25, false},
		{"empty dataset", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := require.New(t)
			idx := newFakeIndex()
			for i := 0; i < tt.existing; i++ {
				idx.docs[string(rune('a'+i))] = nil
			}
			p := NewPopulator(DefaultIndexes()[0], idx, fastOptions(), zap.NewNop())
			got, err := p.IsPopulated(context.Background(), tt.expected)
			is.NoError(err)
			is.Equal(tt.want, got)
		})
	}
}

func TestIsPopulatedRetriesStats(t *testing.T) {
	is := require.New(t)
	idx := newFakeIndex()
	idx.statsErrs = []error{search.ErrHTTP{StatusCode: http.StatusServiceUnavailable}}
	p := NewPopulator(DefaultIndexes()[0], idx, fastOptions(), zap.NewNop())

	got, err := p.IsPopulated(context.Background(), 0)
	is.NoError(err)
	is.True(got)
	is.Equal([]string{"stats", "stats"}, idx.calls)
}

func TestPopulateRetriesTemporaryErrors(t *testing.T) {
	is := require.New(t)
	idx := newFakeIndex()
	idx.addErrs = []error{
		search.ErrHTTP{StatusCode: http.StatusServiceUnavailable},
		search.ErrHTTP{StatusCode: http.StatusTooManyRequests},
	}
	p := NewPopulator(DefaultIndexes()[0], idx, fastOptions(), zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 3), 10)
	is.NoError(err)
	is.NoError(p.Populate(context.Background(), DefaultSettings(), batches))
	is.Equal([]string{"settings", "wait", "add:error", "add:error", "add:3", "wait"}, idx.calls)
	is.Len(idx.docs, 3)
}

func TestPopulateGivesUpAfterRetries(t *testing.T) {
	is := require.New(t)
	idx := newFakeIndex()
	unavailable := search.ErrHTTP{StatusCode: http.StatusServiceUnavailable}
	idx.addErrs = []error{unavailable, unavailable, unavailable, unavailable, unavailable}
	p := NewPopulator(DefaultIndexes()[0], idx, fastOptions(), zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 3), 10)
	is.NoError(err)
	err = p.Populate(context.Background(), DefaultSettings(), batches)
	is.Error(err)

	var herr search.ErrHTTP
	is.ErrorAs(err, &herr)
	is.Equal(http.StatusServiceUnavailable, herr.StatusCode)
	is.Len(idx.addErrs, 1, "1 attempt + 3 retries")
}

func TestPopulateRejectedNotRetried(t *testing.T) {
	is := require.New(t)
	idx := newFakeIndex()
	idx.addErrs = []error{search.ErrHTTP{StatusCode: http.StatusBadRequest, Code: "malformed_payload"}}
	p := NewPopulator(DefaultIndexes()[0], idx, fastOptions(), zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 3), 10)
	is.NoError(err)
	err = p.Populate(context.Background(), DefaultSettings(), batches)
	is.Error(err)
	is.Equal([]string{"settings", "wait", "add:error"}, idx.calls)
}

func TestPopulateFailedUpdateStops(t *testing.T) {
	is := require.New(t)
	idx := newFakeIndex()
	// update 1 is settings, 2 and 3 are batches
	idx.waitErrs[3] = &search.UpdateError{Index: "artWorks", UpdateID: 3, Message: "invalid document"}
	p := NewPopulator(DefaultIndexes()[0], idx, fastOptions(), zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 25), 10)
	is.NoError(err)
	err = p.Populate(context.Background(), DefaultSettings(), batches)

	var uerr *search.UpdateError
	is.ErrorAs(err, &uerr)
	is.Equal(search.UpdateID(3), uerr.UpdateID)
	is.Equal([]string{"settings", "wait", "add:10", "wait", "add:10", "wait"}, idx.calls)
	is.Len(idx.docs, 10, "first batch stays, no rollback")
}

func TestPopulateTimeout(t *testing.T) {
	is := require.New(t)
	idx := newFakeIndex()
	opts := fastOptions()
	opts.UpdateTimeout = 20 * time.Millisecond
	p := NewPopulator(DefaultIndexes()[0], idx, opts, zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 3), 10)
	is.NoError(err)

	idx.hang = true
	start := time.Now()
	err = p.Populate(context.Background(), DefaultSettings(), batches)
	is.True(errors.Is(err, search.ErrUpdateTimeout), "got %v", err)
	is.Less(time.Since(start), 5*time.Second)
	is.Equal([]string{"settings", "wait"}, idx.calls, "timeout is not retried")
}

func TestPopulateCanceledBetweenBatches(t *testing.T) {
	is := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx := newFakeIndex()
	waits := 0
	idx.afterWait = func() {
		// settings, then first batch
		if waits++; waits == 2 {
			cancel()
		}
	}
	cfg := IndexConfig{Name: "canceled_between_batches", RankingRules: defaultRankingRules()}
	p := NewPopulator(cfg, idx, fastOptions(), zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 25), 10)
	is.NoError(err)
	err = p.Populate(ctx, DefaultSettings(), batches)
	is.True(errors.Is(err, context.Canceled), "got %v", err)
	is.Equal([]string{"settings", "wait", "add:10", "wait"}, idx.calls, "no batch is sent after cancel")
	is.Len(idx.docs, 10)
	is.Zero(testutil.ToFloat64(metricRetries.WithLabelValues(cfg.Name, "add_documents")))
	is.Equal(1.0, testutil.ToFloat64(metricBatches.WithLabelValues(cfg.Name, BatchFailed.String())))
}

func TestPopulateCanceledWhileWaiting(t *testing.T) {
	is := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idx := newFakeIndex()
	// settings are processed, the batch never is
	idx.afterWait = func() { idx.hang = true }
	idx.onHang = cancel
	cfg := IndexConfig{Name: "canceled_while_waiting", RankingRules: defaultRankingRules()}
	p := NewPopulator(cfg, idx, fastOptions(), zap.NewNop())

	batches, err := batch.Split(testDocuments(t, 25), 10)
	is.NoError(err)
	err = p.Populate(ctx, DefaultSettings(), batches)
	is.True(errors.Is(err, context.Canceled), "got %v", err)
	is.False(errors.Is(err, search.ErrUpdateTimeout))
	is.Equal([]string{"settings", "wait", "add:10", "wait"}, idx.calls)
	is.Zero(testutil.ToFloat64(metricRetries.WithLabelValues(cfg.Name, "wait_update")))
	is.Equal(1.0, testutil.ToFloat64(metricBatches.WithLabelValues(cfg.Name, BatchFailed.String())))
	is.Zero(testutil.ToFloat64(metricBatches.WithLabelValues(cfg.Name, BatchTimedOut.String())))
}

func TestBatchRunTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []BatchState
		wantErr bool
	}{
		{"confirmed", []BatchState{BatchPending, BatchConfirmed}, false},
		{"rejected on submit", []BatchState{BatchFailed}, false},
		{"failed update", []BatchState{BatchPending, BatchFailed}, false},
		{"timed out", []BatchState{BatchPending, BatchTimedOut}, false},
		{"confirm without update id", []BatchState{BatchConfirmed}, true},
		{"time out before submit", []BatchState{BatchTimedOut}, true},
		{"final state is final", []BatchState{BatchPending, BatchConfirmed, BatchFailed}, true},
		{"back to submitted", []BatchState{BatchPending, BatchSubmitted}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := newBatchRun("test", 0, 1, zap.NewNop())
			var err error
			for _, to := range tt.path {
				if err = run.moveTo(to, nil); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("moveTo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errInvalidTransition) {
				t.Errorf("moveTo() error = %v, want errInvalidTransition", err)
			}
		})
	}
}

func TestBatchStateString(t *testing.T) {
	is := require.New(t)
	is.Equal("submitted", BatchSubmitted.String())
	is.Equal("timed_out", BatchTimedOut.String())
	is.Equal("unknown", BatchState(42).String())
	is.False(BatchPending.Final())
	is.True(BatchFailed.Final())
}

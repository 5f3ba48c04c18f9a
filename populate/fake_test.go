package populate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/pg2es/artworks-setup/artwork"
	"github.com/pg2es/artworks-setup/search"
)

// fakeIndex keeps documents in memory and applies an update when it is waited for.
type fakeIndex struct {
	docs        map[string]json.RawMessage
	settings    []search.Settings
	calls       []string
	nextID      search.UpdateID
	pending     map[search.UpdateID][]json.RawMessage
	outstanding int
	maxOut      int

	statsErrs []error // returned by successive Stats calls
	addErrs   []error // returned by successive AddDocuments calls
	waitErrs  map[search.UpdateID]error
	hang      bool   // WaitForUpdate blocks until context is done
	onHang    func() // called when WaitForUpdate starts blocking
	afterWait func() // called after each processed update
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		docs:     map[string]json.RawMessage{},
		pending:  map[search.UpdateID][]json.RawMessage{},
		waitErrs: map[search.UpdateID]error{},
	}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeIndex) enqueue(docs []json.RawMessage) search.UpdateID {
	f.nextID++
	f.pending[f.nextID] = docs
	f.outstanding++
	if f.outstanding > f.maxOut {
		f.maxOut = f.outstanding
	}
	return f.nextID
}

func (f *fakeIndex) Stats(ctx context.Context) (search.Stats, error) {
	f.calls = append(f.calls, "stats")
	if err := pop(&f.statsErrs); err != nil {
		return search.Stats{}, err
	}
	return search.Stats{NumberOfDocuments: int64(len(f.docs))}, nil
}

func (f *fakeIndex) UpdateSettings(ctx context.Context, settings search.Settings) (search.UpdateID, error) {
	f.calls = append(f.calls, "settings")
	f.settings = append(f.settings, settings)
	return f.enqueue(nil), nil
}

func (f *fakeIndex) AddDocuments(ctx context.Context, body []byte) (search.UpdateID, error) {
	if err := pop(&f.addErrs); err != nil {
		f.calls = append(f.calls, "add:error")
		return 0, err
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(body, &docs); err != nil {
		return 0, search.ErrHTTP{StatusCode: 400, Message: err.Error()}
	}
	f.calls = append(f.calls, fmt.Sprintf("add:%d", len(docs)))
	return f.enqueue(docs), nil
}

func (f *fakeIndex) WaitForUpdate(ctx context.Context, id search.UpdateID, interval time.Duration) (search.Update, error) {
	f.calls = append(f.calls, "wait")
	if f.hang {
		if f.onHang != nil {
			f.onHang()
		}
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.Canceled) {
			return search.Update{ID: id, Status: search.UpdateProcessing}, ctx.Err()
		}
		return search.Update{ID: id, Status: search.UpdateProcessing}, errors.Wrap(search.ErrUpdateTimeout, "fake")
	}
	if err, ok := f.waitErrs[id]; ok {
		delete(f.waitErrs, id)
		if _, temporary := err.(search.ErrHTTP); !temporary {
			f.outstanding--
		}
		return search.Update{ID: id, Status: search.UpdateFailed}, err
	}

	docs, ok := f.pending[id]
	if !ok {
		return search.Update{}, search.ErrHTTP{StatusCode: 404}
	}
	for _, doc := range docs {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(doc, &fields); err != nil {
			return search.Update{}, err
		}
		f.docs[string(fields[PrimaryKey])] = doc
	}
	delete(f.pending, id)
	f.outstanding--
	if f.afterWait != nil {
		f.afterWait()
	}
	return search.Update{ID: id, Status: search.UpdateProcessed}, nil
}

// fakeEngine opens fake indexes by name.
type fakeEngine struct {
	indexes map[string]*fakeIndex
	opened  []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{indexes: map[string]*fakeIndex{}}
}

func (e *fakeEngine) open(ctx context.Context, name string) (Index, error) {
	e.opened = append(e.opened, name)
	if _, ok := e.indexes[name]; !ok {
		e.indexes[name] = newFakeIndex()
	}
	return e.indexes[name], nil
}

func testDataset(t *testing.T, n int) []artwork.Raw {
	t.Helper()
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"Title":"Work %d","Artist":["A%d","B%d"],"ArtistBio":["bio"],"Date":"c. %d","ObjectID":%d}`, i, i, i, 1900+i, i+1)
	}
	b.WriteByte(']')

	raws, err := artwork.Decode(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, raws, n)
	return raws
}

func testDocuments(t *testing.T, n int) []artwork.Document {
	t.Helper()
	docs, err := artwork.NormalizeAll(testDataset(t, n))
	require.NoError(t, err)
	return docs
}

func fastOptions() Options {
	return Options{
		UpdateTimeout: time.Second,
		PollInterval:  time.Millisecond,
		Retry: RetryPolicy{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
}

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// UpdateID identifies an asynchronous write (settings or documents) on an index.
type UpdateID int64

// Update statuses as reported by the engine.
const (
	UpdateEnqueued   = "enqueued"
	UpdateProcessing = "processing"
	UpdateProcessed  = "processed"
	UpdateFailed     = "failed"
)

// Update is the state of an asynchronous write.
type Update struct {
	ID     UpdateID `json:"updateId"`
	Status string   `json:"status"`
	Type   struct {
		Name   string `json:"name"`
		Number int    `json:"number,omitempty"`
	} `json:"type"`
	Duration  float64 `json:"duration,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorCode string  `json:"errorCode,omitempty"`
}

// Done tells whether the engine is finished with the update, successfully or not.
func (u Update) Done() bool {
	return u.Status == UpdateProcessed || u.Status == UpdateFailed
}

// Stats of an index.
type Stats struct {
	NumberOfDocuments int64 `json:"numberOfDocuments"`
	IsIndexing        bool  `json:"isIndexing"`
}

type updateResponse struct {
	UpdateID UpdateID `json:"updateId"`
}

// Index is a handle on a single index of the engine.
type Index struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primaryKey"`

	client *Client
}

// Stats returns document count and indexing state.
func (i *Index) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := i.client.call(ctx, http.MethodGet, []string{"indexes", i.UID, "stats"}, nil, &stats)
	return stats, errors.Wrapf(err, "stats of %s", i.UID)
}

// UpdateSettings enqueues a settings update.
func (i *Index) UpdateSettings(ctx context.Context, settings Settings) (UpdateID, error) {
	body, err := json.Marshal(settings)
	if err != nil {
		return 0, errors.Wrap(err, "encode settings")
	}
	var resp updateResponse
	if err := i.client.call(ctx, http.MethodPost, []string{"indexes", i.UID, "settings"}, body, &resp); err != nil {
		return 0, errors.Wrapf(err, "update settings of %s", i.UID)
	}
	return resp.UpdateID, nil
}

// AddDocuments enqueues an upsert of a JSON array of documents, see EncodeDocuments.
func (i *Index) AddDocuments(ctx context.Context, body []byte) (UpdateID, error) {
	var resp updateResponse
	if err := i.client.call(ctx, http.MethodPost, []string{"indexes", i.UID, "documents"}, body, &resp); err != nil {
		return 0, errors.Wrapf(err, "add documents to %s", i.UID)
	}
	return resp.UpdateID, nil
}

// Update returns the current state of an update.
func (i *Index) Update(ctx context.Context, id UpdateID) (Update, error) {
	var upd Update
	err := i.client.call(ctx, http.MethodGet, []string{"indexes", i.UID, "updates", strconv.FormatInt(int64(id), 10)}, nil, &upd)
	return upd, errors.Wrapf(err, "get update %d of %s", id, i.UID)
}

// WaitForUpdate polls the update every interval until it is processed.
// Failed update is returned as *UpdateError. Context deadline results in ErrUpdateTimeout.
func (i *Index) WaitForUpdate(ctx context.Context, id UpdateID, interval time.Duration) (Update, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		upd, err := i.Update(ctx, id)
		switch {
		case err != nil && errors.Is(err, context.DeadlineExceeded):
			return upd, errors.Wrapf(ErrUpdateTimeout, "update %d of %s", id, i.UID)
		case err != nil:
			return upd, err
		case upd.Status == UpdateFailed:
			return upd, &UpdateError{Index: i.UID, UpdateID: id, Message: upd.Error, Code: upd.ErrorCode}
		case upd.Status == UpdateProcessed:
			return upd, nil
		}

		if ce := i.client.logger.Check(zap.DebugLevel, "update pending"); ce != nil {
			ce.Write(zap.String("index", i.UID), zap.Int64("update_id", int64(id)), zap.String("status", upd.Status))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return upd, errors.Wrapf(ErrUpdateTimeout, "update %d of %s", id, i.UID)
			}
			return upd, ctx.Err()
		}
	}
}

// Document fetches a single document by its primary key.
func (i *Index) Document(ctx context.Context, id string, out interface{}) error {
	err := i.client.call(ctx, http.MethodGet, []string{"indexes", i.UID, "documents", id}, nil, out)
	return errors.Wrapf(err, "get document %s from %s", id, i.UID)
}

// Package batch splits documents into bulk requests of bounded size.
package batch

import "github.com/pkg/errors"

// ErrInvalidSize is returned for a zero or negative batch size.
var ErrInvalidSize = errors.New("batch size must be positive")

// Split returns ceil(len(items)/size) consecutive batches of items. Every batch
// holds size items except possibly the last one. Batches share the backing array
// of items, but their capacity is capped, so appending to one never touches the next.
func Split[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "got %d", size)
	}

	n := len(items) / size
	if len(items)%size != 0 {
		n++
	}
	batches := make([][]T, 0, n)
	for start, end := 0, 0; start < len(items); start = end {
		end = len(items)
		if size < end-start {
			end = start + size
		}
		batches = append(batches, items[start:end:end])
	}
	return batches, nil
}

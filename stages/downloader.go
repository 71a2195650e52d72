// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

// Package stages implements the sync pipeline's concrete stages: the
// Downloader/BatchDownloader and Stage contract each stage is built on.
package stages

import (
	"context"
	"sort"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/lumenhq/lumen/primitives/block"
)

// Retryable wraps a download error that should be retried with backoff
// (e.g. a rate-limited response), matching the original's
// DownloaderResult::Retry variant.
type Retryable struct{ err error }

func Retry(err error) error { return Retryable{err: err} }
func (r Retryable) Error() string { return r.err.Error() }
func (r Retryable) Unwrap() error { return r.err }

// Downloader fetches one Value per Key, used by BatchDownloader to fan out
// a block range's worth of fetches.
type Downloader[K any, V any] interface {
	Download(ctx context.Context, key K) (V, error)
}

// BatchDownloader drives a bounded-concurrency fan-out over a Downloader,
// retrying Retryable errors with exponential backoff, and returns results
// in the same order as the input keys regardless of completion order.
type BatchDownloader[K any, V any] struct {
	inner       Downloader[K, V]
	concurrency int
}

func NewBatchDownloader[K any, V any](inner Downloader[K, V], concurrency int) *BatchDownloader[K, V] {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchDownloader[K, V]{inner: inner, concurrency: concurrency}
}

// Download fetches every key, preserving input order in the returned slice.
// It returns the first non-retryable error encountered, cancelling
// in-flight fetches for the remaining keys.
func (d *BatchDownloader[K, V]) Download(ctx context.Context, keys []K) ([]V, error) {
	results := make([]V, len(keys))
	sem := make(chan struct{}, d.concurrency)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		firstErr error
	)

	for i, key := range keys {
		select {
		case <-ctx.Done():
		default:
		}
		mu.Lock()
		failed := firstErr != nil
		mu.Unlock()
		if failed {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, key K) {
			defer wg.Done()
			defer func() { <-sem }()

			v, err := downloadWithRetry(ctx, d.inner, key)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}
			results[i] = v
		}(i, key)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func downloadWithRetry[K any, V any](ctx context.Context, d Downloader[K, V], key K) (V, error) {
	var result V
	op := func() error {
		v, err := d.Download(ctx, key)
		if err == nil {
			result = v
			return nil
		}
		var retryable Retryable
		if asRetryable(err, &retryable) {
			return retryable
		}
		return backoff.Permanent(err)
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	err := backoff.Retry(op, bo)
	return result, unwrapPermanent(err)
}

func asRetryable(err error, out *Retryable) bool {
	r, ok := err.(Retryable)
	if ok {
		*out = r
	}
	return ok
}

func unwrapPermanent(err error) error {
	if pe, ok := err.(*backoff.PermanentError); ok {
		return pe.Unwrap()
	}
	return err
}

// sortedRange returns [from, to] inclusive as a slice of block numbers.
func sortedRange(from, to block.Number) []block.Number {
	if to < from {
		return nil
	}
	out := make([]block.Number, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

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

// Package pipeline drives the linear sync stage array.
package pipeline

import (
	"context"
	"sync"

	"github.com/lumenhq/lumen/primitives/block"
)

// TipWatcher is a single-producer, many-subscriber cell holding the latest
// known chain tip. Set is called by
// whatever discovers new blocks (a feeder poller, or the producer itself on
// a full sequencer); WaitPast blocks the pipeline driver until the tip
// advances beyond a previously observed value.
type TipWatcher struct {
	mu  sync.Mutex
	tip block.Number
	ch  chan struct{}
}

func NewTipWatcher() *TipWatcher {
	return &TipWatcher{ch: make(chan struct{})}
}

// Set records a new tip and wakes every blocked WaitPast call. Setting a
// tip lower than the current one is a no-op: the watched value never
// regresses.
func (w *TipWatcher) Set(n block.Number) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n <= w.tip {
		return
	}
	w.tip = n
	close(w.ch)
	w.ch = make(chan struct{})
}

// Current returns the latest known tip without blocking.
func (w *TipWatcher) Current() block.Number {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tip
}

// WaitPast blocks until the tip is observed strictly greater than after, or
// ctx is cancelled.
func (w *TipWatcher) WaitPast(ctx context.Context, after block.Number) (block.Number, error) {
	for {
		w.mu.Lock()
		tip, ch := w.tip, w.ch
		w.mu.Unlock()
		if tip > after {
			return tip, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ch:
		}
	}
}

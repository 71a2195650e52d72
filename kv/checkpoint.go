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

package kv

import (
	"context"

	"github.com/lumenhq/lumen/primitives/block"
)

// Checkpoints is the sync pipeline's per-stage progress table, backed by the
// SyncStageProgress table.
type Checkpoints struct {
	db DB
}

func NewCheckpoints(db DB) *Checkpoints { return &Checkpoints{db: db} }

// Get returns a stage's last-processed block number, or 0 if the stage has
// never run.
func (c *Checkpoints) Get(ctx context.Context, stageID string) (block.Number, error) {
	var n uint64
	err := View(ctx, c.db, func(tx Tx) error {
		v, found, err := tx.Get(SyncStageProgress, []byte(stageID))
		if err != nil || !found {
			return err
		}
		n = DecodeBlockNumber(v)
		return nil
	})
	return block.Number(n), err
}

// Set records a stage's new checkpoint. Callers only advance it monotonically;
// Checkpoints itself does not enforce that to keep Unwind (which moves it
// backward) a plain call to Set.
func (c *Checkpoints) Set(ctx context.Context, stageID string, n block.Number) error {
	return Update(ctx, c.db, func(tx RwTx) error {
		return tx.Put(SyncStageProgress, []byte(stageID), EncodeBlockNumber(uint64(n)))
	})
}

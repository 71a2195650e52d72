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

package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
)

// ClassArtifactStore is the subset of kv.Store the Classes stage needs;
// *kv.Store satisfies it directly.
type ClassArtifactStore interface {
	HasClassArtifact(ctx context.Context, hash class.Hash) (bool, error)
	StoreClassArtifact(ctx context.Context, hash class.Hash, c class.Class) error
}

// Classes is the sync pipeline's second stage: it scans the
// declared-classes set of each block in range and fetches any missing
// artifacts into the class artifact table. It runs after Blocks, which has
// already persisted the state diffs naming those hashes.
type Classes struct {
	store     ClassArtifactStore
	declared  *BatchDownloader[block.Number, []class.Hash]
	artifacts *BatchDownloader[class.Hash, class.Class]
}

var classesLog = lumenlog.Named("stage_classes")

func NewClasses(store ClassArtifactStore, declared Downloader[block.Number, []class.Hash], artifacts Downloader[class.Hash, class.Class], concurrency int) *Classes {
	return &Classes{
		store:     store,
		declared:  NewBatchDownloader(declared, concurrency),
		artifacts: NewBatchDownloader(artifacts, concurrency),
	}
}

func (s *Classes) ID() string { return "Classes" }

func (s *Classes) Execute(ctx context.Context, input ExecutionInput) (ExecutionOutput, error) {
	keys := sortedRange(input.From(), input.To())
	perBlock, err := s.declared.Download(ctx, keys)
	if err != nil {
		return ExecutionOutput{}, fmt.Errorf("stage classes: list declared [%d,%d]: %w", input.From(), input.To(), err)
	}

	seen := make(map[class.Hash]struct{})
	var missing []class.Hash
	for _, hashes := range perBlock {
		for _, h := range hashes {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			has, err := s.store.HasClassArtifact(ctx, h)
			if err != nil {
				return ExecutionOutput{}, fmt.Errorf("stage classes: check artifact %s: %w", h.Felt, err)
			}
			if !has {
				missing = append(missing, h)
			}
		}
	}

	fetched, err := s.artifacts.Download(ctx, missing)
	if err != nil {
		return ExecutionOutput{}, fmt.Errorf("stage classes: fetch artifacts: %w", err)
	}
	for i, c := range fetched {
		if err := s.store.StoreClassArtifact(ctx, missing[i], c); err != nil {
			return ExecutionOutput{}, fmt.Errorf("stage classes: store artifact %s: %w", missing[i].Felt, err)
		}
	}
	classesLog.Debug("backfilled class artifacts", zap.Int("count", len(fetched)))

	return ExecutionOutput{LastBlockProcessed: input.To()}, nil
}

// Unwind is a no-op: class artifacts are content-addressed by hash and
// remain valid regardless of which chain tip declared them.
func (s *Classes) Unwind(context.Context, block.Number) error { return nil }

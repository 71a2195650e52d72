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

package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/stages"
)

var log = lumenlog.Named("pipeline")

// Checkpoints is the per-stage progress table the pipeline reads and
// advances; *kv.Checkpoints satisfies it directly.
type Checkpoints interface {
	Get(ctx context.Context, stageID string) (block.Number, error)
	Set(ctx context.Context, stageID string, n block.Number) error
}

// Pipeline drives a linear array of stages toward a watched tip. On each tip advance it loops over stages in declared order,
// feeding each one chunk-sized ranges until it catches up to the tip or
// fails.
type Pipeline struct {
	stages      []stages.Stage
	checkpoints Checkpoints
	chunkSize   uint64
	tip         *TipWatcher
}

func New(checkpoints Checkpoints, tip *TipWatcher, chunkSize uint64, stageList ...stages.Stage) *Pipeline {
	return &Pipeline{stages: stageList, checkpoints: checkpoints, chunkSize: chunkSize, tip: tip}
}

// Run blocks until ctx is cancelled, advancing the pipeline every time the
// tip moves and otherwise awaiting the next notification. A stage error
// stops that round short — the pipeline logs it and waits for the next tip
// change rather than retrying immediately, since the same failure would
// likely repeat in a tight loop.
func (p *Pipeline) Run(ctx context.Context) error {
	var lastSeen block.Number
	for {
		tip, err := p.tip.WaitPast(ctx, lastSeen)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		lastSeen = tip

		if err := p.advance(ctx, tip); err != nil {
			log.Error("pipeline round failed", zap.Error(err))
		}
	}
}

// advance runs every stage forward in chunkSize-bounded steps until each
// reaches tip or a stage fails.
func (p *Pipeline) advance(ctx context.Context, tip block.Number) error {
	for _, stage := range p.stages {
		for {
			checkpoint, err := p.checkpoints.Get(ctx, stage.ID())
			if err != nil {
				return err
			}
			from := checkpoint + 1
			to := tip
			if checkpoint+block.Number(p.chunkSize) < to {
				to = checkpoint + block.Number(p.chunkSize)
			}
			if to < from {
				break
			}

			input, err := stages.NewExecutionInput(from, to)
			if err != nil {
				return err
			}
			out, err := stage.Execute(ctx, input)
			if err != nil {
				return err
			}
			if err := p.checkpoints.Set(ctx, stage.ID(), out.LastBlockProcessed); err != nil {
				return err
			}
			log.Debug("stage advanced",
				zap.String("stage", stage.ID()),
				zap.Uint64("from", uint64(from)),
				zap.Uint64("to", uint64(out.LastBlockProcessed)))
		}
	}
	return nil
}

// Unwind truncates every stage back to target, in reverse declared order,
// and resets their checkpoints.
func (p *Pipeline) Unwind(ctx context.Context, target block.Number) error {
	for i := len(p.stages) - 1; i >= 0; i-- {
		stage := p.stages[i]
		if err := stage.Unwind(ctx, target); err != nil {
			return err
		}
		checkpoint, err := p.checkpoints.Get(ctx, stage.ID())
		if err != nil {
			return err
		}
		if target < checkpoint {
			if err := p.checkpoints.Set(ctx, stage.ID(), target); err != nil {
				return err
			}
		}
	}
	return nil
}

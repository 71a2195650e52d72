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

	"github.com/lumenhq/lumen/primitives/block"
)

// ExecutionInput bounds a stage's unit of work to a closed block range.
type ExecutionInput struct {
	from block.Number
	to   block.Number
}

// NewExecutionInput builds an input, enforcing the original's invariant
// that the range is non-empty and increasing.
func NewExecutionInput(from, to block.Number) (ExecutionInput, error) {
	if to < from {
		return ExecutionInput{}, fmt.Errorf("stages: invalid range [%d, %d]", from, to)
	}
	return ExecutionInput{from: from, to: to}, nil
}

func (i ExecutionInput) From() block.Number { return i.from }
func (i ExecutionInput) To() block.Number   { return i.to }

// ExecutionOutput reports how far a stage actually advanced. A stage may
// stop short of Input.To if it hit a recoverable limit (e.g. a batch size
// cap); the pipeline resumes from LastBlockProcessed+1 next iteration.
type ExecutionOutput struct {
	LastBlockProcessed block.Number
}

// Stage is one step of the sync pipeline. Execute advances
// the stage's durable checkpoint to include every block up to and
// including input.To (or less, see ExecutionOutput); Unwind truncates it
// back to target on a detected reorg.
type Stage interface {
	ID() string
	Execute(ctx context.Context, input ExecutionInput) (ExecutionOutput, error)
	Unwind(ctx context.Context, target block.Number) error
}

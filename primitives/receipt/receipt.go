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

// Package receipt defines the per-transaction Receipt and the events/
// messages it carries.
package receipt

import "github.com/lumenhq/lumen/primitives/felt"

// FeeUnit distinguishes the two tokens fees may be paid in.
type FeeUnit uint8

const (
	UnitWei FeeUnit = iota
	UnitFri
)

func (u FeeUnit) String() string {
	if u == UnitFri {
		return "FRI"
	}
	return "WEI"
}

// ActualFee is the fee actually charged for a transaction.
type ActualFee struct {
	Amount felt.Felt
	Unit   FeeUnit
}

// Event is emitted by a contract during execution; Order is the VM-assigned
// emission index used to produce a deterministic, flattened ordering across
// nested calls.
type Event struct {
	FromAddress felt.Felt
	Keys        []felt.Felt
	Data        []felt.Felt
	Order       int
}

// L2ToL1Message is an outgoing message queued for L1 consumption.
type L2ToL1Message struct {
	FromAddress felt.Felt
	ToAddress   felt.Felt
	Payload     []felt.Felt
	Order       int
}

// ExecutionResources records VM-reported resource consumption for a tx.
type ExecutionResources struct {
	Steps       uint64
	MemoryHoles uint64
	Builtins    map[string]uint64
}

// Receipt holds the per-transaction outcome.
//
// Invariant: RevertReason != nil iff the transaction's execution failed
// ("presence of revert reason ⇔ failed execution").
type Receipt struct {
	ActualFee    ActualFee
	Events       []Event // ordered across the call tree in emission order
	Messages     []L2ToL1Message
	Resources    ExecutionResources
	RevertReason *string
}

// Failed reports whether the receipt represents a reverted execution.
func (r Receipt) Failed() bool { return r.RevertReason != nil }

// Trace is the execution trace stored alongside a Receipt: resource usage,
// the events log, and outgoing messages, as actually produced by execution.
// Without the concrete Cairo VM (out of scope, see executor/noop) there is
// no per-call invocation tree to record, so Trace carries only the
// root-level data a trace response can honestly report; RevertReason
// mirrors the owning Receipt's.
type Trace struct {
	Resources    ExecutionResources
	Events       []Event
	Messages     []L2ToL1Message
	RevertReason *string
}

// FromReceipt builds the Trace fields derivable directly from a Receipt,
// for executors that don't track anything beyond what the receipt already
// carries.
func FromReceipt(r Receipt) Trace {
	return Trace{Resources: r.Resources, Events: r.Events, Messages: r.Messages, RevertReason: r.RevertReason}
}

// SortEventsByOrder sorts events in place by their VM-assigned Order index.
// The VM assigns globally-increasing Order values across the call tree as it
// walks it depth-first; this is a stable, non-recursive sort over that
// precomputed index.
func SortEventsByOrder(events []Event) {
	// insertion sort: event lists per tx are small and already nearly
	// sorted by the executor, and insertion sort is the simple deterministic
	// choice for small slices on hot paths.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j-1].Order > events[j].Order; j-- {
			events[j-1], events[j] = events[j], events[j-1]
		}
	}
}

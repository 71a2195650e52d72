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

// Package block defines the Block header/body and the sealing invariant
//.
package block

import (
	"math/big"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/felt/poseidon"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// Number is a block height.
type Number uint64

// DAMode is whether data availability is on calldata or blob.
type DAMode uint8

const (
	DAModeCalldata DAMode = iota
	DAModeBlob
)

// GasPrices is (wei-denominated or fri-denominated) price pair per the
// Starknet header fields l1_gas_price/l1_gas_price_in_fri.
type GasPrices struct {
	PriceInWei felt.Felt
	PriceInFri felt.Felt
}

// FinalityStatus tracks a block's confirmation depth.
type FinalityStatus uint8

const (
	PreConfirmed FinalityStatus = iota
	AcceptedOnL2
	AcceptedOnL1
)

// Hash is the sealed block hash.
type Hash struct{ felt.Felt }

// Header holds every field covered by the block hash commitment.
type Header struct {
	Number                  Number
	ParentHash              Hash
	Timestamp               uint64
	SequencerAddress        address.ContractAddress
	StateRoot               felt.Felt
	TransactionsCommitment  felt.Felt
	EventsCommitment        felt.Felt
	ReceiptsCommitment      felt.Felt
	StateDiffCommitment     felt.Felt
	TransactionCount        uint64
	EventsCount             uint64
	StateDiffLength         uint64
	L1GasPrices             GasPrices
	L2GasPrices             GasPrices
	L1DataGasPrices         GasPrices
	L1DAMode                DAMode
	StarknetVersion         string
}

// Body is the ordered sequence of transactions included in a block.
type Body struct {
	Transactions []transaction.TxWithHash
}

// Block is a sealed header + body pair.
type Block struct {
	Header Header
	Body   Body
}

// Seal computes the block hash over the header fields"), and sets header.ParentHash == sealed_hash(parent) is
// the caller's responsibility when constructing the next header (testable
// property 1 in).
func (h Header) Seal() Hash {
	elems := []felt.Felt{
		felt.FromUint64(uint64(h.Number)),
		h.ParentHash.Felt,
		felt.FromUint64(h.Timestamp),
		h.SequencerAddress.Felt,
		h.StateRoot,
		h.TransactionsCommitment,
		h.EventsCommitment,
		h.ReceiptsCommitment,
		h.StateDiffCommitment,
		felt.FromUint64(h.TransactionCount),
		felt.FromUint64(h.EventsCount),
		felt.FromUint64(h.StateDiffLength),
		felt.FromUint64(uint64(h.L1DAMode)),
		h.L1GasPrices.PriceInWei,
		h.L1GasPrices.PriceInFri,
		h.L2GasPrices.PriceInWei,
		h.L2GasPrices.PriceInFri,
		h.L1DataGasPrices.PriceInWei,
		h.L1DataGasPrices.PriceInFri,
		felt.New(new(big.Int).SetBytes([]byte(h.StarknetVersion))),
	}
	return Hash{poseidon.HashN(elems...)}
}

// IsEmpty reports whether the block has no transactions.
func (b Block) IsEmpty() bool { return len(b.Body.Transactions) == 0 }

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

// Package transaction defines the tagged Transaction variant and its
// versioned payloads.
package transaction

import (
	"errors"
	"math/big"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
)

// Kind tags which transaction variant a Transaction holds.
type Kind uint8

const (
	KindInvoke Kind = iota
	KindDeclare
	KindDeployAccount
	KindL1Handler
)

func (k Kind) String() string {
	switch k {
	case KindInvoke:
		return "INVOKE"
	case KindDeclare:
		return "DECLARE"
	case KindDeployAccount:
		return "DEPLOY_ACCOUNT"
	case KindL1Handler:
		return "L1_HANDLER"
	default:
		return "UNKNOWN"
	}
}

// Version is the tx's wire version (v1, v2, v3). Validate returns
// ErrUnsupportedVersion for anything below 1. Query-tagged versions
// (2^128 + v) do not fit a Version: rpc's decoder rejects them, and the
// feeder decoder strips the offset.
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
	V3 Version = 3
)

var ErrUnsupportedVersion = errors.New("transaction: unsupported version")

// Resource identifies one of the three resources a v3 transaction bounds.
type Resource uint8

const (
	ResourceL1Gas Resource = iota
	ResourceL2Gas
	ResourceL1DataGas
)

// ResourceBounds is (max_amount, max_price_per_unit) for one resource.
type ResourceBounds struct {
	MaxAmount       uint64
	MaxPricePerUnit uint128
}

// uint128 is a minimal 128-bit unsigned value (max_price_per_unit can exceed
// 64 bits per the Starknet RPC spec); represented as hi/lo 64-bit halves.
type uint128 struct {
	Hi, Lo uint64
}

// Uint128FromHiLo builds the hi/lo representation ResourceBounds.
// MaxPricePerUnit and FeeV1V2.MaxFee use, for callers outside this package
// (the RPC wire decoder) that only ever see the Hi/Lo halves, never the
// unexported type name.
func Uint128FromHiLo(hi, lo uint64) uint128 { return uint128{Hi: hi, Lo: lo} }

// Uint128FromUint64 builds a hi/lo value from a plain 64-bit amount, the
// common case for fee caps and price bounds that fit in a uint64.
func Uint128FromUint64(v uint64) uint128 { return uint128{Lo: v} }

// BigInt widens the hi/lo halves into a single unsigned value, for fee/cost
// arithmetic that can overflow a uint64 (max_price_per_unit legitimately
// can).
func (u uint128) BigInt() *big.Int {
	v := new(big.Int).Lsh(new(big.Int).SetUint64(u.Hi), 64)
	return v.Add(v, new(big.Int).SetUint64(u.Lo))
}

// FeeV1V2 carries the legacy (v1/v2) fee cap.
type FeeV1V2 struct {
	MaxFee uint128
}

// FeeV3 carries the v3 resource-bounds + tip fee model.
type FeeV3 struct {
	Bounds map[Resource]ResourceBounds
	Tip    uint64
}

// Tip returns the transaction's fee-ordering priority value: for v3 this is
// the explicit tip; for v1/v2 it is zero.
func (t Transaction) Tip() uint64 {
	if t.FeeV3 != nil {
		return t.FeeV3.Tip
	}
	return 0
}

// MaxCost is the maximum amount this transaction commits to paying: for
// v1/v2 the flat max_fee, for v3 the sum of max_amount*max_price_per_unit
// across every bounded resource.
func (t Transaction) MaxCost() *big.Int {
	if t.FeeV3 != nil {
		total := new(big.Int)
		for _, b := range t.FeeV3.Bounds {
			cost := new(big.Int).Mul(new(big.Int).SetUint64(b.MaxAmount), b.MaxPricePerUnit.BigInt())
			total.Add(total, cost)
		}
		return total
	}
	if t.FeeV1V2 != nil {
		return t.FeeV1V2.MaxFee.BigInt()
	}
	return new(big.Int)
}

// IntrinsicCost is a lower bound on what any transaction must at minimum be
// willing to pay: proportional to its wire size (signature plus calldata),
// the same dimension every resource-bound / max_fee model charges for
// regardless of what the transaction's Cairo execution ends up costing.
func (t Transaction) IntrinsicCost() *big.Int {
	words := len(t.Signature)
	switch t.Kind {
	case KindInvoke:
		if t.Invoke != nil {
			words += len(t.Invoke.CallData)
		}
	case KindDeployAccount:
		if t.DeployAccount != nil {
			words += len(t.DeployAccount.ConstructorCalldata)
		}
	case KindL1Handler:
		if t.L1Handler != nil {
			words += len(t.L1Handler.CallData)
		}
	}
	// One felt word of intrinsic cost per word of payload, plus a flat
	// per-transaction floor so even a zero-length payload has some cost.
	return new(big.Int).SetUint64(uint64(words) + 1)
}

// InvokePayload is the type-specific payload for an Invoke transaction.
type InvokePayload struct {
	CallData []felt.Felt
}

// DeclarePayload is the type-specific payload for a Declare transaction.
type DeclarePayload struct {
	Class             class.Class
	CompiledClassHash class.CompiledHash // only meaningful for Sierra (v2/v3)
}

// DeployAccountPayload is the type-specific payload for a DeployAccount tx.
type DeployAccountPayload struct {
	ClassHash           class.Hash
	ContractAddressSalt felt.Felt
	ConstructorCalldata []felt.Felt
}

// L1HandlerPayload is the type-specific payload for an L1Handler tx.
type L1HandlerPayload struct {
	EntryPointSelector felt.Felt
	CallData           []felt.Felt
	FromAddress        felt.Felt
	Nonce              uint64
}

// Transaction is the tagged variant over the four tx kinds, each versioned.
//
// Invariants: version >= 1; resource bounds for v3 supply all
// three resources; nonce is monotone per sender (enforced by txpool, not
// here).
type Transaction struct {
	Kind    Kind
	Version Version
	Sender  address.ContractAddress // absent (zero) for L1Handler
	Nonce   address.Nonce
	Signature []felt.Felt

	FeeV1V2 *FeeV1V2
	FeeV3   *FeeV3

	Invoke        *InvokePayload
	Declare       *DeclarePayload
	DeployAccount *DeployAccountPayload
	L1Handler     *L1HandlerPayload
}

// Validate checks the version/resource-bound invariants from
func (t Transaction) Validate() error {
	if t.Version < V1 {
		return ErrUnsupportedVersion
	}
	if t.Version == V3 {
		if t.FeeV3 == nil {
			return errors.New("transaction: v3 tx missing resource bounds")
		}
		for _, r := range []Resource{ResourceL1Gas, ResourceL2Gas, ResourceL1DataGas} {
			if _, ok := t.FeeV3.Bounds[r]; !ok {
				return errors.New("transaction: v3 tx missing a resource bound")
			}
		}
	}
	return nil
}

// Hash is the TxHash: a Felt computed deterministically from the tx and the
// chain id. The exact Starknet hashing rules per tx kind/version
// are out of this package's concern surface at the primitive layer; callers
// use ComputeHash which dispatches on Kind/Version.
type Hash struct{ felt.Felt }

// TxWithHash pairs a transaction with its precomputed hash, the unit the
// storage engine and block body operate on.
type TxWithHash struct {
	Transaction
	Hash Hash
}

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

// Package txpool implements the pending/queued transaction pool: validation,
// priority ordering, and the fan-out pending stream.
package txpool

import (
	"context"
	"fmt"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

// OutcomeKind is which pool a validated transaction should land in.
type OutcomeKind uint8

const (
	// Valid transactions are ready to enter the pending set immediately.
	Valid OutcomeKind = iota
	// Invalid transactions will never become valid (bad signature, nonce
	// already consumed, insufficient funds, ...) and are rejected outright.
	Invalid
	// Dependent transactions have a nonce ahead of the sender's current
	// nonce and are parked in the queued set until the gap closes.
	Dependent
)

// Outcome is the result of validating one transaction.
type Outcome struct {
	Kind OutcomeKind

	// Err is set when Kind == Invalid.
	Err error

	// TxNonce/CurrentNonce are set when Kind == Dependent.
	TxNonce      uint64
	CurrentNonce uint64
}

// Sentinel validation failures.
var (
	ErrInsufficientFunds         = fmt.Errorf("account balance insufficient to cover transaction fee")
	ErrInsufficientIntrinsicFee  = fmt.Errorf("fee/resource bounds too low to cover intrinsic cost")
	ErrNonAccount                = fmt.Errorf("sender is not an account contract")
	ErrClassAlreadyDeclared      = fmt.Errorf("class has already been declared")
)

// ValidationFailureError reports that the account's __validate__ entry
// point rejected the transaction.
type ValidationFailureError struct {
	Address   address.ContractAddress
	ClassHash class.Hash
	Reason    string
}

func (e *ValidationFailureError) Error() string {
	return fmt.Sprintf("validation failed for %s (class %s): %s", e.Address.Hex(), e.ClassHash.Hex(), e.Reason)
}

// InvalidNonceError reports a nonce that can never become valid: either
// already consumed (tx_nonce < current_nonce) or from a different
// execution context. Distinguishing from Dependent (tx_nonce > current)
// is the validator's job, not this type's.
type InvalidNonceError struct {
	Address      address.ContractAddress
	CurrentNonce address.Nonce
	TxNonce      address.Nonce
}

func (e *InvalidNonceError) Error() string {
	return fmt.Sprintf("invalid nonce for %s: account nonce %s, tx nonce %s", e.Address.Hex(), e.CurrentNonce.Hex(), e.TxNonce.Hex())
}

// NonceReader resolves a sender's current on-chain nonce so the validator
// can classify Valid/Invalid/Dependent without depending on the whole
// storage engine.
type NonceReader interface {
	Nonce(addr address.ContractAddress) (address.Nonce, error)
}

// ClassReader resolves whether a class hash has already been declared, for
// the ClassAlreadyDeclared check on Declare transactions.
type ClassReader interface {
	IsDeclared(hash class.Hash) (bool, error)
}

// BalanceReader resolves a contract's fee-token balance, for the
// insufficient-funds check. Which token (STRK/ETH/...) backs a given
// transaction's fee is a chain-configuration concern outside this package;
// callers wire a BalanceReader already bound to the right token.
type BalanceReader interface {
	Balance(addr address.ContractAddress) (felt.Felt, error)
}

// AccountChecker resolves whether a sender address has already been
// deployed to some class, the prerequisite for being an account contract:
// an address with no deployed class cannot have run __validate__.
type AccountChecker interface {
	ClassHashOfContractAt(addr address.ContractAddress) (hash class.Hash, deployed bool, err error)
}

// AccountValidator runs a sender account's __validate__ entry point against
// a transaction. The concrete Cairo VM needed to execute it is out of scope
// (see executor/noop); a nil AccountValidator skips this check entirely,
// matching noop's always-succeeds semantics.
type AccountValidator interface {
	ValidateAccount(ctx context.Context, twh transaction.TxWithHash) (*ValidationFailureError, error)
}

// Validator classifies a transaction into Valid/Invalid/Dependent. The
// returned error is reserved for unexpected infrastructure failures (a
// storage read that failed); expected rejections are reported through
// Outcome.
type Validator interface {
	Validate(ctx context.Context, tx transaction.TxWithHash) (Outcome, error)
}

// StatefulValidator is the pool's default validator: well-formedness
// (Transaction.Validate), sender classification, nonce resolution,
// declared-class dedup, and fee/balance checks. Balances, Accounts, and
// Account are optional (nil skips the corresponding check) since a pool
// wired against the noop executor has no fee token or VM to check against
// yet.
type StatefulValidator struct {
	Nonces   NonceReader
	Classes  ClassReader
	Balances BalanceReader
	Accounts AccountChecker
	Account  AccountValidator
}

// ValidatorOption configures optional StatefulValidator dependencies.
type ValidatorOption func(*StatefulValidator)

func WithBalanceReader(b BalanceReader) ValidatorOption {
	return func(v *StatefulValidator) { v.Balances = b }
}

func WithAccountChecker(a AccountChecker) ValidatorOption {
	return func(v *StatefulValidator) { v.Accounts = a }
}

func WithAccountValidator(a AccountValidator) ValidatorOption {
	return func(v *StatefulValidator) { v.Account = a }
}

func NewStatefulValidator(nonces NonceReader, classes ClassReader, opts ...ValidatorOption) *StatefulValidator {
	v := &StatefulValidator{Nonces: nonces, Classes: classes}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *StatefulValidator) Validate(ctx context.Context, twh transaction.TxWithHash) (Outcome, error) {
	if err := twh.Transaction.Validate(); err != nil {
		return Outcome{Kind: Invalid, Err: err}, nil
	}

	if twh.Transaction.Kind == transaction.KindDeclare {
		classHash := twh.Transaction.Declare.Class.ComputeHash()
		declared, err := v.Classes.IsDeclared(classHash)
		if err != nil {
			return Outcome{}, err
		}
		if declared {
			return Outcome{Kind: Invalid, Err: ErrClassAlreadyDeclared}, nil
		}
	}

	// DeployAccount transactions deploy the sender in the same transaction,
	// so they can't be checked against an already-deployed class.
	if v.Accounts != nil && twh.Transaction.Kind != transaction.KindDeployAccount {
		_, deployed, err := v.Accounts.ClassHashOfContractAt(twh.Transaction.Sender)
		if err != nil {
			return Outcome{}, err
		}
		if !deployed {
			return Outcome{Kind: Invalid, Err: ErrNonAccount}, nil
		}
	}

	current, err := v.Nonces.Nonce(twh.Transaction.Sender)
	if err != nil {
		return Outcome{}, err
	}
	txNonce := twh.Transaction.Nonce

	switch txNonce.Cmp(current.Felt) {
	case -1:
		return Outcome{Kind: Invalid, Err: &InvalidNonceError{
			Address: twh.Transaction.Sender, CurrentNonce: current, TxNonce: txNonce,
		}}, nil
	case 1:
		return Outcome{
			Kind:         Dependent,
			TxNonce:      txNonce.BigInt().Uint64(),
			CurrentNonce: current.BigInt().Uint64(),
		}, nil
	}

	// Fee/balance checking is a single opt-in unit gated on a BalanceReader
	// being wired (mirroring executor.SimulationFlags.Fee's dev.no-fee
	// gate): without a fee token to check a balance against, requiring fee
	// bounds to clear an intrinsic floor would reject transactions nothing
	// downstream actually charges.
	if v.Balances != nil {
		if twh.Transaction.MaxCost().Cmp(twh.Transaction.IntrinsicCost()) < 0 {
			return Outcome{Kind: Invalid, Err: ErrInsufficientIntrinsicFee}, nil
		}
		balance, err := v.Balances.Balance(twh.Transaction.Sender)
		if err != nil {
			return Outcome{}, err
		}
		if balance.BigInt().Cmp(twh.Transaction.MaxCost()) < 0 {
			return Outcome{Kind: Invalid, Err: ErrInsufficientFunds}, nil
		}
	}

	if v.Account != nil {
		failure, err := v.Account.ValidateAccount(ctx, twh)
		if err != nil {
			return Outcome{}, err
		}
		if failure != nil {
			return Outcome{Kind: Invalid, Err: failure}, nil
		}
	}

	return Outcome{Kind: Valid}, nil
}

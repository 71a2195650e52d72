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

package txpool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
)

type fixedBalance struct{ balance uint64 }

func (b fixedBalance) Balance(address.ContractAddress) (felt.Felt, error) {
	return felt.FromUint64(b.balance), nil
}

type deployedSet struct{ deployed map[felt.Felt]bool }

func (d deployedSet) ClassHashOfContractAt(addr address.ContractAddress) (class.Hash, bool, error) {
	if d.deployed[addr.Felt] {
		return class.Hash{Felt: felt.FromUint64(1)}, true, nil
	}
	return class.Hash{}, false, nil
}

type rejectingAccountValidator struct{ reason string }

func (r rejectingAccountValidator) ValidateAccount(context.Context, transaction.TxWithHash) (*ValidationFailureError, error) {
	return &ValidationFailureError{Reason: r.reason}, nil
}

type acceptingAccountValidator struct{}

func (acceptingAccountValidator) ValidateAccount(context.Context, transaction.TxWithHash) (*ValidationFailureError, error) {
	return nil, nil
}

func feeTx(sender felt.Felt, maxAmount uint64) transaction.TxWithHash {
	tx := transaction.Transaction{
		Kind:    transaction.KindInvoke,
		Version: transaction.V3,
		Sender:  address.FromFelt(sender),
		Nonce:   address.NonceFromUint64(0),
		FeeV3: &transaction.FeeV3{
			Bounds: map[transaction.Resource]transaction.ResourceBounds{
				transaction.ResourceL1Gas:     {MaxAmount: maxAmount, MaxPricePerUnit: transaction.Uint128FromUint64(1)},
				transaction.ResourceL2Gas:     {},
				transaction.ResourceL1DataGas: {},
			},
		},
		Invoke: &transaction.InvokePayload{},
	}
	return transaction.TxWithHash{Transaction: tx, Hash: transaction.Hash{Felt: felt.FromUint64(777)}}
}

func TestValidateRejectsInsufficientIntrinsicFee(t *testing.T) {
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithBalanceReader(fixedBalance{balance: 1_000_000}))

	outcome, err := v.Validate(context.Background(), feeTx(felt.FromUint64(1), 0))
	require.NoError(t, err)
	require.Equal(t, Invalid, outcome.Kind)
	require.ErrorIs(t, outcome.Err, ErrInsufficientIntrinsicFee)
}

func TestValidateRejectsInsufficientFunds(t *testing.T) {
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithBalanceReader(fixedBalance{balance: 1}))

	outcome, err := v.Validate(context.Background(), feeTx(felt.FromUint64(1), 100))
	require.NoError(t, err)
	require.Equal(t, Invalid, outcome.Kind)
	require.ErrorIs(t, outcome.Err, ErrInsufficientFunds)
}

func TestValidateAcceptsWhenBalanceCoversMaxCost(t *testing.T) {
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithBalanceReader(fixedBalance{balance: 1_000_000}))

	outcome, err := v.Validate(context.Background(), feeTx(felt.FromUint64(1), 100))
	require.NoError(t, err)
	require.Equal(t, Valid, outcome.Kind)
}

func TestValidateRejectsNonAccountSender(t *testing.T) {
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithAccountChecker(deployedSet{deployed: map[felt.Felt]bool{}}))

	outcome, err := v.Validate(context.Background(), invokeTx(felt.FromUint64(1), 0, 5))
	require.NoError(t, err)
	require.Equal(t, Invalid, outcome.Kind)
	require.ErrorIs(t, outcome.Err, ErrNonAccount)
}

func TestValidateAcceptsDeployedAccountSender(t *testing.T) {
	sender := felt.FromUint64(1)
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithAccountChecker(deployedSet{deployed: map[felt.Felt]bool{sender: true}}))

	outcome, err := v.Validate(context.Background(), invokeTx(sender, 0, 5))
	require.NoError(t, err)
	require.Equal(t, Valid, outcome.Kind)
}

func TestValidateSkipsAccountCheckForDeployAccount(t *testing.T) {
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithAccountChecker(deployedSet{deployed: map[felt.Felt]bool{}}))

	tx := transaction.Transaction{
		Kind:          transaction.KindDeployAccount,
		Version:       transaction.V3,
		Sender:        address.FromFelt(felt.FromUint64(1)),
		Nonce:         address.NonceFromUint64(0),
		DeployAccount: &transaction.DeployAccountPayload{},
		FeeV3: &transaction.FeeV3{
			Bounds: map[transaction.Resource]transaction.ResourceBounds{
				transaction.ResourceL1Gas:     {},
				transaction.ResourceL2Gas:     {},
				transaction.ResourceL1DataGas: {},
			},
		},
	}
	twh := transaction.TxWithHash{Transaction: tx, Hash: transaction.Hash{Felt: felt.FromUint64(1)}}

	outcome, err := v.Validate(context.Background(), twh)
	require.NoError(t, err)
	require.Equal(t, Valid, outcome.Kind)
}

func TestValidateRejectsAccountValidationFailure(t *testing.T) {
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithAccountValidator(rejectingAccountValidator{reason: "signature mismatch"}))

	outcome, err := v.Validate(context.Background(), invokeTx(felt.FromUint64(1), 0, 5))
	require.NoError(t, err)
	require.Equal(t, Invalid, outcome.Kind)
	var failure *ValidationFailureError
	require.True(t, errors.As(outcome.Err, &failure))
	require.Equal(t, "signature mismatch", failure.Reason)
}

func TestValidateAcceptsWhenAccountValidationSucceeds(t *testing.T) {
	v := NewStatefulValidator(fixedNonceReader{nonce: 0}, noDeclaredClasses{}, WithAccountValidator(acceptingAccountValidator{}))

	outcome, err := v.Validate(context.Background(), invokeTx(felt.FromUint64(1), 0, 5))
	require.NoError(t, err)
	require.Equal(t, Valid, outcome.Kind)
}

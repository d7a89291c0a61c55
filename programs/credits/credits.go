// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package credits is the native fee token. Public balances live in the
// "account" mapping keyed by address.
package credits

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/ava-labs/finalizevm/finalize"
	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/state"
)

const (
	ProgramID = "credits.aleo"
	Account   = "account"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Program returns the deployable credits program.
func Program() *finalize.Program {
	return &finalize.Program{
		ID:       ProgramID,
		Mappings: []string{Account},
		Functions: map[string]finalize.Function{
			"transfer_public":           transferPublic,
			"transfer_private_to_public": transferPrivateToPublic,
		},
	}
}

// TransferPublic returns the future moving [amount] from [from] to [to].
func TransferPublic(from, to ids.ShortID, amount uint64) program.Future {
	return program.NewFuture(ProgramID, "transfer_public", program.Address(from), program.Address(to), program.U64(amount))
}

// TransferPrivateToPublic returns the future crediting [amount], taken from
// a private record, to [to].
func TransferPrivateToPublic(to ids.ShortID, amount uint64) program.Future {
	return program.NewFuture(ProgramID, "transfer_private_to_public", program.Address(to), program.U64(amount))
}

func transferPublic(ctx *finalize.Context, args []program.Value) error {
	if err := finalize.ExpectArgs(args, program.KindAddress, program.KindAddress, program.KindU64); err != nil {
		return err
	}
	from, to, amount := args[0], args[1], args[2]
	n, err := amount.U64()
	if err != nil {
		return err
	}

	current, err := ctx.Require(Account, from)
	if err != nil {
		return err
	}
	balance, err := current.U64()
	if err != nil {
		return err
	}
	remaining, err := ctx.Sub(balance, n)
	if err != nil {
		return err
	}
	if err := ctx.Set(Account, from, program.U64(remaining)); err != nil {
		return err
	}
	return credit(ctx, to, n)
}

func transferPrivateToPublic(ctx *finalize.Context, args []program.Value) error {
	if err := finalize.ExpectArgs(args, program.KindAddress, program.KindU64); err != nil {
		return err
	}
	n, err := args[1].U64()
	if err != nil {
		return err
	}
	return credit(ctx, args[0], n)
}

func credit(ctx *finalize.Context, to program.Value, amount uint64) error {
	current, err := ctx.GetOrDefault(Account, to, program.U64(0))
	if err != nil {
		return err
	}
	balance, err := current.U64()
	if err != nil {
		return err
	}
	updated, err := ctx.Add(balance, amount)
	if err != nil {
		return err
	}
	return ctx.Set(Account, to, program.U64(updated))
}

// Balance returns the public balance of [addr].
func Balance(m *state.Mappings, addr ids.ShortID) (uint64, error) {
	v, ok, err := m.GetValue(ProgramID, Account, program.Address(addr))
	if err != nil || !ok {
		return 0, err
	}
	return v.U64()
}

// Debit removes [amount] from the public balance of [addr].
func Debit(m *state.Mappings, addr ids.ShortID, amount uint64) (state.Operation, error) {
	balance, err := Balance(m, addr)
	if err != nil {
		return state.Operation{}, err
	}
	if balance < amount {
		return state.Operation{}, fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, addr, balance, amount)
	}
	return m.UpdateKeyValue(ProgramID, Account, program.Address(addr), program.U64(balance-amount))
}

// Credit adds [amount] to the public balance of [addr].
func Credit(m *state.Mappings, addr ids.ShortID, amount uint64) (state.Operation, error) {
	balance, err := Balance(m, addr)
	if err != nil {
		return state.Operation{}, err
	}
	updated, err := safemath.Add64(balance, amount)
	if err != nil {
		return state.Operation{}, fmt.Errorf("%w: crediting %s", finalize.ErrOverflow, addr)
	}
	return m.UpdateKeyValue(ProgramID, Account, program.Address(addr), program.U64(updated))
}

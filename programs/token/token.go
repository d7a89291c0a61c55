// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token is a sample fungible token sold for credits. Its purchase
// path awaits a credits transfer before minting.
package token

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/finalizevm/finalize"
	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/programs/credits"
)

const (
	ProgramID = "token.aleo"
	Balances  = "balances"
	Supply    = "supply"

	MaxSupply = 1_000_000_000
)

// Treasury receives the credits paid for purchased tokens.
var Treasury = ids.ShortID{'t', 'r', 'e', 'a', 's', 'u', 'r', 'y'}

var supplyKey = program.Bool(true)

func Program() *finalize.Program {
	return &finalize.Program{
		ID:       ProgramID,
		Mappings: []string{Balances, Supply},
		Functions: map[string]finalize.Function{
			"mint":     mint,
			"transfer": transfer,
			"burn":     burn,
			"buy":      buy,
		},
	}
}

func Mint(to ids.ShortID, amount uint64) program.Future {
	return program.NewFuture(ProgramID, "mint", program.Address(to), program.U64(amount))
}

func Transfer(from, to ids.ShortID, amount uint64) program.Future {
	return program.NewFuture(ProgramID, "transfer", program.Address(from), program.Address(to), program.U64(amount))
}

func Burn(from ids.ShortID, amount uint64) program.Future {
	return program.NewFuture(ProgramID, "burn", program.Address(from), program.U64(amount))
}

// Buy pays [amount] credits from [buyer] to the treasury and mints the
// same amount of tokens to [buyer].
func Buy(buyer ids.ShortID, amount uint64) program.Future {
	return program.NewFuture(ProgramID, "buy", program.Address(buyer), program.U64(amount))
}

func mint(ctx *finalize.Context, args []program.Value) error {
	if err := finalize.ExpectArgs(args, program.KindAddress, program.KindU64); err != nil {
		return err
	}
	n, err := args[1].U64()
	if err != nil {
		return err
	}

	current, err := ctx.GetOrDefault(Supply, supplyKey, program.U64(0))
	if err != nil {
		return err
	}
	supply, err := current.U64()
	if err != nil {
		return err
	}
	supply, err = ctx.Add(supply, n)
	if err != nil {
		return err
	}
	if supply > MaxSupply {
		return ctx.Abort("max supply exceeded")
	}
	if err := ctx.Set(Supply, supplyKey, program.U64(supply)); err != nil {
		return err
	}
	return adjust(ctx, args[0], n, ctx.Add)
}

func transfer(ctx *finalize.Context, args []program.Value) error {
	if err := finalize.ExpectArgs(args, program.KindAddress, program.KindAddress, program.KindU64); err != nil {
		return err
	}
	n, err := args[2].U64()
	if err != nil {
		return err
	}
	if _, err := ctx.Require(Balances, args[0]); err != nil {
		return err
	}
	if err := adjust(ctx, args[0], n, ctx.Sub); err != nil {
		return err
	}
	return adjust(ctx, args[1], n, ctx.Add)
}

func burn(ctx *finalize.Context, args []program.Value) error {
	if err := finalize.ExpectArgs(args, program.KindAddress, program.KindU64); err != nil {
		return err
	}
	n, err := args[1].U64()
	if err != nil {
		return err
	}
	if _, err := ctx.Require(Balances, args[0]); err != nil {
		return err
	}
	if err := adjust(ctx, args[0], n, ctx.Sub); err != nil {
		return err
	}

	current, err := ctx.Require(Supply, supplyKey)
	if err != nil {
		return err
	}
	supply, err := current.U64()
	if err != nil {
		return err
	}
	supply, err = ctx.Sub(supply, n)
	if err != nil {
		return err
	}
	return ctx.Set(Supply, supplyKey, program.U64(supply))
}

func buy(ctx *finalize.Context, args []program.Value) error {
	if err := finalize.ExpectArgs(args, program.KindAddress, program.KindU64); err != nil {
		return err
	}
	buyer, err := args[0].Address()
	if err != nil {
		return err
	}
	n, err := args[1].U64()
	if err != nil {
		return err
	}

	ctx.Await(credits.TransferPublic(buyer, Treasury, n))
	ctx.Await(Mint(buyer, n))
	return nil
}

func adjust(ctx *finalize.Context, owner program.Value, amount uint64, op func(a, b uint64) (uint64, error)) error {
	current, err := ctx.GetOrDefault(Balances, owner, program.U64(0))
	if err != nil {
		return err
	}
	balance, err := current.U64()
	if err != nil {
		return err
	}
	balance, err = op(balance, amount)
	if err != nil {
		return err
	}
	if balance == 0 {
		return ctx.Remove(Balances, owner)
	}
	return ctx.Set(Balances, owner, program.U64(balance))
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package prover is a deterministic stand-in for the proof system, used by
// local networks and tests. Every call produces one public output and one
// future of the same name. A proof is a keyed BLAKE2b MAC of the public
// inputs, so only holders of the key can produce proofs that verify.
package prover

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"golang.org/x/crypto/blake2b"

	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/tx"
)

var (
	_ tx.Executor = (*Prover)(nil)

	outputTag = []byte("finalizevm/prover/output")
)

type Prover struct {
	key ids.ID
}

func New(key ids.ID) *Prover {
	return &Prover{key: key}
}

func (p *Prover) Execute(_ context.Context, call tx.Call) ([]tx.Output, error) {
	f := program.NewFuture(call.ProgramID, call.Function, call.Arguments...)
	if err := f.Verify(); err != nil {
		return nil, err
	}
	b, err := f.Bytes()
	if err != nil {
		return nil, err
	}
	future, err := tx.FutureOutput(f)
	if err != nil {
		return nil, err
	}
	public := tx.Output{
		Kind:       tx.OutputPublic,
		Commitment: hashing.ComputeHash256Array(append(append([]byte(nil), outputTag...), b...)),
	}
	return []tx.Output{public, future}, nil
}

func (p *Prover) Prove(_ context.Context, publicInputs []ids.ID) ([]byte, error) {
	return p.digest(publicInputs)
}

// Verify reports whether [proof] was produced by Prove for [publicInputs].
func (p *Prover) Verify(proof []byte, publicInputs []ids.ID) bool {
	expected, err := p.digest(publicInputs)
	if err != nil {
		return false
	}
	return bytes.Equal(proof, expected)
}

func (p *Prover) digest(publicInputs []ids.ID) ([]byte, error) {
	h, err := blake2b.New256(p.key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to key proof hash: %w", err)
	}
	for _, input := range publicInputs {
		_, _ = h.Write(input[:])
	}
	return h.Sum(nil), nil
}

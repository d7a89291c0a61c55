// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/finalizevm/program"
)

var (
	errNoCalls            = errors.New("transaction has no calls")
	errNoProof            = errors.New("transaction has no proof")
	errUnknownOutputKind  = errors.New("unknown output kind")
	errUnknownFeeMode     = errors.New("unknown fee mode")
	errUnexpectedDescr    = errors.New("only future outputs carry a descriptor")
	errCommitmentMismatch = errors.New("future commitment does not match its descriptor")
)

// leafTag separates transaction leaves from every other digest.
var leafTag = []byte("finalizevm/leaf")

type OutputKind uint8

const (
	OutputPrivate OutputKind = iota
	OutputPublic
	OutputFuture
)

func (k OutputKind) String() string {
	switch k {
	case OutputPrivate:
		return "private"
	case OutputPublic:
		return "public"
	case OutputFuture:
		return "future"
	default:
		return "unknown"
	}
}

// Output is one committed output of an execution. Future outputs carry the
// serialized future as their descriptor and its ID as their commitment.
type Output struct {
	Kind       OutputKind `serialize:"true" json:"kind"`
	Commitment ids.ID     `serialize:"true" json:"commitment"`
	Descriptor []byte     `serialize:"true" json:"descriptor"`
}

// FutureOutput commits to [f].
func FutureOutput(f program.Future) (Output, error) {
	b, err := f.Bytes()
	if err != nil {
		return Output{}, err
	}
	return Output{
		Kind:       OutputFuture,
		Commitment: hashing.ComputeHash256Array(b),
		Descriptor: b,
	}, nil
}

func (o Output) Verify() error {
	switch o.Kind {
	case OutputPrivate, OutputPublic:
		if len(o.Descriptor) != 0 {
			return errUnexpectedDescr
		}
		return nil
	case OutputFuture:
		f, err := program.ParseFuture(o.Descriptor)
		if err != nil {
			return err
		}
		id, err := f.ID()
		if err != nil {
			return err
		}
		if id != o.Commitment {
			return errCommitmentMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", errUnknownOutputKind, o.Kind)
	}
}

// Call is one program invocation requested by a transaction.
type Call struct {
	ProgramID string          `serialize:"true" json:"programID"`
	Function  string          `serialize:"true" json:"function"`
	Arguments []program.Value `serialize:"true" json:"arguments"`
}

// Execution is the trace of running a transaction's calls: ordered outputs
// and the proof binding them.
type Execution struct {
	Outputs []Output `serialize:"true" json:"outputs"`
	Proof   []byte   `serialize:"true" json:"proof"`
}

type FeeMode uint8

const (
	// FeePublic is paid from the payer's public credits balance.
	FeePublic FeeMode = iota
	// FeePrivate is paid by consuming a private record proven in the
	// execution. It does not touch public mappings.
	FeePrivate
)

func (m FeeMode) String() string {
	switch m {
	case FeePublic:
		return "public"
	case FeePrivate:
		return "private"
	default:
		return "unknown"
	}
}

type Fee struct {
	Payer  ids.ShortID `serialize:"true" json:"payer"`
	Amount uint64      `serialize:"true" json:"amount"`
	Mode   FeeMode     `serialize:"true" json:"mode"`
}

// Tx is an immutable, content addressed transaction.
type Tx struct {
	Calls     []Call    `serialize:"true" json:"calls"`
	Execution Execution `serialize:"true" json:"execution"`
	Fee       Fee       `serialize:"true" json:"fee"`

	id      ids.ID
	bytes   []byte
	futures []program.Future
}

// New builds and verifies a transaction.
func New(calls []Call, execution Execution, fee Fee) (*Tx, error) {
	t := &Tx{
		Calls:     calls,
		Execution: execution,
		Fee:       fee,
	}
	b, err := program.Codec.Marshal(program.CodecVersion, t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx: %w", err)
	}
	return t, t.initialize(b)
}

// Parse decodes and verifies a transaction.
func Parse(b []byte) (*Tx, error) {
	t := &Tx{}
	if err := program.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("failed to parse tx: %w", err)
	}
	return t, t.initialize(b)
}

func (t *Tx) initialize(b []byte) error {
	if len(t.Calls) == 0 {
		return errNoCalls
	}
	if len(t.Execution.Proof) == 0 {
		return errNoProof
	}
	if t.Fee.Mode != FeePublic && t.Fee.Mode != FeePrivate {
		return fmt.Errorf("%w: %d", errUnknownFeeMode, t.Fee.Mode)
	}
	for i, o := range t.Execution.Outputs {
		if err := o.Verify(); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		if o.Kind != OutputFuture {
			continue
		}
		f, _ := program.ParseFuture(o.Descriptor)
		t.futures = append(t.futures, f)
	}
	t.bytes = b
	t.id = hashing.ComputeHash256Array(b)
	return nil
}

func (t *Tx) ID() ids.ID { return t.id }

// Bytes returns the canonical encoding of the transaction.
func (t *Tx) Bytes() []byte { return t.bytes }

// Futures returns the futures of the execution in output order.
func (t *Tx) Futures() []program.Future { return t.futures }

// Commitments returns the output commitments in output order.
func (t *Tx) Commitments() []ids.ID {
	commitments := make([]ids.ID, len(t.Execution.Outputs))
	for i, o := range t.Execution.Outputs {
		commitments[i] = o.Commitment
	}
	return commitments
}

// Statement binds the calls and the fee that the proof must attest to.
func (t *Tx) Statement() ids.ID { return Statement(t.Calls, t.Fee) }

// PublicInputs are the statement followed by every output commitment.
func (t *Tx) PublicInputs() []ids.ID {
	return PublicInputs(t.Calls, t.Execution.Outputs, t.Fee)
}

func Statement(calls []Call, fee Fee) ids.ID {
	p := wrappers.Packer{MaxSize: math.MaxInt32}
	p.PackInt(uint32(len(calls)))
	for _, c := range calls {
		p.PackStr(c.ProgramID)
		p.PackStr(c.Function)
		p.PackInt(uint32(len(c.Arguments)))
		for _, arg := range c.Arguments {
			p.PackBytes(arg.Bytes())
		}
	}
	p.PackFixedBytes(fee.Payer[:])
	p.PackLong(fee.Amount)
	p.PackByte(byte(fee.Mode))
	return hashing.ComputeHash256Array(p.Bytes)
}

func PublicInputs(calls []Call, outputs []Output, fee Fee) []ids.ID {
	inputs := make([]ids.ID, 0, 1+len(outputs))
	inputs = append(inputs, Statement(calls, fee))
	for _, o := range outputs {
		inputs = append(inputs, o.Commitment)
	}
	return inputs
}

// Leaf is the digest the transaction contributes to the block commitment:
// H(tag || txID || commitments...).
func (t *Tx) Leaf() ids.ID {
	preimage := make([]byte, 0, len(leafTag)+(1+len(t.Execution.Outputs))*len(ids.Empty))
	preimage = append(preimage, leafTag...)
	preimage = append(preimage, t.id[:]...)
	for _, o := range t.Execution.Outputs {
		preimage = append(preimage, o.Commitment[:]...)
	}
	return hashing.ComputeHash256Array(preimage)
}

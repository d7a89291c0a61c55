// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindU64 Kind = iota + 1
	KindBool
	KindAddress
	KindField
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindU64:
		return "u64"
	case KindBool:
		return "boolean"
	case KindAddress:
		return "address"
	case KindField:
		return "field"
	case KindBytes:
		return "bytes"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a typed plaintext used for finalize arguments, mapping keys and
// mapping values.
type Value struct {
	Knd Kind   `serialize:"true" json:"kind"`
	Dt  []byte `serialize:"true" json:"data"`
}

func U64(v uint64) Value {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, v)
	return Value{Knd: KindU64, Dt: b}
}

func Bool(v bool) Value {
	if v {
		return Value{Knd: KindBool, Dt: []byte{1}}
	}
	return Value{Knd: KindBool, Dt: []byte{0}}
}

func Address(addr ids.ShortID) Value {
	return Value{Knd: KindAddress, Dt: addr.Bytes()}
}

func Field(f ids.ID) Value {
	return Value{Knd: KindField, Dt: f[:]}
}

func Bytes(b []byte) Value {
	return Value{Knd: KindBytes, Dt: append([]byte(nil), b...)}
}

// Kind returns the type tag of [v].
func (v Value) Kind() Kind { return v.Knd }

// Data returns the raw payload of [v].
func (v Value) Data() []byte { return v.Dt }

func (v Value) U64() (uint64, error) {
	if v.Knd != KindU64 || len(v.Dt) != wrappers.LongLen {
		return 0, v.kindErr(KindU64)
	}
	return binary.BigEndian.Uint64(v.Dt), nil
}

func (v Value) Bool() (bool, error) {
	if v.Knd != KindBool || len(v.Dt) != wrappers.BoolLen || v.Dt[0] > 1 {
		return false, v.kindErr(KindBool)
	}
	return v.Dt[0] == 1, nil
}

func (v Value) Address() (ids.ShortID, error) {
	if v.Knd != KindAddress {
		return ids.ShortEmpty, v.kindErr(KindAddress)
	}
	addr, err := ids.ToShortID(v.Dt)
	if err != nil {
		return ids.ShortEmpty, v.kindErr(KindAddress)
	}
	return addr, nil
}

func (v Value) Field() (ids.ID, error) {
	if v.Knd != KindField {
		return ids.Empty, v.kindErr(KindField)
	}
	f, err := ids.ToID(v.Dt)
	if err != nil {
		return ids.Empty, v.kindErr(KindField)
	}
	return f, nil
}

// Verify checks that the payload of [v] is well formed for its kind.
func (v Value) Verify() error {
	var err error
	switch v.Knd {
	case KindU64:
		_, err = v.U64()
	case KindBool:
		_, err = v.Bool()
	case KindAddress:
		_, err = v.Address()
	case KindField:
		_, err = v.Field()
	case KindBytes:
	default:
		err = fmt.Errorf("%w: unknown kind %s", ErrWrongKind, v.Knd)
	}
	return err
}

// Equal reports whether [v] and [o] have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v.Knd == o.Knd && bytes.Equal(v.Dt, o.Dt)
}

// Bytes returns the canonical encoding of [v]: the kind byte followed by
// the length prefixed payload. It matches the linear codec layout of Value.
func (v Value) Bytes() []byte {
	p := wrappers.Packer{
		MaxSize: wrappers.ByteLen + wrappers.IntLen + len(v.Dt),
		Bytes:   make([]byte, 0, wrappers.ByteLen+wrappers.IntLen+len(v.Dt)),
	}
	p.PackByte(byte(v.Knd))
	p.PackBytes(v.Dt)
	return p.Bytes
}

func (v Value) String() string {
	switch v.Knd {
	case KindU64:
		if n, err := v.U64(); err == nil {
			return strconv.FormatUint(n, 10) + "u64"
		}
	case KindBool:
		if b, err := v.Bool(); err == nil {
			return strconv.FormatBool(b)
		}
	case KindAddress:
		if a, err := v.Address(); err == nil {
			return a.String()
		}
	case KindField:
		if f, err := v.Field(); err == nil {
			return f.String() + "field"
		}
	}
	return v.Knd.String() + ":0x" + hex.EncodeToString(v.Dt)
}

func (v Value) kindErr(want Kind) error {
	return fmt.Errorf("%w: expected %s, found %s", ErrWrongKind, want, v.Knd)
}

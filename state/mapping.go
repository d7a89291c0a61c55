// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/finalizevm/program"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	programPrefix = []byte("program")
	mappingPrefix = []byte("mapping")
	valuePrefix   = []byte("value")
)

// OperationKind names a mapping state transition.
type OperationKind uint8

const (
	InsertKeyValue OperationKind = iota + 1
	UpdateKeyValue
	RemoveKeyValue
	InitializeMapping
	RemoveMapping
)

func (k OperationKind) String() string {
	switch k {
	case InsertKeyValue:
		return "insert_key_value"
	case UpdateKeyValue:
		return "update_key_value"
	case RemoveKeyValue:
		return "remove_key_value"
	case InitializeMapping:
		return "initialize_mapping"
	case RemoveMapping:
		return "remove_mapping"
	default:
		return fmt.Sprintf("operation(%d)", uint8(k))
	}
}

// Operation records one mapping state transition.
type Operation struct {
	Kind      OperationKind `serialize:"true" json:"kind"`
	MappingID ids.ID        `serialize:"true" json:"mappingID"`
	KeyID     ids.ID        `serialize:"true" json:"keyID"`
	ValueID   ids.ID        `serialize:"true" json:"valueID"`
}

type programRecord struct {
	Mppngs []string `serialize:"true"`
}

type mappingRecord struct {
	ProgramID string `serialize:"true"`
	Name      string `serialize:"true"`
}

// Entry is a stored mapping key and its value.
type Entry struct {
	Key program.Value `serialize:"true" json:"key"`
	Val program.Value `serialize:"true" json:"value"`
}

// Mappings provides the (program, mapping, key) -> value view over a
// database layer. The layout is:
//
//	program/<programID>           -> mapping names, in initialization order
//	mapping/<mappingID>           -> (programID, mapping name)
//	value/<mappingID>/<keyID>     -> (key, value)
type Mappings struct {
	programDB database.Database
	mappingDB database.Database
	valueDB   database.Database
}

func newMappings(db database.Database) *Mappings {
	return &Mappings{
		programDB: prefixdb.New(programPrefix, db),
		mappingDB: prefixdb.New(mappingPrefix, db),
		valueDB:   prefixdb.New(valuePrefix, db),
	}
}

// newReader is used on read-only views.
func newReader(db database.Database) *Mappings { return newMappings(db) }

func (m *Mappings) valuesOf(mappingID ids.ID) database.Database {
	return prefixdb.New(mappingID[:], m.valueDB)
}

// Programs returns every program with at least one mapping, ordered by ID.
func (m *Mappings) Programs() ([]string, error) {
	it := m.programDB.NewIterator()
	defer it.Release()

	var programs []string
	for it.Next() {
		programs = append(programs, string(it.Key()))
	}
	return programs, it.Error()
}

// MappingNames returns the mappings of [programID] in initialization order.
func (m *Mappings) MappingNames(programID string) ([]string, error) {
	b, err := m.programDB.Get([]byte(programID))
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := programRecord{}
	if err := program.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse program record %q: %w", programID, err)
	}
	return rec.Mppngs, nil
}

func (m *Mappings) putMappingNames(programID string, names []string) error {
	if len(names) == 0 {
		return m.programDB.Delete([]byte(programID))
	}
	b, err := program.Codec.Marshal(program.CodecVersion, &programRecord{Mppngs: names})
	if err != nil {
		return err
	}
	return m.programDB.Put([]byte(programID), b)
}

// HasMapping reports whether the mapping was initialized.
func (m *Mappings) HasMapping(programID, mapping string) (bool, error) {
	mappingID := MappingID(programID, mapping)
	return m.mappingDB.Has(mappingID[:])
}

func (m *Mappings) requireMapping(programID, mapping string) (ids.ID, error) {
	mappingID := MappingID(programID, mapping)
	ok, err := m.mappingDB.Has(mappingID[:])
	if err != nil {
		return ids.Empty, err
	}
	if !ok {
		return ids.Empty, fmt.Errorf("%w: %s/%s", ErrMappingNotInitialized, programID, mapping)
	}
	return mappingID, nil
}

// InitializeMapping registers an empty mapping for [programID].
func (m *Mappings) InitializeMapping(programID, mapping string) (Operation, error) {
	mappingID := MappingID(programID, mapping)
	exists, err := m.mappingDB.Has(mappingID[:])
	if err != nil {
		return Operation{}, err
	}
	if exists {
		return Operation{}, fmt.Errorf("%w: %s/%s", ErrMappingExists, programID, mapping)
	}

	names, err := m.MappingNames(programID)
	if err != nil {
		return Operation{}, err
	}
	if err := m.putMappingNames(programID, append(names, mapping)); err != nil {
		return Operation{}, err
	}

	b, err := program.Codec.Marshal(program.CodecVersion, &mappingRecord{ProgramID: programID, Name: mapping})
	if err != nil {
		return Operation{}, err
	}
	if err := m.mappingDB.Put(mappingID[:], b); err != nil {
		return Operation{}, err
	}
	return Operation{Kind: InitializeMapping, MappingID: mappingID}, nil
}

// ContainsKey reports whether [key] is set in the mapping.
func (m *Mappings) ContainsKey(programID, mapping string, key program.Value) (bool, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return false, err
	}
	keyID := KeyID(mappingID, key)
	return m.valuesOf(mappingID).Has(keyID[:])
}

// GetValue returns the value stored under [key], if any.
func (m *Mappings) GetValue(programID, mapping string, key program.Value) (program.Value, bool, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return program.Value{}, false, err
	}
	keyID := KeyID(mappingID, key)
	b, err := m.valuesOf(mappingID).Get(keyID[:])
	if err == database.ErrNotFound {
		return program.Value{}, false, nil
	}
	if err != nil {
		return program.Value{}, false, err
	}
	e := Entry{}
	if err := program.Unmarshal(b, &e); err != nil {
		return program.Value{}, false, fmt.Errorf("failed to parse entry %s: %w", keyID, err)
	}
	return e.Val, true, nil
}

// InsertKeyValue stores a new entry and fails if [key] is already set.
func (m *Mappings) InsertKeyValue(programID, mapping string, key, value program.Value) (Operation, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return Operation{}, err
	}
	keyID := KeyID(mappingID, key)
	exists, err := m.valuesOf(mappingID).Has(keyID[:])
	if err != nil {
		return Operation{}, err
	}
	if exists {
		return Operation{}, fmt.Errorf("%w: %s/%s[%s]", ErrKeyExists, programID, mapping, key)
	}
	return m.put(mappingID, keyID, InsertKeyValue, key, value)
}

// UpdateKeyValue stores [value] under [key], creating the entry if needed.
func (m *Mappings) UpdateKeyValue(programID, mapping string, key, value program.Value) (Operation, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return Operation{}, err
	}
	keyID := KeyID(mappingID, key)
	exists, err := m.valuesOf(mappingID).Has(keyID[:])
	if err != nil {
		return Operation{}, err
	}
	kind := UpdateKeyValue
	if !exists {
		kind = InsertKeyValue
	}
	return m.put(mappingID, keyID, kind, key, value)
}

func (m *Mappings) put(mappingID, keyID ids.ID, kind OperationKind, key, value program.Value) (Operation, error) {
	b, err := program.Codec.Marshal(program.CodecVersion, &Entry{Key: key, Val: value})
	if err != nil {
		return Operation{}, err
	}
	if err := m.valuesOf(mappingID).Put(keyID[:], b); err != nil {
		return Operation{}, err
	}
	return Operation{
		Kind:      kind,
		MappingID: mappingID,
		KeyID:     keyID,
		ValueID:   ValueID(keyID, value),
	}, nil
}

// RemoveKeyValue deletes the entry under [key] and fails if it is not set.
func (m *Mappings) RemoveKeyValue(programID, mapping string, key program.Value) (Operation, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return Operation{}, err
	}
	keyID := KeyID(mappingID, key)
	values := m.valuesOf(mappingID)
	exists, err := values.Has(keyID[:])
	if err != nil {
		return Operation{}, err
	}
	if !exists {
		return Operation{}, fmt.Errorf("%w: %s/%s[%s]", ErrKeyNotFound, programID, mapping, key)
	}
	if err := values.Delete(keyID[:]); err != nil {
		return Operation{}, err
	}
	return Operation{Kind: RemoveKeyValue, MappingID: mappingID, KeyID: keyID}, nil
}

// Entries returns every entry of the mapping ordered by key ID.
func (m *Mappings) Entries(programID, mapping string) ([]Entry, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = m.iterate(mappingID, func(keyID ids.ID, e Entry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func (m *Mappings) iterate(mappingID ids.ID, f func(keyID ids.ID, e Entry) error) error {
	it := m.valuesOf(mappingID).NewIterator()
	defer it.Release()

	for it.Next() {
		keyID, err := ids.ToID(it.Key())
		if err != nil {
			return err
		}
		e := Entry{}
		if err := program.Unmarshal(it.Value(), &e); err != nil {
			return fmt.Errorf("failed to parse entry %s: %w", keyID, err)
		}
		if err := f(keyID, e); err != nil {
			return err
		}
	}
	return it.Error()
}

// RemoveMapping deletes the mapping and all of its entries.
func (m *Mappings) RemoveMapping(programID, mapping string) (Operation, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return Operation{}, err
	}

	var keyIDs []ids.ID
	err = m.iterate(mappingID, func(keyID ids.ID, _ Entry) error {
		keyIDs = append(keyIDs, keyID)
		return nil
	})
	if err != nil {
		return Operation{}, err
	}
	values := m.valuesOf(mappingID)
	for _, keyID := range keyIDs {
		if err := values.Delete(keyID[:]); err != nil {
			return Operation{}, err
		}
	}

	names, err := m.MappingNames(programID)
	if err != nil {
		return Operation{}, err
	}
	remaining := make([]string, 0, len(names))
	for _, name := range names {
		if name != mapping {
			remaining = append(remaining, name)
		}
	}
	if err := m.putMappingNames(programID, remaining); err != nil {
		return Operation{}, err
	}
	if err := m.mappingDB.Delete(mappingID[:]); err != nil {
		return Operation{}, err
	}
	return Operation{Kind: RemoveMapping, MappingID: mappingID}, nil
}

// RemoveProgram deletes every mapping of [programID].
func (m *Mappings) RemoveProgram(programID string) ([]Operation, error) {
	names, err := m.MappingNames(programID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	ops := make([]Operation, 0, len(names))
	for _, name := range names {
		op, err := m.RemoveMapping(programID, name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

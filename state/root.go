// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/ava-labs/finalizevm/merkle"
)

// MappingRoot is the root of the tree over the mapping's value IDs, ordered
// by key ID.
func (m *Mappings) MappingRoot(programID, mapping string, arity int) (ids.ID, error) {
	valueIDs, err := m.valueIDs(programID, mapping)
	if err != nil {
		return ids.Empty, err
	}
	return merkle.Root(valueIDs, arity)
}

// ProgramRoot is the root of the tree over the program's mapping roots, in
// mapping initialization order.
func (m *Mappings) ProgramRoot(programID string, arity int) (ids.ID, error) {
	names, err := m.MappingNames(programID)
	if err != nil {
		return ids.Empty, err
	}
	roots := make([]ids.ID, len(names))
	for i, name := range names {
		roots[i], err = m.MappingRoot(programID, name, arity)
		if err != nil {
			return ids.Empty, err
		}
	}
	return merkle.Root(roots, arity)
}

// StateRoot is the root of the tree over every program root, ordered by
// program ID.
func (m *Mappings) StateRoot(arity int) (ids.ID, error) {
	programs, err := m.Programs()
	if err != nil {
		return ids.Empty, err
	}
	roots := make([]ids.ID, len(programs))
	for i, programID := range programs {
		roots[i], err = m.ProgramRoot(programID, arity)
		if err != nil {
			return ids.Empty, err
		}
	}
	return merkle.Root(roots, arity)
}

// Checksum is H(mapping checksums...), where each mapping checksum is
// H(mappingID || value IDs...).
func (m *Mappings) Checksum() (ids.ID, error) {
	programs, err := m.Programs()
	if err != nil {
		return ids.Empty, err
	}
	var preimage []byte
	for _, programID := range programs {
		names, err := m.MappingNames(programID)
		if err != nil {
			return ids.Empty, err
		}
		for _, name := range names {
			valueIDs, err := m.valueIDs(programID, name)
			if err != nil {
				return ids.Empty, err
			}
			mappingID := MappingID(programID, name)
			mappingPreimage := append([]byte(nil), mappingID[:]...)
			for _, valueID := range valueIDs {
				mappingPreimage = append(mappingPreimage, valueID[:]...)
			}
			checksum := hashing.ComputeHash256Array(mappingPreimage)
			preimage = append(preimage, checksum[:]...)
		}
	}
	return hashing.ComputeHash256Array(preimage), nil
}

func (m *Mappings) valueIDs(programID, mapping string) ([]ids.ID, error) {
	mappingID, err := m.requireMapping(programID, mapping)
	if err != nil {
		return nil, err
	}
	var valueIDs []ids.ID
	err = m.iterate(mappingID, func(keyID ids.ID, e Entry) error {
		valueIDs = append(valueIDs, ValueID(keyID, e.Val))
		return nil
	})
	return valueIDs, err
}

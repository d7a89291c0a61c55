// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

const (
	IsInitializedKey byte = iota
	LastAcceptedKey
)

var (
	isInitializedKey = []byte{IsInitializedKey}
	lastAcceptedKey  = []byte{LastAcceptedKey}

	_ SingletonState = (*singletonState)(nil)
)

// SingletonState holds the chain-wide markers: whether genesis was applied
// and which block was accepted last.
type SingletonState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	GetLastAccepted() (ids.ID, error)
	SetLastAccepted(ids.ID) error
}

type singletonState struct {
	singletonDB database.Database
}

func NewSingletonState(db database.Database) SingletonState {
	return &singletonState{
		singletonDB: db,
	}
}

func (s *singletonState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *singletonState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

func (s *singletonState) GetLastAccepted() (ids.ID, error) {
	b, err := s.singletonDB.Get(lastAcceptedKey)
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(b)
}

func (s *singletonState) SetLastAccepted(blkID ids.ID) error {
	return s.singletonDB.Put(lastAcceptedKey, blkID[:])
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"encoding/binary"
	"fmt"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const blockCacheSize = 8192

var _ BlockState = (*blockState)(nil)

type BlockState interface {
	GetBlock(blkID ids.ID) (*Block, error)
	GetBlockIDAtHeight(height uint64) (ids.ID, error)
	PutBlock(blk *Block) error
}

// blockState indexes blocks by ID and by height. Parsed blocks are cached
// in [blkCache]; only committed blocks may be put into it.
type blockState struct {
	blkCache cache.Cacher
	blockDB  database.Database
	heightDB database.Database
}

func NewBlockState(blockDB, heightDB database.Database, blkCache cache.Cacher) BlockState {
	if blkCache == nil {
		blkCache = &cache.LRU{Size: blockCacheSize}
	}
	return &blockState{
		blkCache: blkCache,
		blockDB:  blockDB,
		heightDB: heightDB,
	}
}

func (s *blockState) GetBlock(blkID ids.ID) (*Block, error) {
	if blk, ok := s.blkCache.Get(blkID); ok {
		return blk.(*Block), nil
	}

	blkBytes, err := s.blockDB.Get(blkID[:])
	if err != nil {
		return nil, fmt.Errorf("failed to get block %s: %w", blkID, err)
	}
	blk, err := ParseBlock(blkBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block from disk %s: %w", blkID, err)
	}
	s.blkCache.Put(blkID, blk)
	return blk, nil
}

func (s *blockState) GetBlockIDAtHeight(height uint64) (ids.ID, error) {
	blkID, err := s.heightDB.Get(heightKey(height))
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(blkID)
}

func (s *blockState) PutBlock(blk *Block) error {
	if err := s.heightDB.Put(heightKey(blk.Height()), blk.id[:]); err != nil {
		return fmt.Errorf("failed to put block %s into height index: %w", blk.ID(), err)
	}
	if err := s.blockDB.Put(blk.id[:], blk.bytes); err != nil {
		return fmt.Errorf("failed to put block %s into block index: %w", blk.ID(), err)
	}
	return nil
}

func heightKey(height uint64) []byte {
	b := make([]byte, wrappers.LongLen)
	binary.BigEndian.PutUint64(b, height)
	return b
}

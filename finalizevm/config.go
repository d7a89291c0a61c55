// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"encoding/json"
	"fmt"

	"github.com/ava-labs/finalizevm/finalize"
	"github.com/ava-labs/finalizevm/merkle"
	"github.com/ava-labs/finalizevm/speculate"
)

const (
	defaultMempoolSize = 1024
	defaultBlockTxs    = 256
)

// Config is the JSON configuration of the VM. Missing fields take defaults.
type Config struct {
	TreeArity      int `json:"treeArity"`
	VerifyWorkers  int `json:"verifyWorkers"`
	ProofCacheSize int `json:"proofCacheSize"`
	MaxCalls       int `json:"maxCalls"`
	MaxDepth       int `json:"maxDepth"`
	MempoolSize    int `json:"mempoolSize"`
	BlockTxs       int `json:"blockTxs"`
}

func DefaultConfig() Config {
	sc := speculate.DefaultConfig()
	fc := finalize.DefaultConfig()
	return Config{
		TreeArity:      sc.TreeArity,
		VerifyWorkers:  sc.VerifyWorkers,
		ProofCacheSize: sc.ProofCacheSize,
		MaxCalls:       fc.MaxCalls,
		MaxDepth:       fc.MaxDepth,
		MempoolSize:    defaultMempoolSize,
		BlockTxs:       defaultBlockTxs,
	}
}

// ParseConfig reads [b] over the defaults. Empty input yields the defaults.
func ParseConfig(b []byte) (Config, error) {
	c := DefaultConfig()
	if len(b) > 0 {
		if err := json.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	return c, c.Verify()
}

func (c Config) Verify() error {
	if err := merkle.CheckArity(c.TreeArity); err != nil {
		return err
	}
	if c.MempoolSize <= 0 || c.BlockTxs <= 0 {
		return fmt.Errorf("mempool size (%d) and block txs (%d) must be positive", c.MempoolSize, c.BlockTxs)
	}
	return nil
}

func (c Config) speculate() speculate.Config {
	return speculate.Config{
		TreeArity:      c.TreeArity,
		VerifyWorkers:  c.VerifyWorkers,
		ProofCacheSize: c.ProofCacheSize,
	}
}

func (c Config) finalize() finalize.Config {
	return finalize.Config{
		MaxCalls: c.MaxCalls,
		MaxDepth: c.MaxDepth,
	}
}

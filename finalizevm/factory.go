// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"github.com/ava-labs/avalanchego/ids"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/finalizevm/finalize"
	"github.com/ava-labs/finalizevm/programs/credits"
	"github.com/ava-labs/finalizevm/programs/token"
	"github.com/ava-labs/finalizevm/speculate"
)

// ID is a unique identifier for this VM
var ID = ids.ID{'f', 'i', 'n', 'a', 'l', 'i', 'z', 'e'}

// Factory builds VMs running the built-in programs.
type Factory struct {
	Verifier   speculate.Verifier
	Registerer prometheus.Registerer
}

// New returns a VM with credits and token deployed.
func (f *Factory) New(logger log.Logger) (*VM, error) {
	registry, err := finalize.NewRegistry(credits.Program(), token.Program())
	if err != nil {
		return nil, err
	}
	return New(registry, f.Verifier, f.Registerer, logger), nil
}

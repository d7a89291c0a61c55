// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package finalizevm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/finalizevm/programs/credits"
)

var errMissingCredits = errors.New("genesis must deploy " + credits.ProgramID)

type Allocation struct {
	Address ids.ShortID `json:"address"`
	Balance uint64      `json:"balance"`
}

// Genesis lists the programs whose mappings exist from the start and the
// initial public credits balances.
type Genesis struct {
	Timestamp   int64        `json:"timestamp"`
	Programs    []string     `json:"programs"`
	Allocations []Allocation `json:"allocations"`
}

func ParseGenesis(b []byte) (*Genesis, error) {
	g := &Genesis{}
	if err := json.Unmarshal(b, g); err != nil {
		return nil, fmt.Errorf("failed to parse genesis: %w", err)
	}
	for _, programID := range g.Programs {
		if programID == credits.ProgramID {
			return g, nil
		}
	}
	return nil, errMissingCredits
}

// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/ava-labs/finalizevm/finalizevm"
	"github.com/ava-labs/finalizevm/program"
	"github.com/ava-labs/finalizevm/tx"
)

// Client defines finalizevm client operations.
type Client interface {
	// IssueTx submits a transaction to the mempool
	IssueTx(ctx context.Context, t *tx.Tx) (ids.ID, error)

	// BuildBlock asks the node to build a block out of its mempool
	BuildBlock(ctx context.Context) (*finalizevm.BuildBlockReply, error)

	// GetBlock fetches a block. A nil [blkID] fetches the last accepted one.
	GetBlock(ctx context.Context, blkID *ids.ID) (*finalizevm.GetBlockReply, error)

	// GetMappingValue reads a mapping entry of the last accepted state
	GetMappingValue(ctx context.Context, programID, mapping string, key program.Value) (program.Value, bool, error)

	// GetInclusionPath fetches the proof that [txID] was accepted in [blkID]
	GetInclusionPath(ctx context.Context, blkID, txID ids.ID) (*finalizevm.GetInclusionPathReply, error)

	// Simulate speculates transactions without committing them
	Simulate(ctx context.Context, txs []*tx.Tx) (*finalizevm.SimulateReply, error)
}

// New creates a new client object for the API served at [uri].
func New(uri string) Client {
	return &client{
		uri:  uri,
		http: http.DefaultClient,
	}
}

type client struct {
	uri  string
	http *http.Client
}

func (cli *client) IssueTx(ctx context.Context, t *tx.Tx) (ids.ID, error) {
	encoded, err := finalizevm.EncodeTx(t)
	if err != nil {
		return ids.Empty, err
	}
	resp := new(finalizevm.IssueTxReply)
	err = cli.sendRequest(ctx,
		"issueTx",
		&finalizevm.IssueTxArgs{Tx: encoded},
		resp,
	)
	return resp.TxID, err
}

func (cli *client) BuildBlock(ctx context.Context) (*finalizevm.BuildBlockReply, error) {
	resp := new(finalizevm.BuildBlockReply)
	err := cli.sendRequest(ctx, "buildBlock", &finalizevm.BuildBlockArgs{}, resp)
	return resp, err
}

func (cli *client) GetBlock(ctx context.Context, blkID *ids.ID) (*finalizevm.GetBlockReply, error) {
	resp := new(finalizevm.GetBlockReply)
	err := cli.sendRequest(ctx, "getBlock", &finalizevm.GetBlockArgs{ID: blkID}, resp)
	return resp, err
}

func (cli *client) GetMappingValue(ctx context.Context, programID, mapping string, key program.Value) (program.Value, bool, error) {
	resp := new(finalizevm.GetMappingValueReply)
	err := cli.sendRequest(ctx,
		"getMappingValue",
		&finalizevm.GetMappingValueArgs{
			ProgramID: programID,
			Mapping:   mapping,
			Key:       key,
		},
		resp,
	)
	return resp.Value, resp.Found, err
}

func (cli *client) GetInclusionPath(ctx context.Context, blkID, txID ids.ID) (*finalizevm.GetInclusionPathReply, error) {
	resp := new(finalizevm.GetInclusionPathReply)
	err := cli.sendRequest(ctx,
		"getInclusionPath",
		&finalizevm.GetInclusionPathArgs{BlockID: blkID, TxID: txID},
		resp,
	)
	return resp, err
}

func (cli *client) Simulate(ctx context.Context, txs []*tx.Tx) (*finalizevm.SimulateReply, error) {
	args := &finalizevm.SimulateArgs{Txs: make([]string, len(txs))}
	for i, t := range txs {
		encoded, err := finalizevm.EncodeTx(t)
		if err != nil {
			return nil, err
		}
		args.Txs[i] = encoded
	}
	resp := new(finalizevm.SimulateReply)
	err := cli.sendRequest(ctx, "simulate", args, resp)
	return resp, err
}

func (cli *client) sendRequest(ctx context.Context, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(finalizevm.Name+"."+method, args)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cli.uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cli.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to issue %s request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s request returned status %s", method, resp.Status)
	}
	return json2.DecodeClientResponse(resp.Body, reply)
}

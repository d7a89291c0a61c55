// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ava-labs/finalizevm/finalizevm"
	"github.com/ava-labs/finalizevm/prover"
	"github.com/ava-labs/finalizevm/state"
)

const apiPath = "/ext/" + finalizevm.Name

func main() {
	p, err := getParams()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if p.version {
		fmt.Printf("%s@%s\n", finalizevm.Name, finalizevm.Version)
		os.Exit(0)
	}

	if err := run(p); err != nil {
		fmt.Printf("node returned an error: %s\n", err)
		os.Exit(1)
	}
}

func run(p *params) error {
	lvl, err := log.LvlFromString(p.logLevel)
	if err != nil {
		return err
	}
	logger := log.New()
	logger.SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	key, err := proverKey(p.proverKey)
	if err != nil {
		return err
	}

	var store *state.Store
	if p.dbDir == "" {
		store, err = state.NewMemory(logger)
	} else {
		store, err = state.Open(p.dbDir, logger)
	}
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	factory := &finalizevm.Factory{
		Verifier:   prover.New(key),
		Registerer: registry,
	}
	vm, err := factory.New(logger)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := vm.Initialize(ctx, store, p.genesis, p.config); err != nil {
		_ = store.Close()
		return err
	}
	defer func() {
		if err := vm.Shutdown(); err != nil {
			logger.Error("failed to shutdown vm", "err", err)
		}
	}()

	handlers, err := vm.CreateHandlers()
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.Handle(apiPath+path, handler)
	}
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              p.httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving api", "addr", p.httpAddr, "path", apiPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "err", err)
			cancel()
		}
	}()

	buildBlocks(ctx, vm, p.buildInterval, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// buildBlocks builds a block whenever the mempool signals pending
// transactions, at most once per [interval], until [ctx] is done.
func buildBlocks(ctx context.Context, vm *finalizevm.VM, interval time.Duration, logger log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-vm.Pending():
		}

		blk, err := vm.BuildBlock(ctx)
		if err != nil {
			logger.Warn("failed to build block", "err", err)
		} else {
			logger.Info("built block",
				"id", blk.ID(),
				"height", blk.Height(),
				"accepted", len(blk.Txs),
				"rejected", len(blk.Rejected),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func proverKey(encoded string) (ids.ID, error) {
	if encoded == "" {
		return ids.Empty, nil
	}
	key, err := ids.FromString(encoded)
	if err != nil {
		return ids.Empty, fmt.Errorf("invalid prover key: %w", err)
	}
	return key, nil
}

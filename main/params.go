// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix = "finalizevm"

	versionKey       = "version"
	dbDirKey         = "db-dir"
	httpAddrKey      = "http-addr"
	genesisFileKey   = "genesis-file"
	configFileKey    = "config-file"
	logLevelKey      = "log-level"
	proverKeyKey     = "prover-key"
	buildIntervalKey = "build-interval"
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("finalizevm", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(dbDirKey, "", "Database directory. Empty keeps all state in memory")
	fs.String(httpAddrKey, "127.0.0.1:9650", "Address the API and metrics are served on")
	fs.String(genesisFileKey, "", "Path to the genesis file")
	fs.String(configFileKey, "", "Path to the chain config file")
	fs.String(logLevelKey, "info", "Log level (crit, error, warn, info, debug)")
	fs.String(proverKeyKey, "", "CB58 encoded key of the development prover")
	fs.Duration(buildIntervalKey, 500*time.Millisecond, "Minimum delay between two built blocks")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}

type params struct {
	version       bool
	dbDir         string
	httpAddr      string
	genesis       []byte
	config        []byte
	logLevel      string
	proverKey     string
	buildInterval time.Duration
}

func getParams() (*params, error) {
	v, err := getViper()
	if err != nil {
		return nil, err
	}

	p := &params{
		version:       v.GetBool(versionKey),
		dbDir:         v.GetString(dbDirKey),
		httpAddr:      v.GetString(httpAddrKey),
		logLevel:      v.GetString(logLevelKey),
		proverKey:     v.GetString(proverKeyKey),
		buildInterval: v.GetDuration(buildIntervalKey),
	}
	if p.version {
		return p, nil
	}

	genesisFile := v.GetString(genesisFileKey)
	if genesisFile == "" {
		return nil, fmt.Errorf("--%s is required", genesisFileKey)
	}
	if p.genesis, err = os.ReadFile(genesisFile); err != nil {
		return nil, fmt.Errorf("couldn't read genesis: %w", err)
	}
	if configFile := v.GetString(configFileKey); configFile != "" {
		if p.config, err = os.ReadFile(configFile); err != nil {
			return nil, fmt.Errorf("couldn't read config: %w", err)
		}
	}
	return p, nil
}

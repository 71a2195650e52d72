// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

// Command lumen runs a Starknet-compatible execution node: a local
// development sequencer by default, or a node that forks off a remote
// network and/or follows it through the staged sync pipeline.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/lumenhq/lumen/internal/lumenlog"
)

var log = lumenlog.Named("cmd")

func main() {
	app := &cli.App{
		Name:  "lumen",
		Usage: "a Starknet-compatible execution node",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http.addr", Value: "0.0.0.0", Usage: "RPC listen address"},
			&cli.IntFlag{Name: "http.port", Value: 9545, Usage: "RPC listen port"},
			&cli.BoolFlag{Name: "rpc", Value: true, Usage: "enable the starknet_* JSON-RPC server"},
			&cli.StringFlag{Name: "chain-id", Value: "SN_SEPOLIA", Usage: "chain id, as an ASCII short string (e.g. SN_MAIN, SN_SEPOLIA)"},
			&cli.Uint64Flag{Name: "fork.block", Usage: "block number to fork from (used with --fork.provider)"},
			&cli.StringFlag{Name: "fork.provider", Usage: "feeder gateway base URL (or network name \"mainnet\"/\"sepolia\") to fork from; omit to run as a local sequencer with no remote"},
			&cli.BoolFlag{Name: "dev.no-fee", Usage: "disable fee charging in the executor"},
			&cli.BoolFlag{Name: "dev.no-account-validation", Usage: "disable __validate__ checks in the executor"},
			&cli.StringFlag{Name: "datadir", Value: "", Usage: "on-disk database directory; empty runs against an in-memory store"},
			&cli.IntFlag{Name: "datadir.max-readers", Value: 4096, Usage: "mdbx max concurrent readers"},
			&cli.StringFlag{Name: "producer.mode", Value: "instant", Usage: "block producer mode: instant or interval"},
			&cli.DurationFlag{Name: "producer.interval", Value: 2 * time.Second, Usage: "block interval when producer.mode=interval"},
			&cli.BoolFlag{Name: "sync", Usage: "run the staged sync pipeline against fork.provider, following its tip"},
			&cli.Uint64Flag{Name: "sync.chunk-size", Value: 64, Usage: "blocks per stage advance"},
			&cli.Float64Flag{Name: "feeder.rate-limit", Value: 10, Usage: "feeder gateway requests per second"},
			&cli.StringFlag{Name: "metrics.addr", Value: "", Usage: "Prometheus /metrics listen address; empty disables it"},
			&cli.StringFlag{Name: "verbosity", Value: "info", Usage: "log level: debug, info, warn, error"},
			&cli.StringSliceFlag{Name: "vmodule", Usage: "per-component log level override, e.g. stage_blocks=debug"},
			&cli.StringFlag{Name: "rpc.auth-token", Value: "", Usage: "bearer token required on RPC requests; empty disables auth"},
			&cli.StringSliceFlag{Name: "rpc.cors-origin", Value: cli.NewStringSlice("*"), Usage: "allowed CORS origins for the RPC server"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lumen:", err)
		os.Exit(1)
	}
}

func parseVerbosity(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid verbosity %q: %w", s, err)
	}
	return level, nil
}

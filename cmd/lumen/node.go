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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/lumenhq/lumen/executor"
	"github.com/lumenhq/lumen/executor/noop"
	"github.com/lumenhq/lumen/external"
	"github.com/lumenhq/lumen/internal/lumenlog"
	"github.com/lumenhq/lumen/internal/lumenmetrics"
	"github.com/lumenhq/lumen/kv"
	"github.com/lumenhq/lumen/pipeline"
	"github.com/lumenhq/lumen/primitives/address"
	"github.com/lumenhq/lumen/primitives/block"
	"github.com/lumenhq/lumen/primitives/class"
	"github.com/lumenhq/lumen/primitives/felt"
	"github.com/lumenhq/lumen/primitives/transaction"
	"github.com/lumenhq/lumen/producer"
	"github.com/lumenhq/lumen/provider"
	"github.com/lumenhq/lumen/rpc"
	"github.com/lumenhq/lumen/stages"
	"github.com/lumenhq/lumen/trie"
	"github.com/lumenhq/lumen/txpool"
)

// classReaderAdapter satisfies txpool.ClassReader against a provider's
// context-taking ClassArtifact lookup.
type classReaderAdapter struct {
	reader interface {
		ClassArtifact(ctx context.Context, hash class.Hash) (class.Class, bool, error)
	}
}

func (a classReaderAdapter) IsDeclared(hash class.Hash) (bool, error) {
	_, ok, err := a.reader.ClassArtifact(context.Background(), hash)
	return ok, err
}

// accountCheckerAdapter satisfies txpool.AccountChecker against a
// provider's class-hash-of-contract lookup, always checked against the
// chain's current head.
type accountCheckerAdapter struct {
	reader interface {
		LatestHeader(ctx context.Context) (block.Header, error)
		ClassHashOfContractAt(ctx context.Context, n block.Number, addr address.ContractAddress) (class.Hash, error)
	}
}

func (a accountCheckerAdapter) ClassHashOfContractAt(addr address.ContractAddress) (class.Hash, bool, error) {
	head, err := a.reader.LatestHeader(context.Background())
	if err != nil {
		return class.Hash{}, false, err
	}
	hash, err := a.reader.ClassHashOfContractAt(context.Background(), head.Number, addr)
	if err != nil {
		return class.Hash{}, false, err
	}
	return hash, hash.Felt != felt.Zero, nil
}

func run(c *cli.Context) error {
	level, err := parseVerbosity(c.String("verbosity"))
	if err != nil {
		return err
	}
	lumenlog.SetVerbosity(level)
	for _, entry := range c.StringSlice("vmodule") {
		component, levelStr, ok := splitVmodule(entry)
		if !ok {
			return fmt.Errorf("invalid --vmodule entry %q, want component=level", entry)
		}
		l, err := parseVerbosity(levelStr)
		if err != nil {
			return err
		}
		lumenlog.SetVmodule(component, l)
	}

	chainID := transaction.ChainIDFromASCII(c.String("chain-id"))

	db, err := openDatabase(c.String("datadir"), c.Int("datadir.max-readers"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	store := kv.NewStore(db, kv.DefaultHeaderCodec(), kv.DefaultClassCodec(), kv.DefaultReceiptCodec(), kv.DefaultTransactionCodec(), kv.DefaultTraceCodec())
	tries := trie.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	local := provider.NewLocal(store, tries, block.Header{})

	var reader rpc.ChainReader = local
	var feeder external.FeederClient
	if url := c.String("fork.provider"); url != "" {
		httpFeeder := feederFromFlag(url, c.Float64("feeder.rate-limit"))
		feeder = httpFeeder
		forkPoint := block.Number(c.Uint64("fork.block"))
		forked := provider.NewFork(local, httpFeeder, forkPoint)
		reader = forked
	}

	metricsReg := lumenmetrics.NewRegistry("lumen")
	txpoolMetrics := lumenmetrics.NewTxPoolMetrics(metricsReg)
	rpcMetrics := lumenmetrics.NewRPCMetrics(metricsReg)

	flags := executor.DefaultSimulationFlags()
	if c.Bool("dev.no-fee") {
		flags.Fee = false
	}
	if c.Bool("dev.no-account-validation") {
		flags.AccountValidation = false
	}
	factory := noop.NewFactoryWithFlags(flags)

	var validatorOpts []txpool.ValidatorOption
	if flags.AccountValidation {
		validatorOpts = append(validatorOpts, txpool.WithAccountChecker(accountCheckerAdapter{reader: local}))
	}
	validator := txpool.NewStatefulValidator(local, classReaderAdapter{reader: local}, validatorOpts...)
	pool := txpool.NewPool(validator, txpool.NewTipOrdering(), txpoolMetrics)

	var prod producer.Producer
	switch mode := c.String("producer.mode"); mode {
	case "instant":
		prod = producer.NewInstant(local, pool, factory)
	case "interval":
		prod = producer.NewInterval(local, pool, factory, c.Duration("producer.interval"))
	default:
		return fmt.Errorf("unknown --producer.mode %q, want instant or interval", mode)
	}
	if err := prod.Start(ctx); err != nil {
		return fmt.Errorf("starting producer: %w", err)
	}
	defer prod.Stop()

	var tip *pipeline.TipWatcher
	if c.Bool("sync") {
		if feeder == nil {
			return fmt.Errorf("--sync requires --fork.provider")
		}
		head, err := local.LatestHeader(ctx)
		if err != nil {
			return fmt.Errorf("reading head for trie base: %w", err)
		}
		base, err := store.Historical(ctx, head.Number)
		if err != nil {
			return fmt.Errorf("opening trie base reader: %w", err)
		}

		tip = pipeline.NewTipWatcher()
		pl := buildPipeline(db, store, tries, base, feeder, tip, c.Uint64("sync.chunk-size"))
		go func() {
			if err := pl.Run(ctx); err != nil {
				log.Error("sync pipeline stopped", zap.Error(err))
			}
		}()
		go pollTip(ctx, feeder, tip)
	}

	if addr := c.String("metrics.addr"); addr != "" {
		go serveMetrics(ctx, addr, metricsReg)
	}

	if !c.Bool("rpc") {
		<-ctx.Done()
		return nil
	}

	dispatcher := rpc.NewDispatcher()
	rpc.RegisterMethods(dispatcher, rpc.Deps{
		Reader:      reader,
		ChainID:     chainID,
		Pool:        pool,
		Factory:     factory,
		Pending:     rpc.NewProducerPendingProvider(prod),
		Tip:         tip,
		SpecVersion: "0.7.1",
	})

	cfg := rpc.DefaultServerConfig()
	cfg.Addr = fmt.Sprintf("%s:%d", c.String("http.addr"), c.Int("http.port"))
	cfg.AuthToken = c.String("rpc.auth-token")
	if origins := c.StringSlice("rpc.cors-origin"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}

	server := rpc.NewServer(cfg, dispatcher, rpcMetrics, nil)
	log.Info("starting RPC server", zap.String("addr", cfg.Addr))
	return server.Run(ctx)
}

func splitVmodule(s string) (component, level string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func openDatabase(datadir string, maxReaders int) (kv.DB, error) {
	if datadir == "" {
		return kv.NewMemDB(), nil
	}
	return kv.Open(datadir, maxReaders)
}

func feederFromFlag(providerFlag string, rps float64) *external.HTTPFeederClient {
	switch providerFlag {
	case "mainnet":
		return external.NewHTTPFeederClient(external.Mainnet, "", rps)
	case "sepolia":
		return external.NewHTTPFeederClient(external.Sepolia, "", rps)
	default:
		return external.NewHTTPFeederClient(external.Sepolia, providerFlag, rps)
	}
}

func buildPipeline(db kv.DB, store *kv.Store, tries *trie.Tries, base trie.BaseReader, feeder external.FeederClient, tip *pipeline.TipWatcher, chunkSize uint64) *pipeline.Pipeline {
	checkpoints := kv.NewCheckpoints(db)
	blocks := stages.NewBlocks(store, external.NewBlockSource(feeder), 8)
	classes := stages.NewClasses(store, external.NewDeclaredClassSource(feeder), external.NewClassArtifactSource(feeder), 8)
	stateTrie := stages.NewStateTrie(tries, base, external.NewStateTrieSource(feeder))
	return pipeline.New(checkpoints, tip, chunkSize, blocks, classes, stateTrie)
}

// pollTip periodically checks the feeder's most recent block and advances
// the watched tip, the minimal driver a --sync node needs without a
// dedicated new-head subscription.
func pollTip(ctx context.Context, feeder external.FeederClient, tip *pipeline.TipWatcher) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := feeder.LatestBlockNumber(ctx)
			if err != nil {
				log.Warn("polling feeder tip failed", zap.Error(err))
				continue
			}
			tip.Set(n)
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *lumenmetrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server stopped", zap.Error(err))
	}
}

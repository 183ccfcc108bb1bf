// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	log "github.com/inconshreveable/log15"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/blockstm/common/debug"
	"github.com/erigontech/blockstm/common/logging"
	"github.com/erigontech/blockstm/common/metrics"
	"github.com/erigontech/blockstm/execution/stm"
	"github.com/erigontech/blockstm/execution/stm/outcome"
	"github.com/erigontech/blockstm/execution/stm/state"
	"github.com/erigontech/blockstm/execution/stm/transfer"
)

var (
	ConfigFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML file with benchmark settings, flags take precedence",
	}
	BlocksFlag = cli.IntFlag{
		Name:  "blocks",
		Usage: "Number of blocks to execute, each over the state left by the previous one",
		Value: 1,
	}
	TxsFlag = cli.IntFlag{
		Name:  "txs",
		Usage: "Transactions per block",
		Value: 10_000,
	}
	AccountsFlag = cli.IntFlag{
		Name:  "accounts",
		Usage: "Number of funded accounts",
		Value: 10_000,
	}
	HotFlag = cli.IntFlag{
		Name:  "hot",
		Usage: "Accounts half of all senders are drawn from, 0 for uniform",
	}
	SweepsFlag = cli.Float64Flag{
		Name:  "sweeps",
		Usage: "Share of pointer updates and sweeps, which cannot reserve their keys",
	}
	SeedFlag = cli.Int64Flag{
		Name:  "seed",
		Usage: "Generator seed",
		Value: 1,
	}
	WorkersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "Worker goroutines, 0 for GOMAXPROCS",
	}
	MaxIncarnationsFlag = cli.IntFlag{
		Name:  "max.incarnations",
		Usage: "Incarnations after which a transaction runs serially, negative disables",
		Value: stm.DefaultMaxIncarnations,
	}
	FastPathFlag = cli.BoolFlag{
		Name:  "fastpath",
		Usage: "Reserve keys for plain transfers and mints",
		Value: true,
	}
	ProfileFlag = cli.BoolFlag{
		Name:  "profile",
		Usage: "Build the dependency graph and report the critical path",
	}
	VerifyFlag = cli.BoolFlag{
		Name:  "verify",
		Usage: "Re-execute every block sequentially and compare",
	}
	CacheSizeFlag = cli.IntFlag{
		Name:  "cache.size",
		Usage: "Entries of the LRU in front of the base state, 0 disables",
	}
	ReportFlag = cli.StringFlag{
		Name:  "report",
		Usage: "Write per block stats as JSON to this file",
	}
	MetricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Serve prometheus metrics on this address, e.g. 127.0.0.1:6061",
	}
)

var runCommand = cli.Command{
	Name:   "run",
	Usage:  "Execute generated blocks",
	Action: runBench,
	Flags: slices.Concat([]cli.Flag{
		&ConfigFlag,
		&BlocksFlag,
		&TxsFlag,
		&AccountsFlag,
		&HotFlag,
		&SweepsFlag,
		&SeedFlag,
		&WorkersFlag,
		&MaxIncarnationsFlag,
		&FastPathFlag,
		&ProfileFlag,
		&VerifyFlag,
		&CacheSizeFlag,
		&MetricsAddrFlag,
		&ReportFlag,
	}, logging.Flags, debug.Flags),
}

func runBench(cliCtx *cli.Context) error {
	logger := logging.SetupLoggerCtx("stmbench", cliCtx)
	defer debug.LogPanic(logger)

	stopProfiling, err := debug.Setup(cliCtx, logger)
	if err != nil {
		return err
	}
	defer stopProfiling()

	cfg, err := loadConfig(cliCtx.String(ConfigFlag.Name))
	if err != nil {
		return err
	}
	applyFlags(cliCtx, &cfg)
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := startMetrics(cfg.MetricsAddr, logger)
		defer srv.Close()
	}

	blocks, err := bench(ctx, cfg, logger)
	if err != nil {
		return err
	}
	renderTable(cliCtx.App.Writer, blocks)

	mem := readMemReport()
	logger.Info("[bench] memory", "alloc", mem.Alloc, "sys", mem.Sys, "total", mem.TotalMemory, "gc", mem.NumGC)
	if path := cliCtx.String(ReportFlag.Name); path != "" {
		if err := writeReport(path, benchReport{Config: cfg, Blocks: blocks, Memory: mem}); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("[bench] report written", "file", path)
	}
	return nil
}

func startMetrics(addr string, logger log.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/debug/metrics/prometheus", metrics.DefaultSet().Handler())
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()
	logger.Info("Starting metrics server", "addr", fmt.Sprintf("http://%s/debug/metrics/prometheus", addr))
	return srv
}

func bench(ctx context.Context, cfg benchConfig, logger log.Logger) ([]blockReport, error) {
	engine := stm.New[transfer.Tx](transfer.VM{}, cfg.engineConfig(), logger,
		stm.WithClassifier[transfer.Tx](transfer.Classifier{}))
	genesis := transfer.Genesis(cfg.Accounts, cfg.Balance)
	logger.Info("[bench] starting", "blocks", cfg.Blocks, "txs", cfg.Txs, "accounts", cfg.Accounts,
		"hot", cfg.Hot, "workers", engine.Config().Workers, "fastpath", cfg.FastPath)

	reports := make([]blockReport, 0, cfg.Blocks)
	for b := 0; b < cfg.Blocks; b++ {
		txs := transfer.Generate(transfer.GenConfig{
			Txs: cfg.Txs, Accounts: cfg.Accounts, Hot: cfg.Hot, Seed: cfg.Seed + int64(b), Sweeps: cfg.Sweeps,
		})

		var base state.Snapshot = genesis
		var cached *state.CachedSnapshot
		if cfg.CacheSize > 0 {
			var err error
			if cached, err = state.NewCachedSnapshot(genesis, cfg.CacheSize); err != nil {
				return nil, err
			}
			base = cached
		}

		res, err := engine.ExecuteBlock(ctx, txs, base)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", b, err)
		}
		if cached != nil {
			hits, misses := cached.Stats()
			logger.Debug("[bench] cache", "n", b, "hits", hits, "misses", misses)
		}
		reports = append(reports, newBlockReport(b, res.Stats))
		logger.Info("[bench] block", "n", b, "stats", res.Stats.String())

		if cfg.Verify {
			if err := verify(ctx, txs, genesis, res); err != nil {
				return nil, fmt.Errorf("block %d: %w", b, err)
			}
			logger.Info("[bench] verified", "n", b)
		}
		genesis = genesis.Apply(res.StateDiff())
	}
	return reports, nil
}

func verify(ctx context.Context, txs []transfer.Tx, base state.Snapshot, got *stm.BlockResult) error {
	want, err := stm.ExecuteSequential(ctx, transfer.VM{}, txs, base)
	if err != nil {
		return err
	}
	outcomeOpts := []cmp.Option{cmpopts.IgnoreFields(outcome.Outcome{}, "Incarnation", "FastPath"), cmpopts.EquateEmpty()}
	if diff := cmp.Diff(want.Outcomes, got.Outcomes, outcomeOpts...); diff != "" {
		fmt.Fprintln(os.Stderr, diff)
		return errors.New("parallel outcomes diverged from sequential")
	}
	if diff := cmp.Diff(want.StateDiff(), got.StateDiff(), cmpopts.EquateEmpty()); diff != "" {
		fmt.Fprintln(os.Stderr, diff)
		return errors.New("parallel execution diverged from sequential")
	}
	return nil
}

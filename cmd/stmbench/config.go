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
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/blockstm/execution/stm"
)

type benchConfig struct {
	Blocks   int     `toml:"blocks"`
	Txs      int     `toml:"txs"`
	Accounts int     `toml:"accounts"`
	Hot      int     `toml:"hot"`
	Sweeps   float64 `toml:"sweeps"`
	Seed     int64   `toml:"seed"`
	Balance  uint64  `toml:"balance"`

	Workers         int  `toml:"workers"`
	MaxIncarnations int  `toml:"max_incarnations"`
	FastPath        bool `toml:"fastpath"`
	Profile         bool `toml:"profile"`
	Verify          bool `toml:"verify"`
	CacheSize       int  `toml:"cache_size"`

	MetricsAddr string `toml:"metrics_addr"`
}

func defaultBenchConfig() benchConfig {
	return benchConfig{
		Blocks:          1,
		Txs:             10_000,
		Accounts:        10_000,
		Hot:             0,
		Seed:            1,
		Balance:         1_000_000,
		Workers:         runtime.GOMAXPROCS(0),
		MaxIncarnations: stm.DefaultMaxIncarnations,
		FastPath:        true,
	}
}

// loadConfig reads a TOML file over the defaults. Keys missing from the file
// keep their default.
func loadConfig(path string) (benchConfig, error) {
	cfg := defaultBenchConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c benchConfig) validate() error {
	switch {
	case c.Blocks < 1:
		return fmt.Errorf("blocks must be positive, got %d", c.Blocks)
	case c.Txs < 0:
		return fmt.Errorf("txs must not be negative, got %d", c.Txs)
	case c.Accounts < 2:
		return fmt.Errorf("need at least 2 accounts, got %d", c.Accounts)
	case c.Sweeps < 0 || c.Sweeps > 1:
		return fmt.Errorf("sweeps must be in [0, 1], got %v", c.Sweeps)
	case c.CacheSize < 0:
		return fmt.Errorf("cache size must not be negative, got %d", c.CacheSize)
	}
	return nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(ctx *cli.Context, cfg *benchConfig) {
	ints := map[string]*int{
		BlocksFlag.Name:          &cfg.Blocks,
		TxsFlag.Name:             &cfg.Txs,
		AccountsFlag.Name:        &cfg.Accounts,
		HotFlag.Name:             &cfg.Hot,
		WorkersFlag.Name:         &cfg.Workers,
		MaxIncarnationsFlag.Name: &cfg.MaxIncarnations,
		CacheSizeFlag.Name:       &cfg.CacheSize,
	}
	for name, p := range ints {
		if ctx.IsSet(name) {
			*p = ctx.Int(name)
		}
	}
	bools := map[string]*bool{
		FastPathFlag.Name: &cfg.FastPath,
		ProfileFlag.Name:  &cfg.Profile,
		VerifyFlag.Name:   &cfg.Verify,
	}
	for name, p := range bools {
		if ctx.IsSet(name) {
			*p = ctx.Bool(name)
		}
	}
	if ctx.IsSet(SeedFlag.Name) {
		cfg.Seed = ctx.Int64(SeedFlag.Name)
	}
	if ctx.IsSet(SweepsFlag.Name) {
		cfg.Sweeps = ctx.Float64(SweepsFlag.Name)
	}
	if ctx.IsSet(MetricsAddrFlag.Name) {
		cfg.MetricsAddr = ctx.String(MetricsAddrFlag.Name)
	}
}

func (c benchConfig) engineConfig() stm.Config {
	return stm.Config{
		Workers:         c.Workers,
		MaxIncarnations: c.MaxIncarnations,
		FastPath:        c.FastPath,
		Profile:         c.Profile,
	}
}

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

package stm

import (
	"runtime"

	"github.com/erigontech/blockstm/common/dbg"
)

const (
	// DefaultMaxIncarnations is the number of incarnations after which a
	// transaction is only executed at the commit frontier.
	DefaultMaxIncarnations = 16
	DefaultIdleSpins       = 64
)

type Config struct {
	// Workers is the size of the worker pool.
	Workers int
	// MaxIncarnations bounds speculative re-executions of one transaction.
	// Negative disables the bound.
	MaxIncarnations int
	// FastPath reserves keys for transactions the classifier accepts.
	FastPath bool
	// Profile builds the dependency graph of each block.
	Profile bool
	// IdleSpins is how many empty polls a worker yields before sleeping.
	IdleSpins int
}

// DefaultConfig is the configuration with BLOCKSTM_* environment overrides
// applied.
func DefaultConfig() Config {
	cfg := Config{
		Workers:         runtime.GOMAXPROCS(0),
		MaxIncarnations: DefaultMaxIncarnations,
		FastPath:        dbg.FastPath,
		Profile:         dbg.Profile,
		IdleSpins:       DefaultIdleSpins,
	}
	if dbg.ExecWorkers > 0 {
		cfg.Workers = dbg.ExecWorkers
	}
	if dbg.MaxIncarnations != 0 {
		cfg.MaxIncarnations = dbg.MaxIncarnations
	}
	return cfg
}

// withDefaults fills zero numeric fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.MaxIncarnations == 0 {
		c.MaxIncarnations = def.MaxIncarnations
	}
	if c.IdleSpins <= 0 {
		c.IdleSpins = def.IdleSpins
	}
	return c
}

func (c Config) maxIncarnations() int {
	if c.MaxIncarnations < 0 {
		return 0
	}
	return c.MaxIncarnations
}

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

package dbg

import (
	"os"
	"runtime"
	"runtime/debug"
)

var doMemstat = true

func init() {
	_, ok := os.LookupEnv(envPrefix + "NO_MEMSTAT")
	if ok {
		doMemstat = false
	}
}

func DoMemStat() bool { return doMemstat }
func ReadMemStats(m *runtime.MemStats) {
	if doMemstat {
		runtime.ReadMemStats(m)
	}
}

// Stack returns the goroutine stack as a single line, for panic reports.
func Stack() string {
	return string(debug.Stack())
}

var (
	// ExecWorkers overrides the engine's default worker count.
	ExecWorkers = EnvInt("WORKERS", 0)
	// MaxIncarnations overrides the abort limit before serial fallback.
	MaxIncarnations = EnvInt("MAX_INCARNATIONS", 0)
	// FastPath enables key reservations for classified transactions.
	FastPath = EnvBool("FASTPATH", true)
	// Profile builds the dependency DAG of every executed block.
	Profile = EnvBool("PROFILE", false)
	// ExecSummary logs a per-block summary at Info instead of Debug.
	ExecSummary = EnvBool("EXEC_SUMMARY", false)
)

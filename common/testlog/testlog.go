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

// Package testlog routes log records into the test log, so output is shown
// only for failed or verbose tests.
package testlog

import (
	"strings"
	"testing"

	log "github.com/inconshreveable/log15"
)

func Logger(t testing.TB, lvl log.Lvl) log.Logger {
	logger := log.New()
	format := log.LogfmtFormat()
	logger.SetHandler(log.LvlFilterHandler(lvl, log.FuncHandler(func(r *log.Record) error {
		t.Helper()
		t.Logf("%s", strings.TrimRight(string(format.Format(r)), "\n"))
		return nil
	})))
	return logger
}

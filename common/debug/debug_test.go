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

package debug

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/blockstm/common/testlog"
)

func TestSetupWritesCPUProfile(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range Flags {
		require.NoError(t, f.Apply(set))
	}
	dump := filepath.Join(t.TempDir(), "cpu.prof")
	require.NoError(t, set.Parse([]string{"--pprof.cpuprofile", dump}))

	stop, err := Setup(cli.NewContext(cli.NewApp(), set, nil), testlog.Logger(t, log.LvlInfo))
	require.NoError(t, err)
	stop()

	info, err := os.Stat(dump)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestLogPanicRepanics(t *testing.T) {
	t.Parallel()
	require.PanicsWithValue(t, "boom", func() {
		defer LogPanic(testlog.Logger(t, log.LvlCrit))
		panic("boom")
	})
}

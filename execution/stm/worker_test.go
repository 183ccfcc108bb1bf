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
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/blockstm/common/testlog"
	"github.com/erigontech/blockstm/execution/stm/scheduler"
	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

func TestWorkerPanicIsInvariant(t *testing.T) {
	t.Parallel()
	r := &blockRun[int]{
		e:     &Engine[int]{logger: testlog.Logger(t, log.LvlCrit)},
		sched: scheduler.NewScheduler(1, 0),
	}

	err := func() (err error) {
		defer r.recoverWorker(0, &err)
		// tx 0 was never handed out
		r.sched.FinishExecution(versionmap.Version{TxIndex: 0}, false)
		return nil
	}()
	require.ErrorIs(t, err, ErrInvariant)
	require.NotErrorIs(t, err, ErrVMPanic)
}

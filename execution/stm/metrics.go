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

import "github.com/erigontech/blockstm/common/metrics"

var (
	execTotal               = metrics.GetOrCreateCounter("blockstm_exec_total", "transaction executions, re-executions included")
	execAbortsTotal         = metrics.GetOrCreateCounter("blockstm_exec_aborts_total", "executions discarded by a failed validation")
	validationsTotal        = metrics.GetOrCreateCounter("blockstm_validations_total", "read set validations")
	validationFailuresTotal = metrics.GetOrCreateCounter("blockstm_validation_failures_total", "read set validations that failed")
	fastPathTotal           = metrics.GetOrCreateCounter("blockstm_fastpath_total", "transactions committed from a reserved execution")
	fastPathDemotedTotal    = metrics.GetOrCreateCounter("blockstm_fastpath_demoted_total", "reserved transactions sent back to speculation")
	serialFallbackTotal     = metrics.GetOrCreateCounter("blockstm_serial_fallback_total", "executions held for the commit frontier")
	lastBlockTxs            = metrics.GetOrCreateGauge("blockstm_last_block_txs", "transactions in the last executed block")
)

func (s *Stats) export() {
	execTotal.AddInt(s.Execs)
	execAbortsTotal.AddInt(s.Aborts)
	validationsTotal.AddInt(s.Validations)
	validationFailuresTotal.AddInt(s.ValidationFailures)
	fastPathTotal.AddInt(s.FastPathCommitted)
	fastPathDemotedTotal.AddInt(s.FastPathDemoted)
	serialFallbackTotal.AddInt(s.SerialExecutions)
	lastBlockTxs.SetInt(s.Txs)
}

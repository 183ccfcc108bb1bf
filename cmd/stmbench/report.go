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
	"io"
	"os"
	"runtime"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
	"github.com/pbnjay/memory"

	"github.com/erigontech/blockstm/common/dbg"
	"github.com/erigontech/blockstm/execution/stm"
)

type blockReport struct {
	Block        int           `json:"block"`
	Txs          int           `json:"txs"`
	Execs        int           `json:"execs"`
	Aborts       int           `json:"aborts"`
	Dependencies int           `json:"dependencies"`
	Validations  int           `json:"validations"`
	Fast         int           `json:"fastpath"`
	Demoted      int           `json:"demoted"`
	Serial       int           `json:"serial"`
	CriticalPath int           `json:"critical_path,omitempty"`
	Took         time.Duration `json:"took_ns"`
	TxPerSec     float64       `json:"tx_per_sec"`
}

func newBlockReport(block int, s stm.Stats) blockReport {
	r := blockReport{
		Block:        block,
		Txs:          s.Txs,
		Execs:        s.Execs,
		Aborts:       s.Aborts,
		Dependencies: s.Dependencies,
		Validations:  s.Validations,
		Fast:         s.FastPathCommitted,
		Demoted:      s.FastPathDemoted,
		Serial:       s.SerialExecutions,
		CriticalPath: s.CriticalPath,
		Took:         s.Duration,
	}
	if secs := s.Duration.Seconds(); secs > 0 {
		r.TxPerSec = float64(s.Txs) / secs
	}
	return r
}

type memReport struct {
	Alloc       string `json:"alloc"`
	Sys         string `json:"sys"`
	TotalMemory string `json:"total_memory"`
	NumGC       uint32 `json:"num_gc"`
}

func readMemReport() memReport {
	var m runtime.MemStats
	dbg.ReadMemStats(&m)
	return memReport{
		Alloc:       datasize.ByteSize(m.Alloc).HumanReadable(),
		Sys:         datasize.ByteSize(m.Sys).HumanReadable(),
		TotalMemory: datasize.ByteSize(memory.TotalMemory()).HumanReadable(),
		NumGC:       m.NumGC,
	}
}

type benchReport struct {
	Config benchConfig   `json:"config"`
	Blocks []blockReport `json:"blocks"`
	Memory memReport     `json:"memory"`
}

func writeReport(path string, r benchReport) error {
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func renderTable(w io.Writer, blocks []blockReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"block", "txs", "execs", "aborts", "deps", "validations", "fast", "demoted", "serial", "took", "tx/s"})

	var total blockReport
	for _, b := range blocks {
		t.AppendRow(table.Row{b.Block, b.Txs, b.Execs, b.Aborts, b.Dependencies, b.Validations, b.Fast, b.Demoted, b.Serial,
			b.Took.Round(time.Microsecond), fmt.Sprintf("%.0f", b.TxPerSec)})
		total.Txs += b.Txs
		total.Execs += b.Execs
		total.Aborts += b.Aborts
		total.Took += b.Took
	}
	if secs := total.Took.Seconds(); secs > 0 {
		total.TxPerSec = float64(total.Txs) / secs
	}
	t.AppendFooter(table.Row{"total", total.Txs, total.Execs, total.Aborts, "", "", "", "", "",
		total.Took.Round(time.Microsecond), fmt.Sprintf("%.0f", total.TxPerSec)})
	t.Render()
}

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
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

type Stats struct {
	Txs     int
	Workers int

	Execs        int
	Aborts       int
	Dependencies int

	Validations        int
	ValidationFailures int

	FastPathEligible  int
	FastPathCommitted int
	FastPathDemoted   int
	SerialExecutions  int

	// Keys is the number of distinct keys touched, KeysWritten of those
	// written by a committed transaction.
	Keys        int
	KeysWritten int

	// FastPath holds the transactions committed from a reserved execution.
	FastPath *roaring.Bitmap

	// CriticalPath is the longest read-after-write chain, set when profiling.
	CriticalPath int

	Duration time.Duration
}

func (s Stats) String() string {
	fast := uint64(0)
	if s.FastPath != nil {
		fast = s.FastPath.GetCardinality()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "txs=%d workers=%d execs=%d aborts=%d deps=%d", s.Txs, s.Workers, s.Execs, s.Aborts, s.Dependencies)
	fmt.Fprintf(&b, " validations=%d failures=%d", s.Validations, s.ValidationFailures)
	fmt.Fprintf(&b, " fast=%d/%d demoted=%d serial=%d", fast, s.FastPathEligible, s.FastPathDemoted, s.SerialExecutions)
	fmt.Fprintf(&b, " keys=%d written=%d", s.Keys, s.KeysWritten)
	if s.CriticalPath > 0 {
		fmt.Fprintf(&b, " critical=%d", s.CriticalPath)
	}
	fmt.Fprintf(&b, " took=%s", s.Duration)
	return b.String()
}

// Efficiency is transactions per execution, 1 for a conflict free block.
func (s Stats) Efficiency() float64 {
	if s.Execs == 0 {
		return 1
	}
	return float64(s.Txs) / float64(s.Execs)
}

type BlockResult struct {
	Outcomes []outcome.Outcome
	Stats    Stats
	// Deps and DAG are only set when profiling.
	Deps map[int]map[int]bool
	DAG  *versionmap.DAG
}

// StateDiff is the last write to every key over the block, ordered by key.
func (r *BlockResult) StateDiff() []outcome.Write {
	return stateDiff(r.Outcomes)
}

func stateDiff(outcomes []outcome.Outcome) []outcome.Write {
	last := map[keys.Key]outcome.Write{}
	for _, o := range outcomes {
		for _, w := range o.Writes {
			last[w.Key] = w
		}
	}
	diff := make([]outcome.Write, 0, len(last))
	for _, w := range last {
		diff = append(diff, w)
	}
	slices.SortFunc(diff, func(a, b outcome.Write) int { return strings.Compare(string(a.Key), string(b.Key)) })
	return diff
}

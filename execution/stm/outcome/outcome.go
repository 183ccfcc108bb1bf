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

// Package outcome holds the committed result of every transaction of a block.
package outcome

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/erigontech/blockstm/execution/stm/keys"
)

var (
	ErrAlreadyCommitted = errors.New("outcome already committed")
	ErrOutOfRange       = errors.New("transaction index out of range")
	ErrIncomplete       = errors.New("block has uncommitted transactions")
)

type Status int

const (
	StatusSuccess Status = iota
	// StatusFailed is a transaction the VM rejected. Its writes, if any, are
	// still committed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Event struct {
	Topic string
	Data  []byte
}

type Write struct {
	Key     keys.Key
	Value   []byte
	Deleted bool
}

type Outcome struct {
	TxIndex       int
	Incarnation   int
	Writes        []Write
	Events        []Event
	GasUsed       uint64
	Status        Status
	FailureReason string
	// FastPath is set when the committed result came from a reserved
	// execution.
	FastPath bool
}

// Array is a write-once slot per transaction index.
type Array struct {
	slots  []atomic.Pointer[Outcome]
	filled atomic.Int64
}

func NewArray(n int) *Array {
	return &Array{slots: make([]atomic.Pointer[Outcome], n)}
}

func (a *Array) Len() int { return len(a.slots) }

func (a *Array) Commit(txIdx int, o Outcome) error {
	if txIdx < 0 || txIdx >= len(a.slots) {
		return fmt.Errorf("commit tx %d of %d: %w", txIdx, len(a.slots), ErrOutOfRange)
	}
	o.TxIndex = txIdx
	if !a.slots[txIdx].CompareAndSwap(nil, &o) {
		return fmt.Errorf("commit tx %d: %w", txIdx, ErrAlreadyCommitted)
	}
	a.filled.Add(1)
	return nil
}

func (a *Array) Get(txIdx int) (Outcome, bool) {
	if txIdx < 0 || txIdx >= len(a.slots) {
		return Outcome{}, false
	}
	if o := a.slots[txIdx].Load(); o != nil {
		return *o, true
	}
	return Outcome{}, false
}

// Collect returns the outcomes in index order once every slot is filled.
func (a *Array) Collect() ([]Outcome, error) {
	if filled := a.filled.Load(); filled != int64(len(a.slots)) {
		return nil, fmt.Errorf("%d of %d committed: %w", filled, len(a.slots), ErrIncomplete)
	}
	out := make([]Outcome, len(a.slots))
	for i := range a.slots {
		out[i] = *a.slots[i].Load()
	}
	return out, nil
}

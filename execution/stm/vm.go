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
	"context"

	"github.com/erigontech/blockstm/execution/stm/outcome"
)

// Output is what the VM reports for one transaction. The writes are whatever
// it left in the view.
type Output struct {
	Events        []outcome.Event
	GasUsed       uint64
	Status        outcome.Status
	FailureReason string
}

// VM executes a single transaction against view. It can be called several
// times for the same transaction, concurrently with other transactions, and
// must be deterministic given the values it reads. An error from view must be
// returned as is.
type VM[T any] interface {
	Execute(ctx context.Context, txIdx int, tx T, view View) (Output, error)
}

type VMFunc[T any] func(ctx context.Context, txIdx int, tx T, view View) (Output, error)

func (f VMFunc[T]) Execute(ctx context.Context, txIdx int, tx T, view View) (Output, error) {
	return f(ctx, txIdx, tx, view)
}

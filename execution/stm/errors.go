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
	"errors"
	"fmt"
)

var (
	// ErrReservationOverrun is returned by a reserved view for a key outside
	// the reservation.
	ErrReservationOverrun = errors.New("access outside reserved keys")
	ErrVMPanic            = errors.New("vm panic")
	// ErrInvariant is returned when a worker panicked outside the VM, on a
	// broken engine invariant.
	ErrInvariant = errors.New("engine invariant violated")
)

// ErrDependency is returned by a view read that hit a value another
// transaction is still recomputing. The attempt is discarded and retried once
// Dependency has executed.
type ErrDependency struct {
	Dependency int
}

func (e *ErrDependency) Error() string {
	return fmt.Sprintf("dependency on tx %d", e.Dependency)
}

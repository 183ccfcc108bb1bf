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

package reservation

import "github.com/erigontech/blockstm/execution/stm/keys"

// Classification is the predicted footprint of a transaction. Keys must cover
// every key the transaction reads or writes; an execution that touches any
// other key is demoted to the speculative path.
type Classification struct {
	Eligible bool
	Keys     []keys.Key
}

var Ineligible = Classification{}

type Classifier[T any] interface {
	Classify(tx T) Classification
}

type ClassifierFunc[T any] func(tx T) Classification

func (f ClassifierFunc[T]) Classify(tx T) Classification { return f(tx) }

// Never sends every transaction down the speculative path.
type Never[T any] struct{}

func (Never[T]) Classify(T) Classification { return Ineligible }

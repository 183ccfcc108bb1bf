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

package versionmap

import "fmt"

type ReadStatus int

const (
	MVReadResultNone ReadStatus = iota
	MVReadResultDone
	MVReadResultDependency
)

func (s ReadStatus) String() string {
	switch s {
	case MVReadResultNone:
		return "none"
	case MVReadResultDone:
		return "done"
	case MVReadResultDependency:
		return "dependency"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ReadResult is what a VersionMap read resolved to. Value and Deleted are
// only meaningful for MVReadResultDone.
type ReadResult struct {
	status      ReadStatus
	depIdx      int
	incarnation int
	value       []byte
	deleted     bool
}

func (r ReadResult) Status() ReadStatus { return r.status }

// DepIdx is the writer of the observed version, or -1 for storage.
func (r ReadResult) DepIdx() int { return r.depIdx }

func (r ReadResult) Incarnation() int { return r.incarnation }

func (r ReadResult) Value() []byte { return r.value }

func (r ReadResult) Deleted() bool { return r.deleted }

func (r ReadResult) Version() Version {
	if r.status != MVReadResultDone {
		return StorageVersion
	}
	return Version{TxIndex: r.depIdx, Incarnation: r.incarnation}
}

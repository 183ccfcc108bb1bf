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

// ValidateVersion re-reads the recorded read set of txIdx and reports
// whether every read still resolves to the version it observed.
func ValidateVersion(txIdx int, lastIO *VersionedIO, versionedData *VersionMap) (valid bool) {
	valid = true

	for _, rd := range lastIO.ReadSet(txIdx) {
		mvResult := versionedData.Read(rd.Key, txIdx)
		switch mvResult.Status() {
		case MVReadResultDone:
			valid = rd.Kind == ReadKindMap && rd.V == mvResult.Version()
		case MVReadResultDependency:
			valid = false
		case MVReadResultNone:
			valid = rd.Kind == ReadKindStorage
		default:
			panic(fmt.Errorf("should not happen - undefined version map read status: %v", mvResult.Status()))
		}

		if !valid {
			break
		}
	}

	return
}

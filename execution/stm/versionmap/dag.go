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

import (
	"github.com/heimdalr/dag"
	log "github.com/inconshreveable/log15"

	"github.com/erigontech/blockstm/execution/stm/keys"
)

type DAG struct {
	*dag.DAG
	ids map[int]string
}

func HasReadDep(txFrom VersionedWrites, txTo VersionedReads) bool {
	reads := make(map[keys.KeyID]bool, len(txTo))

	for _, v := range txTo {
		reads[v.Key] = true
	}

	for _, rd := range txFrom {
		if _, ok := reads[rd.Key]; ok {
			return true
		}
	}

	return false
}

// BuildDAG links every transaction to each lower transaction whose final
// write set intersects its read set.
func BuildDAG(deps *VersionedIO, logger log.Logger) (d DAG) {
	d = DAG{DAG: dag.NewDAG(), ids: map[int]string{}}

	vertex := func(i int) string {
		if id, ok := d.ids[i]; ok {
			return id
		}
		id, err := d.AddVertex(i)
		if err != nil {
			logger.Warn("Failed to add vertex", "tx", i, "err", err)
		}
		d.ids[i] = id
		return id
	}

	for i := deps.Len() - 1; i >= 0; i-- {
		txTo := deps.ReadSet(i)
		txToId := vertex(i)

		for j := i - 1; j >= 0; j-- {
			if HasReadDep(deps.WriteSet(j), txTo) {
				err := d.AddEdge(vertex(j), txToId)
				if err != nil {
					logger.Warn("Failed to add edge", "from", j, "to", i, "err", err)
				}
			}
		}
	}

	return
}

// CriticalPath is the number of transactions on the longest dependency chain.
func (d DAG) CriticalPath() int {
	if d.DAG == nil {
		return 0
	}
	depth := make(map[int]int, len(d.ids))
	longest := 0
	for i := 0; i < len(d.ids); i++ {
		id, ok := d.ids[i]
		if !ok {
			continue
		}
		best := 0
		parents, err := d.GetParents(id)
		if err == nil {
			for _, p := range parents {
				if pd := depth[p.(int)]; pd > best {
					best = pd
				}
			}
		}
		depth[i] = best + 1
		if depth[i] > longest {
			longest = depth[i]
		}
	}
	return longest
}

func depsHelper(dependencies map[int]map[int]bool, txFrom VersionedWrites, txTo VersionedReads, i int, j int) map[int]map[int]bool {
	if HasReadDep(txFrom, txTo) {
		dependencies[i][j] = true

		for k := range dependencies[i] {
			_, foundDep := dependencies[j][k]

			if foundDep {
				delete(dependencies[i], k)
			}
		}
	}

	return dependencies
}

// GetDep returns, per transaction, the lower transactions it read from with
// the dependencies implied through another dependency removed.
func GetDep(deps *VersionedIO) map[int]map[int]bool {
	newDependencies := map[int]map[int]bool{}

	for i := 1; i < deps.Len(); i++ {
		txTo := deps.ReadSet(i)

		newDependencies[i] = map[int]bool{}

		for j := 0; j <= i-1; j++ {
			newDependencies = depsHelper(newDependencies, deps.WriteSet(j), txTo, i, j)
		}
	}

	return newDependencies
}

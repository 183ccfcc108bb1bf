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

package transfer

import (
	"fmt"
	"math/rand"

	"github.com/holiman/uint256"

	"github.com/erigontech/blockstm/execution/stm/state"
)

type GenConfig struct {
	Txs      int
	Accounts int
	// Hot is the number of accounts half of all senders are drawn from.
	Hot  int
	Seed int64
	// Sweeps is the share of pointer updates and sweeps, in [0, 1].
	Sweeps float64
}

func Account(i int) string { return fmt.Sprintf("acct%05d", i) }

// Genesis funds accounts 0..n-1 with balance each.
func Genesis(n int, balance uint64) *state.MemSnapshot {
	s := state.NewMemSnapshot()
	b := uint256.NewInt(balance)
	for i := 0; i < n; i++ {
		s.Set(BalanceKey(Account(i)), EncodeBalance(b))
	}
	return s
}

// Generate returns the same block for the same config.
func Generate(cfg GenConfig) []Tx {
	if cfg.Accounts < 2 {
		cfg.Accounts = 2
	}
	if cfg.Hot > cfg.Accounts {
		cfg.Hot = cfg.Accounts
	}
	r := rand.New(rand.NewSource(cfg.Seed))
	pick := func() string {
		if cfg.Hot > 0 && r.Intn(2) == 0 {
			return Account(r.Intn(cfg.Hot))
		}
		return Account(r.Intn(cfg.Accounts))
	}

	txs := make([]Tx, cfg.Txs)
	for i := range txs {
		tx := Tx{Kind: KindTransfer, From: pick(), To: pick()}
		tx.Amount.SetUint64(uint64(1 + r.Intn(100)))
		switch x := r.Float64(); {
		case x < cfg.Sweeps/2:
			tx.Kind = KindPoint
		case x < cfg.Sweeps:
			tx.Kind = KindSweep
		case x < cfg.Sweeps+0.05:
			tx.Kind = KindMint
		}
		txs[i] = tx
	}
	return txs
}

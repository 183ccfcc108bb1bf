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
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/blockstm/execution/stm"
	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
)

func amount(v uint64) uint256.Int { return *uint256.NewInt(v) }

func balanceAfter(t *testing.T, res *stm.BlockResult, account string) uint64 {
	t.Helper()
	for _, w := range res.StateDiff() {
		if w.Key == BalanceKey(account) {
			return DecodeBalance(w.Value).Uint64()
		}
	}
	t.Fatalf("no balance write for %s", account)
	return 0
}

func TestVMSequential(t *testing.T) {
	t.Parallel()
	base := Genesis(3, 100)
	a, b, c := Account(0), Account(1), Account(2)
	txs := []Tx{
		{Kind: KindTransfer, From: a, To: b, Amount: amount(30)},
		{Kind: KindTransfer, From: a, To: b, Amount: amount(80)},
		{Kind: KindPoint, From: b, To: c},
		{Kind: KindSweep, From: b},
		{Kind: KindSweep, From: a},
		{Kind: KindMint, To: "new", Amount: amount(5)},
		{Kind: KindTransfer, From: c, To: c, Amount: amount(10)},
	}

	res, err := stm.ExecuteSequential(context.Background(), VM{}, txs, base)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, len(txs))

	require.Equal(t, outcome.StatusSuccess, res.Outcomes[0].Status)
	require.Equal(t, outcome.StatusFailed, res.Outcomes[1].Status)
	require.Equal(t, "insufficient balance", res.Outcomes[1].FailureReason)
	require.Equal(t, outcome.StatusFailed, res.Outcomes[4].Status)
	require.Equal(t, uint64(GasSweep), res.Outcomes[4].GasUsed)

	require.Equal(t, uint64(70), balanceAfter(t, res, a))
	require.Equal(t, uint64(0), balanceAfter(t, res, b))
	require.Equal(t, uint64(230), balanceAfter(t, res, c))
	require.Equal(t, uint64(5), balanceAfter(t, res, "new"))

	var nonce []byte
	for _, w := range res.StateDiff() {
		if w.Key == NonceKey(a) {
			nonce = w.Value
		}
	}
	require.Equal(t, uint64(3), new(uint256.Int).SetBytes(nonce).Uint64())
}

func TestClassifier(t *testing.T) {
	t.Parallel()
	c := Classifier{}
	cl := c.Classify(Tx{Kind: KindTransfer, From: "x", To: "y"})
	require.True(t, cl.Eligible)
	require.ElementsMatch(t, []keys.Key{"bal/x", "bal/y", "nonce/x"}, cl.Keys)
	require.False(t, c.Classify(Tx{Kind: KindSweep, From: "x"}).Eligible)
	require.True(t, c.Classify(Tx{Kind: KindMint, To: "y"}).Eligible)
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()
	cfg := GenConfig{Txs: 200, Accounts: 50, Hot: 3, Seed: 9, Sweeps: 0.2}
	require.Equal(t, Generate(cfg), Generate(cfg))
	cfg.Seed = 10
	other := Generate(cfg)
	require.Len(t, other, 200)
	require.NotEqual(t, Generate(GenConfig{Txs: 200, Accounts: 50, Hot: 3, Seed: 9, Sweeps: 0.2}), other)
}

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

package stm_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/blockstm/common/testlog"
	"github.com/erigontech/blockstm/execution/stm"
	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
	"github.com/erigontech/blockstm/execution/stm/reservation"
	"github.com/erigontech/blockstm/execution/stm/state"
	"github.com/erigontech/blockstm/execution/stm/transfer"
)

type scripted func(view stm.View) (stm.Output, error)

var scriptVM = stm.VMFunc[scripted](func(_ context.Context, _ int, tx scripted, view stm.View) (stm.Output, error) {
	return tx(view)
})

func requireEquivalent(t *testing.T, want, got *stm.BlockResult) {
	t.Helper()
	opts := []cmp.Option{cmpopts.IgnoreFields(outcome.Outcome{}, "Incarnation", "FastPath"), cmpopts.EquateEmpty()}
	require.Empty(t, cmp.Diff(want.Outcomes, got.Outcomes, opts...))
	require.Empty(t, cmp.Diff(want.StateDiff(), got.StateDiff(), cmpopts.EquateEmpty()))
	for i, o := range got.Outcomes {
		require.Equal(t, i, o.TxIndex)
	}
}

func newTransferEngine(t *testing.T, cfg stm.Config) *stm.Engine[transfer.Tx] {
	return stm.New[transfer.Tx](transfer.VM{}, cfg, testlog.Logger(t, log.LvlInfo), stm.WithClassifier[transfer.Tx](transfer.Classifier{}))
}

func TestEquivalentToSequential(t *testing.T) {
	t.Parallel()
	base := transfer.Genesis(64, 1_000)

	for _, workers := range []int{1, 4, 8} {
		for _, fast := range []bool{false, true} {
			for seed := int64(1); seed <= 4; seed++ {
				t.Run(fmt.Sprintf("workers=%d/fast=%v/seed=%d", workers, fast, seed), func(t *testing.T) {
					t.Parallel()
					txs := transfer.Generate(transfer.GenConfig{Txs: 300, Accounts: 64, Hot: 4, Seed: seed, Sweeps: 0.1})
					want, err := stm.ExecuteSequential(context.Background(), transfer.VM{}, txs, base)
					require.NoError(t, err)

					e := newTransferEngine(t, stm.Config{Workers: workers, FastPath: fast})
					got, err := e.ExecuteBlock(context.Background(), txs, base)
					require.NoError(t, err)
					requireEquivalent(t, want, got)
					require.GreaterOrEqual(t, got.Stats.Execs, len(txs))
					require.Equal(t, len(got.StateDiff()), got.Stats.KeysWritten)
					if !fast {
						require.Zero(t, got.Stats.FastPathEligible)
					}
				})
			}
		}
	}
}

func TestEmptyBlock(t *testing.T) {
	t.Parallel()
	e := newTransferEngine(t, stm.Config{Workers: 4, FastPath: true})
	res, err := e.ExecuteBlock(context.Background(), nil, state.NewMemSnapshot())
	require.NoError(t, err)
	require.Empty(t, res.Outcomes)
	require.Empty(t, res.StateDiff())
}

func TestReaderSeesLastPrecedingWriter(t *testing.T) {
	t.Parallel()
	var slow atomic.Bool
	txs := []scripted{
		func(v stm.View) (stm.Output, error) { return stm.Output{}, v.Set("x", []byte("0")) },
		func(v stm.View) (stm.Output, error) {
			if slow.CompareAndSwap(false, true) {
				time.Sleep(20 * time.Millisecond)
			}
			return stm.Output{}, v.Set("x", []byte("1"))
		},
		func(v stm.View) (stm.Output, error) {
			val, _, err := v.Get("x")
			if err != nil {
				return stm.Output{}, err
			}
			return stm.Output{}, v.Set("y", val)
		},
	}

	e := stm.New[scripted](scriptVM, stm.Config{Workers: 3}, testlog.Logger(t, log.LvlInfo))
	res, err := e.ExecuteBlock(context.Background(), txs, state.NewMemSnapshot())
	require.NoError(t, err)
	require.Equal(t, []outcome.Write{{Key: "y", Value: []byte("1")}}, res.Outcomes[2].Writes)
	require.Equal(t, []outcome.Write{
		{Key: "x", Value: []byte("1")},
		{Key: "y", Value: []byte("1")},
	}, res.StateDiff())
}

func TestFastPathMatchesRunningAlone(t *testing.T) {
	t.Parallel()
	base := transfer.Genesis(8, 100)
	amount := func(v uint64) (a transfer.Tx) {
		a.Amount.SetUint64(v)
		return a
	}
	isolated := amount(7)
	isolated.From, isolated.To = transfer.Account(6), transfer.Account(7)

	txs := make([]transfer.Tx, 0, 9)
	for i := 0; i < 8; i++ {
		tx := amount(uint64(i + 1))
		tx.From, tx.To = transfer.Account(i%3), transfer.Account((i+1)%3)
		txs = append(txs, tx)
	}
	txs = append(txs[:4], append([]transfer.Tx{isolated}, txs[4:]...)...)

	alone, err := stm.ExecuteSequential(context.Background(), transfer.VM{}, []transfer.Tx{isolated}, base)
	require.NoError(t, err)
	want, err := stm.ExecuteSequential(context.Background(), transfer.VM{}, txs, base)
	require.NoError(t, err)

	e := newTransferEngine(t, stm.Config{Workers: 4, FastPath: true})
	got, err := e.ExecuteBlock(context.Background(), txs, base)
	require.NoError(t, err)
	requireEquivalent(t, want, got)

	require.True(t, got.Outcomes[4].FastPath)
	require.Zero(t, got.Outcomes[4].Incarnation)
	require.Equal(t, alone.Outcomes[0].Writes, got.Outcomes[4].Writes)
	require.Equal(t, alone.Outcomes[0].Events, got.Outcomes[4].Events)
	require.True(t, got.Stats.FastPath.Contains(4))
	require.Equal(t, int(got.Stats.FastPath.GetCardinality()), got.Stats.FastPathCommitted)
}

func TestFastPathDemotedByLowerWriter(t *testing.T) {
	t.Parallel()
	a, b, c := transfer.Account(0), transfer.Account(1), transfer.Account(2)
	base := transfer.Genesis(3, 100)
	base.Set(transfer.PointerKey(a), []byte(b))

	var move transfer.Tx
	move.From, move.To = b, c
	move.Amount.SetUint64(150)
	txs := []transfer.Tx{{Kind: transfer.KindSweep, From: a}, move}

	want, err := stm.ExecuteSequential(context.Background(), transfer.VM{}, txs, base)
	require.NoError(t, err)
	require.Equal(t, outcome.StatusSuccess, want.Outcomes[1].Status)

	e := newTransferEngine(t, stm.Config{Workers: 2, FastPath: true})
	got, err := e.ExecuteBlock(context.Background(), txs, base)
	require.NoError(t, err)
	requireEquivalent(t, want, got)

	require.Equal(t, 1, got.Stats.FastPathEligible)
	require.Equal(t, 1, got.Stats.FastPathDemoted)
	require.Zero(t, got.Stats.FastPathCommitted)
	require.False(t, got.Outcomes[1].FastPath)
	require.Positive(t, got.Outcomes[1].Incarnation)
}

// underReserving leaves the nonce out of the footprint of a transfer.
type underReserving struct{}

func (underReserving) Classify(tx transfer.Tx) reservation.Classification {
	if tx.Kind != transfer.KindTransfer {
		return reservation.Ineligible
	}
	return reservation.Classification{Eligible: true, Keys: []keys.Key{transfer.BalanceKey(tx.From), transfer.BalanceKey(tx.To)}}
}

func TestReservationOverrunDemotes(t *testing.T) {
	t.Parallel()
	base := transfer.Genesis(32, 1_000)
	txs := transfer.Generate(transfer.GenConfig{Txs: 200, Accounts: 32, Seed: 3})

	want, err := stm.ExecuteSequential(context.Background(), transfer.VM{}, txs, base)
	require.NoError(t, err)

	e := stm.New[transfer.Tx](transfer.VM{}, stm.Config{Workers: 4, FastPath: true}, testlog.Logger(t, log.LvlInfo),
		stm.WithClassifier[transfer.Tx](underReserving{}))
	got, err := e.ExecuteBlock(context.Background(), txs, base)
	require.NoError(t, err)
	requireEquivalent(t, want, got)

	require.Positive(t, got.Stats.FastPathDemoted)
	require.Zero(t, got.Stats.FastPathCommitted)
	for _, o := range got.Outcomes {
		require.False(t, o.FastPath)
	}
}

func TestSerialFallback(t *testing.T) {
	t.Parallel()
	base := transfer.Genesis(16, 1_000)
	txs := transfer.Generate(transfer.GenConfig{Txs: 300, Accounts: 16, Hot: 1, Seed: 11, Sweeps: 0.2})
	want, err := stm.ExecuteSequential(context.Background(), transfer.VM{}, txs, base)
	require.NoError(t, err)

	e := newTransferEngine(t, stm.Config{Workers: 8, MaxIncarnations: 1})
	got, err := e.ExecuteBlock(context.Background(), txs, base)
	require.NoError(t, err)
	requireEquivalent(t, want, got)
	for _, o := range got.Outcomes {
		require.LessOrEqual(t, o.Incarnation, 1)
	}
}

func TestDependencyHints(t *testing.T) {
	t.Parallel()
	const n = 64
	txs := make([]scripted, n)
	hints := map[int][]int{}
	for i := range txs {
		prev, cur := keys.Key(fmt.Sprintf("k%d", i-1)), keys.Key(fmt.Sprintf("k%d", i))
		txs[i] = func(v stm.View) (stm.Output, error) {
			val, _, err := v.Get(prev)
			if err != nil {
				return stm.Output{}, err
			}
			return stm.Output{}, v.Set(cur, append(append([]byte(nil), val...), 'x'))
		}
		if i > 0 {
			hints[i] = []int{i - 1, i + 5}
		}
	}

	want, err := stm.ExecuteSequential(context.Background(), scriptVM, txs, state.NewMemSnapshot())
	require.NoError(t, err)

	e := stm.New[scripted](scriptVM, stm.Config{Workers: 8, Profile: true}, testlog.Logger(t, log.LvlInfo))
	got, err := e.ExecuteBlock(context.Background(), txs, state.NewMemSnapshot(), stm.WithDependencies(hints))
	require.NoError(t, err)
	requireEquivalent(t, want, got)
	require.Len(t, got.Outcomes[n-1].Writes[0].Value, n)

	require.NotNil(t, got.DAG)
	require.Equal(t, n, got.Stats.CriticalPath)
	require.Equal(t, map[int]bool{n - 2: true}, got.Deps[n-1])
}

func TestSwallowedDependencyIsRetried(t *testing.T) {
	t.Parallel()
	const n = 100
	txs := make([]scripted, n)
	for i := range txs {
		txs[i] = func(v stm.View) (stm.Output, error) {
			// ignores read errors and keeps going with what it got
			val, _, _ := v.Get("counter")
			next := fmt.Sprintf("%s+", val)
			_ = v.Set("counter", []byte(next))
			return stm.Output{GasUsed: uint64(len(next))}, nil
		}
	}
	want, err := stm.ExecuteSequential(context.Background(), scriptVM, txs, state.NewMemSnapshot())
	require.NoError(t, err)

	e := stm.New[scripted](scriptVM, stm.Config{Workers: 8}, testlog.Logger(t, log.LvlInfo))
	got, err := e.ExecuteBlock(context.Background(), txs, state.NewMemSnapshot())
	require.NoError(t, err)
	requireEquivalent(t, want, got)
	require.Equal(t, uint64(n), got.Outcomes[n-1].GasUsed)
}

func TestVMFailuresAreFatal(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	ok := func(v stm.View) (stm.Output, error) { return stm.Output{}, v.Set("a", []byte("1")) }

	e := stm.New[scripted](scriptVM, stm.Config{Workers: 4}, testlog.Logger(t, log.LvlCrit))
	_, err := e.ExecuteBlock(context.Background(), []scripted{ok, func(stm.View) (stm.Output, error) { return stm.Output{}, boom }, ok}, state.NewMemSnapshot())
	require.ErrorIs(t, err, boom)

	_, err = e.ExecuteBlock(context.Background(), []scripted{ok, func(stm.View) (stm.Output, error) { panic("bad opcode") }}, state.NewMemSnapshot())
	require.ErrorIs(t, err, stm.ErrVMPanic)

	failed := func(stm.View) (stm.Output, error) {
		return stm.Output{Status: outcome.StatusFailed, FailureReason: "reverted", GasUsed: 5}, nil
	}
	res, err := e.ExecuteBlock(context.Background(), []scripted{ok, failed}, state.NewMemSnapshot())
	require.NoError(t, err)
	require.Equal(t, outcome.StatusFailed, res.Outcomes[1].Status)
	require.Equal(t, "reverted", res.Outcomes[1].FailureReason)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	txs := transfer.Generate(transfer.GenConfig{Txs: 10, Accounts: 4, Seed: 1})
	_, err := newTransferEngine(t, stm.Config{Workers: 2}).ExecuteBlock(ctx, txs, transfer.Genesis(4, 10))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotErrorsSurface(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	mem := transfer.Genesis(4, 100)
	broken := errors.New("disk gone")

	snap := state.NewMockSnapshot(ctrl)
	snap.EXPECT().Get(gomock.Any()).DoAndReturn(func(k keys.Key) ([]byte, bool, error) {
		if k == transfer.BalanceKey(transfer.Account(3)) {
			return nil, false, broken
		}
		return mem.Get(k)
	}).AnyTimes()

	cached, err := state.NewCachedSnapshot(snap, 128)
	require.NoError(t, err)
	_, ok, err := cached.Get(transfer.BalanceKey(transfer.Account(0)))
	require.NoError(t, err)
	require.True(t, ok)

	var tx transfer.Tx
	tx.From, tx.To = transfer.Account(0), transfer.Account(1)
	tx.Amount.SetUint64(10)
	e := newTransferEngine(t, stm.Config{Workers: 2})

	res, err := e.ExecuteBlock(context.Background(), []transfer.Tx{tx, tx}, cached)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	hits, _ := cached.Stats()
	require.Positive(t, hits)

	tx.To = transfer.Account(3)
	_, err = e.ExecuteBlock(context.Background(), []transfer.Tx{tx}, cached)
	require.ErrorIs(t, err, broken)
}

func TestRepeatedReadSeesFirstObservation(t *testing.T) {
	t.Parallel()
	for round := 0; round < 5; round++ {
		var slowWriter, slowReader atomic.Bool
		txs := []scripted{
			func(v stm.View) (stm.Output, error) {
				if slowWriter.CompareAndSwap(false, true) {
					time.Sleep(60 * time.Millisecond)
				}
				return stm.Output{}, v.Set("a", []byte("1"))
			},
			func(v stm.View) (stm.Output, error) {
				_, ok, err := v.Get("a")
				if err != nil || ok {
					return stm.Output{}, err
				}
				return stm.Output{}, v.Set("k", []byte("bad"))
			},
			func(v stm.View) (stm.Output, error) {
				first, _, err := v.Get("k")
				if err != nil {
					return stm.Output{}, err
				}
				slow := slowReader.CompareAndSwap(false, true)
				if slow {
					time.Sleep(20 * time.Millisecond)
				}
				second, _, err := v.Get("k")
				if err != nil {
					return stm.Output{}, err
				}
				// still running when tx1 re-executes without writing k
				if slow {
					time.Sleep(80 * time.Millisecond)
				}
				return stm.Output{}, v.Set("out", []byte(fmt.Sprintf("first=%s second=%s", first, second)))
			},
		}

		want, err := stm.ExecuteSequential(context.Background(), scriptVM, txs, state.NewMemSnapshot())
		require.NoError(t, err)
		slowWriter.Store(false)
		slowReader.Store(false)

		e := stm.New[scripted](scriptVM, stm.Config{Workers: 3}, testlog.Logger(t, log.LvlInfo))
		got, err := e.ExecuteBlock(context.Background(), txs, state.NewMemSnapshot())
		require.NoError(t, err)
		requireEquivalent(t, want, got)
		require.Equal(t, []outcome.Write{{Key: "out", Value: []byte("first= second=")}}, got.Outcomes[2].Writes, "round %d", round)
	}
}

func TestTwiceInvalidatedCommitsThirdIncarnation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	release0, release1 := make(chan struct{}), make(chan struct{})
	writer := func(release chan struct{}, val string) scripted {
		return func(v stm.View) (stm.Output, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return stm.Output{}, ctx.Err()
			}
			return stm.Output{}, v.Set("x", []byte(val))
		}
	}

	// tx2 runs before either writer, then once after each of them wrote x
	var calls atomic.Int32
	txs := []scripted{
		writer(release0, "0"),
		writer(release1, "1"),
		func(v stm.View) (stm.Output, error) {
			n := calls.Add(1)
			val, _, err := v.Get("x")
			if err != nil {
				return stm.Output{}, err
			}
			switch n {
			case 1:
				close(release0)
			case 2:
				close(release1)
			}
			out := stm.Output{GasUsed: uint64(n), Events: []outcome.Event{{Topic: "seen", Data: slices.Clone(val)}}}
			return out, v.Set("out", val)
		},
	}

	e := stm.New[scripted](scriptVM, stm.Config{Workers: 4}, testlog.Logger(t, log.LvlInfo))
	res, err := e.ExecuteBlock(ctx, txs, state.NewMemSnapshot())
	require.NoError(t, err)

	o := res.Outcomes[2]
	require.Equal(t, 2, o.Incarnation)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, uint64(3), o.GasUsed)
	require.Equal(t, []outcome.Write{{Key: "out", Value: []byte("1")}}, o.Writes)
	require.Equal(t, []outcome.Event{{Topic: "seen", Data: []byte("1")}}, o.Events)
	require.Zero(t, res.Outcomes[0].Incarnation)
	require.Zero(t, res.Outcomes[1].Incarnation)
	require.GreaterOrEqual(t, res.Stats.Aborts, 2)
}

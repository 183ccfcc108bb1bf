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

// Package transfer is a small account VM: balance transfers, mints and
// sweeps that follow a per-account forwarding pointer.
package transfer

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/blockstm/execution/stm"
	"github.com/erigontech/blockstm/execution/stm/keys"
	"github.com/erigontech/blockstm/execution/stm/outcome"
	"github.com/erigontech/blockstm/execution/stm/reservation"
)

type Kind uint8

const (
	KindTransfer Kind = iota
	KindMint
	// KindPoint sets the forwarding pointer of From to To.
	KindPoint
	// KindSweep moves the whole balance of From to its forwarding pointer.
	KindSweep
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindMint:
		return "mint"
	case KindPoint:
		return "point"
	case KindSweep:
		return "sweep"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

const (
	GasTransfer = 21_000
	GasMint     = 10_000
	GasPoint    = 15_000
	GasSweep    = 30_000
)

type Tx struct {
	Kind   Kind
	From   string
	To     string
	Amount uint256.Int
}

func (tx Tx) String() string {
	return fmt.Sprintf("%s %s->%s %s", tx.Kind, tx.From, tx.To, tx.Amount.Dec())
}

func BalanceKey(account string) keys.Key { return keys.Key("bal/" + account) }
func NonceKey(account string) keys.Key   { return keys.Key("nonce/" + account) }
func PointerKey(account string) keys.Key { return keys.Key("ptr/" + account) }

func EncodeBalance(b *uint256.Int) []byte {
	enc := b.Bytes32()
	return enc[:]
}

func DecodeBalance(data []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(data)
}

type VM struct{}

var _ stm.VM[Tx] = VM{}

func (VM) Execute(ctx context.Context, txIdx int, tx Tx, view stm.View) (stm.Output, error) {
	switch tx.Kind {
	case KindMint:
		bal, err := balance(view, tx.To)
		if err != nil {
			return stm.Output{}, err
		}
		bal.Add(bal, &tx.Amount)
		if err := view.Set(BalanceKey(tx.To), EncodeBalance(bal)); err != nil {
			return stm.Output{}, err
		}
		return stm.Output{GasUsed: GasMint, Events: []outcome.Event{event("mint", tx.To, &tx.Amount)}}, nil

	case KindTransfer:
		if err := bumpNonce(view, tx.From); err != nil {
			return stm.Output{}, err
		}
		return move(view, tx.From, tx.To, &tx.Amount, GasTransfer)

	case KindPoint:
		if err := bumpNonce(view, tx.From); err != nil {
			return stm.Output{}, err
		}
		if err := view.Set(PointerKey(tx.From), []byte(tx.To)); err != nil {
			return stm.Output{}, err
		}
		return stm.Output{GasUsed: GasPoint}, nil

	case KindSweep:
		if err := bumpNonce(view, tx.From); err != nil {
			return stm.Output{}, err
		}
		dest, ok, err := view.Get(PointerKey(tx.From))
		if err != nil {
			return stm.Output{}, err
		}
		if !ok {
			return failed(GasSweep, "no forwarding pointer"), nil
		}
		bal, err := balance(view, tx.From)
		if err != nil {
			return stm.Output{}, err
		}
		return move(view, tx.From, string(dest), bal, GasSweep)
	}
	return stm.Output{}, fmt.Errorf("tx %d: unknown kind %d", txIdx, tx.Kind)
}

func move(view stm.View, from, to string, amount *uint256.Int, gas uint64) (stm.Output, error) {
	fromBal, err := balance(view, from)
	if err != nil {
		return stm.Output{}, err
	}
	if fromBal.Lt(amount) {
		return failed(gas, "insufficient balance"), nil
	}
	amount = amount.Clone()
	fromBal.Sub(fromBal, amount)
	if err := view.Set(BalanceKey(from), EncodeBalance(fromBal)); err != nil {
		return stm.Output{}, err
	}
	toBal, err := balance(view, to)
	if err != nil {
		return stm.Output{}, err
	}
	toBal.Add(toBal, amount)
	if err := view.Set(BalanceKey(to), EncodeBalance(toBal)); err != nil {
		return stm.Output{}, err
	}
	return stm.Output{GasUsed: gas, Events: []outcome.Event{event("transfer", from+"->"+to, amount)}}, nil
}

func balance(view stm.View, account string) (*uint256.Int, error) {
	data, ok, err := view.Get(BalanceKey(account))
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return DecodeBalance(data), nil
}

func bumpNonce(view stm.View, account string) error {
	data, _, err := view.Get(NonceKey(account))
	if err != nil {
		return err
	}
	nonce := new(uint256.Int).SetBytes(data)
	nonce.AddUint64(nonce, 1)
	return view.Set(NonceKey(account), nonce.Bytes())
}

func event(topic, who string, amount *uint256.Int) outcome.Event {
	return outcome.Event{Topic: topic, Data: []byte(who + ":" + amount.Dec())}
}

func failed(gas uint64, reason string) stm.Output {
	return stm.Output{GasUsed: gas, Status: outcome.StatusFailed, FailureReason: reason}
}

// Classifier reserves the exact footprint of transfers, mints and pointer
// updates. Sweeps depend on a pointer value and stay speculative.
type Classifier struct{}

var _ reservation.Classifier[Tx] = Classifier{}

func (Classifier) Classify(tx Tx) reservation.Classification {
	switch tx.Kind {
	case KindTransfer:
		return reservation.Classification{Eligible: true, Keys: []keys.Key{BalanceKey(tx.From), BalanceKey(tx.To), NonceKey(tx.From)}}
	case KindMint:
		return reservation.Classification{Eligible: true, Keys: []keys.Key{BalanceKey(tx.To)}}
	case KindPoint:
		return reservation.Classification{Eligible: true, Keys: []keys.Key{PointerKey(tx.From), NonceKey(tx.From)}}
	default:
		return reservation.Ineligible
	}
}

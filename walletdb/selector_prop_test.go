// Copyright 2024 The full-service Authors
// This file is part of the full-service library.
//
// The full-service library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The full-service library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the full-service library. If not, see <http://www.gnu.org/licenses/>.

package walletdb

import (
	"errors"
	"sort"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"github.com/mobilecoinofficial/full-service/core/types"
)

// The selection sweep operates on an in-memory SpendableTxosResult, so the
// property test exercises it directly without a database.
func spendableResult(values []uint64, fee uint64) *SpendableTxosResult {
	sorted := append([]uint64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	txos := make([]*Txo, len(sorted))
	for i, v := range sorted {
		txos[i] = &Txo{ID: txoID(i), Value: v, TokenID: types.MOB}
	}
	max := uint256.NewInt(0)
	for i, v := range sorted {
		if i >= MaxInputs {
			break
		}
		max.Add(max, uint256.NewInt(v))
	}
	feeInt := uint256.NewInt(fee)
	if max.Gt(feeInt) {
		max.Sub(max, feeInt)
	} else {
		max.Clear()
	}
	return &SpendableTxosResult{SpendableTxos: txos, MaxSpendableInWallet: max}
}

func TestSelectForValueProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Uint64Range(1, 1<<40), 1, 40).Draw(t, "values").([]uint64)
		fee := rapid.Uint64Range(0, 1000).Draw(t, "fee").(uint64)
		targetVal := rapid.Uint64Range(1, 1<<42).Draw(t, "target").(uint64)
		target := uint256.NewInt(targetVal)

		result := spendableResult(values, fee)
		selected, err := result.SelectForValue(target, fee, types.MOB)
		if err != nil {
			switch {
			case errors.Is(err, ErrInsufficientFunds),
				errors.Is(err, ErrInsufficientFundsFragmented),
				errors.Is(err, ErrInsufficientFundsUnderMaxSpendable):
				return
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}

		// Never more than the input cap.
		if len(selected) == 0 || len(selected) > MaxInputs {
			t.Fatalf("selected %d txos", len(selected))
		}

		// The selection covers the target.
		sum := uint256.NewInt(0)
		max := uint64(0)
		seen := make(map[string]bool)
		for _, x := range selected {
			if seen[x.ID] {
				t.Fatalf("txo %s selected twice", x.ID)
			}
			seen[x.ID] = true
			sum.Add(sum, uint256.NewInt(x.Value))
			if x.Value > max {
				max = x.Value
			}
		}
		if sum.Lt(target) {
			t.Fatalf("selection sum %s below target %s", sum, target)
		}

		// Greedy minimality: dropping the largest member falls below the
		// target, so the sweep stopped as soon as it could.
		without := new(uint256.Int).Sub(sum, uint256.NewInt(max))
		if !without.Lt(target) {
			t.Fatalf("selection still covers target without its largest member")
		}
	})
}

// The failure split is consistent: a target beyond max-spendable-plus-fee
// errors as fragmented exactly when the total balance would cover it.
func TestSelectForValueFailureSplit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Uint64Range(1, 1000), 17, 40).Draw(t, "values").([]uint64)
		result := spendableResult(values, 0)

		total := uint256.NewInt(0)
		for _, v := range values {
			total.Add(total, uint256.NewInt(v))
		}
		// A target just above what MaxInputs can reach but within the
		// total forces the fragmented error.
		target := new(uint256.Int).Add(result.MaxSpendableInWallet, uint256.NewInt(1))
		if target.Gt(total) {
			t.Skip("no fragmentation window for this draw")
		}
		_, err := result.SelectForValue(target, 0, types.MOB)
		if !errors.Is(err, ErrInsufficientFundsFragmented) {
			t.Fatalf("got %v, want ErrInsufficientFundsFragmented", err)
		}

		// A target beyond the total errors as insufficient-under-cap.
		beyond := new(uint256.Int).Add(total, uint256.NewInt(1))
		_, err = result.SelectForValue(beyond, 0, types.MOB)
		if !errors.Is(err, ErrInsufficientFundsUnderMaxSpendable) {
			t.Fatalf("got %v, want ErrInsufficientFundsUnderMaxSpendable", err)
		}
	})
}

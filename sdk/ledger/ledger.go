// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ledger 實作單回合的下注帳本。
//
// Ledger 是值語意（replace-on-write）：Place 不會修改接收者，而是回傳新的帳本與新餘額，
// 因此任何被拒絕的下注都不會留下部分更新。
package ledger

import (
	"slices"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
)

// Entry 單一格子的累計押注。
type Entry struct {
	Cell  grid.Cell `json:"cell"`
	Stake int       `json:"stake"`
}

// Ledger Cell -> 押注金額，所有值必定 > 0；不在 map 內的格子押注為 0。
type Ledger struct {
	stakes map[grid.Cell]int
	total  int
}

// New 回傳空帳本。
func New() Ledger {
	return Ledger{}
}

// Place 在 cell 上追加 amount，並從 balance 扣除。
//
//   - amount <= 0        -> InvalidAmount
//   - amount > balance   -> InsufficientCredits
//
// 失敗時回傳原帳本與原餘額。
func (l Ledger) Place(cell grid.Cell, amount int, balance int) (Ledger, int, error) {
	if amount <= 0 {
		return l, balance, errs.Codef(errs.InvalidAmount, "bet amount must be > 0, got %d", amount)
	}
	if amount > balance {
		return l, balance, errs.Codef(errs.InsufficientCredits, "bet %d exceeds balance %d", amount, balance)
	}
	next := Ledger{
		stakes: make(map[grid.Cell]int, len(l.stakes)+1),
		total:  l.total + amount,
	}
	for c, v := range l.stakes {
		next.stakes[c] = v
	}
	next.stakes[cell] += amount
	return next, balance - amount, nil
}

// TotalStaked 所有押注總和，也就是本回合獎池。
func (l Ledger) TotalStaked() int {
	return l.total
}

// StakeOn 回傳 cell 上的押注，沒有押注回傳 0。
func (l Ledger) StakeOn(cell grid.Cell) int {
	return l.stakes[cell]
}

// Len 有押注的格數。
func (l Ledger) Len() int {
	return len(l.stakes)
}

// IsEmpty 帳本是否沒有任何押注。
func (l Ledger) IsEmpty() bool {
	return len(l.stakes) == 0
}

// Clear 回傳空帳本（用於 reset）。
func (l Ledger) Clear() Ledger {
	return Ledger{}
}

// Cells 回傳有押注的格子，依 A、B 排序。
func (l Ledger) Cells() []grid.Cell {
	out := make([]grid.Cell, 0, len(l.stakes))
	for c := range l.stakes {
		out = append(out, c)
	}
	slices.SortFunc(out, grid.Compare)
	return out
}

// Entries 回傳排序後的押注明細（快照 / API 用）。
func (l Ledger) Entries() []Entry {
	cells := l.Cells()
	out := make([]Entry, len(cells))
	for i, c := range cells {
		out[i] = Entry{Cell: c, Stake: l.stakes[c]}
	}
	return out
}

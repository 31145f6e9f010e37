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

package ledger

import (
	"testing"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
)

func TestPlaceAccumulatesAndConserves(t *testing.T) {
	const start = 1000
	l := New()
	bal := start
	bets := []struct {
		cell   grid.Cell
		amount int
	}{
		{grid.Cell{A: 5, B: 5}, 10},
		{grid.Cell{A: 0, B: 0}, 30},
		{grid.Cell{A: 5, B: 5}, 10},
		{grid.Cell{A: 9, B: 1}, 1},
	}
	sum := 0
	for _, b := range bets {
		var err error
		l, bal, err = l.Place(b.cell, b.amount, bal)
		if err != nil {
			t.Fatalf("unexpected reject: %v", err)
		}
		sum += b.amount
		if l.TotalStaked() != sum {
			t.Fatalf("total %d != accepted sum %d", l.TotalStaked(), sum)
		}
		if bal+l.TotalStaked() != start {
			t.Fatalf("credits not conserved: balance %d + staked %d", bal, l.TotalStaked())
		}
	}
	if got := l.StakeOn(grid.Cell{A: 5, B: 5}); got != 20 {
		t.Fatalf("repeated bets should sum, got %d", got)
	}
	if got := l.StakeOn(grid.Cell{A: 3, B: 3}); got != 0 {
		t.Fatalf("absent cell should have 0 stake, got %d", got)
	}
	if l.Len() != 3 {
		t.Fatalf("expected 3 backed cells, got %d", l.Len())
	}
}

func TestPlaceRejectsWithoutMutation(t *testing.T) {
	l, bal, err := New().Place(grid.Cell{A: 1, B: 1}, 40, 50)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	l2, bal2, err := l.Place(grid.Cell{A: 2, B: 2}, 11, bal)
	if !errs.HasCode(err, errs.InsufficientCredits) {
		t.Fatalf("expected InsufficientCredits, got %v", err)
	}
	if bal2 != bal || l2.TotalStaked() != 40 || l2.StakeOn(grid.Cell{A: 2, B: 2}) != 0 {
		t.Fatalf("rejected bet changed state")
	}

	_, _, err = l.Place(grid.Cell{A: 2, B: 2}, 0, bal)
	if !errs.HasCode(err, errs.InvalidAmount) {
		t.Fatalf("expected InvalidAmount, got %v", err)
	}

	// 剛好等於餘額可以接受，餘額歸零但不為負
	l3, bal3, err := l.Place(grid.Cell{A: 2, B: 2}, bal, bal)
	if err != nil || bal3 != 0 || l3.TotalStaked() != 50 {
		t.Fatalf("all-in bet failed: bal=%d total=%d err=%v", bal3, l3.TotalStaked(), err)
	}
}

func TestPlaceDoesNotTouchReceiver(t *testing.T) {
	base, bal, _ := New().Place(grid.Cell{A: 0, B: 0}, 5, 100)
	_, _, _ = base.Place(grid.Cell{A: 0, B: 0}, 5, bal)
	if base.StakeOn(grid.Cell{A: 0, B: 0}) != 5 || base.TotalStaked() != 5 {
		t.Fatalf("receiver mutated")
	}
}

func TestEntriesSortedAndClear(t *testing.T) {
	l := New()
	bal := 100
	for _, c := range []grid.Cell{{A: 3, B: 0}, {A: 0, B: 2}, {A: 0, B: 1}} {
		l, bal, _ = l.Place(c, 1, bal)
	}
	e := l.Entries()
	if len(e) != 3 || e[0].Cell != (grid.Cell{A: 0, B: 1}) || e[2].Cell != (grid.Cell{A: 3, B: 0}) {
		t.Fatalf("entries not sorted: %v", e)
	}
	c := l.Clear()
	if !c.IsEmpty() || c.TotalStaked() != 0 {
		t.Fatalf("clear did not empty ledger")
	}
}

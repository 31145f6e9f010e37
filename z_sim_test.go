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

package gridlab

import (
	"reflect"
	"testing"
)

func TestSimFullBoardAlwaysWins(t *testing.T) {
	lab := newTestLab(t)
	s, err := lab.NewSimulatorWithSeed(1, 5)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	st, _, err := s.Sim(RandomBettor{Cells: 100, Units: 1}, 300, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	sum := st.Summary
	if sum.Rounds != 300 || sum.Wins != 300 || sum.TotalStake != 300*1000 || sum.RTP != 1 {
		t.Fatalf("full board summary: %+v", sum)
	}
	hits := 0
	for _, row := range st.Dist.FinalCellHits {
		for _, h := range row {
			hits += h
		}
	}
	if hits != 300 {
		t.Fatalf("final cell hits = %d", hits)
	}
}

func TestSimSingleCell(t *testing.T) {
	lab := newTestLab(t)
	s, err := lab.NewSimulatorWithSeed(1, 11)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	st, _, err := s.Sim(RandomBettor{Cells: 1, Units: 2}, 2000, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	sum := st.Summary
	if sum.RoundStake != 20 || sum.TotalStake != 2000*20 {
		t.Fatalf("stake: %+v", sum)
	}
	// 押中就拿回整個彩池（只有自己的押注）
	if sum.TotalPayout != sum.Wins*20 {
		t.Fatalf("payout %d != wins %d * 20", sum.TotalPayout, sum.Wins)
	}
	if sum.HitRate <= 0 || sum.HitRate > 0.05 {
		t.Fatalf("hit rate out of range: %v", sum.HitRate)
	}
	if sum.AvgSteps != 35 {
		t.Fatalf("avg steps = %v", sum.AvgSteps)
	}
}

func TestSimDeterministic(t *testing.T) {
	lab := newTestLab(t)
	run := func() any {
		s, err := lab.NewSimulatorWithSeed(4, 77)
		if err != nil {
			t.Fatalf("new simulator: %v", err)
		}
		st, _, err := s.Sim(RandomBettor{Cells: 5, Units: 1}, 500, false)
		if err != nil {
			t.Fatalf("sim: %v", err)
		}
		return []any{st.Summary.Wins, st.Summary.TotalPayout, st.Dist.FinalCellHits}
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Fatalf("same seed should give the same report")
	}
}

func TestSimMP(t *testing.T) {
	lab := newTestLab(t)
	s, err := lab.NewSimulatorWithSeed(4, 3)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	st, _, err := s.SimMP(RandomBettor{Cells: 3, Units: 1}, 200, 4, false)
	if err != nil {
		t.Fatalf("simmp: %v", err)
	}
	if st.Summary.Rounds != 800 || st.Summary.TotalStake != 800*15 {
		t.Fatalf("simmp summary: %+v", st.Summary)
	}
	// 同一個 Simulator 可以重複使用
	st2, _, err := s.Sim(RandomBettor{Cells: 3, Units: 1}, 10, false)
	if err != nil || st2.Summary.Rounds != 10 {
		t.Fatalf("reuse after simmp: %v %+v", err, st2)
	}
}

func TestSimPlayers(t *testing.T) {
	lab := newTestLab(t)
	s, err := lab.NewSimulatorWithSeed(1, 8)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	st, est, _, err := s.SimPlayers(2, 30, 100, RandomBettor{Cells: 1, Units: 1}, 40, false)
	if err != nil {
		t.Fatalf("simplayers: %v", err)
	}
	if est == nil || st.Summary.Rounds < 1 || st.Summary.Rounds > 30*40 {
		t.Fatalf("simplayers report: %+v", st.Summary)
	}
	sess := est.SessionStat
	total := sess.Bust.Hat + sess.Cashout.Hat + sess.Alive.Hat
	if total < 0.999 || total > 1.001 {
		t.Fatalf("session outcomes should sum to 1, got %v", total)
	}
}

func TestSimRejectsBadInput(t *testing.T) {
	lab := newTestLab(t)
	s, err := lab.NewSimulatorWithSeed(1, 1)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if _, _, err := s.Sim(RandomBettor{Cells: 101, Units: 1}, 10, false); err == nil {
		t.Fatalf("more cells than the board should fail")
	}
	if _, _, err := s.Sim(RandomBettor{Cells: 1, Units: 1}, 0, false); err == nil {
		t.Fatalf("zero rounds should fail")
	}
	if _, _, err := s.SimMP(RandomBettor{Cells: 1, Units: 1}, 10, 0, false); err == nil {
		t.Fatalf("zero workers should fail")
	}
	if _, _, _, err := s.SimPlayers(1, 5, 5, RandomBettor{Cells: 1, Units: 1}, 10, false); err == nil {
		t.Fatalf("bankroll below one stake should fail")
	}
}

func TestSeedMakerUnique(t *testing.T) {
	sm := newSeedMaker(42)
	seen := map[int64]bool{}
	for i := 0; i < 10000; i++ {
		v := sm.next()
		if v < 0 || seen[v] {
			t.Fatalf("seed %d repeated or negative at %d", v, i)
		}
		seen[v] = true
	}
}

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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/sdk/settle"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

// RoundRecorder 回合紀錄員
//
// RoundRecorder 負責紀錄回合結算結果，並透過 Done 輸出統計報表
type RoundRecorder struct {
	TableName   string
	TableId     spec.TID
	Mode        string
	Policy      string
	Grid        grid.Bounds
	Volatility  int
	Cells       int // 每回合押注格數
	RoundStake  int // 每回合押注總額
	InitBalance int
	Basic       *BasicRecord
	Dist        *DistRecord
	Player      *PlayerRecord
}

// BasicRecord 基本回合資料紀錄
type BasicRecord struct {
	TotalStake  int
	TotalPayout int
	PayoutSqSum int // 平方和
	Wins        int
	Steps       int
	Rounds      int
}

// DistRecord 終點格落點統計（索引為 grid.Bounds.Index）
type DistRecord struct {
	FinalCellHits []int
}

// PlayerRecord 玩家統計
type PlayerRecord struct {
	leaveLine   int
	InitBalance int
	Balance     int
	MaxBalance  int
	MinBalance  int
	Bust        bool
	Cashout     bool
	Alive       bool
}

// Meta 建立紀錄員所需的桌台資訊
type Meta struct {
	TableName  string
	TableId    spec.TID
	Mode       string
	Policy     string
	Grid       grid.Bounds
	Volatility int
	Cells      int
	RoundStake int
}

func NewRoundRecorder(m Meta, initBalance int) (*RoundRecorder, error) {
	if !m.Grid.Valid() {
		return nil, errs.NewFatal(fmt.Sprintf("grid err %dx%d", m.Grid.Rows, m.Grid.Cols))
	}
	if m.RoundStake <= 0 {
		return nil, errs.NewFatal(fmt.Sprintf("round stake must > 0, got: %d", m.RoundStake))
	}
	if initBalance < 0 {
		return nil, errs.NewFatal(fmt.Sprintf("init balance must not negative integer, got: %d", initBalance))
	}
	return &RoundRecorder{
		TableName:   m.TableName,
		TableId:     m.TableId,
		Mode:        m.Mode,
		Policy:      m.Policy,
		Grid:        m.Grid,
		Volatility:  m.Volatility,
		Cells:       m.Cells,
		RoundStake:  m.RoundStake,
		InitBalance: initBalance,
		Basic:       new(BasicRecord),
		Dist:        &DistRecord{FinalCellHits: make([]int, m.Grid.Size())},
		Player:      newPlayerRecord(initBalance),
	}, nil
}

func (s *RoundRecorder) meta() Meta {
	return Meta{
		TableName:  s.TableName,
		TableId:    s.TableId,
		Mode:       s.Mode,
		Policy:     s.Policy,
		Grid:       s.Grid,
		Volatility: s.Volatility,
		Cells:      s.Cells,
		RoundStake: s.RoundStake,
	}
}

// MergeRoundRecorder 合併多個紀錄員的基本與分布紀錄（玩家紀錄不合併）
func MergeRoundRecorder(r []*RoundRecorder) (*RoundRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge round record err : empty input")
	}
	r0 := r[0]
	s, err := NewRoundRecorder(r0.meta(), r0.InitBalance)
	if err != nil {
		return nil, err
	}
	for _, v := range r {
		if v.TableName != r0.TableName || v.TableId != r0.TableId {
			return nil, errs.NewFatal("merge round record err : different table")
		}
		if v.Grid != r0.Grid {
			return nil, errs.NewFatal("merge round record err : different grid")
		}
		if v.RoundStake != r0.RoundStake || v.Volatility != r0.Volatility {
			return nil, errs.NewFatal("merge round record err : different bettor")
		}
		if v.InitBalance != r0.InitBalance {
			return nil, errs.NewFatal("merge round record err : different init balance")
		}
		s.Basic.TotalStake += v.Basic.TotalStake
		s.Basic.TotalPayout += v.Basic.TotalPayout
		s.Basic.PayoutSqSum += v.Basic.PayoutSqSum
		s.Basic.Wins += v.Basic.Wins
		s.Basic.Steps += v.Basic.Steps
		s.Basic.Rounds += v.Basic.Rounds
		for i, c := range v.Dist.FinalCellHits {
			s.Dist.FinalCellHits[i] += c
		}
	}
	return s, nil
}

// Record 以單回合結算更新基本統計（不含玩家）
func (s *RoundRecorder) Record(res settle.Result, steps int) {
	s.recordBasic(res, steps)
	s.recordDist(res)
}

// RecordWithPlayer 在 Record 的基礎上更新玩家餘額／離場狀態，並回傳玩家是否停止遊戲。
func (s *RoundRecorder) RecordWithPlayer(res settle.Result, steps int) bool {
	s.recordBasic(res, steps)
	s.recordDist(res)
	return s.recordPlayer(res)
}

// Playable 玩家餘額是否還夠押一回合
func (s *RoundRecorder) Playable() bool {
	return s.Player.Balance >= s.RoundStake
}

func (s *RoundRecorder) Done() *stats.StatReport {
	stake := float64(s.RoundStake)
	rounds := float64(max(s.Basic.Rounds, 1))

	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			TableName:   s.TableName,
			TableId:     s.TableId,
			Mode:        s.Mode,
			Policy:      s.Policy,
			Grid:        s.Grid,
			Volatility:  s.Volatility,
			Cells:       s.Cells,
			RoundStake:  s.RoundStake,
			TotalStake:  s.Basic.TotalStake,
			TotalPayout: s.Basic.TotalPayout,
			Wins:        s.Basic.Wins,
			AvgSteps:    float64(s.Basic.Steps) / rounds,
			Rounds:      s.Basic.Rounds,
		},
		Mult: &stats.MultReport{
			PayoutMult:      float64(s.Basic.TotalPayout) / stake,
			PayoutMultSqSum: float64(s.Basic.PayoutSqSum) / (stake * stake),
		},
		Dist: &stats.DistReport{
			FinalCellHits: make([][]int, s.Grid.Rows),
			FinalCellDist: make([][]float64, s.Grid.Rows),
		},
		Player: &stats.PlayerReport{
			InitBalance: s.Player.InitBalance,
			Balance:     s.Player.Balance,
			MaxBalance:  s.Player.MaxBalance,
			MinBalance:  s.Player.MinBalance,
			Bust:        s.Player.Bust,
			Cashout:     s.Player.Cashout,
		},
	}

	for a := 0; a < s.Grid.Rows; a++ {
		hits := make([]int, s.Grid.Cols)
		dist := make([]float64, s.Grid.Cols)
		for b := 0; b < s.Grid.Cols; b++ {
			h := s.Dist.FinalCellHits[s.Grid.Index(grid.Cell{A: a, B: b})]
			hits[b] = h
			dist[b] = float64(h) / rounds
		}
		report.Dist.FinalCellHits[a] = hits
		report.Dist.FinalCellDist[a] = dist
	}
	return report
}

func (s *RoundRecorder) recordBasic(res settle.Result, steps int) {
	s.Basic.TotalStake += res.TotalPool
	s.Basic.TotalPayout += res.Payout
	s.Basic.PayoutSqSum += res.Payout * res.Payout
	if res.IsWin {
		s.Basic.Wins++
	}
	s.Basic.Steps += steps
	s.Basic.Rounds++
}

func (s *RoundRecorder) recordDist(res settle.Result) {
	if s.Grid.Contains(res.FinalCell) {
		s.Dist.FinalCellHits[s.Grid.Index(res.FinalCell)]++
	}
}

func (s *RoundRecorder) recordPlayer(res settle.Result) bool {
	p := s.Player
	p.Balance += res.Payout - res.TotalPool

	if p.Balance > p.MaxBalance {
		p.MaxBalance = p.Balance
	}
	if p.Balance < p.MinBalance {
		p.MinBalance = p.Balance
	}

	leave := false
	if p.Balance < s.RoundStake {
		p.Bust = true
		leave = true
	}
	if p.Balance >= p.leaveLine {
		p.Cashout = true
		leave = true
	}
	return leave
}

func newPlayerRecord(initBalance int) *PlayerRecord {
	return &PlayerRecord{
		InitBalance: initBalance,
		Balance:     initBalance,
		MaxBalance:  initBalance,
		MinBalance:  initBalance,
		leaveLine:   3 * initBalance, // 離場條件(3倍本金)
	}
}

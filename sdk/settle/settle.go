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

// Package settle 計算單人彩池（pari-mutuel）結算。
//
// 只有一位參與者，所以沒有比例分配：押中任一個獲勝格就拿回整個獎池，否則獎池歸零。
// 押注在下注當下就已經扣除，輸的時候餘額不再變動。
package settle

import (
	"slices"
	"strings"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/sdk/ledger"
	"github.com/zintix-labs/gridlab/sdk/walk"
)

// Policy 決定哪些格子算獲勝格。
type Policy uint8

const (
	// SingleCell 只有路徑最後一格獲勝。
	SingleCell Policy = iota
	// FullPath 路徑上經過的每一個不同格子都獲勝。
	FullPath
)

var policyNames = map[Policy]string{SingleCell: "single_cell", FullPath: "full_path"}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return "unknown"
}

// ParsePolicy 解析設定檔字串。
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return p, nil
		}
	}
	return 0, errs.Warnf("unknown win policy %q (want single_cell|full_path)", s)
}

// Result 結算結果。
type Result struct {
	IsWin         bool        `json:"is_win"`
	Payout        int         `json:"payout"`
	TotalPool     int         `json:"total_pool"`
	FinalCell     grid.Cell   `json:"final_cell"`
	WinningCells  []grid.Cell `json:"winning_cells"`
	BackedWinners []grid.Cell `json:"backed_winners"`
}

// Settle 純函數：相同的 (ledger, path, policy) 永遠得到相同結果。
func Settle(l ledger.Ledger, p walk.Path, policy Policy) Result {
	r := Result{
		TotalPool:     l.TotalStaked(),
		WinningCells:  WinningCells(p, policy),
		BackedWinners: []grid.Cell{},
	}
	if last, ok := p.Last(); ok {
		r.FinalCell = last
	}
	for _, c := range r.WinningCells {
		if l.StakeOn(c) > 0 {
			r.BackedWinners = append(r.BackedWinners, c)
		}
	}
	r.IsWin = len(r.BackedWinners) > 0
	if r.IsWin {
		r.Payout = r.TotalPool
	}
	return r
}

// WinningCells 依政策取出獲勝格，結果去重並依 A、B 排序。
func WinningCells(p walk.Path, policy Policy) []grid.Cell {
	if len(p) == 0 {
		return []grid.Cell{}
	}
	if policy == SingleCell {
		last, _ := p.Last()
		return []grid.Cell{last}
	}
	seen := make(map[grid.Cell]struct{}, len(p))
	out := make([]grid.Cell, 0, len(p))
	for _, s := range p {
		if _, ok := seen[s.Cell]; ok {
			continue
		}
		seen[s.Cell] = struct{}{}
		out = append(out, s.Cell)
	}
	slices.SortFunc(out, grid.Compare)
	return out
}

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
	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/ledger"
	"github.com/zintix-labs/gridlab/sdk/settle"
	"github.com/zintix-labs/gridlab/sdk/walk"
	"github.com/zintix-labs/gridlab/spec"
)

// ReplayBundle 重現一個回合所需的全部輸入。
//
// StartSnap 取自 RoundSettled.StartSnap（產生路徑前的 RNG 快照，base64url）。
type ReplayBundle struct {
	TableID    spec.TID       `json:"table_id"`
	Volatility int            `json:"volatility"`
	StartSnap  string         `json:"start_b64u"`
	Bets       []ledger.Entry `json:"bets"`
}

// ReplayReport 重現結果：完整路徑與結算。
type ReplayReport struct {
	TableID    spec.TID      `json:"table_id"`
	TableName  string        `json:"table_name"`
	Volatility int           `json:"volatility"`
	StartSnap  string        `json:"start_b64u"`
	Path       walk.Path     `json:"path"`
	Result     settle.Result `json:"result"`
}

// Token 把回放包壓成可貼上的字串（zstd + base64url）。
func (b ReplayBundle) Token() (string, error) {
	return corefmt.EncodeToken(b)
}

// ParseReplayToken 是 ReplayBundle.Token 的反向操作。
func ParseReplayToken(tok string) (ReplayBundle, error) {
	var b ReplayBundle
	if err := corefmt.DecodeToken(tok, &b); err != nil {
		return ReplayBundle{}, err
	}
	return b, nil
}

// Replay 以快照還原 RNG，重新產生路徑並結算。
//
// 相同的 (設定, 快照, 波動度, 押注) 永遠得到與原回合相同的路徑與結果；不影響任何桌台狀態。
func Replay(ts *spec.TableSetting, cf core.PRNGFactory, b ReplayBundle) (ReplayReport, error) {
	if ts == nil || cf == nil {
		return ReplayReport{}, errs.NewFatal("table setting and prng factory required")
	}
	snap, err := corefmt.DecodeBase64URL(b.StartSnap)
	if err != nil {
		return ReplayReport{}, err
	}
	rng := cf.New(0)
	if err := rng.Restore(snap); err != nil {
		return ReplayReport{}, errs.Wrap(err, "restore start snapshot failed")
	}

	l := ledger.New()
	total := 0
	for _, e := range b.Bets {
		if !ts.Grid.Contains(e.Cell) {
			return ReplayReport{}, errs.Codef(errs.InvalidCell, "cell %s out of grid", e.Cell)
		}
		total += max(e.Stake, 0)
	}
	for _, e := range b.Bets {
		// 餘額只用來通過帳本檢查，回放不涉及真實扣款
		if l, total, err = l.Place(e.Cell, e.Stake, total); err != nil {
			return ReplayReport{}, err
		}
	}

	w, err := walk.New(ts.WalkConfig, core.New(rng), b.Volatility)
	if err != nil {
		return ReplayReport{}, err
	}
	p := walk.Collect(w)
	return ReplayReport{
		TableID:    ts.TableID,
		TableName:  ts.TableName,
		Volatility: b.Volatility,
		StartSnap:  b.StartSnap,
		Path:       p,
		Result:     settle.Settle(l, p, ts.Policy),
	}, nil
}

// LastReplay 取得最近一次已結算回合的回放包；只在 Settled 階段可用。
func (t *Table) LastReplay() (ReplayBundle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase != PhaseSettled || t.startSnap == nil {
		return ReplayBundle{}, errs.Codef(errs.InvalidPhase, "no settled round to replay in phase %s", t.phase)
	}
	return ReplayBundle{
		TableID:    t.id,
		Volatility: t.volatility,
		StartSnap:  corefmt.EncodeBase64URL(t.startSnap),
		Bets:       t.ledger.Entries(),
	}, nil
}

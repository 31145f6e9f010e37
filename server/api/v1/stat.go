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

package v1

import (
	"net/http"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/recorder"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/sdk/settle"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/spec"
)

// RoundLog 外部回合紀錄（例如線上實際回合）。
type RoundLog struct {
	Stake     int       `json:"stake"`
	Payout    int       `json:"payout"`
	FinalCell grid.Cell `json:"final_cell"`
	Steps     int       `json:"steps"`
}

// DistStat 對一批外部回合紀錄出報表。
type DistStat struct {
	TableID   spec.TID   `json:"table_id"`
	TableName string     `json:"table_name"`
	Rounds    []RoundLog `json:"rounds"`
}

type StatHandler struct {
	lab *gridlab.Lab
}

func NewStatHandler(lab *gridlab.Lab) (*StatHandler, error) {
	if lab == nil {
		return nil, errs.NewFatal("lab is required")
	}
	return &StatHandler{lab: lab}, nil
}

// Stat POST /v1/stat
func (sh *StatHandler) Stat(w http.ResponseWriter, r *http.Request) {
	dst := new(DistStat)
	if err := decodeJSON(w, r, dst); err != nil {
		httperr.Errs(w, err)
		return
	}
	if len(dst.Rounds) < 1 {
		httperr.Errs(w, errs.NewWarn("rounds must not be empty"))
		return
	}
	id, err := sh.lab.Resolve(dst.TableID, dst.TableName)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ts, err := sh.lab.TableSetting(id)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	// 押注額不固定，RoundStake 以平均值近似
	total := 0
	for i, rl := range dst.Rounds {
		if rl.Stake <= 0 || rl.Payout < 0 {
			httperr.Errs(w, errs.Warnf("round %d: stake must > 0 and payout must >= 0", i))
			return
		}
		total += rl.Stake
	}
	rec, err := recorder.NewRoundRecorder(recorder.Meta{
		TableName:  ts.TableName,
		TableId:    ts.TableID,
		Mode:       ts.WalkConfig.Mode.String(),
		Policy:     ts.Policy.String(),
		Grid:       ts.Grid,
		Volatility: ts.Volatility,
		RoundStake: max(total/len(dst.Rounds), 1),
	}, 0)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	for _, rl := range dst.Rounds {
		rec.Record(settle.Result{
			IsWin:     rl.Payout > 0,
			Payout:    rl.Payout,
			TotalPool: rl.Stake,
			FinalCell: rl.FinalCell,
		}, rl.Steps)
	}
	st := rec.Done()
	st.Done()
	writeJSON(w, http.StatusOK, st)
}

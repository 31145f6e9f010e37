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
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

const (
	maxSimRounds       = 1_000_000
	maxSimPlayers      = 100_000
	maxSimPlayerRounds = 15_000
)

type SimHandler struct {
	Lab *gridlab.Lab
}

func NewSimHandler(lab *gridlab.Lab) (*SimHandler, error) {
	if lab == nil {
		return nil, errs.NewFatal("lab is required")
	}
	return &SimHandler{Lab: lab}, nil
}

// simRequest 內部結構 不影響外部 也不被外部使用
type simRequest struct {
	TableID   spec.TID `json:"table_id"`
	TableName string   `json:"table_name"`
	Cells     int      `json:"cells"`
	Units     int      `json:"units"`
	Round     int      `json:"round"`
	Workers   int      `json:"workers"`
	Player    int      `json:"player"`
	Bankroll  int      `json:"bankroll"`
	Seed      *int64   `json:"seed,omitempty"`
}

func (req *simRequest) bettor() gridlab.RandomBettor {
	return gridlab.RandomBettor{Cells: max(req.Cells, 1), Units: max(req.Units, 1)}
}

// decodeSimRequest GET 走 query，POST 走 JSON body。
func decodeSimRequest(w http.ResponseWriter, r *http.Request) (*simRequest, error) {
	req := new(simRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		tid, err := queryInt(q, "table_id", 0)
		if err != nil {
			return nil, err
		}
		if tid < 0 {
			return nil, errs.NewWarn("table_id must be non-negative integer")
		}
		req.TableID = spec.TID(tid)
		req.TableName = q.Get("table_name")
		for _, f := range []struct {
			key string
			dst *int
		}{
			{"cells", &req.Cells},
			{"units", &req.Units},
			{"round", &req.Round},
			{"workers", &req.Workers},
			{"player", &req.Player},
			{"bankroll", &req.Bankroll},
		} {
			if *f.dst, err = queryInt(q, f.key, 0); err != nil {
				return nil, err
			}
		}
		if req.Seed, err = querySeed(q); err != nil {
			return nil, err
		}
	case http.MethodPost:
		if err := decodeJSON(w, r, req); err != nil {
			return nil, err
		}
	default:
		return nil, errs.NewWarn("method not allowed")
	}
	if req.Seed == nil {
		v, err := randSeed()
		if err != nil {
			return nil, err
		}
		req.Seed = &v
	}
	return req, nil
}

func (sh *SimHandler) simulator(req *simRequest) (*gridlab.Simulator, error) {
	id, err := sh.Lab.Resolve(req.TableID, req.TableName)
	if err != nil {
		return nil, err
	}
	sim, err := sh.Lab.NewSimulatorWithSeed(id, *req.Seed)
	if err != nil {
		// 這裡的錯誤是來自 lab 尊重錯誤分級
		return nil, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", id))
	}
	return sim, nil
}

// Sim GET|POST /v1/sim
func (sh *SimHandler) Sim(w http.ResponseWriter, r *http.Request) {
	type SimResponse struct {
		Stats    *stats.StatReport `json:"stats"`
		Seed     int64             `json:"seed"`
		UsedTime int64             `json:"used_ms"`
	}
	req, err := decodeSimRequest(w, r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Round < 1 || req.Round > maxSimRounds {
		httperr.Errs(w, errs.Warnf("round must be between 1 to %d", maxSimRounds))
		return
	}
	sim, err := sh.simulator(req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	workers := min(max(req.Workers, 1), runtime.NumCPU())
	var st *stats.StatReport
	var used int64
	if workers == 1 {
		s, d, e := sim.Sim(req.bettor(), req.Round, false)
		st, used, err = s, d.Milliseconds(), e
	} else {
		// 總回合數維持 req.Round
		per := max(req.Round/workers, 1)
		s, d, e := sim.SimMP(req.bettor(), per, workers, false)
		st, used, err = s, d.Milliseconds(), e
	}
	if err != nil {
		// 這裡的錯誤來自simulator 尊重錯誤分級
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	writeJSON(w, http.StatusOK, SimResponse{Stats: st, Seed: *req.Seed, UsedTime: used})
}

// SimPlayers GET|POST /v1/simplayer
func (sh *SimHandler) SimPlayers(w http.ResponseWriter, r *http.Request) {
	type SimPlayerResponse struct {
		StatsReport *stats.StatReport       `json:"stats"`
		Estimator   *stats.EstimatorPlayers `json:"est"`
		Seed        int64                   `json:"seed"`
		UsedTime    int64                   `json:"used_ms"`
	}
	req, err := decodeSimRequest(w, r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Player < 1 || req.Player > maxSimPlayers {
		httperr.Errs(w, errs.Warnf("player must be between 1 and %d", maxSimPlayers))
		return
	}
	if req.Bankroll < 0 {
		httperr.Errs(w, errs.NewWarn("bankroll must be non-negative"))
		return
	}
	if req.Round < 1 || req.Round > maxSimPlayerRounds {
		httperr.Errs(w, errs.Warnf("round must be between 1 and %d", maxSimPlayerRounds))
		return
	}
	sim, err := sh.simulator(req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	workers := min(max(req.Workers, 4), runtime.NumCPU())
	st, est, used, err := sim.SimPlayers(workers, req.Player, req.Bankroll, req.bettor(), req.Round, false)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "simulator err"))
		return
	}
	writeJSON(w, http.StatusOK, &SimPlayerResponse{
		StatsReport: st,
		Estimator:   est,
		Seed:        *req.Seed,
		UsedTime:    used.Milliseconds(),
	})
}

// SimByCfg POST /v1/simbycfg：以傳入的 JSON 桌台設定模擬。
//
// 設定內的 table_id / table_name 必須對應已註冊桌台。
func (sh *SimHandler) SimByCfg(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cells   int             `json:"cells"`
		Units   int             `json:"units"`
		Rounds  int             `json:"round"`
		Setting json.RawMessage `json:"cfg"`
		Seed    *int64          `json:"seed,omitempty"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5MB
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Errs(w, errs.NewWarn("json decode failed: "+err.Error()))
		return
	}
	if req.Rounds < 1 || req.Rounds > maxSimRounds {
		httperr.Errs(w, errs.Warnf("round must be between 1 to %d", maxSimRounds))
		return
	}
	if req.Seed == nil {
		v, err := randSeed()
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		req.Seed = &v
	}
	sim, err := sh.Lab.NewSimulatorByJSON(req.Setting, *req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	rb := gridlab.RandomBettor{Cells: max(req.Cells, 1), Units: max(req.Units, 1)}
	result, _, err := sim.Sim(rb, req.Rounds, false)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

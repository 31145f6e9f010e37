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

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/catalog"
	"github.com/zintix-labs/gridlab/demo"
	"github.com/zintix-labs/gridlab/server"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/server/svrcfg"
	"github.com/zintix-labs/gridlab/stats"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	lab, err := demo.NewLab()
	if err != nil {
		t.Fatalf("new lab: %v", err)
	}
	sCfg := &svrcfg.SvrCfg{
		Log:       slog.New(slog.DiscardHandler),
		Lab:       lab,
		StepDelay: -1, // 同步結算，測試不需要等待
	}
	svr := netsvr.NewChiServer(":0")
	rt, err := server.Assemble(sCfg, svr)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	ts := httptest.NewServer(svr.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = rt.Shutdown(context.Background())
	})
	return ts
}

func do(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s (status %d): %v", method, url, resp.StatusCode, err)
		}
	}
	return resp.StatusCode
}

func TestTables(t *testing.T) {
	ts := newTestServer(t)
	var sum []catalog.Summary
	if code := do(t, http.MethodGet, ts.URL+"/v1/tables", nil, &sum); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(sum) != 4 {
		t.Fatalf("tables = %d", len(sum))
	}
	var one catalog.Summary
	if code := do(t, http.MethodGet, ts.URL+"/v1/tables/chart", nil, &one); code != http.StatusOK || one.TID != 4 {
		t.Fatalf("table by name: %d %+v", code, one)
	}
	var e httperr.Body
	if code := do(t, http.MethodGet, ts.URL+"/v1/tables/77", nil, &e); code != http.StatusNotFound || e.Code != "not_found" {
		t.Fatalf("unknown table: %d %+v", code, e)
	}
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	var info gridlab.SessionInfo
	if code := do(t, http.MethodPost, ts.URL+"/v1/sessions", map[string]any{"table_name": "cursor"}, &info); code != http.StatusCreated {
		t.Fatalf("open status %d", code)
	}
	if info.ID == "" || info.TableID != 1 || info.State.Balance != 1000 {
		t.Fatalf("open: %+v", info)
	}
	base := ts.URL + "/v1/sessions/" + info.ID

	// 事件串流
	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first struct {
		Kind string           `json:"kind"`
		Data gridlab.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil || first.Kind != "snapshot" || first.Data.Balance != 1000 {
		t.Fatalf("first message: %+v %v", first, err)
	}

	var snap gridlab.Snapshot
	if code := do(t, http.MethodPost, base+"/bets", map[string]any{"a": 1, "b": 1, "amount": 10}, &snap); code != http.StatusOK || snap.Balance != 990 {
		t.Fatalf("bet: %d %+v", code, snap)
	}
	var e httperr.Body
	if code := do(t, http.MethodPost, base+"/bets", map[string]any{"a": 1, "b": 1, "amount": 99999}, &e); code != http.StatusPaymentRequired || e.Code != "insufficient_credits" {
		t.Fatalf("over balance: %d %+v", code, e)
	}
	if code := do(t, http.MethodPost, base+"/bets", map[string]any{"a": 99, "b": 1}, &e); code != http.StatusBadRequest || e.Code != "invalid_cell" {
		t.Fatalf("out of grid: %d %+v", code, e)
	}
	if code := do(t, http.MethodPut, base+"/volatility", map[string]any{"level": 11}, &e); code != http.StatusBadRequest || e.Code != "invalid_volatility" {
		t.Fatalf("volatility 11: %d %+v", code, e)
	}
	if code := do(t, http.MethodPut, base+"/volatility", map[string]any{"level": 3}, &snap); code != http.StatusOK || snap.Volatility != 3 {
		t.Fatalf("volatility 3: %d %+v", code, snap)
	}
	if code := do(t, http.MethodPost, base+"/start", nil, &snap); code != http.StatusAccepted || snap.Result == nil {
		t.Fatalf("start: %d %+v", code, snap)
	}
	if code := do(t, http.MethodPost, base+"/start", nil, &e); code != http.StatusConflict || e.Code != "invalid_phase" {
		t.Fatalf("second start: %d %+v", code, e)
	}

	// websocket 應收到完整回合
	var settled bool
	kinds := map[string]int{}
	for !settled {
		var env struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read event: %v (seen %v)", err, kinds)
		}
		kinds[env.Kind]++
		settled = env.Kind == gridlab.KindRoundSettled
	}
	if kinds[gridlab.KindBetAccepted] != 1 || kinds[gridlab.KindBetRejected] != 2 || kinds[gridlab.KindRoundStarted] != 1 {
		t.Fatalf("event counts: %v", kinds)
	}
	if kinds[gridlab.KindPathStep] != len(snap.Path) {
		t.Fatalf("path steps %d != %d", kinds[gridlab.KindPathStep], len(snap.Path))
	}

	// 回放
	var rp struct {
		Bundle gridlab.ReplayBundle `json:"bundle"`
		Token  string               `json:"token"`
	}
	if code := do(t, http.MethodGet, base+"/replay", nil, &rp); code != http.StatusOK || rp.Token == "" {
		t.Fatalf("replay bundle: %d %+v", code, rp)
	}
	var rep gridlab.ReplayReport
	if code := do(t, http.MethodPost, ts.URL+"/v1/replay", map[string]any{"token": rp.Token}, &rep); code != http.StatusOK {
		t.Fatalf("replay status %d", code)
	}
	if rep.Result.FinalCell != snap.Result.FinalCell || rep.Result.IsWin != snap.Result.IsWin || len(rep.Path) != len(snap.Path) {
		t.Fatalf("replay mismatch: %+v vs %+v", rep.Result, *snap.Result)
	}

	if code := do(t, http.MethodPost, base+"/reset", nil, &snap); code != http.StatusOK || snap.Phase != gridlab.PhaseBetting {
		t.Fatalf("reset: %d %+v", code, snap)
	}
	if code := do(t, http.MethodDelete, base, nil, nil); code != http.StatusNoContent {
		t.Fatalf("close status %d", code)
	}
	if code := do(t, http.MethodGet, base, nil, &e); code != http.StatusNotFound {
		t.Fatalf("get closed session: %d", code)
	}
}

func TestSimEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var sim struct {
		Stats *stats.StatReport `json:"stats"`
		Seed  int64             `json:"seed"`
	}
	if code := do(t, http.MethodGet, ts.URL+"/v1/sim?table_id=1&round=200&cells=2&seed=7", nil, &sim); code != http.StatusOK {
		t.Fatalf("sim status %d", code)
	}
	if sim.Seed != 7 || sim.Stats.Summary.Rounds != 200 || sim.Stats.Summary.RoundStake != 20 {
		t.Fatalf("sim: %+v", sim.Stats.Summary)
	}

	var e httperr.Body
	if code := do(t, http.MethodGet, ts.URL+"/v1/sim?table_id=1&round=0", nil, &e); code != http.StatusBadRequest {
		t.Fatalf("zero rounds: %d", code)
	}

	var sp struct {
		Stats *stats.StatReport       `json:"stats"`
		Est   *stats.EstimatorPlayers `json:"est"`
	}
	body := map[string]any{"table_name": "trail", "player": 10, "bankroll": 200, "round": 20, "seed": 3}
	if code := do(t, http.MethodPost, ts.URL+"/v1/simplayer", body, &sp); code != http.StatusOK || sp.Est == nil {
		t.Fatalf("simplayer: %d", code)
	}

	var st stats.StatReport
	stat := map[string]any{
		"table_id": 1,
		"rounds": []map[string]any{
			{"stake": 10, "payout": 10, "final_cell": map[string]int{"a": 1, "b": 1}, "steps": 35},
			{"stake": 10, "payout": 0, "final_cell": map[string]int{"a": 2, "b": 2}, "steps": 35},
		},
	}
	if code := do(t, http.MethodPost, ts.URL+"/v1/stat", stat, &st); code != http.StatusOK {
		t.Fatalf("stat status %d", code)
	}
	if st.Summary.Rounds != 2 || st.Summary.Wins != 1 || st.Summary.RTP != 0.5 {
		t.Fatalf("stat: %+v", st.Summary)
	}
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "/v1/sessions") {
		t.Fatalf("index: %d %s", resp.StatusCode, raw)
	}

	hz, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	hz.Body.Close()
	if hz.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", hz.StatusCode)
	}
}

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
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/spec"
)

// midRand 每次都回傳區間中點：自由模式起點為盤面中央，位移永遠為 0。
type midRand struct{}

func (midRand) Uint64() uint64            { return 1 << 63 }
func (midRand) Float64() float64          { return 0.5 }
func (midRand) UintN(n uint) uint         { return n / 2 }
func (midRand) IntN(n int) int            { return n / 2 }
func (midRand) Snapshot() ([]byte, error) { return []byte{0}, nil }
func (midRand) Restore([]byte) error      { return nil }

const testCursor = `
table_name: cursor
table_id: 1
grid: {rows: 10, columns: 10}
walk: {mode: free, boundary: wrap, min_steps: 20, max_steps: 50}
win_policy: single_cell
starting_credits: 1000
bet_unit: 10
volatility: 5
`

const testChart = `
table_name: chart
table_id: 4
grid: {rows: 9, columns: 30}
walk: {mode: time}
win_policy: full_path
starting_credits: 500
bet_unit: 5
volatility: 7
`

func testConfigs() fstest.MapFS {
	return fstest.MapFS{
		"cursor.yaml": &fstest.MapFile{Data: []byte(testCursor)},
		"chart.yaml":  &fstest.MapFile{Data: []byte(testChart)},
	}
}

func newTestLab(t *testing.T) *Lab {
	t.Helper()
	lab, err := NewAuto(core.Default(), Configs(testConfigs()))
	if err != nil {
		t.Fatalf("new lab: %v", err)
	}
	return lab
}

func newMidTable(t *testing.T) *Table {
	t.Helper()
	ts, err := spec.GetTableSettingByYAML([]byte(testCursor))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tb, err := NewTable(ts, midRand{})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return tb
}

func collect(tb *Table) *[]Event {
	evs := new([]Event)
	tb.OnEvent(func(e Event) { *evs = append(*evs, e) })
	return evs
}

func kinds(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		if len(out) > 0 && e.Kind() == KindPathStep && out[len(out)-1] == KindPathStep {
			continue
		}
		out = append(out, e.Kind())
	}
	return out
}

func TestWinOnCenterCell(t *testing.T) {
	tb := newMidTable(t)
	evs := collect(tb)
	if err := tb.PlaceBet(grid.Cell{A: 5, B: 5}, 10); err != nil {
		t.Fatalf("bet: %v", err)
	}
	if tb.Balance() != 990 {
		t.Fatalf("stake not deducted: %d", tb.Balance())
	}
	r, err := tb.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if r.Steps() != 35 {
		t.Fatalf("steps = %d, want 35", r.Steps())
	}
	res, ok := r.Drain()
	if !ok {
		t.Fatalf("round not settled")
	}
	if !res.IsWin || res.Payout != 10 || res.TotalPool != 10 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.FinalCell != (grid.Cell{A: 5, B: 5}) {
		t.Fatalf("final cell = %s", res.FinalCell)
	}
	if tb.Balance() != 1000 || tb.Phase() != PhaseSettled {
		t.Fatalf("balance=%d phase=%s", tb.Balance(), tb.Phase())
	}

	want := []string{KindBetAccepted, KindRoundStarted, KindPathStep, KindRoundSettled}
	if got := kinds(*evs); !reflect.DeepEqual(got, want) {
		t.Fatalf("event order = %v, want %v", got, want)
	}
	steps := 0
	for _, e := range *evs {
		if ps, ok := e.(PathStep); ok {
			if ps.T != steps || ps.Cell != (grid.Cell{A: 5, B: 5}) {
				t.Fatalf("step %d = %+v", steps, ps)
			}
			steps++
		}
	}
	if steps != 35 {
		t.Fatalf("path steps emitted = %d", steps)
	}
	last := (*evs)[len(*evs)-1].(RoundSettled)
	if last.Balance != 1000 || last.StartSnap == "" || len(last.WinningCells) != 1 {
		t.Fatalf("settled event: %+v", last)
	}
}

func TestLossKeepsStake(t *testing.T) {
	tb := newMidTable(t)
	if err := tb.PlaceBet(grid.Cell{A: 0, B: 0}, 10); err != nil {
		t.Fatalf("bet: %v", err)
	}
	r, err := tb.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	res, ok := r.Drain()
	if !ok || res.IsWin || res.Payout != 0 {
		t.Fatalf("expected loss, got %+v", res)
	}
	if tb.Balance() != 990 {
		t.Fatalf("balance = %d, want 990", tb.Balance())
	}
	// Settled 之後 Reset 回到 Betting，餘額不變
	tb.Reset()
	snap := tb.Snapshot()
	if snap.Phase != PhaseBetting || snap.Balance != 990 || len(snap.Bets) != 0 || len(snap.Path) != 0 {
		t.Fatalf("reset snapshot: %+v", snap)
	}
}

func TestResetDuringRunningCancels(t *testing.T) {
	tb := newMidTable(t)
	evs := collect(tb)
	_ = tb.PlaceBet(grid.Cell{A: 5, B: 5}, 50)
	r, err := tb.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, ok := r.Next(); !ok {
			t.Fatalf("step %d should advance", i)
		}
	}
	tb.Reset()
	if _, ok := r.Next(); ok {
		t.Fatalf("cancelled round must not advance")
	}
	if _, ok := r.Result(); ok {
		t.Fatalf("cancelled round must not settle")
	}
	if !r.Cancelled() {
		t.Fatalf("round should report cancelled")
	}
	if tb.Balance() != 950 || tb.Phase() != PhaseBetting {
		t.Fatalf("stake should be forfeited: balance=%d phase=%s", tb.Balance(), tb.Phase())
	}
	rr, ok := (*evs)[len(*evs)-1].(RoundReset)
	if !ok || !rr.Cancelled || rr.Balance != 950 {
		t.Fatalf("last event: %+v", (*evs)[len(*evs)-1])
	}
	// 新回合正常進行
	_ = tb.PlaceBet(grid.Cell{A: 5, B: 5}, 10)
	r2, err := tb.Start()
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if r2.Number() != 2 {
		t.Fatalf("round number = %d", r2.Number())
	}
	if res, ok := r2.Drain(); !ok || !res.IsWin {
		t.Fatalf("second round: %+v %v", res, ok)
	}
}

func TestCommandGuards(t *testing.T) {
	tb := newMidTable(t)
	evs := collect(tb)

	if _, err := tb.Start(); !errs.HasCode(err, errs.NoBetsPlaced) {
		t.Fatalf("empty start: %v", err)
	}
	if err := tb.PlaceBet(grid.Cell{A: 10, B: 0}, 10); !errs.HasCode(err, errs.InvalidCell) {
		t.Fatalf("out of grid: %v", err)
	}
	if err := tb.PlaceBet(grid.Cell{A: 1, B: 1}, 0); !errs.HasCode(err, errs.InvalidAmount) {
		t.Fatalf("zero amount: %v", err)
	}
	if err := tb.PlaceBet(grid.Cell{A: 1, B: 1}, 1001); !errs.HasCode(err, errs.InsufficientCredits) {
		t.Fatalf("over balance: %v", err)
	}
	if err := tb.SetVolatility(0); !errs.HasCode(err, errs.InvalidVolatility) {
		t.Fatalf("volatility 0: %v", err)
	}
	if tb.Balance() != 1000 || len(tb.Snapshot().Bets) != 0 {
		t.Fatalf("rejected commands must not change state")
	}
	rejected := 0
	for _, e := range *evs {
		if br, ok := e.(BetRejected); ok {
			rejected++
			if br.Reason == "" {
				t.Fatalf("reject without reason: %+v", br)
			}
		}
	}
	if rejected != 3 {
		t.Fatalf("bet rejected events = %d", rejected)
	}

	if err := tb.SetVolatility(9); err != nil {
		t.Fatalf("volatility 9: %v", err)
	}
	if err := tb.PlaceUnit(grid.Cell{A: 2, B: 2}); err != nil {
		t.Fatalf("unit bet: %v", err)
	}
	r, err := tb.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// Running 中的指令全部拒絕
	if err := tb.PlaceBet(grid.Cell{A: 2, B: 2}, 10); !errs.HasCode(err, errs.InvalidPhase) {
		t.Fatalf("bet while running: %v", err)
	}
	if err := tb.SetVolatility(3); !errs.HasCode(err, errs.InvalidPhase) {
		t.Fatalf("volatility while running: %v", err)
	}
	if _, err := tb.Start(); !errors.Is(err, errs.ErrInvalidPhase) {
		t.Fatalf("double start: %v", err)
	}
	if err := tb.RestoreCore([]byte{0}); !errs.HasCode(err, errs.InvalidPhase) {
		t.Fatalf("restore while running: %v", err)
	}
	r.Drain()
	// Settled 之後也不能下注
	if err := tb.PlaceBet(grid.Cell{A: 2, B: 2}, 10); !errs.HasCode(err, errs.InvalidPhase) {
		t.Fatalf("bet while settled: %v", err)
	}
	if tb.Volatility() != 9 {
		t.Fatalf("volatility = %d", tb.Volatility())
	}
}

func TestTimeModePath(t *testing.T) {
	lab := newTestLab(t)
	tb, err := lab.NewTableWithSeed(4, 7)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	for b := 0; b < 30; b += 3 {
		if err := tb.PlaceBet(grid.Cell{A: 4, B: b}, 5); err != nil {
			t.Fatalf("bet: %v", err)
		}
	}
	r, err := tb.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if r.Steps() != 30 {
		t.Fatalf("time mode steps = %d, want columns", r.Steps())
	}
	r.Drain()
	p := tb.Snapshot().Path
	if p[0].Cell != (grid.Cell{A: 4, B: 0}) {
		t.Fatalf("time mode start = %s", p[0].Cell)
	}
	for i, s := range p {
		if s.Cell.B != i || s.Cell.A < 0 || s.Cell.A >= 9 {
			t.Fatalf("step %d = %s", i, s.Cell)
		}
	}
}

func TestReplayMatchesRound(t *testing.T) {
	lab := newTestLab(t)
	for _, id := range []spec.TID{1, 4} {
		tb, err := lab.NewTableWithSeed(id, 20251019)
		if err != nil {
			t.Fatalf("new table: %v", err)
		}
		_ = tb.SetVolatility(8)
		_ = tb.PlaceBet(grid.Cell{A: 3, B: 3}, 20)
		_ = tb.PlaceBet(grid.Cell{A: 4, B: 7}, 30)
		// 先跑一回合，讓第二回合的快照不在初始狀態
		for round := 0; round < 2; round++ {
			if round == 1 {
				tb.Reset()
				_ = tb.PlaceBet(grid.Cell{A: 3, B: 3}, 20)
				_ = tb.PlaceBet(grid.Cell{A: 4, B: 7}, 30)
			}
			r, err := tb.Start()
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			r.Drain()
		}
		b, err := tb.LastReplay()
		if err != nil {
			t.Fatalf("last replay: %v", err)
		}
		tok, err := b.Token()
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		b2, err := ParseReplayToken(tok)
		if err != nil {
			t.Fatalf("parse token: %v", err)
		}
		rep, err := lab.Replay(b2)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		snap := tb.Snapshot()
		if !reflect.DeepEqual(rep.Path, snap.Path) {
			t.Fatalf("table %d: replay path differs", id)
		}
		if !reflect.DeepEqual(rep.Result, *snap.Result) {
			t.Fatalf("table %d: replay result differs: %+v vs %+v", id, rep.Result, *snap.Result)
		}
		if rep.Volatility != 8 {
			t.Fatalf("volatility = %d", rep.Volatility)
		}
	}
}

func TestLastReplayNeedsSettledRound(t *testing.T) {
	tb := newMidTable(t)
	if _, err := tb.LastReplay(); !errs.HasCode(err, errs.InvalidPhase) {
		t.Fatalf("replay before any round: %v", err)
	}
}

func TestSameSeedSamePaths(t *testing.T) {
	lab := newTestLab(t)
	run := func() [][]grid.Cell {
		tb, err := lab.NewTableWithSeed(1, 99)
		if err != nil {
			t.Fatalf("new table: %v", err)
		}
		var out [][]grid.Cell
		for i := 0; i < 5; i++ {
			_ = tb.PlaceBet(grid.Cell{A: i, B: i}, 10)
			r, err := tb.Start()
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			r.Drain()
			var cells []grid.Cell
			for _, s := range tb.Snapshot().Path {
				cells = append(cells, s.Cell)
			}
			out = append(out, cells)
			tb.Reset()
		}
		return out
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Fatalf("same seed should reproduce the same rounds")
	}
}

func TestLabCatalog(t *testing.T) {
	lab := newTestLab(t)
	if got := lab.IDs(); !reflect.DeepEqual(got, []spec.TID{1, 4}) {
		t.Fatalf("ids = %v", got)
	}
	id, err := lab.Resolve(0, "CHART")
	if err != nil || id != 4 {
		t.Fatalf("resolve by name: %d %v", id, err)
	}
	if _, err := lab.Resolve(9, ""); !errs.HasCode(err, errs.NotFound) {
		t.Fatalf("resolve unknown id: %v", err)
	}
	sum, err := lab.Summary()
	if err != nil || len(sum) != 2 {
		t.Fatalf("summary: %v %v", sum, err)
	}
	if sum[1].Mode != "time" || sum[1].Boundary != "clamp" || sum[1].Policy != "full_path" {
		t.Fatalf("chart summary: %+v", sum[1])
	}
	if _, err := lab.NewTable(9); err == nil {
		t.Fatalf("unknown table should fail")
	}
	raw := []byte(`{"table_name":"cursor","table_id":1,"grid":{"rows":4,"columns":4},"walk":{"mode":"free"},"win_policy":"single_cell"}`)
	tb, err := lab.NewTableByJSON(raw, 1)
	if err != nil {
		t.Fatalf("table by json: %v", err)
	}
	if tb.Bounds() != (grid.Bounds{Rows: 4, Cols: 4}) || tb.InitSeed() != 1 {
		t.Fatalf("table by json: %v", tb.Bounds())
	}
	bad := []byte(`{"table_name":"ghost","table_id":77,"grid":{"rows":4,"columns":4},"walk":{"mode":"free"}}`)
	if _, err := lab.NewTableByJSON(bad, 1); err == nil {
		t.Fatalf("unregistered table config should fail")
	}
}

func TestLabDuplicateConfigs(t *testing.T) {
	fsys := testConfigs()
	fsys["copy.yaml"] = &fstest.MapFile{Data: []byte(testCursor)}
	if _, err := NewAuto(core.Default(), Configs(fsys)); err == nil {
		t.Fatalf("duplicate table id should fail")
	}
}

func TestEnvelopeKinds(t *testing.T) {
	evs := []Event{
		BetAccepted{}, BetRejected{}, VolatilityChanged{}, RoundStarted{},
		PathStep{}, RoundSettled{}, RoundReset{},
	}
	seen := map[string]bool{}
	for _, e := range evs {
		env := EnvelopeOf(e)
		if env.Kind == "" || env.Kind != e.Kind() || seen[env.Kind] {
			t.Fatalf("bad envelope kind %q", env.Kind)
		}
		seen[env.Kind] = true
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	tb := newMidTable(t)
	raw, err := json.Marshal(tb.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"path":[]`) || !strings.Contains(string(raw), `"phase":"betting"`) {
		t.Fatalf("betting snapshot json: %s", raw)
	}

	if err := tb.PlaceBet(grid.Cell{A: 5, B: 5}, 10); err != nil {
		t.Fatalf("bet: %v", err)
	}
	r, err := tb.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := r.Drain(); !ok {
		t.Fatalf("round not settled")
	}
	want := tb.Snapshot()
	raw, err = json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Phase != PhaseSettled || !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	var p Phase
	if err := json.Unmarshal([]byte(`"halted"`), &p); err == nil {
		t.Fatalf("unknown phase should fail")
	}
}

func TestConcurrentBetsConserveCredits(t *testing.T) {
	tb := newMidTable(t)
	const workers = 400
	var accepted atomic.Int64
	var wg sync.WaitGroup
	fail := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := tb.PlaceBet(grid.Cell{A: i % 10, B: (i / 10) % 10}, 7)
			if err == nil {
				accepted.Add(1)
				return
			}
			if !errs.HasCode(err, errs.InsufficientCredits) {
				fail <- err
			}
		}(i)
	}
	wg.Wait()
	close(fail)
	for err := range fail {
		t.Fatalf("unexpected reject: %v", err)
	}

	if n := accepted.Load(); n != 142 {
		t.Fatalf("accepted = %d, want 142", n)
	}
	s := tb.Snapshot()
	if s.Balance != 6 || s.TotalStaked != 994 || s.Balance+s.TotalStaked != 1000 {
		t.Fatalf("balance=%d staked=%d", s.Balance, s.TotalStaked)
	}
}

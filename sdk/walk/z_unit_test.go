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

package walk_test

import (
	"testing"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/sdk/walk"
)

// fixedRand 永遠回傳 pick(n)，用來構造決定性的路徑。
type fixedRand struct {
	pick  func(n int) int
	calls int
}

func (f *fixedRand) IntN(n int) int {
	f.calls++
	return f.pick(n)
}

func mid() *fixedRand  { return &fixedRand{pick: func(n int) int { return n / 2 }} }
func high() *fixedRand { return &fixedRand{pick: func(n int) int { return n - 1 }} }
func low() *fixedRand  { return &fixedRand{pick: func(int) int { return 0 }} }

var freeCfg = walk.Config{
	Mode:     walk.ModeFree,
	Bounds:   grid.Bounds{Rows: 10, Cols: 10},
	MinSteps: 20,
	MaxSteps: 50,
}

var timeCfg = walk.Config{
	Mode:   walk.ModeTime,
	Bounds: grid.Bounds{Rows: 9, Cols: 30},
}

func TestMaxJumpAndSteps(t *testing.T) {
	jumps := map[int]int{1: 1, 3: 1, 4: 2, 6: 2, 7: 3, 9: 3, 10: 4}
	for v, want := range jumps {
		if got := walk.MaxJump(v); got != want {
			t.Fatalf("MaxJump(%d)=%d want %d", v, got, want)
		}
	}
	steps := map[int]int{1: 23, 5: 35, 7: 41, 10: 50}
	for v, want := range steps {
		if got := freeCfg.Steps(v); got != want {
			t.Fatalf("Steps(%d)=%d want %d", v, got, want)
		}
	}
	if timeCfg.Steps(3) != 30 || timeCfg.Steps(10) != 30 {
		t.Fatalf("time mode steps must equal column count")
	}
}

func TestFreeWalkBoundedDeltas(t *testing.T) {
	widest := 0
	for seed := int64(1); seed <= 20; seed++ {
		rng := core.New(core.Default().New(seed))
		w, err := walk.New(freeCfg, rng, 10)
		if err != nil {
			t.Fatalf("new walker: %v", err)
		}
		p := walk.Collect(w)
		if len(p) != 50 {
			t.Fatalf("expected 50 steps, got %d", len(p))
		}
		for i, s := range p {
			if s.T != i {
				t.Fatalf("time index %d at position %d", s.T, i)
			}
			if !freeCfg.Bounds.Contains(s.Cell) {
				t.Fatalf("seed %d step %d out of grid: %v", seed, i, s.Cell)
			}
			if i == 0 {
				continue
			}
			prev := p[i-1].Cell
			if ringDist(prev.A, s.Cell.A, 10) > 4 || ringDist(prev.B, s.Cell.B, 10) > 4 {
				t.Fatalf("seed %d step %d jumped too far: %v -> %v", seed, i, prev, s.Cell)
			}
			widest = max(widest, ringDist(prev.A, s.Cell.A, 10), ringDist(prev.B, s.Cell.B, 10))
		}
	}
	if widest != 4 {
		t.Fatalf("max jump never reached, widest = %d", widest)
	}
}

func ringDist(x, y, n int) int {
	d := x - y
	if d < 0 {
		d = -d
	}
	return min(d, n-d)
}

func TestFreeWalkWrapsInsteadOfClamping(t *testing.T) {
	w, _ := walk.New(freeCfg, high(), 10)
	p := walk.Collect(w)
	// 起點 (9,9)，每步 +4 並折回：9 -> 3 -> 7 -> 1 ...
	want := []int{9, 3, 7, 1, 5}
	for i, a := range want {
		if p[i].Cell.A != a || p[i].Cell.B != a {
			t.Fatalf("step %d: got %v want (%d,%d)", i, p[i].Cell, a, a)
		}
	}
}

func TestFreeWalkClampOverride(t *testing.T) {
	cfg := freeCfg
	cfg.Boundary = walk.BoundaryClamp
	w, _ := walk.New(cfg, high(), 10)
	for s, ok := w.Next(); ok; s, ok = w.Next() {
		if s.Cell != (grid.Cell{A: 9, B: 9}) {
			t.Fatalf("clamped free walk left the corner: %v", s.Cell)
		}
	}
}

func TestFreeWalkMidpointStubStaysPut(t *testing.T) {
	w, _ := walk.New(freeCfg, mid(), 5)
	p := walk.Collect(w)
	for _, s := range p {
		if s.Cell != (grid.Cell{A: 5, B: 5}) {
			t.Fatalf("zero-offset walk moved: %v", s.Cell)
		}
	}
	last, ok := p.Last()
	if !ok || last != (grid.Cell{A: 5, B: 5}) {
		t.Fatalf("unexpected last cell %v", last)
	}
}

func TestTimeWalkAxisAndClamp(t *testing.T) {
	for _, tc := range []struct {
		name string
		rng  *fixedRand
		edge int
	}{
		{"up", high(), 8},
		{"down", low(), 0},
	} {
		w, err := walk.New(timeCfg, tc.rng, 10)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		p := walk.Collect(w)
		if len(p) != 30 {
			t.Fatalf("%s: expected 30 steps, got %d", tc.name, len(p))
		}
		if p[0].Cell != (grid.Cell{A: 4, B: 0}) {
			t.Fatalf("%s: time walk must start at mid price, got %v", tc.name, p[0].Cell)
		}
		for i, s := range p {
			if s.Cell.B != i || s.T != i {
				t.Fatalf("%s: time axis broken at %d: %v", tc.name, i, s)
			}
			if s.Cell.A < 0 || s.Cell.A > 8 {
				t.Fatalf("%s: price left range: %v", tc.name, s.Cell)
			}
		}
		last, _ := p.Last()
		if last.A != tc.edge {
			t.Fatalf("%s: expected clamp at %d, got %d", tc.name, tc.edge, last.A)
		}
		// 時間軸不抽亂數：29 次位移各一次
		if tc.rng.calls != 29 {
			t.Fatalf("%s: expected 29 draws, got %d", tc.name, tc.rng.calls)
		}
	}
}

func TestTimeWalkWrapOverride(t *testing.T) {
	cfg := timeCfg
	cfg.Boundary = walk.BoundaryWrap
	w, _ := walk.New(cfg, high(), 10)
	w.Next()
	s, _ := w.Next()
	// 4 + 4 = 8, 再 +4 = 12 -> 3
	if s.Cell.A != 8 {
		t.Fatalf("step 1 price %d", s.Cell.A)
	}
	s, _ = w.Next()
	if s.Cell.A != 3 {
		t.Fatalf("wrap override should fold 12 to 3, got %d", s.Cell.A)
	}
}

func TestWalkerIsNotRestartable(t *testing.T) {
	w, _ := walk.New(freeCfg, mid(), 1)
	n := len(walk.Collect(w))
	if n != w.Len() || !w.Done() {
		t.Fatalf("collect drained %d of %d", n, w.Len())
	}
	if _, ok := w.Next(); ok {
		t.Fatalf("exhausted walker produced another step")
	}
	if len(walk.Collect(w)) != 0 {
		t.Fatalf("second collect must be empty")
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := walk.New(freeCfg, mid(), 0); !errs.HasCode(err, errs.InvalidVolatility) {
		t.Fatalf("expected InvalidVolatility, got %v", err)
	}
	if _, err := walk.New(freeCfg, mid(), 11); !errs.HasCode(err, errs.InvalidVolatility) {
		t.Fatalf("expected InvalidVolatility, got %v", err)
	}
	bad := freeCfg
	bad.MaxSteps = 5
	if _, err := walk.New(bad, mid(), 5); err == nil {
		t.Fatalf("expected step range error")
	}
	if _, err := walk.New(freeCfg, nil, 5); err == nil {
		t.Fatalf("expected nil rand error")
	}
}

func TestParseModeAndBoundary(t *testing.T) {
	if m, err := walk.ParseMode(" Time "); err != nil || m != walk.ModeTime {
		t.Fatalf("ParseMode: %v %v", m, err)
	}
	if _, err := walk.ParseMode("zigzag"); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	if b, err := walk.ParseBoundary(""); err != nil || b != walk.BoundaryAuto {
		t.Fatalf("empty boundary should be auto")
	}
	if b, _ := walk.ParseBoundary("CLAMP"); b != walk.BoundaryClamp {
		t.Fatalf("ParseBoundary clamp failed")
	}
	if timeCfg.EffectiveBoundary() != walk.BoundaryClamp || freeCfg.EffectiveBoundary() != walk.BoundaryWrap {
		t.Fatalf("auto boundary resolution wrong")
	}
}

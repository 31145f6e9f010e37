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

// Package walk 產生回合的隨機路徑。
//
// 兩種模式共用同一個跳幅公式 MaxJump(v) = ceil(v/3)，差別只在哪一軸由時間驅動、
// 以及邊界是環狀折回（wrap）還是夾住（clamp）：
//
//   - ModeFree：起點在整個盤面均勻抽取，每步 A、B 兩軸各自位移 [-k,+k]，預設 wrap。
//   - ModeTime：B 軸為時間 0..N-1，A 軸（價位）從中線出發，每步位移 [-k,+k]，預設 clamp。
//
// Walker 是惰性、有限、不可重來的序列：每次 Next 才計算下一步，讓上層可以逐步呈現。
package walk

import (
	"strings"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
)

const (
	MinVolatility = 1
	MaxVolatility = 10
)

// Rand 路徑生成唯一需要的亂數能力：回傳 [0,n) 的均勻整數。
type Rand interface {
	IntN(int) int
}

type Mode uint8

const (
	ModeFree Mode = iota
	ModeTime
)

var modeNames = map[Mode]string{ModeFree: "free", ModeTime: "time"}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMode 解析設定檔字串（大小寫不敏感）。
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return m, nil
		}
	}
	return 0, errs.Warnf("unknown walk mode %q (want free|time)", s)
}

// Boundary 自由軸越界時的處理方式；BoundaryAuto 依模式決定（free=wrap, time=clamp）。
type Boundary uint8

const (
	BoundaryAuto Boundary = iota
	BoundaryWrap
	BoundaryClamp
)

var boundaryNames = map[Boundary]string{BoundaryAuto: "", BoundaryWrap: "wrap", BoundaryClamp: "clamp"}

func (b Boundary) String() string {
	if b == BoundaryAuto {
		return "auto"
	}
	return boundaryNames[b]
}

// ParseBoundary 空字串視為 BoundaryAuto。
func ParseBoundary(s string) (Boundary, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return BoundaryAuto, nil
	}
	for b, name := range boundaryNames {
		if b != BoundaryAuto && strings.EqualFold(s, name) {
			return b, nil
		}
	}
	return 0, errs.Warnf("unknown boundary %q (want wrap|clamp)", s)
}

// Config 路徑生成設定。MinSteps / MaxSteps 只在 ModeFree 使用；ModeTime 的步數等於 Bounds.Cols。
type Config struct {
	Mode     Mode
	Boundary Boundary
	Bounds   grid.Bounds
	MinSteps int
	MaxSteps int
}

// Valid 檢查設定合法性。
func (c Config) Valid() error {
	if !c.Bounds.Valid() {
		return errs.Fatalf("invalid grid bounds: rows=%d cols=%d", c.Bounds.Rows, c.Bounds.Cols)
	}
	switch c.Mode {
	case ModeFree:
		if c.MinSteps < 1 || c.MaxSteps < c.MinSteps {
			return errs.Fatalf("invalid step range: min=%d max=%d", c.MinSteps, c.MaxSteps)
		}
	case ModeTime:
	default:
		return errs.Fatalf("invalid walk mode %d", c.Mode)
	}
	if c.Boundary > BoundaryClamp {
		return errs.Fatalf("invalid boundary %d", c.Boundary)
	}
	return nil
}

// EffectiveBoundary 解析 BoundaryAuto。
func (c Config) EffectiveBoundary() Boundary {
	if c.Boundary != BoundaryAuto {
		return c.Boundary
	}
	if c.Mode == ModeTime {
		return BoundaryClamp
	}
	return BoundaryWrap
}

// Steps 回傳波動度 v 下的路徑長度 N。
func (c Config) Steps(v int) int {
	if c.Mode == ModeTime {
		return c.Bounds.Cols
	}
	return c.MinSteps + (c.MaxSteps-c.MinSteps)*v/MaxVolatility
}

// MaxJump = ceil(v/3)：1-3 -> 1, 4-6 -> 2, 7-9 -> 3, 10 -> 4。
func MaxJump(v int) int {
	return (v + 2) / 3
}

// ValidVolatility 判斷 v 是否落在 [1,10]。
func ValidVolatility(v int) bool {
	return v >= MinVolatility && v <= MaxVolatility
}

// Step 路徑上的一點。
type Step struct {
	T    int       `json:"t"`
	Cell grid.Cell `json:"cell"`
}

// Path 一整條路徑，生成後不可變。
type Path []Step

// Last 回傳最後一格；空路徑回傳 false。
func (p Path) Last() (grid.Cell, bool) {
	if len(p) == 0 {
		return grid.Cell{}, false
	}
	return p[len(p)-1].Cell, true
}

// Walker 惰性路徑產生器。
type Walker struct {
	cfg      Config
	boundary Boundary
	rng      Rand
	jump     int
	steps    int
	t        int
	cur      grid.Cell
}

// New 建立 Walker；volatility 必須在 [1,10]。
func New(cfg Config, rng Rand, volatility int) (*Walker, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errs.NewFatal("walk: nil rand")
	}
	if !ValidVolatility(volatility) {
		return nil, errs.Codef(errs.InvalidVolatility, "volatility %d out of [%d,%d]", volatility, MinVolatility, MaxVolatility)
	}
	return &Walker{
		cfg:      cfg,
		boundary: cfg.EffectiveBoundary(),
		rng:      rng,
		jump:     MaxJump(volatility),
		steps:    cfg.Steps(volatility),
	}, nil
}

// Len 路徑總步數 N。
func (w *Walker) Len() int {
	return w.steps
}

// Emitted 已經產出的步數。
func (w *Walker) Emitted() int {
	return w.t
}

// Done 是否已經產出全部步數。
func (w *Walker) Done() bool {
	return w.t >= w.steps
}

// Next 產出下一步；序列結束後永遠回傳 false。
func (w *Walker) Next() (Step, bool) {
	if w.t >= w.steps {
		return Step{}, false
	}
	if w.t == 0 {
		w.cur = w.start()
	} else {
		w.cur = w.move(w.cur)
	}
	s := Step{T: w.t, Cell: w.cur}
	w.t++
	return s, true
}

func (w *Walker) start() grid.Cell {
	b := w.cfg.Bounds
	if w.cfg.Mode == ModeTime {
		return grid.Cell{A: b.Rows / 2, B: 0}
	}
	a := w.rng.IntN(b.Rows)
	c := w.rng.IntN(b.Cols)
	return grid.Cell{A: a, B: c}
}

func (w *Walker) move(cur grid.Cell) grid.Cell {
	b := w.cfg.Bounds
	if w.cfg.Mode == ModeTime {
		return grid.Cell{A: w.bound(cur.A+w.offset(), b.Rows), B: w.t}
	}
	da := w.offset()
	db := w.offset()
	return grid.Cell{A: w.bound(cur.A+da, b.Rows), B: w.bound(cur.B+db, b.Cols)}
}

func (w *Walker) offset() int {
	return w.rng.IntN(2*w.jump+1) - w.jump
}

func (w *Walker) bound(v int, n int) int {
	if w.boundary == BoundaryClamp {
		return grid.Clamp(v, n)
	}
	return grid.Wrap(v, n)
}

// Collect 把 Walker 剩餘的步數全部取出。
func Collect(w *Walker) Path {
	p := make(Path, 0, w.Len()-w.Emitted())
	for s, ok := w.Next(); ok; s, ok = w.Next() {
		p = append(p, s)
	}
	return p
}

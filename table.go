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
	"crypto/rand"
	"math"
	"math/big"
	"sync"

	"github.com/zintix-labs/gridlab/corefmt"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/sdk/ledger"
	"github.com/zintix-labs/gridlab/sdk/settle"
	"github.com/zintix-labs/gridlab/sdk/walk"
	"github.com/zintix-labs/gridlab/spec"
)

// Table 封裝一張「單人押注桌台」，也就是回合控制器。
//
// 對外：提供 PlaceBet / SetVolatility / Start / Reset 四個指令，以及 Snapshot 查詢。
// 對內：持有 RNG（Core）、押注帳本（Ledger）、餘額與回合狀態機。
//
// 並發語意：
//   - 所有指令都在同一把鎖內完成「檢查 → 扣款 → 發事件」，同一張桌台可以被多個 goroutine 呼叫。
//   - 同一時間只會有一個 Running 回合，這由 phase 保證而不是鎖。
//   - 路徑只在 Round.Next 之間暫停；Reset 會遞增 gen，使舊的 Round 失效。
type Table struct {
	mu         sync.Mutex
	name       string
	id         spec.TID
	cfg        walk.Config
	policy     settle.Policy
	betUnit    int
	core       *core.Core
	initseed   int64 // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
	ledger     ledger.Ledger
	balance    int
	phase      Phase
	volatility int
	round      int    // 已開始過的回合數
	gen        uint64 // Start / Reset 時遞增，用於讓舊 Round 失效
	path       walk.Path
	result     *settle.Result
	startSnap  []byte
	listener   Listener
}

// Snapshot 桌台當下狀態（值拷貝，可安全傳出鎖外）。
type Snapshot struct {
	TableID     spec.TID       `json:"table_id"`
	TableName   string         `json:"table_name"`
	Phase       Phase          `json:"phase"`
	Balance     int            `json:"balance"`
	Volatility  int            `json:"volatility"`
	Round       int            `json:"round"`
	Bets        []ledger.Entry `json:"bets"`
	TotalStaked int            `json:"total_staked"`
	Path        walk.Path      `json:"path"`
	Result      *settle.Result `json:"result,omitempty"`
}

// NewTable 以外部提供的 PRNG 建立桌台；ts 必須是已通過 spec 初始化的設定。
func NewTable(ts *spec.TableSetting, rng core.PRNG) (*Table, error) {
	if ts == nil {
		return nil, errs.NewFatal("table setting required")
	}
	if rng == nil {
		return nil, errs.NewFatal("prng required")
	}
	if err := ts.WalkConfig.Valid(); err != nil {
		return nil, errs.Wrap(err, "table setting not initialized")
	}
	return &Table{
		name:       ts.TableName,
		id:         ts.TableID,
		cfg:        ts.WalkConfig,
		policy:     ts.Policy,
		betUnit:    ts.BetUnit,
		core:       core.New(rng),
		ledger:     ledger.New(),
		balance:    ts.StartingCredits,
		phase:      PhaseBetting,
		volatility: ts.Volatility,
	}, nil
}

// newTable 以 crypto/rand 產生的 seed 建立桌台。
func newTable(ts *spec.TableSetting, cf core.PRNGFactory) (*Table, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return newTableWithSeed(ts, cf, seed.Int64())
}

// newTableWithSeed 同一份設定 + 同一個 seed，得到同一串回合路徑。
func newTableWithSeed(ts *spec.TableSetting, cf core.PRNGFactory, seed int64) (*Table, error) {
	t, err := NewTable(ts, cf.New(seed))
	if err != nil {
		return nil, err
	}
	t.initseed = seed
	return t, nil
}

func (t *Table) Name() string { return t.name }

func (t *Table) ID() spec.TID { return t.id }

func (t *Table) Bounds() grid.Bounds { return t.cfg.Bounds }

func (t *Table) BetUnit() int { return t.betUnit }

func (t *Table) InitSeed() int64 { return t.initseed }

// MaxSteps 最高波動度下一回合的步數，也就是單回合 PathStep 的上限。
func (t *Table) MaxSteps() int { return t.cfg.Steps(walk.MaxVolatility) }

// OnEvent 註冊事件接收者（nil 代表不接收）；只保留最後一個。
func (t *Table) OnEvent(l Listener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// PlaceBet 在 Betting 階段對 cell 下注 amount，成功時立即從餘額扣除。
//
// 任何拒絕都不改變狀態，並發出 BetRejected。
func (t *Table) PlaceBet(cell grid.Cell, amount int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseBetting {
		return t.reject(cell, amount, errs.Codef(errs.InvalidPhase, "can not bet in phase %s", t.phase))
	}
	if !t.cfg.Bounds.Contains(cell) {
		return t.reject(cell, amount, errs.Codef(errs.InvalidCell, "cell %s out of grid %dx%d", cell, t.cfg.Bounds.Rows, t.cfg.Bounds.Cols))
	}
	l, bal, err := t.ledger.Place(cell, amount, t.balance)
	if err != nil {
		return t.reject(cell, amount, err)
	}
	t.ledger = l
	t.balance = bal
	t.emit(BetAccepted{Cell: cell, NewTotal: l.StakeOn(cell), Balance: bal})
	return nil
}

// PlaceUnit 以桌台設定的 bet_unit 下注一次。
func (t *Table) PlaceUnit(cell grid.Cell) error {
	return t.PlaceBet(cell, t.betUnit)
}

func (t *Table) reject(cell grid.Cell, amount int, err error) error {
	t.emit(BetRejected{Cell: cell, Amount: amount, Reason: errs.CodeOf(err).String()})
	return err
}

// SetVolatility 只在 Betting 階段允許調整，範圍 [1,10]。
func (t *Table) SetVolatility(level int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseBetting {
		return errs.Codef(errs.InvalidPhase, "can not change volatility in phase %s", t.phase)
	}
	if !walk.ValidVolatility(level) {
		return errs.Codef(errs.InvalidVolatility, "volatility %d out of [%d,%d]", level, walk.MinVolatility, walk.MaxVolatility)
	}
	if level != t.volatility {
		t.volatility = level
		t.emit(VolatilityChanged{Level: level})
	}
	return nil
}

// Start 鎖定押注並開始新回合，回傳逐步推進用的 Round。
//
// 產生路徑之前會先記錄 RNG 快照（StartSnap），配合押注與波動度即可完整重現該回合。
func (t *Table) Start() (*Round, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseBetting {
		return nil, errs.Codef(errs.InvalidPhase, "can not start in phase %s", t.phase)
	}
	if t.ledger.IsEmpty() {
		return nil, errs.NewCode(errs.NoBetsPlaced, "place at least one bet before start")
	}
	snap, err := t.core.Snapshot()
	if err != nil {
		return nil, errs.Wrap(err, "snapshot core before round")
	}
	w, err := walk.New(t.cfg, t.core, t.volatility)
	if err != nil {
		return nil, err
	}

	t.round++
	t.gen++
	t.phase = PhaseRunning
	t.path = make(walk.Path, 0, w.Len())
	t.result = nil
	t.startSnap = snap
	t.emit(RoundStarted{Round: t.round, Steps: w.Len(), Volatility: t.volatility, TotalPool: t.ledger.TotalStaked()})

	return &Round{
		t:      t,
		w:      w,
		gen:    t.gen,
		number: t.round,
		steps:  w.Len(),
		snap:   snap,
	}, nil
}

// Reset 任何階段都可呼叫：清空押注與路徑、回到 Betting，餘額保留。
//
// Running 中呼叫會中斷回合：已扣的押注不退還，之後的 Round.Next 回傳 false 且不結算。
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cancelled := t.phase == PhaseRunning
	t.ledger = t.ledger.Clear()
	t.path = nil
	t.result = nil
	t.startSnap = nil
	t.phase = PhaseBetting
	t.gen++
	t.emit(RoundReset{Round: t.round, Balance: t.balance, Cancelled: cancelled})
}

func (t *Table) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *Table) Balance() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance
}

func (t *Table) Volatility() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volatility
}

func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		TableID:     t.id,
		TableName:   t.name,
		Phase:       t.phase,
		Balance:     t.balance,
		Volatility:  t.volatility,
		Round:       t.round,
		Bets:        t.ledger.Entries(),
		TotalStaked: t.ledger.TotalStaked(),
		Path:        append(make(walk.Path, 0, len(t.path)), t.path...),
	}
	if t.result != nil {
		r := *t.result
		s.Result = &r
	}
	return s
}

// SnapshotCore 取得 Core 狀態暫存
func (t *Table) SnapshotCore() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.core.Snapshot()
}

// RestoreCore 恢復 Core 狀態；只允許在非 Running 階段，避免改動進行中的路徑。
func (t *Table) RestoreCore(src []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.phase == PhaseRunning {
		return errs.Codef(errs.InvalidPhase, "can not restore core in phase %s", t.phase)
	}
	return t.core.Restore(src)
}

// setBalance 只給模擬器補充籌碼使用。
func (t *Table) setBalance(v int) {
	t.mu.Lock()
	t.balance = max(0, v)
	t.mu.Unlock()
}

// next 由 Round 呼叫：推進一步，若為最後一步則同步結算。
func (t *Table) next(r *Round) (walk.Step, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.gen != t.gen || t.phase != PhaseRunning {
		return walk.Step{}, false
	}
	s, ok := r.w.Next()
	if !ok {
		return walk.Step{}, false
	}
	t.path = append(t.path, s)
	t.emit(PathStep{Round: r.number, T: s.T, Cell: s.Cell})
	if r.w.Done() {
		t.settle(r)
	}
	return s, true
}

func (t *Table) settle(r *Round) {
	res := settle.Settle(t.ledger, t.path, t.policy)
	t.balance += res.Payout
	t.phase = PhaseSettled
	t.result = &res
	r.result = res
	r.settled = true
	t.emit(RoundSettled{
		Round:        r.number,
		IsWin:        res.IsWin,
		Payout:       res.Payout,
		TotalPool:    res.TotalPool,
		WinningCells: res.WinningCells,
		FinalCell:    res.FinalCell,
		Balance:      t.balance,
		StartSnap:    corefmt.EncodeBase64URL(t.startSnap),
	})
}

func (t *Table) emit(ev Event) {
	if t.listener != nil {
		t.listener(ev)
	}
}

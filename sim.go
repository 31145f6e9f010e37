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
	"io"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/recorder"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/sdk/settle"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

const capPrepare int = 100

// RandomBettor 自動下注者：每回合隨機挑 Cells 個不同格子，各押 Units 個 bet_unit。
type RandomBettor struct {
	Cells int `json:"cells"`
	Units int `json:"units"`
}

// valid 檢查下注者設定；格數不可超過盤面大小。
func (rb RandomBettor) valid(ts *spec.TableSetting) error {
	if rb.Cells < 1 || rb.Cells > ts.Grid.Size() {
		return errs.Warnf("bettor cells must be in [1,%d], got %d", ts.Grid.Size(), rb.Cells)
	}
	if rb.Units < 1 {
		return errs.Warnf("bettor units must > 0, got %d", rb.Units)
	}
	return nil
}

// Stake 每回合押注總額。
func (rb RandomBettor) Stake(betUnit int) int {
	return rb.Cells * rb.Units * betUnit
}

// place 在桌台上下注；挑格子的亂數來自獨立的 Core，不影響桌台路徑。
func (rb RandomBettor) place(t *Table, c *core.Core, buf []int) ([]int, error) {
	b := t.Bounds()
	buf = c.SampleInts(buf, b.Size(), rb.Cells)
	amount := rb.Units * t.BetUnit()
	for _, idx := range buf {
		if err := t.PlaceBet(b.At(idx), amount); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// simWorker 一個併發單位：一張桌台 + 一個下注者用的 Core
type simWorker struct {
	t   *Table
	c   *core.Core
	buf []int
}

// play 跑完一個完整回合並回傳結算結果與步數。
func (w *simWorker) play(rb RandomBettor) (settle.Result, int, error) {
	var err error
	if w.buf, err = rb.place(w.t, w.c, w.buf); err != nil {
		w.t.Reset()
		return settle.Result{}, 0, err
	}
	r, err := w.t.Start()
	if err != nil {
		w.t.Reset()
		return settle.Result{}, 0, err
	}
	res, ok := r.Drain()
	w.t.Reset()
	if !ok {
		return settle.Result{}, 0, errs.NewFatal("round cancelled during simulation")
	}
	return res, r.Steps(), nil
}

// Simulator 用於模擬大量回合，可建立多張桌台並平行紀錄統計。
type Simulator struct {
	TableName string             // 桌台名稱
	TableId   spec.TID           // 桌台 ID
	ts        *spec.TableSetting // 方便重用建立 recorder
	cf        core.PRNGFactory   // 亂數生成器
	initSeed  int64              // 初始下的種子
	seedmaker *seedMaker         // 種子生成器
	wBuf      []*simWorker       // 併發執行單位
	rBuf      []*recorder.RoundRecorder
	sBuf      []*stats.StatReport
}

func newSimulator(ts *spec.TableSetting, cf core.PRNGFactory) (*Simulator, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return newSimulatorWithSeed(ts, cf, seed.Int64())
}

func newSimulatorWithSeed(ts *spec.TableSetting, cf core.PRNGFactory, seed int64) (*Simulator, error) {
	s := &Simulator{
		TableName: ts.TableName,
		TableId:   ts.TableID,
		ts:        ts,
		cf:        cf,
		initSeed:  seed,
		seedmaker: newSeedMaker(seed),
		wBuf:      make([]*simWorker, 0, capPrepare),
		rBuf:      make([]*recorder.RoundRecorder, 0, capPrepare),
		sBuf:      make([]*stats.StatReport, 0, capPrepare),
	}
	// 第一個 worker 的桌台直接使用初始 seed，讓單線 Sim 與同 seed 的 Table 走出相同路徑
	if err := s.prepareWorkers(1); err != nil {
		return nil, err
	}
	return s, nil
}

// Setting 回傳模擬使用的桌台設定副本。
func (s *Simulator) Setting() *spec.TableSetting {
	return s.ts.Clone()
}

func (s *Simulator) prepareWorkers(n int) error {
	for len(s.wBuf) < n {
		tseed := s.initSeed
		if len(s.wBuf) > 0 {
			tseed = s.seedmaker.next()
		}
		t, err := newTableWithSeed(s.ts, s.cf, tseed)
		if err != nil {
			return err
		}
		s.wBuf = append(s.wBuf, &simWorker{
			t: t,
			c: core.New(s.cf.New(s.seedmaker.next())),
		})
	}
	return nil
}

func (s *Simulator) newRecorder(rb RandomBettor, initBalance int) (*recorder.RoundRecorder, error) {
	return recorder.NewRoundRecorder(recorder.Meta{
		TableName:  s.TableName,
		TableId:    s.TableId,
		Mode:       s.ts.WalkConfig.Mode.String(),
		Policy:     s.ts.Policy.String(),
		Grid:       s.ts.Grid,
		Volatility: s.ts.Volatility,
		Cells:      rb.Cells,
		RoundStake: rb.Stake(s.ts.BetUnit),
	}, initBalance)
}

// Sim 單線模擬器：以一張桌台連續跑指定回合並回傳統計結果與用時
func (s *Simulator) Sim(rb RandomBettor, rounds int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	if err := rb.valid(s.ts); err != nil {
		return nil, 0, err
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	r, err := s.newRecorder(rb, 0)
	if err != nil {
		return nil, 0, err
	}
	s.rBuf = append(s.rBuf, r)
	w := s.wBuf[0]
	stake := rb.Stake(s.ts.BetUnit)

	bar := pb.StartNew(rounds)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < rounds; i++ {
		// 機台視角：籌碼無限，每回合補足押注額
		w.t.setBalance(stake)
		res, steps, err := w.play(rb)
		if err != nil {
			bar.Finish()
			return nil, 0, err
		}
		r.Record(res, steps)
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	result := r.Done()
	result.Done()
	return result, used, nil
}

// SimMP 平行執行多張桌台，總計 rounds*mp 回合，合併統計結果後回傳統計結果與用時
func (s *Simulator) SimMP(rb RandomBettor, rounds int, mp int, showpb bool) (*stats.StatReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if err := rb.valid(s.ts); err != nil {
		return nil, 0, err
	}
	if rounds < 1 {
		return nil, 0, errs.NewWarn("round must > 0")
	}
	if err := s.prepareWorkers(mp); err != nil {
		return nil, 0, err
	}
	for len(s.rBuf) < mp {
		r, err := s.newRecorder(rb, 0)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	stake := rb.Stake(s.ts.BetUnit)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	wg.Add(mp)
	bar := pb.StartNew(rounds * mp)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for i := 0; i < mp; i++ {
		go func(w *simWorker, rec *recorder.RoundRecorder) {
			defer wg.Done()
			for range rounds {
				w.t.setBalance(stake)
				res, steps, err := w.play(rb)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				rec.Record(res, steps)
				bar.Increment()
			}
		}(s.wBuf[i], s.rBuf[i])
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if firstErr != nil {
		return nil, 0, firstErr
	}

	st, err := recorder.MergeRoundRecorder(s.rBuf[:mp])
	if err != nil {
		return nil, 0, err
	}
	result := st.Done()
	result.Done()
	return result, used, nil
}

// SimPlayers 模擬多個玩家各自帶入初始籌碼的遊戲歷程，並產出桌台報表與玩家報表。
//
// bankroll <= 0 時使用桌台設定的 starting_credits；玩家在破產、贏到 3 倍本金或跑滿 rounds 時離場。
func (s *Simulator) SimPlayers(mp int, players int, bankroll int, rb RandomBettor, rounds int, showpb bool) (*stats.StatReport, *stats.EstimatorPlayers, time.Duration, error) {
	defer s.reset()
	if players < 1 || rounds < 1 || mp < 1 {
		return nil, nil, 0, errs.NewWarn("invalid param")
	}
	if err := rb.valid(s.ts); err != nil {
		return nil, nil, 0, err
	}
	if bankroll <= 0 {
		bankroll = s.ts.StartingCredits
	}
	if bankroll < rb.Stake(s.ts.BetUnit) {
		return nil, nil, 0, errs.Warnf("bankroll %d can not cover one round stake %d", bankroll, rb.Stake(s.ts.BetUnit))
	}
	if err := s.prepareWorkers(mp); err != nil {
		return nil, nil, 0, err
	}

	// 準備玩家
	s.sBuf = make([]*stats.StatReport, players)
	for len(s.rBuf) < players {
		r, err := s.newRecorder(rb, bankroll)
		if err != nil {
			return nil, nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	// 緩衝 channel 使 player 依序處理
	jobs := make(chan *recorder.RoundRecorder, 2048)
	var failed atomic.Pointer[error]

	wg := new(sync.WaitGroup)
	wg.Add(mp)
	bar := pb.StartNew(players)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for w := 0; w < mp; w++ {
		go simPlayer(wg, s.wBuf[w], jobs, rb, rounds, bar, &failed)
	}
	for _, j := range s.rBuf {
		jobs <- j
	}
	close(jobs)
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if e := failed.Load(); e != nil {
		return nil, nil, 0, *e
	}

	record, err := recorder.MergeRoundRecorder(s.rBuf)
	if err != nil {
		return nil, nil, 0, err
	}
	st := record.Done()
	st.Done()

	for i, r := range s.rBuf {
		s.sBuf[i] = r.Done()
		s.sBuf[i].Done()
	}
	est := stats.EstimatorPlayerExp(s.sBuf)
	return st, est, used, nil
}

func simPlayer(wg *sync.WaitGroup, w *simWorker, jobs chan *recorder.RoundRecorder, rb RandomBettor, rounds int, bar *pb.ProgressBar, failed *atomic.Pointer[error]) {
	defer wg.Done()
	for j := range jobs {
		// 桌台餘額與玩家紀錄同步，由桌台本身的扣款與派彩驅動
		w.t.setBalance(j.Player.Balance)
		for range rounds {
			if !j.Playable() {
				break
			}
			res, steps, err := w.play(rb)
			if err != nil {
				failed.CompareAndSwap(nil, &err)
				break
			}
			if j.RecordWithPlayer(res, steps) {
				break
			}
		}
		bar.Increment()
	}
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
	s.sBuf = s.sBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 以全週期 LCG 推進 state，再用可逆 mix63 打散。
//
// 可能被多個 goroutine 同時呼叫，推進使用 CAS 迴圈確保每次取得唯一的下一個 state。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next))
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}

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
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/spec"
)

// RuntimeOptions SessionRuntime 的行為設定；零值欄位會套用預設。
type RuntimeOptions struct {
	StepDelay     time.Duration // 回合推進時每一步之間的間隔（0 代表一次跑完）
	SessionTTL    time.Duration // 閒置多久後回收 session
	MaxSessions   int           // 同時存在的 session 上限
	SubscriberBuf int           // 每個訂閱者的事件緩衝；實際大小至少容納一整回合
}

const (
	defaultSessionTTL    = 30 * time.Minute
	defaultMaxSessions   = 1024
	defaultSubscriberBuf = 256
	// 一回合除了 PathStep 之外的事件預留量
	roundSlack = 64
)

func (o *RuntimeOptions) fill() {
	if o.SessionTTL <= 0 {
		o.SessionTTL = defaultSessionTTL
	}
	if o.MaxSessions <= 0 {
		o.MaxSessions = defaultMaxSessions
	}
	if o.SubscriberBuf <= 0 {
		o.SubscriberBuf = defaultSubscriberBuf
	}
	o.StepDelay = max(0, o.StepDelay)
}

// SessionRuntime 管理所有玩家 session：每個 session 持有一張獨立的 Table 與一個事件 hub。
//
// 它同時是一個長生命週期元件（Run / Shutdown），負責回收閒置 session，並在關閉時停止所有進行中的回合。
type SessionRuntime struct {
	lab  *Lab
	log  *slog.Logger
	opts RuntimeOptions

	mu       sync.RWMutex
	sessions map[string]*Session

	// lifecycle
	ctx       context.Context
	cancel    context.CancelFunc
	drivers   sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string
}

// Session 一位玩家的一張桌台。
type Session struct {
	ID        string
	TableID   spec.TID
	Created   time.Time
	table     *Table
	hub       *hub
	lastSeen  atomic.Int64 // unix nano
	driving   atomic.Bool
	cancelRun context.CancelFunc
	mu        sync.Mutex // 保護 cancelRun
}

// SessionInfo 對外的 session 摘要。
type SessionInfo struct {
	ID       string    `json:"id"`
	TableID  spec.TID  `json:"table_id"`
	Created  time.Time `json:"created"`
	LastSeen time.Time `json:"last_seen"`
	State    Snapshot  `json:"state"`
}

// BuildRuntime 建立 session runtime；進入 runtime 前 catalog 必須 Freeze。
func (l *Lab) BuildRuntime(log *slog.Logger, opts RuntimeOptions) (*SessionRuntime, error) {
	l.Freeze()
	if len(l.cat.IDs()) == 0 {
		return nil, errs.NewFatal("no tables registered")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	opts.fill()
	ctx, cancel := context.WithCancel(context.Background())
	rt := &SessionRuntime{
		lab:      l,
		log:      log,
		opts:     opts,
		sessions: make(map[string]*Session, 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	rt.reason.Store("")
	return rt, nil
}

func (rt *SessionRuntime) Lab() *Lab { return rt.lab }

// Open 為指定桌台開一個新 session。
func (rt *SessionRuntime) Open(id spec.TID) (*Session, error) {
	if rt.closed.Load() {
		return nil, errs.NewFatal("session runtime closed: " + rt.ClosedReason())
	}
	t, err := rt.lab.NewTable(id)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:      uuid.NewString(),
		TableID: id,
		Created: time.Now(),
		table:   t,
		hub:     newHub(max(rt.opts.SubscriberBuf, t.MaxSteps()+roundSlack)),
	}
	s.touch()
	t.OnEvent(s.hub.publish)

	rt.mu.Lock()
	if len(rt.sessions) >= rt.opts.MaxSessions {
		rt.mu.Unlock()
		return nil, errs.Warnf("too many sessions (max %d)", rt.opts.MaxSessions)
	}
	rt.sessions[s.ID] = s
	n := len(rt.sessions)
	rt.mu.Unlock()

	rt.log.Info("session opened", slog.String("session", s.ID), slog.Uint64("table", uint64(id)), slog.Int("sessions", n))
	return s, nil
}

// Get 取得 session 並更新最後活動時間。
func (rt *SessionRuntime) Get(id string) (*Session, error) {
	rt.mu.RLock()
	s, ok := rt.sessions[id]
	rt.mu.RUnlock()
	if !ok {
		return nil, errs.Codef(errs.NotFound, "session not found: %s", id)
	}
	s.touch()
	return s, nil
}

// List 依建立時間排序回傳所有 session 摘要。
func (rt *SessionRuntime) List() []SessionInfo {
	rt.mu.RLock()
	out := make([]SessionInfo, 0, len(rt.sessions))
	for _, s := range rt.sessions {
		out = append(out, s.Info())
	}
	rt.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// Close 關閉 session：中斷進行中的回合並結束所有訂閱。
func (rt *SessionRuntime) Close(id string) error {
	rt.mu.Lock()
	s, ok := rt.sessions[id]
	delete(rt.sessions, id)
	rt.mu.Unlock()
	if !ok {
		return errs.Codef(errs.NotFound, "session not found: %s", id)
	}
	rt.closeSession(s, "closed")
	return nil
}

func (rt *SessionRuntime) closeSession(s *Session, why string) {
	s.stopDriver()
	s.hub.close()
	rt.log.Info("session closed", slog.String("session", s.ID), slog.String("reason", why))
}

func (rt *SessionRuntime) PlaceBet(id string, cell grid.Cell, amount int) (Snapshot, error) {
	s, err := rt.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if amount == 0 {
		amount = s.table.BetUnit()
	}
	if err := s.table.PlaceBet(cell, amount); err != nil {
		return Snapshot{}, err
	}
	return s.table.Snapshot(), nil
}

func (rt *SessionRuntime) SetVolatility(id string, level int) (Snapshot, error) {
	s, err := rt.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.table.SetVolatility(level); err != nil {
		return Snapshot{}, err
	}
	return s.table.Snapshot(), nil
}

// Start 開始回合並在背景逐步推進；推進節奏由 StepDelay 決定，事件透過 hub 送出。
//
// StepDelay 為 0 時會在回傳前同步跑完整個回合。
func (rt *SessionRuntime) Start(id string) (Snapshot, error) {
	s, err := rt.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	r, err := s.table.Start()
	if err != nil {
		return Snapshot{}, err
	}
	if rt.opts.StepDelay == 0 {
		rt.finish(s, r)
		return s.table.Snapshot(), nil
	}

	ctx, cancel := context.WithCancel(rt.ctx)
	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.cancelRun = cancel
	s.mu.Unlock()

	s.driving.Store(true)
	rt.drivers.Add(1)
	go func() {
		defer rt.drivers.Done()
		defer s.driving.Store(false)
		defer cancel()
		rt.drive(ctx, s, r)
	}()
	return s.table.Snapshot(), nil
}

func (rt *SessionRuntime) drive(ctx context.Context, s *Session, r *Round) {
	tk := time.NewTicker(rt.opts.StepDelay)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			// runtime 關閉或 session 關閉：中斷回合，押注不退還
			if !r.Cancelled() {
				if _, ok := r.Result(); !ok {
					s.table.Reset()
				}
			}
			return
		case <-tk.C:
			if _, ok := r.Next(); !ok {
				rt.logOutcome(s, r)
				return
			}
		}
	}
}

func (rt *SessionRuntime) finish(s *Session, r *Round) {
	r.Drain()
	rt.logOutcome(s, r)
}

func (rt *SessionRuntime) logOutcome(s *Session, r *Round) {
	res, ok := r.Result()
	if !ok {
		rt.log.Debug("round cancelled", slog.String("session", s.ID), slog.Int("round", r.Number()))
		return
	}
	rt.log.Info("round settled",
		slog.String("session", s.ID),
		slog.Int("round", r.Number()),
		slog.Bool("win", res.IsWin),
		slog.Int("pool", res.TotalPool),
		slog.Int("payout", res.Payout),
	)
}

// Reset 任何階段都可呼叫；進行中的回合會被中斷。
func (rt *SessionRuntime) Reset(id string) (Snapshot, error) {
	s, err := rt.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.table.Reset()
	return s.table.Snapshot(), nil
}

// LastReplay 回傳 session 最近一次結算回合的回放包。
func (rt *SessionRuntime) LastReplay(id string) (ReplayBundle, error) {
	s, err := rt.Get(id)
	if err != nil {
		return ReplayBundle{}, err
	}
	return s.table.LastReplay()
}

func (rt *SessionRuntime) Snapshot(id string) (Snapshot, error) {
	s, err := rt.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.table.Snapshot(), nil
}

// Subscribe 訂閱 session 的事件；回傳的 cancel 必須呼叫以釋放資源。
//
// 訂閱者跟不上時事件會被丟棄（計入 Dropped），不會阻塞桌台。
func (rt *SessionRuntime) Subscribe(id string) (<-chan Event, func(), error) {
	s, err := rt.Get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.subscribe()
	return ch, cancel, nil
}

// Sweep 回收閒置超過 TTL 的 session，回傳回收數量。
func (rt *SessionRuntime) Sweep(now time.Time) int {
	deadline := now.Add(-rt.opts.SessionTTL).UnixNano()
	var idle []*Session
	rt.mu.Lock()
	for id, s := range rt.sessions {
		if s.lastSeen.Load() < deadline && !s.driving.Load() {
			idle = append(idle, s)
			delete(rt.sessions, id)
		}
	}
	rt.mu.Unlock()
	for _, s := range idle {
		rt.closeSession(s, "idle")
	}
	return len(idle)
}

func (rt *SessionRuntime) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.sessions)
}

// Run 阻塞直到 Shutdown；期間定期回收閒置 session。
func (rt *SessionRuntime) Run() error {
	iv := max(rt.opts.SessionTTL/4, time.Second)
	tk := time.NewTicker(iv)
	defer tk.Stop()
	for {
		select {
		case <-rt.ctx.Done():
			return nil
		case now := <-tk.C:
			if n := rt.Sweep(now); n > 0 {
				rt.log.Info("idle sessions evicted", slog.Int("count", n), slog.Int("sessions", rt.Len()))
			}
		}
	}
}

// Shutdown 停止所有回合推進並關閉全部 session；會等待背景推進結束或 ctx 到期。
func (rt *SessionRuntime) Shutdown(ctx context.Context) error {
	rt.closeWithReason("shutdown")

	rt.mu.Lock()
	all := make([]*Session, 0, len(rt.sessions))
	for id, s := range rt.sessions {
		all = append(all, s)
		delete(rt.sessions, id)
	}
	rt.mu.Unlock()
	for _, s := range all {
		rt.closeSession(s, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		rt.drivers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "session runtime shutdown timeout")
	}
}

func (rt *SessionRuntime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		rt.cancel()
	})
}

// Closed reports whether the runtime has been closed.
func (rt *SessionRuntime) Closed() bool {
	return rt.closed.Load()
}

func (rt *SessionRuntime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) Table() *Table { return s.table }

// Dropped 因訂閱者跟不上而丟棄的事件數。
func (s *Session) Dropped() uint64 { return s.hub.dropped.Load() }

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:       s.ID,
		TableID:  s.TableID,
		Created:  s.Created,
		LastSeen: time.Unix(0, s.lastSeen.Load()),
		State:    s.table.Snapshot(),
	}
}

func (s *Session) stopDriver() {
	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.mu.Unlock()
}

// hub 把桌台事件扇出給所有訂閱者；publish 在桌台鎖內被呼叫，因此絕不阻塞。
type hub struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	size    int
	closed  bool
	dropped atomic.Uint64
}

func newHub(size int) *hub {
	return &hub{subs: make(map[int]chan Event), size: size}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, h.size)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

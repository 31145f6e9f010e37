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
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/server/httperr"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/spec"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 4 << 10
)

// SessionHandler 玩家 session 的 REST 指令與 websocket 事件串流。
type SessionHandler struct {
	rt       *gridlab.SessionRuntime
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewSessionHandler(rt *gridlab.SessionRuntime, log *slog.Logger) (*SessionHandler, error) {
	if rt == nil {
		return nil, errs.NewFatal("session runtime is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SessionHandler{
		rt:  rt,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 本服務為開發/測試用途，允許任意來源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Open POST /v1/sessions {"table_id":1} 或 {"table_name":"cursor"}
func (sh *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableID   spec.TID `json:"table_id"`
		TableName string   `json:"table_name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		httperr.Errs(w, err)
		return
	}
	id, err := sh.rt.Lab().Resolve(req.TableID, req.TableName)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	s, err := sh.rt.Open(id)
	if err != nil {
		httperr.Log(sh.log, "open session", err)
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Info())
}

// List GET /v1/sessions
func (sh *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sh.rt.List())
}

// Get GET /v1/sessions/{id}
func (sh *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := sh.rt.Get(netsvr.Param(r, "id"))
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

// Close DELETE /v1/sessions/{id}
func (sh *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := sh.rt.Close(netsvr.Param(r, "id")); err != nil {
		httperr.Errs(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Bet POST /v1/sessions/{id}/bets {"a":5,"b":5,"amount":10}；amount 省略時為 bet_unit。
func (sh *SessionHandler) Bet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		A      *int `json:"a"`
		B      *int `json:"b"`
		Amount int  `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.A == nil || req.B == nil {
		httperr.Errs(w, errs.NewWarn("a and b are required"))
		return
	}
	if req.Amount < 0 {
		httperr.Errs(w, errs.Codef(errs.InvalidAmount, "amount must be positive, got %d", req.Amount))
		return
	}
	snap, err := sh.rt.PlaceBet(netsvr.Param(r, "id"), grid.Cell{A: *req.A, B: *req.B}, req.Amount)
	sh.reply(w, snap, err)
}

// Volatility PUT /v1/sessions/{id}/volatility {"level":7}
func (sh *SessionHandler) Volatility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *int `json:"level"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.Level == nil {
		httperr.Errs(w, errs.NewWarn("level is required"))
		return
	}
	snap, err := sh.rt.SetVolatility(netsvr.Param(r, "id"), *req.Level)
	sh.reply(w, snap, err)
}

// Start POST /v1/sessions/{id}/start；回合在背景推進，路徑透過事件串流送出。
func (sh *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	snap, err := sh.rt.Start(netsvr.Param(r, "id"))
	if err != nil {
		sh.reply(w, snap, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

// Reset POST /v1/sessions/{id}/reset
func (sh *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	snap, err := sh.rt.Reset(netsvr.Param(r, "id"))
	sh.reply(w, snap, err)
}

func (sh *SessionHandler) reply(w http.ResponseWriter, snap gridlab.Snapshot, err error) {
	if err != nil {
		httperr.Log(sh.log, "session command", err)
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Events GET /v1/sessions/{id}/events（websocket）
//
// 連線後先送一筆 snapshot，之後逐筆轉送桌台事件；訊息格式為 {"kind": "...", "data": {...}}。
func (sh *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := netsvr.Param(r, "id")
	s, err := sh.rt.Get(id)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ch, cancel, err := sh.rt.Subscribe(id)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	defer cancel()

	conn, err := sh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已寫回錯誤
		sh.log.Debug("websocket upgrade failed", slog.String("session", id), slog.Any("err", err))
		return
	}
	defer conn.Close()

	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v)
	}

	if err := write(map[string]any{"kind": "snapshot", "data": s.Table().Snapshot()}); err != nil {
		return
	}

	// 讀取端只處理 pong / close
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-ch:
			if !ok {
				// session 已關閉
				wmu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(wsWriteWait))
				wmu.Unlock()
				return
			}
			if err := write(gridlab.EnvelopeOf(ev)); err != nil {
				return
			}
		case <-ping.C:
			wmu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
			wmu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Replay GET /v1/sessions/{id}/replay：最近一次結算回合的回放包與 token。
func (sh *SessionHandler) Replay(w http.ResponseWriter, r *http.Request) {
	b, err := sh.rt.LastReplay(netsvr.Param(r, "id"))
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	tok, err := b.Token()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Bundle gridlab.ReplayBundle `json:"bundle"`
		Token  string               `json:"token"`
	}{b, tok})
}

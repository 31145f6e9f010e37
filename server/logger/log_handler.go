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

// Package logger 組裝 gridlab server 使用的 *slog.Logger。
//
// 兩種注入方式：
//   - 直接給 *slog.Logger：NewDefaultLogger(mode) 或自行組裝。
//   - 給 slog.Handler：NewLogger(h)，可接任何外部 handler（JSON/Text/ReplaceAttr/LevelVar...）。
//
// AsyncHandler 可以把任何 handler 變成非阻塞：Handle 只 enqueue，背景 goroutine 逐筆寫出，
// 隊列滿時丟棄並計數，不把 I/O 延遲帶回請求路徑或回合推進。
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/gridlab/errs"
)

// enum LogMode
type LogMode uint8

const (
	ModeDev     LogMode = iota // text / stderr / debug
	ModeProd                   // json / stdout / info
	ModeSilence                // 全部丟棄
)

// ParseMode 將 dev / prod / silence 轉為 LogMode（不分大小寫）。
func ParseMode(s string) (LogMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev":
		return ModeDev, nil
	case "prod":
		return ModeProd, nil
	case "silence", "silent":
		return ModeSilence, nil
	default:
		return ModeDev, errs.Warnf("unknown log mode: %q (dev|prod|silence)", s)
	}
}

func (m LogMode) String() string {
	switch m {
	case ModeDev:
		return "dev"
	case ModeProd:
		return "prod"
	case ModeSilence:
		return "silence"
	default:
		return "unknown"
	}
}

// NewDefaultLogger 以 LogMode 預設值建立同步 logger。
func NewDefaultLogger(mode LogMode) *slog.Logger {
	return slog.New(NewHandler(mode, nil))
}

// NewDefaultAsyncLogger 以 LogMode 預設值建立非同步 logger。
func NewDefaultAsyncLogger(mode LogMode) *slog.Logger {
	return slog.New(NewAsyncHandler(NewHandler(mode, nil), 8192))
}

// NewLogger 把呼叫端組裝好的 Handler 包成 *slog.Logger；nil 時使用 ModeDev。
func NewLogger(h slog.Handler) *slog.Logger {
	if h == nil {
		h = NewHandler(ModeDev, nil)
	}
	return slog.New(h)
}

// NewAsync 以 LogMode 預設值建立 handler 再包上 AsyncHandler；回傳的 *AsyncHandler 用來 Close / Shutdown。
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	ah := NewAsyncHandler(NewHandler(mode, nil), buf)
	return slog.New(ah), ah
}

// NewHandler 建立 LogMode 對應的 handler；w 為 nil 時 dev 寫 stderr、prod 寫 stdout。
func NewHandler(mode LogMode, w io.Writer) slog.Handler {
	switch mode {
	case ModeProd:
		if w == nil {
			w = os.Stdout
		}
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	case ModeSilence:
		return slog.DiscardHandler
	default:
		if w == nil {
			w = os.Stderr
		}
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}

// =========================================================
// AsyncHandler
// =========================================================

// AsyncHandler slog.Handler wrapper：Handle 只做 enqueue，寫出交給背景 worker。
//
// 注意：slog.Logger 會忽略 Handle 回傳的 error；I/O 錯誤需在 next handler 內自行處理。
type AsyncHandler struct {
	next slog.Handler
	d    *dispatcher
}

// dispatcher 由同一個 AsyncHandler 衍生出的 WithAttrs / WithGroup 共用。
type dispatcher struct {
	ch      chan record
	closed  chan struct{}
	drained chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

type record struct {
	ctx context.Context
	rec slog.Record
	h   slog.Handler
}

// NewAsyncHandler 包裝 next；buf 為隊列大小，非正值時為 1024。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = NewHandler(ModeDev, nil)
	}
	if buf <= 0 {
		buf = 1024
	}
	d := &dispatcher{
		ch:      make(chan record, buf),
		closed:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	go d.loop()
	return &AsyncHandler{next: next, d: d}
}

func (h *AsyncHandler) Ready() bool {
	return h != nil && h.d != nil
}

// Dropped 因隊列已滿或已關閉而丟棄的筆數。
func (h *AsyncHandler) Dropped() uint64 {
	if !h.Ready() {
		return 0
	}
	return h.d.dropped.Load()
}

// Close 停止接收並等待隊列寫完。可重複呼叫。
func (h *AsyncHandler) Close() {
	if !h.Ready() {
		return
	}
	h.d.stop()
	<-h.d.drained
}

// Shutdown 同 Close，但最多等到 ctx 結束；逾時回傳 ctx 錯誤，剩餘紀錄仍由 worker 繼續寫完。
func (h *AsyncHandler) Shutdown(ctx context.Context) error {
	if !h.Ready() {
		return nil
	}
	h.d.stop()
	select {
	case <-h.d.drained:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "async log drain")
	}
}

func (d *dispatcher) stop() {
	d.once.Do(func() { close(d.closed) })
}

func (d *dispatcher) loop() {
	defer close(d.drained)
	for {
		select {
		case it := <-d.ch:
			it.write()
		case <-d.closed:
			// 收到關閉後把剩下的寫完
			for {
				select {
				case it := <-d.ch:
					it.write()
				default:
					return
				}
			}
		}
	}
}

func (r record) write() {
	if r.h != nil {
		_ = r.h.Handle(r.ctx, r.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Ready() {
		return nil
	}
	select {
	case <-h.d.closed:
		h.d.dropped.Add(1)
		return nil
	default:
	}
	// Record 跨 goroutine 前需 Clone
	it := record{ctx: context.WithoutCancel(ctx), rec: r.Clone(), h: h.next}
	select {
	case h.d.ch <- it:
	default:
		h.d.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), d: h.d}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), d: h.d}
}

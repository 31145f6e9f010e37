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

package app

import (
	"context"
	"sync"
)

// Component 長生命週期元件（HTTP server、session runtime ...）。
//   - Run 阻塞到元件停止為止。
//   - Shutdown 要求優雅關閉，需尊重 ctx deadline。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// OnShutdown 把「只在關閉時收尾」的資源包成 Component，例如 async logger 的 drain。
//
// Run 會阻塞到 Shutdown 被呼叫；fn 只執行一次。註冊在最後即可在其他元件之後收尾。
func OnShutdown(fn func(ctx context.Context) error) Component {
	return &hook{fn: fn, done: make(chan struct{})}
}

type hook struct {
	fn   func(ctx context.Context) error
	once sync.Once
	done chan struct{}
	err  error
}

func (h *hook) Run() error {
	<-h.done
	return nil
}

func (h *hook) Shutdown(ctx context.Context) error {
	h.once.Do(func() {
		if h.fn != nil {
			h.err = h.fn(ctx)
		}
		close(h.done)
	})
	return h.err
}

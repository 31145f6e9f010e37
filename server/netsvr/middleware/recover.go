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

package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/httperr"
)

// Recover 攔下 handler panic：記錄堆疊並回 500 JSON，不讓單一請求拖垮整個 server。
//
// http.ErrAbortHandler 照原樣往上拋，交給 net/http 處理。websocket 已升級的連線不再寫回應。
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if log != nil {
					log.LogAttrs(r.Context(), slog.LevelError, "http.panic",
						slog.Any("panic", rec),
						slog.String("req_id", GetReqId(r)),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
				}
				if isWebSocketUpgrade(r) {
					return
				}
				httperr.Errs(w, errs.NewFatal("internal server error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

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
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader 回應中帶回的 request id，方便對照 access log。
const RequestIDHeader = "X-Request-Id"

// RequestID 沿用 chi 的 request id 產生規則，並寫回回應標頭。
//
// 客戶端若帶了 X-Request-Id，chi 會直接沿用。
func RequestID(next http.Handler) http.Handler {
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimid.GetReqID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
	return chimid.RequestID(echo)
}

// GetReqId 取得目前請求的 request id；未經 RequestID 時為空字串。
func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}

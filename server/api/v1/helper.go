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
	"crypto/rand"
	"encoding/json"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zintix-labs/gridlab/errs"
)

const maxBodyBytes = 1 << 20 // 1MB

// writeJSON 寫回 JSON；編碼失敗時 header 可能已送出，只能放棄。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON 解析 request body；空 body 視為空物件。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.NewWarn("invalid json: " + err.Error())
	}
	return nil
}

// queryInt 讀取整數 query 參數；缺少時回傳 def。
func queryInt(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errs.Warnf("%s must be integer", key)
	}
	return v, nil
}

func querySeed(q url.Values) (*int64, error) {
	s := q.Get("seed")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errs.NewWarn("seed must be int64")
	}
	return &v, nil
}

func randSeed() (int64, error) {
	rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.NewFatal("seed generate failed")
	}
	return rnd.Int64(), nil
}

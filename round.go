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
	"github.com/zintix-labs/gridlab/sdk/settle"
	"github.com/zintix-labs/gridlab/sdk/walk"
)

// Round 一個已開始的回合：惰性、有限、不可重來。
//
// 每次 Next 才產生下一格路徑（並發出 PathStep），最後一步之後桌台立即結算。
// 桌台 Reset 之後，這個 Round 即失效，Next 永遠回傳 false。
type Round struct {
	t       *Table
	w       *walk.Walker
	gen     uint64
	number  int
	steps   int
	snap    []byte
	result  settle.Result // 由 Table 在鎖內寫入
	settled bool
}

// Number 回合編號（從 1 開始）。
func (r *Round) Number() int { return r.number }

// Steps 路徑總長度 N。
func (r *Round) Steps() int { return r.steps }

// StartSnap 產生路徑前的 RNG 快照。
func (r *Round) StartSnap() []byte {
	return append([]byte(nil), r.snap...)
}

// Next 推進一步。回合已結束或已被 Reset 中斷時回傳 false。
func (r *Round) Next() (walk.Step, bool) {
	return r.t.next(r)
}

// Result 回傳結算結果；尚未結算（或被中斷）時 ok 為 false。
func (r *Round) Result() (res settle.Result, ok bool) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	return r.result, r.settled
}

// Drain 一次跑完剩下的步數並回傳結算；被中斷時 ok 為 false。
func (r *Round) Drain() (settle.Result, bool) {
	for _, ok := r.Next(); ok; _, ok = r.Next() {
	}
	return r.Result()
}

// Cancelled 是否已被 Reset 中斷（未結算就失效）。
func (r *Round) Cancelled() bool {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()
	return !r.settled && r.gen != r.t.gen
}

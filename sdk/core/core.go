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

// Package core 提供 gridlab 所有隨機取樣的來源。
//
// 路徑生成、模擬器下注策略都只透過這裡的介面取亂數；測試時可以注入自製 PRNG，
// 讓路徑完全可重現。
package core

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// bounded 取樣（UintN / IntN）交由 PRNG 自己實作，讓 32-bit 與 64-bit 輸出的產生器
// 各自使用最合適的無偏策略。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

// PRNGFactory 以 seed 建立 PRNG。
//
// 合約：在同一個實作與同一個版本下，New(seed) 必須是決定性的，
// 相同的 seed 產生相同的初始狀態與輸出序列（回放與多機派生都依賴這點）。
type PRNGFactory interface {
	New(int64) PRNG
}

// DefaultPRNG 實作預設的 PRNGFactory（PCG64）。
type DefaultPRNG struct{}

// New 滿足合約
func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// PCG32PRNG 以 32-bit 輸出的 PCG 建立 PRNG，適合 32-bit 平台。
type PCG32PRNG struct{}

func (p *PCG32PRNG) New(seed int64) PRNG {
	return newPCG32WithSeed(seed)
}

// FactoryByName 依名稱選擇 PRNGFactory；空字串與未知名稱都回傳 false。
func FactoryByName(name string) (PRNGFactory, bool) {
	switch name {
	case "pcg64":
		return Default(), true
	case "pcg32":
		return &PCG32PRNG{}, true
	default:
		return nil, false
	}
}

// Core 封裝 PRNG，並提供常用取樣與工具方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Pick 從列表中隨機選取一個元素，若列表為空回傳 -1
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	idx := c.IntN(len(src))
	return src[idx]
}

// ShuffleInts 使用 Fisher-Yates 對 []int 進行就地隨機重排。
//
// 所有 N! 種排列機率相等；O(N) 時間、零配置。
func (c *Core) ShuffleInts(src []int) {
	if len(src) <= 1 {
		return
	}

	for i := len(src) - 1; i > 0; i-- {
		j := c.IntN(i + 1)
		src[i], src[j] = src[j], src[i]
	}
}

// SampleInts 從 [0,n) 不重複抽出 k 個整數（部分 Fisher-Yates），結果寫入 dst 並回傳。
//
// dst 會被重用；k 會被截到 [0,n]。
func (c *Core) SampleInts(dst []int, n int, k int) []int {
	k = max(0, min(k, n))
	dst = dst[:0]
	for i := 0; i < n; i++ {
		dst = append(dst, i)
	}
	for i := 0; i < k; i++ {
		j := i + c.IntN(n-i)
		dst[i], dst[j] = dst[j], dst[i]
	}
	return dst[:k]
}

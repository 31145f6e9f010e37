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

// Package grid 定義盤面座標（Cell）與邊界（Bounds）。
//
// A 軸為列 / 價位，B 軸為行 / 時間。Cell 是不可變的值，可直接當 map key。
package grid

import "fmt"

// Cell 盤面上的一格，座標範圍 [0,Rows) × [0,Cols)。
type Cell struct {
	A int `json:"a" yaml:"a"`
	B int `json:"b" yaml:"b"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.A, c.B)
}

// Less 以 A 再 B 的順序比較，用於穩定排序。
func (c Cell) Less(o Cell) bool {
	if c.A != o.A {
		return c.A < o.A
	}
	return c.B < o.B
}

// Compare 給 slices.SortFunc 使用。
func Compare(x, y Cell) int {
	switch {
	case x.Less(y):
		return -1
	case y.Less(x):
		return 1
	default:
		return 0
	}
}

// Bounds 盤面尺寸。
type Bounds struct {
	Rows int `json:"rows"    yaml:"rows"`
	Cols int `json:"columns" yaml:"columns"`
}

// Size 回傳格數。
func (b Bounds) Size() int {
	return b.Rows * b.Cols
}

func (b Bounds) Valid() bool {
	return b.Rows > 0 && b.Cols > 0
}

// Contains 判斷座標是否落在盤面內。
func (b Bounds) Contains(c Cell) bool {
	return c.A >= 0 && c.A < b.Rows && c.B >= 0 && c.B < b.Cols
}

// Index 以列優先把 Cell 轉成 [0,Size) 的索引；呼叫端需先確認 Contains。
func (b Bounds) Index(c Cell) int {
	return c.A*b.Cols + c.B
}

// At 為 Index 的反函數。
func (b Bounds) At(idx int) Cell {
	return Cell{A: idx / b.Cols, B: idx % b.Cols}
}

// Wrap 把任意整數折回 [0,n)（環狀，負數也正確）。
func Wrap(v int, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// Clamp 把整數夾在 [0,n-1]。
func Clamp(v int, n int) int {
	return max(0, min(v, n-1))
}

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

// Package spec 定義桌台設定檔（YAML / JSON）與其初始化、驗證流程。
package spec

import (
	"fmt"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/sdk/settle"
	"github.com/zintix-labs/gridlab/sdk/walk"
)

// TID 桌台 ID（Catalog 內唯一）。
type TID uint

// 未填寫時的預設值，對應原始遊戲的常數。
const (
	DefaultMinSteps        = 20
	DefaultMaxSteps        = 50
	DefaultStartingCredits = 1000
	DefaultBetUnit         = 10
	DefaultVolatility      = 5
)

// TableSetting 包含建立一張桌台所需的所有設定。
type TableSetting struct {
	TableName       string      `yaml:"table_name"       json:"table_name"`
	TableID         TID         `yaml:"table_id"         json:"table_id"`
	Grid            grid.Bounds `yaml:"grid"             json:"grid"`
	Walk            WalkSetting `yaml:"walk"             json:"walk"`
	WinPolicy       string      `yaml:"win_policy"       json:"win_policy"`
	StartingCredits int         `yaml:"starting_credits" json:"starting_credits"`
	BetUnit         int         `yaml:"bet_unit"         json:"bet_unit"`
	Volatility      int         `yaml:"volatility"       json:"volatility"`

	// 以下由 init 解析產生
	WalkConfig walk.Config   `yaml:"-" json:"-"`
	Policy     settle.Policy `yaml:"-" json:"-"`
	initFlag   bool
}

// WalkSetting 路徑生成設定。
//
// Fields:
//   - Mode: free（自由游標）| time（時間軸價格）
//   - Boundary: wrap | clamp；留空依模式決定（free=wrap, time=clamp）
//   - MinSteps / MaxSteps: 只在 free 模式使用，步數 = min + (max-min)*v/10
type WalkSetting struct {
	Mode     string `yaml:"mode"      json:"mode"`
	Boundary string `yaml:"boundary"  json:"boundary"`
	MinSteps int    `yaml:"min_steps" json:"min_steps"`
	MaxSteps int    `yaml:"max_steps" json:"max_steps"`
}

// init 填入預設值、解析列舉字串並驗證
func (ts *TableSetting) init() error {
	if ts.initFlag {
		return nil
	}
	if ts.StartingCredits == 0 {
		ts.StartingCredits = DefaultStartingCredits
	}
	if ts.BetUnit == 0 {
		ts.BetUnit = DefaultBetUnit
	}
	if ts.Volatility == 0 {
		ts.Volatility = DefaultVolatility
	}
	if ts.WinPolicy == "" {
		ts.WinPolicy = settle.SingleCell.String()
	}

	mode, err := walk.ParseMode(ts.Walk.Mode)
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf("table_name: %s", ts.TableName))
	}
	if mode == walk.ModeFree {
		if ts.Walk.MinSteps == 0 {
			ts.Walk.MinSteps = DefaultMinSteps
		}
		if ts.Walk.MaxSteps == 0 {
			ts.Walk.MaxSteps = DefaultMaxSteps
		}
	}
	boundary, err := walk.ParseBoundary(ts.Walk.Boundary)
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf("table_name: %s", ts.TableName))
	}
	policy, err := settle.ParsePolicy(ts.WinPolicy)
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf("table_name: %s", ts.TableName))
	}
	ts.WalkConfig = walk.Config{
		Mode:     mode,
		Boundary: boundary,
		Bounds:   ts.Grid,
		MinSteps: ts.Walk.MinSteps,
		MaxSteps: ts.Walk.MaxSteps,
	}
	ts.Policy = policy

	if err := ts.valid(); err != nil {
		return err
	}
	ts.initFlag = true
	return nil
}

// valid 執行基本的設定檔檢查
func (ts *TableSetting) valid() error {
	if ts.TableName == "" {
		return errs.NewFatal("empty table_name")
	}
	if err := ts.WalkConfig.Valid(); err != nil {
		return errs.Wrap(err, fmt.Sprintf("table_name: %s", ts.TableName))
	}
	if ts.StartingCredits < 0 {
		return errs.NewFatal(fmt.Sprintf("table_name: %s err:negative starting_credits", ts.TableName))
	}
	if ts.BetUnit < 1 {
		return errs.NewFatal(fmt.Sprintf("table_name: %s err:invalid bet_unit", ts.TableName))
	}
	if !walk.ValidVolatility(ts.Volatility) {
		return errs.NewFatal(fmt.Sprintf("table_name: %s err:volatility must be in [%d,%d]", ts.TableName, walk.MinVolatility, walk.MaxVolatility))
	}
	return nil
}

// Clone 回傳淺拷貝（所有欄位都是值型別）。
func (ts *TableSetting) Clone() *TableSetting {
	c := *ts
	return &c
}

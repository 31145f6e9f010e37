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

// Package gridlab 提供網格押注引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// Lab 把兩個必需的地基組裝在一起，並提供建立 Table / Simulator / SessionRuntime 的入口：
//  1. Catalog：桌台目錄，定義有哪些桌台、各自對應的設定檔名稱（ConfigName）。
//  2. PRNGFactory：亂數工廠，保證可重現（reproducible）與可審計（auditable）。
//
// 一張 Table 就是一個單人回合控制器：玩家在 Betting 階段把籌碼押在格子上，
// Start 後引擎逐步產生一條隨機路徑，依獲勝政策判定是否拿回整個彩池。
//
// 典型使用情境：
//   - 後端服務（HTTP / WebSocket）：由 Lab 建立 SessionRuntime，每個 session 持有一張 Table。
//   - 模擬器（sim）：由 Lab 建立 Simulator，多張 Table 平行跑大量回合並輸出統計。
package gridlab

import (
	"io/fs"
	"strings"
	"sync"

	"github.com/zintix-labs/gridlab/catalog"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
	"github.com/zintix-labs/gridlab/spec"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 可以用 go:embed 把 configs 編進 binary，也可以用 os.DirFS 在本機開發時讀取目錄。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Lab 是組裝器與運行入口。
//
// 使用流程分成兩階段：
//   - 註冊階段：建立 catalog、檢查重複與缺漏。
//   - 執行階段：Freeze 之後依桌台 ID 產生 Table / Simulator。
//
// Catalog 的 ID 唯一性只保證在同一個 Lab instance 內。
type Lab struct {
	cat   *catalog.Catalog
	cf    core.PRNGFactory
	sumMu sync.Mutex
	sum   []catalog.Summary
}

// New 建立一個 Lab instance（尚未註冊任何桌台）。
func New(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	if cf == nil {
		return nil, errs.NewFatal("prng factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	return &Lab{cat: cata, cf: cf}, nil
}

// NewAuto 註冊所有設定檔並 Freeze，直接進入執行階段。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	lab, err := New(cf, cfgs)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

func (l *Lab) Register(ents ...catalog.Entry) error {
	return l.cat.Register(ents...)
}

// RegisterAll
//
// 解析所有設定檔來源內的 .yaml/.yml/.json，並用設定檔內宣告的 table_id / table_name 批次註冊。
//
//  1. Fail-fast：任何一個檔案解析或檢查失敗，立刻回傳 error。
//  2. 原子性：全部成功才一次性寫入 catalog。
//  3. 穩定性：依檔名排序處理。
func (l *Lab) RegisterAll() error {
	names := l.cat.ConfigNames()
	entries := make([]catalog.Entry, 0, len(names))
	seenID := map[spec.TID]string{}
	seenName := map[string]string{}

	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue
		}
		raw, err := l.cat.ReadConfig(name)
		if err != nil {
			return err
		}
		ts, err := catalog.ParseTableSetting(name, raw)
		if err != nil {
			return errs.WrapWithExtra(err, "parse table setting failed", name)
		}
		if prev, ok := seenID[ts.TableID]; ok {
			return errs.Fatalf("duplicate table id: %d (config=%s and %s)", ts.TableID, prev, name)
		}
		if _, ok := l.cat.GetByID(ts.TableID); ok {
			return errs.Fatalf("table id already registered: %d (config=%s)", ts.TableID, name)
		}
		seenID[ts.TableID] = name

		key := strings.ToLower(strings.TrimSpace(ts.TableName))
		if prev, ok := seenName[key]; ok {
			return errs.Fatalf("duplicate table name: %s (config=%s and %s)", key, prev, name)
		}
		if _, ok := l.cat.GetByName(key); ok {
			return errs.Fatalf("table name already registered: %s (config=%s)", key, name)
		}
		seenName[key] = name

		entries = append(entries, catalog.Entry{TID: ts.TableID, Name: key, ConfigName: name})
	}
	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}
	return l.cat.Register(entries...)
}

func (l *Lab) Freeze() {
	l.cat.Freeze()
}

func (l *Lab) EntryById(id spec.TID) (catalog.Entry, bool) {
	return l.cat.GetByID(id)
}

func (l *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return l.cat.GetByName(name)
}

func (l *Lab) IDs() []spec.TID {
	return l.cat.IDs()
}

func (l *Lab) All() []catalog.Entry {
	return l.cat.All()
}

func (l *Lab) Factory() core.PRNGFactory {
	return l.cf
}

// Summary 回傳所有桌台摘要（Freeze 之後才可呼叫，結果會快取）。
func (l *Lab) Summary() ([]catalog.Summary, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	l.sumMu.Lock()
	defer l.sumMu.Unlock()
	if l.sum != nil {
		return l.sum, nil
	}
	ids := l.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		ts, err := l.cat.TableSettingById(id)
		if err != nil {
			return nil, errs.Wrap(err, "parse table setting failed")
		}
		cs = append(cs, catalog.SummaryOf(ts))
	}
	l.sum = cs
	return l.sum, nil
}

// TableSetting 回傳桌台設定（每次都是新解析的副本）。
func (l *Lab) TableSetting(id spec.TID) (*spec.TableSetting, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	return l.cat.TableSettingById(id)
}

// Resolve 以 ID 或名稱找桌台；name 非空時優先。
func (l *Lab) Resolve(id spec.TID, name string) (spec.TID, error) {
	if strings.TrimSpace(name) != "" {
		e, ok := l.cat.GetByName(name)
		if !ok {
			return 0, errs.Codef(errs.NotFound, "table not found: %s", name)
		}
		return e.TID, nil
	}
	if _, ok := l.cat.GetByID(id); !ok {
		return 0, errs.Codef(errs.NotFound, "table id not found: %d", id)
	}
	return id, nil
}

// NewTable 依 Catalog 內的桌台 ID 建立一張桌台（seed 由 crypto/rand 產生）。
func (l *Lab) NewTable(id spec.TID) (*Table, error) {
	ts, err := l.TableSetting(id)
	if err != nil {
		return nil, err
	}
	return newTable(ts, l.cf)
}

// NewTableWithSeed 與 NewTable 相同，但由呼叫端指定初始 seed。
//
// seed 只是「出生入口」；要在任意時間點重現，請使用 SnapshotCore / RestoreCore。
func (l *Lab) NewTableWithSeed(id spec.TID, seed int64) (*Table, error) {
	ts, err := l.TableSetting(id)
	if err != nil {
		return nil, err
	}
	return newTableWithSeed(ts, l.cf, seed)
}

// NewTableByYAML 以外部設定建立桌台；設定內的 table_id / table_name 必須對應到已註冊的桌台。
func (l *Lab) NewTableByYAML(raw []byte, seed int64) (*Table, error) {
	ts, err := l.settingByRaw(raw, spec.GetTableSettingByYAML)
	if err != nil {
		return nil, err
	}
	return newTableWithSeed(ts, l.cf, seed)
}

func (l *Lab) NewTableByJSON(raw []byte, seed int64) (*Table, error) {
	ts, err := l.settingByRaw(raw, spec.GetTableSettingByJSON)
	if err != nil {
		return nil, err
	}
	return newTableWithSeed(ts, l.cf, seed)
}

func (l *Lab) NewSimulator(id spec.TID) (*Simulator, error) {
	ts, err := l.TableSetting(id)
	if err != nil {
		return nil, err
	}
	return newSimulator(ts, l.cf)
}

func (l *Lab) NewSimulatorWithSeed(id spec.TID, seed int64) (*Simulator, error) {
	ts, err := l.TableSetting(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, l.cf, seed)
}

// NewSimulatorByJSON 用於調參：同一個桌台 ID 套用不同的網格或步數設定。
func (l *Lab) NewSimulatorByJSON(raw []byte, seed int64) (*Simulator, error) {
	ts, err := l.settingByRaw(raw, spec.GetTableSettingByJSON)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, l.cf, seed)
}

func (l *Lab) NewSimulatorByYAML(raw []byte, seed int64) (*Simulator, error) {
	ts, err := l.settingByRaw(raw, spec.GetTableSettingByYAML)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ts, l.cf, seed)
}

// Replay 以回放包重現某張桌台的一個回合。
func (l *Lab) Replay(b ReplayBundle) (ReplayReport, error) {
	ts, err := l.TableSetting(b.TableID)
	if err != nil {
		return ReplayReport{}, err
	}
	return Replay(ts, l.cf, b)
}

func (l *Lab) settingByRaw(raw []byte, parse func([]byte) (*spec.TableSetting, error)) (*spec.TableSetting, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	ts, err := parse(raw)
	if err != nil {
		return nil, errs.Wrap(errs.NewWarn(err.Error()), "invalid table setting")
	}
	if err := l.validSetting(ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (l *Lab) validSetting(ts *spec.TableSetting) error {
	ent, ok := l.cat.GetByID(ts.TableID)
	if !ok {
		return errs.NewWarn("table id not exist")
	}
	ent2, ok := l.cat.GetByName(ts.TableName)
	if !ok {
		return errs.NewWarn("table name not exist")
	}
	if ent.TID != ent2.TID {
		return errs.NewWarn("table id is not matched table name")
	}
	return nil
}

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

// Package catalog 維護桌台目錄：哪些桌台可用，各自對應哪個設定檔。
//
// 設定檔來源是一或多個「平坦」的 fs.FS（不允許子目錄），檔名在所有來源間唯一。
package catalog

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/spec"
)

var (
	ErrDupID   = errs.NewFatal("duplicate table id")
	ErrDupName = errs.NewFatal("duplicate table name")
)

type Entry struct {
	TID        spec.TID
	Name       string
	ConfigName string
}

// Summary 對外公開的桌台摘要（供前端列表使用）。
type Summary struct {
	TID             spec.TID    `json:"tid"              yaml:"tid"`
	Name            string      `json:"name"             yaml:"name"`
	Mode            string      `json:"mode"             yaml:"mode"`
	Boundary        string      `json:"boundary"         yaml:"boundary"`
	Policy          string      `json:"win_policy"       yaml:"win_policy"`
	Grid            grid.Bounds `json:"grid"             yaml:"grid"`
	StartingCredits int         `json:"starting_credits" yaml:"starting_credits"`
	BetUnit         int         `json:"bet_unit"         yaml:"bet_unit"`
	Volatility      int         `json:"volatility"       yaml:"volatility"`
}

// SummaryOf 由已初始化的 TableSetting 產生摘要。
func SummaryOf(ts *spec.TableSetting) Summary {
	return Summary{
		TID:             ts.TableID,
		Name:            strings.ToLower(strings.TrimSpace(ts.TableName)),
		Mode:            ts.WalkConfig.Mode.String(),
		Boundary:        ts.WalkConfig.EffectiveBoundary().String(),
		Policy:          ts.Policy.String(),
		Grid:            ts.Grid,
		StartingCredits: ts.StartingCredits,
		BetUnit:         ts.BetUnit,
		Volatility:      ts.Volatility,
	}
}

type Catalog struct {
	byID   map[spec.TID]Entry
	byName map[string]Entry
	ids    []spec.TID          // 用來穩定排序
	unique map[string]struct{} // 一張桌台一個設定檔，檔名需唯一
	config *multiFS
	frozen bool
}

func New(cfg ...fs.FS) (*Catalog, error) {
	multFS, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	return &Catalog{
		byID:   map[spec.TID]Entry{},
		byName: map[string]Entry{},
		ids:    make([]spec.TID, 0, 16),
		unique: map[string]struct{}{},
		config: multFS,
	}, nil
}

// Register 批次註冊；任何一筆不合法則整批不寫入。
func (c *Catalog) Register(metas ...Entry) error {
	if c.frozen {
		return errs.NewWarn("can not register when catalog already frozen")
	}
	seenID := map[spec.TID]struct{}{}
	seenName := map[string]struct{}{}
	seenCfg := map[string]struct{}{}
	for i := range metas {
		metas[i].Name = strings.ToLower(strings.TrimSpace(metas[i].Name))
		meta := metas[i]
		if meta.Name == "" {
			return errs.NewFatal("table name required")
		}
		if err := validFileName(meta.ConfigName); err != nil {
			return err
		}
		if _, ok := c.config.index[meta.ConfigName]; !ok {
			return errs.NewFatal(fmt.Sprintf("config file not found: %s", meta.ConfigName))
		}
		if _, ok := c.byID[meta.TID]; ok {
			return ErrDupID
		}
		if _, ok := seenID[meta.TID]; ok {
			return ErrDupID
		}
		if _, ok := c.byName[meta.Name]; ok {
			return ErrDupName
		}
		if _, ok := seenName[meta.Name]; ok {
			return ErrDupName
		}
		_, dupA := c.unique[meta.ConfigName]
		_, dupB := seenCfg[meta.ConfigName]
		if dupA || dupB {
			return errs.NewFatal(fmt.Sprintf("duplicate config name: %s", meta.ConfigName))
		}
		seenID[meta.TID] = struct{}{}
		seenName[meta.Name] = struct{}{}
		seenCfg[meta.ConfigName] = struct{}{}
	}
	for _, meta := range metas {
		c.unique[meta.ConfigName] = struct{}{}
		c.byID[meta.TID] = meta
		c.byName[meta.Name] = meta
		c.ids = append(c.ids, meta.TID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return nil
}

func (c *Catalog) GetByID(id spec.TID) (Entry, bool) {
	m, ok := c.byID[id]
	return m, ok
}

func (c *Catalog) GetByName(name string) (Entry, bool) {
	m, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

func (c *Catalog) IDs() []spec.TID {
	if len(c.ids) == 0 {
		return nil
	}
	return append([]spec.TID(nil), c.ids...)
}

func (c *Catalog) All() []Entry {
	m := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		m = append(m, c.byID[id])
	}
	return m
}

// ConfigNames 回傳所有來源中可用的設定檔名（已排序）。
func (c *Catalog) ConfigNames() []string {
	return c.config.Names()
}

// ReadConfig 讀取原始設定檔內容。
func (c *Catalog) ReadConfig(name string) ([]byte, error) {
	src, ok := c.config.GetFS(name)
	if !ok {
		return nil, errs.NewWarn(fmt.Sprintf("config file not found: %s", name))
	}
	raw, err := fs.ReadFile(src, name)
	if err != nil {
		return nil, errs.Wrap(err, "catalog read file error")
	}
	return raw, nil
}

func (c *Catalog) Freeze() {
	c.frozen = true
}

func (c *Catalog) IsFrozen() bool {
	return c.frozen
}

func validFileName(file string) error {
	if file == "" {
		return errs.NewFatal("empty config filename")
	}
	if strings.ContainsAny(file, `/\:`) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must be a basename; no / \\\\ :) ", file))
	}
	if !isConfigFile(file) {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (must end with .yaml, .yml, or .json)", file))
	}
	if strings.HasPrefix(file, ".") {
		return errs.NewFatal(fmt.Sprintf("invalid config filename: %q (cannot start with '.')", file))
	}
	return nil
}

func isConfigFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}

// ParseTableSetting 依副檔名選擇 YAML 或 JSON 解析。
func ParseTableSetting(filename string, raw []byte) (*spec.TableSetting, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return spec.GetTableSettingByYAML(raw)
	case ".json":
		return spec.GetTableSettingByJSON(raw)
	default:
		return nil, errs.NewFatal(fmt.Sprintf("unsupported config format: %q", filename))
	}
}

// TableSettingById
//
// 會讀取 fs.FS 中的 YAML/JSON 設定、初始化並執行基本檢查後回傳
func (c *Catalog) TableSettingById(id spec.TID) (*spec.TableSetting, error) {
	e, ok := c.GetByID(id)
	if !ok {
		return nil, errs.NewCode(errs.NotFound, "id does not exist in catalog")
	}
	return c.load(e)
}

// TableSettingByName 同 TableSettingById，以名稱查找。
func (c *Catalog) TableSettingByName(name string) (*spec.TableSetting, error) {
	e, ok := c.GetByName(name)
	if !ok {
		return nil, errs.NewCode(errs.NotFound, "name does not exist in catalog")
	}
	return c.load(e)
}

func (c *Catalog) load(e Entry) (*spec.TableSetting, error) {
	raw, err := c.ReadConfig(e.ConfigName)
	if err != nil {
		return nil, err
	}
	return ParseTableSetting(e.ConfigName, raw)
}

type multiFS struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
	}

	m := &multiFS{
		src:   src,
		index: make(map[string]int, 64),
	}

	for i := 0; i < len(src); i++ {
		err := fs.WalkDir(src[i], ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// 只允許根目錄，任何子目錄都視為違反平坦目錄的約定
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}
			// 其他資產忽略，只索引 yaml/json
			if !isConfigFile(path) {
				return nil
			}
			if prev, ok := m.index[path]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i))
			}
			m.index[path] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], ok
	}
	return nil, false
}

func (m *multiFS) Names() []string {
	out := make([]string, 0, len(m.index))
	for name := range m.index {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

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

// Package demo 組裝內建的四張示範桌台：cursor、trail、ticker、chart。
//
// cmd/run 與 cmd/svr 都從這裡建立 Lab；額外的設定目錄會疊加在示範桌台之後。
package demo

import (
	"io/fs"
	"os"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/demo/demo_configs"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/core"
)

// Tables 示範桌台名稱，依 table_id 排序。
var Tables = []string{"cursor", "trail", "ticker", "chart"}

// NewLab 以 PCG64 建立只含示範桌台的 Lab。
func NewLab() (*gridlab.Lab, error) {
	return NewLabWith(core.Default())
}

// NewLabWith 以指定 PRNG 建立 Lab；extra 中的設定與示範桌台 id 或名稱重複時回傳錯誤。
func NewLabWith(cf core.PRNGFactory, extra ...fs.FS) (*gridlab.Lab, error) {
	if cf == nil {
		cf = core.Default()
	}
	srcs := append([]fs.FS{demo_configs.FS}, extra...)
	return gridlab.NewAuto(cf, gridlab.Configs(srcs...))
}

// NewLabFromFlags 給 cmd 使用：rng 為 pcg64|pcg32，dir 非空時加入該目錄（不遞迴）。
func NewLabFromFlags(rng string, dir string) (*gridlab.Lab, error) {
	cf, ok := core.FactoryByName(rng)
	if !ok {
		return nil, errs.Warnf("unknown rng: %q (pcg64|pcg32)", rng)
	}
	if dir == "" {
		return NewLabWith(cf)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, errs.Warnf("config dir not found: %q", dir)
	}
	return NewLabWith(cf, os.DirFS(dir))
}

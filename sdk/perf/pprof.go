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

// Package perf 以 runtime/pprof 包住一次執行，輸出 cpu / heap / allocs profile。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/gridlab/errs"
)

// DefaultDir pprof 檔案寫入路徑
const DefaultDir = "build/profiling"

// Mode profile 種類
type Mode string

const (
	ModeNone   Mode = ""
	ModeCPU    Mode = "cpu"
	ModeHeap   Mode = "heap"
	ModeAllocs Mode = "allocs"
)

// ParseMode 未知的名稱回傳 Warn。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNone, ModeCPU, ModeHeap, ModeAllocs:
		return m, nil
	default:
		return ModeNone, errs.Warnf("unknown pprof mode %q (cpu|heap|allocs)", s)
	}
}

// Run 依 mode 執行 exe 並把 profile 寫到 dir；mode 為空時直接執行。
//
// exe 的錯誤優先回傳；profile 寫入失敗時 exe 仍會被執行。
func Run(dir string, mode Mode, exe func() error) error {
	if mode == ModeNone {
		return exe()
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, "create pprof dir")
	}
	path := filepath.Join(dir, string(mode)+".pprof")

	switch mode {
	case ModeCPU:
		f, err := os.Create(path)
		if err != nil {
			return errs.Wrap(err, "failed to create cpu.pprof")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return errs.Wrap(err, "failed to start pprof")
		}
		defer pprof.StopCPUProfile()
		return exe()
	case ModeHeap, ModeAllocs:
		// 先執行目標邏輯，再拍一次快照
		if err := exe(); err != nil {
			return err
		}
		// 盡量讓快照貼近最新狀態
		runtime.GC()
		return writeProfile(path, string(mode))
	default:
		return exe()
	}
}

func writeProfile(path string, name string) error {
	prof := pprof.Lookup(name)
	if prof == nil {
		return errs.Fatalf("pprof profile %q not found", name)
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "failed to create "+filepath.Base(path))
	}
	defer f.Close()
	if err := prof.WriteTo(f, 0); err != nil {
		return errs.Wrap(err, "failed to write "+name+" profile")
	}
	return nil
}

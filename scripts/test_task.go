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

package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// lineFilter 回傳 false 代表略過該行。
type lineFilter func(line string) bool

// cleanTestCache 對應 go clean -testcache；strict 時失敗就結束。
func cleanTestCache(strict bool) {
	cleanCmd := exec.Command("go", "clean", "-testcache")
	cleanCmd.Stdout = os.Stdout
	cleanCmd.Stderr = os.Stderr
	if err := cleanCmd.Run(); err != nil {
		printFail(fmt.Sprintf("go clean -testcache failed: %v", err))
		if strict {
			os.Exit(1)
		}
	}
}

// runFiltered 執行指令並逐行上色輸出（ok 綠、FAIL 紅），等同 `2>&1 | grep ...`。
func runFiltered(name string, args []string, keep lineFilter, failMsg string) {
	cmd := exec.Command(name, args...)
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		printFail(fmt.Sprintf("failed to get stdout pipe: %v", err))
		os.Exit(1)
	}
	// 對應 Shell 的 "2>&1"：編譯錯誤通常在 Stderr
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		printFail(fmt.Sprintf("Error starting %s: %v", name, err))
		os.Exit(1)
	}

	scanner := bufio.NewScanner(stdoutPipe)
	for scanner.Scan() {
		line := scanner.Text()
		if keep != nil && !keep(line) {
			continue
		}
		switch {
		case strings.HasPrefix(line, "ok"):
			printOK(line)
		case strings.HasPrefix(line, "FAIL"):
			printFail(line)
		default:
			fmt.Println(line)
		}
	}
	if err := scanner.Err(); err != nil {
		printFail(fmt.Sprintf("scanner error: %v", err))
	}

	if err := cmd.Wait(); err != nil {
		printFail("\n" + failMsg + "\n")
		os.Exit(1)
	}
}

// runTest 對應 go test ./... -cover -count=1 2>&1 | grep -E '^(ok|FAIL)'
//
// 編譯錯誤不以 ok/FAIL 開頭，因此另外保留 build failed / setup failed。
func runTest() {
	printHead("running tests")
	cleanTestCache(false)
	runFiltered("go", []string{"test", "./...", "-cover", "-count=1"}, func(line string) bool {
		return strings.HasPrefix(line, "ok") || strings.HasPrefix(line, "FAIL") ||
			strings.Contains(line, "build failed") || strings.Contains(line, "setup failed")
	}, "Tests Finished with Errors")
}

// runTestAll 對應 go clean -testcache && go test -cover ./...
func runTestAll() {
	printHead("running tests (all with coverage)")
	cleanTestCache(true)
	runFiltered("go", []string{"test", "./...", "-cover"}, nil, "Tests (with coverage) finished with errors")
}

// runTestDetail 對應 go test ./... -v -count=1 2>&1 | grep -v '\[no test files\]'
func runTestDetail() {
	printHead("running tests (detail)")
	cleanTestCache(true)
	runFiltered("go", []string{"test", "./...", "-v", "-count=1"}, func(line string) bool {
		return !strings.Contains(line, "[no test files]")
	}, "Tests (detail) finished with errors")
}

// runTestRace session runtime 與模擬器都有併發，-race 另外跑一輪。
func runTestRace() {
	printHead("running tests (race)")
	cleanTestCache(false)
	runFiltered("go", []string{"test", "./...", "-race", "-count=1"}, func(line string) bool {
		return !strings.Contains(line, "[no test files]")
	}, "Tests (race) finished with errors")
}

// runSim 轉呼叫 go run ./cmd/run，其餘參數原樣傳入。
func runSim(args []string) {
	printHead("running simulator")
	runFiltered("go", append([]string{"run", "./cmd/run"}, args...), nil, "Simulator finished with errors")
}

// runSvr 轉呼叫 go run ./cmd/svr。
func runSvr(args []string) {
	printHead("running lab server")
	runFiltered("go", append([]string{"run", "./cmd/svr"}, args...), nil, "Server stopped with errors")
}

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
	"fmt"
	"os"
	"strings"
)

func main() {
	exeCmd()
}

func exeCmd() {
	// 如果沒有送任何參數進來，我們告訴用戶需要帶上 task
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts [task] [args...]")
		fmt.Println("Tasks: " + strings.Join(taskNames(), ", "))
		os.Exit(1)
	}

	task := os.Args[1]            // 取第一個參數 (os.Args[0] 是執行檔本身)
	selectTask(task, os.Args[2:]) // 路由執行
}

type task struct {
	name string
	run  func(args []string)
}

var tasks = []task{
	{"test", func([]string) { runTest() }},
	{"test-all", func([]string) { runTestAll() }},
	{"test-detail", func([]string) { runTestDetail() }},
	{"test-race", func([]string) { runTestRace() }},
	{"sim", runSim},
	{"svr", runSvr},
}

func taskNames() []string {
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, t.name)
	}
	return names
}

func selectTask(name string, args []string) {
	for _, t := range tasks {
		if t.name == name {
			t.run(args)
			return
		}
	}
	printWarn(fmt.Sprintf("Unknown task: %s\n", name))
	os.Exit(1)
}

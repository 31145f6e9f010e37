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

import "github.com/fatih/color"

// 腳本輸出用的顏色；非終端機時 color 自動關閉上色。
var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
	headColor = color.New(color.FgCyan, color.Bold)
)

func printOK(msg string)   { _, _ = okColor.Println(msg) }
func printFail(msg string) { _, _ = failColor.Println(msg) }
func printWarn(msg string) { _, _ = warnColor.Println(msg) }
func printHead(msg string) { _, _ = headColor.Println(msg) }

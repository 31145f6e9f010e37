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

package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// StatReportRender 定義輸出行為
type StatReportRender interface {
	Write(w io.Writer, r *StatReport) error
}

// RenderByName 依名稱選擇輸出格式：text | json | yaml
func RenderByName(name string) (StatReportRender, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return &TextStatReportRender{}, true
	case "json":
		return &JsonStatReportRender{}, true
	case "yaml", "yml":
		return &YAMLStatReportRender{}, true
	default:
		return nil, false
	}
}

// Text渲染：摘要表格 + 終點格熱圖（千分比）
type TextStatReportRender struct{}

func (tr *TextStatReportRender) Write(w io.Writer, r *StatReport) error {
	keys, msg := r.fmtBasic()
	if _, err := io.WriteString(w, fmtTable(r.Summary.TableName, keys, msg)); err != nil {
		return err
	}
	_, err := io.WriteString(w, fmtHeatmap(r.Dist.FinalCellDist))
	return err
}

func fmtHeatmap(dist [][]float64) string {
	if len(dist) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("final cell (per mille)\n")
	for _, row := range dist {
		for j, v := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%4.0f", v*1000)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Json渲染
type JsonStatReportRender struct{}

func (jr *JsonStatReportRender) Write(w io.Writer, r *StatReport) error {
	return json.NewEncoder(w).Encode(r)
}

// YAML渲染
type YAMLStatReportRender struct{}

func (yr *YAMLStatReportRender) Write(w io.Writer, r *StatReport) error {
	// 熱圖是二維陣列：外層展開，最內層一維輸出成 flow style：[..., ...]
	return forceReadableList(w, r)
}

type EstimatorRender interface {
	Write(w io.Writer, e *EstimatorPlayers) error
}

type TextEstimatorRender struct{}

func (tr *TextEstimatorRender) Write(w io.Writer, e *EstimatorPlayers) error {
	_, err := io.WriteString(w, e.String())
	return err
}

// Json渲染
type JsonEstimatorRender struct{}

func (jr *JsonEstimatorRender) Write(w io.Writer, e *EstimatorPlayers) error {
	return json.NewEncoder(w).Encode(e)
}

// YAML渲染
type YAMLEstimatorRender struct{}

func (yr *YAMLEstimatorRender) Write(w io.Writer, e *EstimatorPlayers) error {
	return forceReadableList(w, e)
}

// EstimatorRenderByName 依名稱選擇輸出格式：text | json | yaml
func EstimatorRenderByName(name string) (EstimatorRender, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return &TextEstimatorRender{}, true
	case "json":
		return &JsonEstimatorRender{}, true
	case "yaml", "yml":
		return &YAMLEstimatorRender{}, true
	default:
		return nil, false
	}
}

// YAML 內層方法
func forceReadableList[T any](w io.Writer, t *T) error {
	var node yaml.Node
	if err := node.Encode(t); err != nil {
		return err
	}
	styleReadableSequences(&node)

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&node)
}

// styleReadableSequences 自頂向下調整 sequence node 的 style：
// 內部沒有子 sequence 的（最內層一維）用 flow style，其餘保持 block。
func styleReadableSequences(n *yaml.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.DocumentNode, yaml.MappingNode:
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
	case yaml.SequenceNode:
		hasChildSeq := false
		for _, c := range n.Content {
			styleReadableSequences(c)
			if c != nil && c.Kind == yaml.SequenceNode {
				hasChildSeq = true
			}
		}
		if !hasChildSeq {
			n.Style = yaml.FlowStyle
		}
	}
}

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
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo" yaml:"Lo"`
	Hi float64 `json:"Hi" yaml:"Hi"`
}

// StatReport 桌台統計報告
type StatReport struct {
	Summary *SummaryReport `json:"Summary" yaml:"Summary"`
	Mult    *MultReport    `json:"Mult"    yaml:"Mult"`
	Dist    *DistReport    `json:"Dist"    yaml:"Dist"`
	Player  *PlayerReport  `json:"Player,omitzero" yaml:"Player,omitempty"`
	isDone  bool
}

type SummaryReport struct {
	TableName   string      `json:"TableName"   yaml:"TableName"`
	TableId     spec.TID    `json:"TableId"     yaml:"TableId"`
	Mode        string      `json:"Mode"        yaml:"Mode"`
	Policy      string      `json:"Policy"      yaml:"Policy"`
	Grid        grid.Bounds `json:"Grid"        yaml:"Grid"`
	Volatility  int         `json:"Volatility"  yaml:"Volatility"`
	Cells       int         `json:"Cells"       yaml:"Cells"` // 每回合押注格數
	RoundStake  int         `json:"RoundStake"  yaml:"RoundStake"`
	TotalStake  int         `json:"TotalStake"  yaml:"TotalStake"`
	TotalPayout int         `json:"TotalPayout" yaml:"TotalPayout"`
	RTP         float64     `json:"RTP"         yaml:"RTP"`
	RtpCI       CI          `json:"RtpCI"       yaml:"RtpCI"`
	Std         float64     `json:"Std"         yaml:"Std"`
	Cv          float64     `json:"Cv"          yaml:"Cv"`
	Wins        int         `json:"Wins"        yaml:"Wins"`
	HitRate     float64     `json:"HitRate"     yaml:"HitRate"`
	HitRateCI   CI          `json:"HitRateCI"   yaml:"HitRateCI"`
	AvgSteps    float64     `json:"AvgSteps"    yaml:"AvgSteps"`
	Rounds      int         `json:"Rounds"      yaml:"Rounds"`
}

// MultReport 以回合押注額為單位的派彩倍數
//
// 紀錄時不紀錄，避免轉型成本。紀錄完成後由 recorder 整理填入
type MultReport struct {
	PayoutMult      float64 `json:"PayoutMult"      yaml:"PayoutMult"`
	PayoutMultSqSum float64 `json:"PayoutMultSqSum" yaml:"PayoutMultSqSum"` // 平方和
}

// DistReport 終點格分布（Rows x Cols），用來檢查路徑終點是否均勻
type DistReport struct {
	FinalCellHits [][]int     `json:"FinalCellHits" yaml:"FinalCellHits"`
	FinalCellDist [][]float64 `json:"FinalCellDist" yaml:"FinalCellDist"`
}

// PlayerReport 玩家統計
//
// 需使用 RecordWithPlayer 才會統計
type PlayerReport struct {
	InitBalance int  `json:"InitBalance" yaml:"InitBalance"`
	Balance     int  `json:"Balance"     yaml:"Balance"`
	MaxBalance  int  `json:"MaxBalance"  yaml:"MaxBalance"`
	MinBalance  int  `json:"MinBalance"  yaml:"MinBalance"`
	Bust        bool `json:"Bust"        yaml:"Bust"`
	Cashout     bool `json:"Cashout"     yaml:"Cashout"`
	Alive       bool `json:"Alive"       yaml:"Alive"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
func (s *StatReport) Done() {
	if s.isDone {
		return
	}
	s.Summary.RTP = s.Rtp()
	s.Summary.RtpCI = s.Ci()
	s.Summary.Std = s.Std()
	s.Summary.Cv = s.Cv()
	s.Summary.HitRate, s.Summary.HitRateCI = proportionCICP(s.Summary.Wins, s.Summary.Rounds, 0.95)

	if s.Player != nil {
		s.Player.Alive = !(s.Player.Bust || s.Player.Cashout)
	}
	s.isDone = true
}

// Rtp 回傳整體 RTP（總派彩 / 總押注）
func (s *StatReport) Rtp() float64 {
	if s.Summary.Rounds == 0 || s.Summary.TotalStake == 0 {
		return 0
	}
	return float64(s.Summary.TotalPayout) / float64(s.Summary.TotalStake)
}

// Std 回傳單局派彩倍數的標準差
func (s *StatReport) Std() float64 {
	if s.Summary.Rounds < 2 {
		return 0
	}
	rounds := float64(s.Summary.Rounds)
	m := s.Mult.PayoutMult
	variance := (s.Mult.PayoutMultSqSum - m*m/rounds) / (rounds - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Cv 回傳單局派彩的變異係數
func (s *StatReport) Cv() float64 {
	rtp := s.Rtp()
	if rtp <= 0 {
		return 0
	}
	return s.Std() / rtp
}

// Ci 回傳(95% Rtp)常態近似信賴區間
func (s *StatReport) Ci() CI {
	rtp := s.Rtp()
	se := float64(0)
	if s.Summary.Rounds > 1 {
		se = s.Std() / math.Sqrt(float64(s.Summary.Rounds))
	}
	return CI{
		Lo: max(rtp-1.96*se, 0.0),
		Hi: rtp + 1.96*se,
	}
}

func (s *StatReport) WriteWith(w io.Writer, rep StatReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

func (s *StatReport) StdOut(ut time.Duration) {
	s.Done()
	fmt.Print(formatDuration(ut, s.Summary.Rounds))
	sk, sm := s.fmtBasic()
	fmt.Println(fmtTable(s.Summary.TableName, sk, sm))
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration, rounds int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	rps := int(float64(rounds) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\nrps : %d rounds/sec\n", sec, rps)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\nrps : %d rounds/sec\n", m, s, rps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\nrps : %d rounds/sec\n", h, m, s, rps)
}

func (s *StatReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Table Name":   s.Summary.TableName,
		"Table ID":     fmt.Sprintf("%d", s.Summary.TableId),
		"Walk":         fmt.Sprintf("%s / %s", s.Summary.Mode, s.Summary.Policy),
		"Grid":         fmt.Sprintf("%d x %d", s.Summary.Grid.Rows, s.Summary.Grid.Cols),
		"Volatility":   fmt.Sprintf("%d", s.Summary.Volatility),
		"Cells/Round":  p.Sprintf("%d", s.Summary.Cells),
		"Total Rounds": p.Sprintf("%d", s.Summary.Rounds),
		"Total RTP":    p.Sprintf("%.2f %%", 100.0*s.Summary.RTP),
		"RTP 95% CI":   p.Sprintf("[%.2f%%,%.2f%%]", 100.0*s.Summary.RtpCI.Lo, 100.0*s.Summary.RtpCI.Hi),
		"Hit Rate":     p.Sprintf("%.2f %% [%.2f%%,%.2f%%]", 100.0*s.Summary.HitRate, 100.0*s.Summary.HitRateCI.Lo, 100.0*s.Summary.HitRateCI.Hi),
		"Total Stake":  p.Sprintf("%d", s.Summary.TotalStake),
		"Total Payout": p.Sprintf("%d", s.Summary.TotalPayout),
		"Avg Steps":    p.Sprintf("%.2f", s.Summary.AvgSteps),
		"STD":          p.Sprintf("%.3f", s.Summary.Std),
		"CV":           p.Sprintf("%.3f", s.Summary.Cv),
	}
	keys := []string{"Table Name", "Table ID", "Walk", "Grid", "Volatility", "Cells/Round", "Total Rounds", "Total RTP", "RTP 95% CI", "Hit Rate", "Total Stake", "Total Payout", "Avg Steps", "STD", "CV"}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}

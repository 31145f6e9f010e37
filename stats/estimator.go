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
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// 用戶體驗評估
type EstimatorPlayers struct {
	RtpStat     RtpStat     `json:"RtpStat"     yaml:"RtpStat"`
	WinStat     WinStat     `json:"WinStat"     yaml:"WinStat"`
	SessionStat SessionStat `json:"SessionStat" yaml:"SessionStat"`
	BalanceStat BalanceStat `json:"BalanceStat" yaml:"BalanceStat"`
}

// Rtp敘事
type RtpStat struct {
	ExpMedian PointStat `json:"ExpMedian" yaml:"ExpMedian"` // 描述體驗的中位數
	ExpPerc   ExpPerc   `json:"ExpPerc"   yaml:"ExpPerc"`   // 描述玩家的分布(對應RTP)
	RtpPerc   RtpPerc   `json:"RtpPerc"   yaml:"RtpPerc"`   // 描述Rtp的分布(對應多少比例的玩家)
}

// 用玩家體驗分位數視角看: 最差10％玩家的RTP 最差33%玩家的RTP ...
type ExpPerc struct {
	ExpP10 PointStat `json:"ExpP10" yaml:"ExpP10"`
	ExpP33 PointStat `json:"ExpP33" yaml:"ExpP33"`
	ExpP67 PointStat `json:"ExpP67" yaml:"ExpP67"`
	ExpP90 PointStat `json:"ExpP90" yaml:"ExpP90"`
}

// 用Rtp分位數視角看玩家: 有多少玩家體驗到了30%RTP 有多少玩家體驗到了50%RTP ...
type RtpPerc struct {
	Rtp30  PointStat `json:"Rtp30"  yaml:"Rtp30"`
	Rtp50  PointStat `json:"Rtp50"  yaml:"Rtp50"`
	Rtp70  PointStat `json:"Rtp70"  yaml:"Rtp70"`
	Rtp100 PointStat `json:"Rtp100" yaml:"Rtp100"`
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64 `json:"Hat" yaml:"Hat"`
	CI  CI      `json:"CI"  yaml:"CI"`
}

// 事件點估計：一個玩家在整段遊戲中遇到 0/1/2/3+ 次
type EventCount struct {
	Zero PointStat `json:"Zero" yaml:"Zero"`
	One  PointStat `json:"One"  yaml:"One"`
	Two  PointStat `json:"Two"  yaml:"Two"`
	More PointStat `json:"More" yaml:"More"`
}

// 贏局敘事
type WinStat struct {
	Wins EventCount `json:"Wins" yaml:"Wins"`
}

// 對應結果敘事
type SessionStat struct {
	Bust    PointStat `json:"Bust"    yaml:"Bust"`    // 破產
	Cashout PointStat `json:"Cashout" yaml:"Cashout"` // 贏滿離場
	Alive   PointStat `json:"Alive"   yaml:"Alive"`   // 活到最後
}

// 期末餘額敘事
type BalanceStat struct {
	Mean   float64   `json:"Mean"   yaml:"Mean"`
	Std    float64   `json:"Std"    yaml:"Std"`
	Median PointStat `json:"Median" yaml:"Median"`
}

// ============================================================
// ** 對外 : 用戶體驗評估 **
// ============================================================

// EstimatorPlayerExp 用戶體驗評估
//
// 1. RTP 敘事 : 描述用戶大致的RTP分布
//
// 2. Win 敘事 : 描述用戶在一段遊戲中贏到 0/1/2/3+ 次的機率
//
// 3. Session 敘事 : 描述用戶最終贏到滿足離場、破產離場、打累了離場的機率
//
// 4. Balance 敘事 : 期末餘額的平均、標準差與中位數
func EstimatorPlayerExp(sts []*StatReport) *EstimatorPlayers {
	n := len(sts)
	out := &EstimatorPlayers{}
	if n == 0 {
		return out
	}

	// ------------------------------------------------------------
	// 1) RTP 敘事：收集每位玩家 RTP 並做分位/CI
	// ------------------------------------------------------------
	rtp := make([]float64, n)
	for i, s := range sts {
		rtp[i] = s.Rtp()
	}

	medHat := quantilePoint(rtp, 0.5)
	medLo, medHi := quantileCI(rtp, 0.5, 0.95)

	p10Hat := quantilePoint(rtp, 0.10)
	p10Lo, p10Hi := quantileCI(rtp, 0.10, 0.95)

	p33Hat := quantilePoint(rtp, 1.0/3.0)
	p33Lo, p33Hi := quantileCI(rtp, 1.0/3.0, 0.95)

	p67Hat := quantilePoint(rtp, 2.0/3.0)
	p67Lo, p67Hi := quantileCI(rtp, 2.0/3.0, 0.95)

	p90Hat := quantilePoint(rtp, 0.90)
	p90Lo, p90Hi := quantileCI(rtp, 0.90, 0.95)

	// RTP 對標：≤ 30/50/70/100% 的玩家比例（CP 95% CI）
	rtp30Hat, rtp30CI := percentileCIForValue(rtp, 0.30, 0.95)
	rtp50Hat, rtp50CI := percentileCIForValue(rtp, 0.50, 0.95)
	rtp70Hat, rtp70CI := percentileCIForValue(rtp, 0.70, 0.95)
	rtp100Hat, rtp100CI := percentileCIForValue(rtp, 1.00, 0.95)

	out.RtpStat = RtpStat{
		ExpMedian: PointStat{Hat: medHat, CI: CI{Lo: medLo, Hi: medHi}},
		ExpPerc: ExpPerc{
			ExpP10: PointStat{Hat: p10Hat, CI: CI{Lo: p10Lo, Hi: p10Hi}},
			ExpP33: PointStat{Hat: p33Hat, CI: CI{Lo: p33Lo, Hi: p33Hi}},
			ExpP67: PointStat{Hat: p67Hat, CI: CI{Lo: p67Lo, Hi: p67Hi}},
			ExpP90: PointStat{Hat: p90Hat, CI: CI{Lo: p90Lo, Hi: p90Hi}},
		},
		RtpPerc: RtpPerc{
			Rtp30:  PointStat{Hat: rtp30Hat, CI: rtp30CI},
			Rtp50:  PointStat{Hat: rtp50Hat, CI: rtp50CI},
			Rtp70:  PointStat{Hat: rtp70Hat, CI: rtp70CI},
			Rtp100: PointStat{Hat: rtp100Hat, CI: rtp100CI},
		},
	}

	// ------------------------------------------------------------
	// 2) Win 敘事：贏局次數分布（0/1/2/3+）
	// ------------------------------------------------------------
	var c0, c1, c2, c3p int
	for _, s := range sts {
		switch w := s.Summary.Wins; {
		case w == 0:
			c0++
		case w == 1:
			c1++
		case w == 2:
			c2++
		default:
			c3p++
		}
	}
	out.WinStat.Wins = EventCount{
		Zero: pointOf(c0, n),
		One:  pointOf(c1, n),
		Two:  pointOf(c2, n),
		More: pointOf(c3p, n),
	}

	// ------------------------------------------------------------
	// 3) Session 敘事：Bust / Cashout / Alive 比例 + CP 95% CI
	// ------------------------------------------------------------
	var bustK, cashK, aliveK int
	bal := make([]float64, n)
	for i, s := range sts {
		if s.Player == nil {
			continue
		}
		bal[i] = float64(s.Player.Balance)
		if s.Player.Bust {
			bustK++
		}
		if s.Player.Cashout {
			cashK++
		}
		if s.Player.Alive {
			aliveK++
		}
	}
	out.SessionStat = SessionStat{
		Bust:    pointOf(bustK, n),
		Cashout: pointOf(cashK, n),
		Alive:   pointOf(aliveK, n),
	}

	// ------------------------------------------------------------
	// 4) Balance 敘事
	// ------------------------------------------------------------
	mean, std := stat.MeanStdDev(bal, nil)
	if n < 2 {
		std = 0
	}
	bLo, bHi := quantileCI(bal, 0.5, 0.95)
	out.BalanceStat = BalanceStat{
		Mean:   mean,
		Std:    std,
		Median: PointStat{Hat: quantilePoint(bal, 0.5), CI: CI{Lo: bLo, Hi: bHi}},
	}

	return out
}

func pointOf(k int, n int) PointStat {
	hat, ci := proportionCICP(k, n, 0.95)
	return PointStat{Hat: hat, CI: ci}
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 問題：給定樣本 data 與門檻 x0，估計 p = P(X ≤ x0) 的點估計與 CI 區間
// 回傳 (pHat, CI)
func percentileCIForValue(data []float64, x0 float64, confidence float64) (pHat float64, ci CI) {
	n := len(data)
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 0}
	}
	// k = 數到 <= x0 的個數
	k := 0
	for _, v := range data {
		if v <= x0 {
			k++
		}
	}
	return proportionCICP(k, n, confidence)
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	if n < 2 {
		return cp[0], cp[0]
	}

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

func (est *EstimatorPlayers) Out() {
	fmt.Print(est.String())
}

func (est *EstimatorPlayers) String() string {
	var sb strings.Builder

	// 1) RTP (Player Experience)
	rtpKeys := []string{
		"Median RTP",
		"P10 RTP",
		"P33 RTP",
		"P67 RTP",
		"P90 RTP",
		"≤30% RTP (players)",
		"≤50% RTP (players)",
		"≤70% RTP (players)",
		"≤100% RTP (players)",
	}
	rtpMsg := map[string]string{
		"Median RTP":          fmtHatCIpct01(est.RtpStat.ExpMedian.Hat, est.RtpStat.ExpMedian.CI),
		"P10 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP10.Hat, est.RtpStat.ExpPerc.ExpP10.CI),
		"P33 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP33.Hat, est.RtpStat.ExpPerc.ExpP33.CI),
		"P67 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP67.Hat, est.RtpStat.ExpPerc.ExpP67.CI),
		"P90 RTP":             fmtHatCIpct01(est.RtpStat.ExpPerc.ExpP90.Hat, est.RtpStat.ExpPerc.ExpP90.CI),
		"≤30% RTP (players)":  fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp30.Hat, est.RtpStat.RtpPerc.Rtp30.CI),
		"≤50% RTP (players)":  fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp50.Hat, est.RtpStat.RtpPerc.Rtp50.CI),
		"≤70% RTP (players)":  fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp70.Hat, est.RtpStat.RtpPerc.Rtp70.CI),
		"≤100% RTP (players)": fmtHatCIpct01(est.RtpStat.RtpPerc.Rtp100.Hat, est.RtpStat.RtpPerc.Rtp100.CI),
	}
	writeTable(&sb, "RTP (Player Experience)", rtpKeys, rtpMsg)

	// 2) Wins per player
	winKeys := []string{"0 wins", "1 win", "2 wins", "3+ wins"}
	w := est.WinStat.Wins
	winMsg := map[string]string{
		"0 wins":  fmtHatCIpct01(w.Zero.Hat, w.Zero.CI),
		"1 win":   fmtHatCIpct01(w.One.Hat, w.One.CI),
		"2 wins":  fmtHatCIpct01(w.Two.Hat, w.Two.CI),
		"3+ wins": fmtHatCIpct01(w.More.Hat, w.More.CI),
	}
	writeTable(&sb, "Wins per player", winKeys, winMsg)

	// 3) Session Outcome
	sessionKeys := []string{"Bust", "Cashout", "Alive"}
	sessionMsg := map[string]string{
		"Bust":    fmtHatCIpct01(est.SessionStat.Bust.Hat, est.SessionStat.Bust.CI),
		"Cashout": fmtHatCIpct01(est.SessionStat.Cashout.Hat, est.SessionStat.Cashout.CI),
		"Alive":   fmtHatCIpct01(est.SessionStat.Alive.Hat, est.SessionStat.Alive.CI),
	}
	writeTable(&sb, "Session Outcome", sessionKeys, sessionMsg)

	// 4) Final balance
	b := est.BalanceStat
	balKeys := []string{"Mean", "Std", "Median"}
	balMsg := map[string]string{
		"Mean":   fmt.Sprintf("%.2f", b.Mean),
		"Std":    fmt.Sprintf("%.2f", b.Std),
		"Median": fmt.Sprintf("%.0f [%.0f, %.0f]", b.Median.Hat, b.Median.CI.Lo, b.Median.CI.Hi),
	}
	writeTable(&sb, "Final Balance", balKeys, balMsg)
	return sb.String()
}

func writeTable(sb *strings.Builder, title string, keys []string, msg map[string]string) {
	fmt.Fprintf(sb, "=== %s ===\n", title)
	maxKeyLen := 0
	for _, k := range keys {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
	}
	for _, k := range keys {
		fmt.Fprintf(sb, "  %s%s : %s\n", k, blank(maxKeyLen-runewidth.StringWidth(k)), msg[k])
	}
	sb.WriteString("\n")
}

func fmtPct01(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func fmtHatCIpct01(hat float64, ci CI) string {
	return fmt.Sprintf("%s [%s, %s]", fmtPct01(hat), fmtPct01(ci.Lo), fmtPct01(ci.Hi))
}

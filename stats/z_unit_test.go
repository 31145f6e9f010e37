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

package stats_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/gridlab/sdk/grid"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
)

// buildStatReport constructs a StatReport from a list of payouts with a fixed stake per round.
func buildStatReport(stake int, payouts []int) *stats.StatReport {
	var total, wins int
	var sq float64
	for _, p := range payouts {
		total += p
		if p > 0 {
			wins++
		}
		m := float64(p) / float64(stake)
		sq += m * m
	}
	report := &stats.StatReport{
		Summary: &stats.SummaryReport{
			TableName:   "TestTable",
			TableId:     spec.TID(0),
			Grid:        grid.Bounds{Rows: 2, Cols: 2},
			RoundStake:  stake,
			TotalStake:  stake * len(payouts),
			TotalPayout: total,
			Wins:        wins,
			Rounds:      len(payouts),
		},
		Mult: &stats.MultReport{
			PayoutMult:      float64(total) / float64(stake),
			PayoutMultSqSum: sq,
		},
		Dist: &stats.DistReport{
			FinalCellHits: [][]int{{1, 0}, {0, 1}},
			FinalCellDist: [][]float64{{0.5, 0}, {0, 0.5}},
		},
		Player: &stats.PlayerReport{},
	}
	report.Done()
	return report
}

func TestStatReportCoreMetrics(t *testing.T) {
	stake := 40
	rep := buildStatReport(stake, []int{0, stake, stake, 0})

	if got := rep.Rtp(); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("RTP got %.12f want 0.5", got)
	}
	// mults: 0,1,1,0 -> sample variance = 1/3
	wantStd := math.Sqrt(1.0 / 3.0)
	if got := rep.Std(); math.Abs(got-wantStd) > 1e-12 {
		t.Fatalf("Std got %.12f want %.12f", got, wantStd)
	}
	if got := rep.Cv(); math.Abs(got-wantStd/0.5) > 1e-12 {
		t.Fatalf("CV got %.12f", got)
	}
	if rep.Summary.HitRate != 0.5 {
		t.Fatalf("hit rate got %.3f want 0.5", rep.Summary.HitRate)
	}
	if !(rep.Summary.HitRateCI.Lo < 0.5 && rep.Summary.HitRateCI.Hi > 0.5) {
		t.Fatalf("hit rate CI should contain the estimate: %+v", rep.Summary.HitRateCI)
	}
	if rep.Summary.RtpCI.Lo > rep.Summary.RTP || rep.Summary.RtpCI.Hi < rep.Summary.RTP {
		t.Fatalf("rtp CI should contain RTP: %+v", rep.Summary.RtpCI)
	}

	rep.Done() // idempotent
	if rep.Rtp() != 0.5 {
		t.Fatalf("RTP changed after second Done")
	}
}

func TestEstimatorRtpAndSession(t *testing.T) {
	// 100 players: player i won i of 100 rounds -> RTP = i/100
	reports := make([]*stats.StatReport, 0, 100)
	stake := 10
	for i := 0; i < 100; i++ {
		payouts := make([]int, 100)
		for j := 0; j < i; j++ {
			payouts[j] = stake
		}
		reports = append(reports, buildStatReport(stake, payouts))
	}

	est := stats.EstimatorPlayerExp(reports)
	if math.Abs(est.RtpStat.ExpMedian.Hat-0.5) > 0.05 {
		t.Fatalf("median RTP expected ~0.5, got %.3f", est.RtpStat.ExpMedian.Hat)
	}
	if math.Abs(est.RtpStat.ExpPerc.ExpP90.Hat-0.9) > 0.05 {
		t.Fatalf("P90 RTP expected ~0.9, got %.3f", est.RtpStat.ExpPerc.ExpP90.Hat)
	}
	if est.WinStat.Wins.Zero.Hat != 0.01 || est.WinStat.Wins.More.Hat != 0.97 {
		t.Fatalf("win counts wrong: %+v", est.WinStat.Wins)
	}

	// Session outcome: 3 bust, 2 cashout, 5 alive
	sessionSamples := make([]*stats.StatReport, 10)
	for i := 0; i < 10; i++ {
		r := buildStatReport(stake, []int{0})
		r.Player.Balance = 100 * i
		switch {
		case i < 3:
			r.Player.Bust = true
			r.Player.Alive = false
		case i < 5:
			r.Player.Cashout = true
			r.Player.Alive = false
		default:
			r.Player.Alive = true
		}
		sessionSamples[i] = r
	}
	est2 := stats.EstimatorPlayerExp(sessionSamples)
	if est2.SessionStat.Bust.Hat != 0.3 {
		t.Fatalf("Bust rate got %.2f want 0.30", est2.SessionStat.Bust.Hat)
	}
	if est2.SessionStat.Cashout.Hat != 0.2 {
		t.Fatalf("Cashout rate got %.2f want 0.20", est2.SessionStat.Cashout.Hat)
	}
	if est2.SessionStat.Alive.Hat != 0.5 {
		t.Fatalf("Alive rate got %.2f want 0.50", est2.SessionStat.Alive.Hat)
	}
	if math.Abs(est2.BalanceStat.Mean-450) > 1e-9 {
		t.Fatalf("mean balance got %.2f want 450", est2.BalanceStat.Mean)
	}
	if est2.BalanceStat.Std <= 0 {
		t.Fatalf("balance std should be positive")
	}
}

func TestEstimatorSinglePlayer(t *testing.T) {
	est := stats.EstimatorPlayerExp([]*stats.StatReport{buildStatReport(10, []int{10})})
	if est.BalanceStat.Std != 0 {
		t.Fatalf("single player std should be 0, got %f", est.BalanceStat.Std)
	}
	if est.RtpStat.ExpMedian.Hat != 1 {
		t.Fatalf("single player median RTP should be 1, got %f", est.RtpStat.ExpMedian.Hat)
	}
}

func TestRenderers(t *testing.T) {
	rep := buildStatReport(10, []int{0, 10})
	for _, name := range []string{"text", "json", "yaml"} {
		r, ok := stats.RenderByName(name)
		if !ok {
			t.Fatalf("render %s not found", name)
		}
		var buf bytes.Buffer
		if err := rep.WriteWith(&buf, r); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !strings.Contains(buf.String(), "TestTable") {
			t.Fatalf("%s output missing table name:\n%s", name, buf.String())
		}
	}
	var buf bytes.Buffer
	_ = rep.WriteWith(&buf, &stats.YAMLStatReportRender{})
	if !strings.Contains(buf.String(), "- [1, 0]") {
		t.Fatalf("inner heatmap rows should use flow style:\n%s", buf.String())
	}
	if _, ok := stats.RenderByName("xml"); ok {
		t.Fatalf("unknown render should not resolve")
	}
}

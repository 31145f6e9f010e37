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

package gridlab

import (
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/grid"
)

// Phase 桌台回合狀態：Betting → Running → Settled → (Reset) → Betting。
type Phase uint8

const (
	PhaseBetting Phase = iota
	PhaseRunning
	PhaseSettled
)

var phaseNames = [...]string{"betting", "running", "settled"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText 接受 MarshalText 的輸出；未知名稱回傳 Warn。
func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if string(b) == name {
			*p = Phase(i)
			return nil
		}
	}
	return errs.Warnf("unknown phase: %q", b)
}

// Event 由 Table 發出的事件；Kind 用於序列化時辨識型別。
type Event interface {
	Kind() string
}

// Listener 接收事件。
//
// 呼叫時 Table 仍持有鎖：Listener 必須快速返回，且不可回頭呼叫同一張 Table 的方法。
type Listener func(Event)

const (
	KindBetAccepted       = "bet_accepted"
	KindBetRejected       = "bet_rejected"
	KindVolatilityChanged = "volatility_changed"
	KindRoundStarted      = "round_started"
	KindPathStep          = "path_step"
	KindRoundSettled      = "round_settled"
	KindRoundReset        = "round_reset"
)

type BetAccepted struct {
	Cell     grid.Cell `json:"cell"`
	NewTotal int       `json:"new_total"` // 該格累計押注
	Balance  int       `json:"balance"`
}

type BetRejected struct {
	Cell   grid.Cell `json:"cell"`
	Amount int       `json:"amount"`
	Reason string    `json:"reason"` // errs.Code 字串
}

type VolatilityChanged struct {
	Level int `json:"level"`
}

type RoundStarted struct {
	Round      int `json:"round"`
	Steps      int `json:"steps"`
	Volatility int `json:"volatility"`
	TotalPool  int `json:"total_pool"`
}

type PathStep struct {
	Round int       `json:"round"`
	T     int       `json:"t"`
	Cell  grid.Cell `json:"cell"`
}

// RoundSettled 結算事件；StartSnap 為產生路徑前的 RNG 快照（base64url），可用於 Replay。
type RoundSettled struct {
	Round        int         `json:"round"`
	IsWin        bool        `json:"is_win"`
	Payout       int         `json:"payout"`
	TotalPool    int         `json:"total_pool"`
	WinningCells []grid.Cell `json:"winning_cells"`
	FinalCell    grid.Cell   `json:"final_cell"`
	Balance      int         `json:"balance"`
	StartSnap    string      `json:"start_b64u"`
}

type RoundReset struct {
	Round     int  `json:"round"`
	Balance   int  `json:"balance"`
	Cancelled bool `json:"cancelled"` // 是否中斷了進行中的回合
}

func (BetAccepted) Kind() string       { return KindBetAccepted }
func (BetRejected) Kind() string       { return KindBetRejected }
func (VolatilityChanged) Kind() string { return KindVolatilityChanged }
func (RoundStarted) Kind() string      { return KindRoundStarted }
func (PathStep) Kind() string          { return KindPathStep }
func (RoundSettled) Kind() string      { return KindRoundSettled }
func (RoundReset) Kind() string        { return KindRoundReset }

// Envelope 對外傳輸用的事件外殼。
type Envelope struct {
	Kind string `json:"kind"`
	Data Event  `json:"data"`
}

func EnvelopeOf(ev Event) Envelope {
	return Envelope{Kind: ev.Kind(), Data: ev}
}

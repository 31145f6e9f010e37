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

package svrcfg

import (
	"log/slog"
	"strings"
	"time"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/logger"
)

const (
	DefaultAddr        = ":5808"
	DefaultStepDelay   = 100 * time.Millisecond
	DefaultSessionTTL  = 30 * time.Minute
	DefaultMaxSessions = 1024
)

type SvrCfg struct {
	Log         *slog.Logger
	Lab         *gridlab.Lab
	Addr        string        // 監聽位址，空值為 :5808
	StepDelay   time.Duration // 回合每一步的推進間隔；負值代表同步跑完
	SessionTTL  time.Duration // session 閒置回收時間
	MaxSessions int           // 同時存在的 session 上限
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	if sc.Lab == nil {
		return errs.NewFatal("lab is required")
	}

	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	if !strings.Contains(sc.Addr, ":") {
		return errs.Fatalf("invalid addr: %q", sc.Addr)
	}
	// 負值保留（同步跑完），0 套用預設；1ms <= StepDelay <= 5s
	if sc.StepDelay == 0 {
		sc.StepDelay = DefaultStepDelay
	}
	if sc.StepDelay > 0 {
		sc.StepDelay = min(max(sc.StepDelay, time.Millisecond), 5*time.Second)
	}
	if sc.SessionTTL <= 0 {
		sc.SessionTTL = DefaultSessionTTL
	}
	if sc.MaxSessions <= 0 {
		sc.MaxSessions = DefaultMaxSessions
	}
	return nil
}

// RuntimeOptions 轉成 session runtime 的設定。
func (sc *SvrCfg) RuntimeOptions() gridlab.RuntimeOptions {
	return gridlab.RuntimeOptions{
		StepDelay:   max(0, sc.StepDelay),
		SessionTTL:  sc.SessionTTL,
		MaxSessions: sc.MaxSessions,
	}
}

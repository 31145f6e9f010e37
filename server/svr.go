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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/server/api"
	"github.com/zintix-labs/gridlab/server/app"
	"github.com/zintix-labs/gridlab/server/logger"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/server/svrcfg"
)

// Run 是 server 套件的「組裝器（assembler）」與「啟動入口（runtime entry）」。
//
// 它負責：
//  1. 驗證輸入的 SvrConfig（包含必要依賴，例如 logger 與 Lab）。
//  2. 建立 session runtime 與 HTTP server（netsvr）。
//  3. 註冊路由與 middleware（api.RegisterRoutes）。
//  4. 啟動 app.Run() 並回傳停止原因。
//
// 注意：
//   - Run 不綁定任何「檔案路徑」或「環境變數」策略；所有依賴都應透過 SvrConfig 明確注入。
//   - 若你要自訂 server 的組裝/路由/生命週期，請用 RunWithSvr 或自行組裝。
func Run(sCfg *svrcfg.SvrCfg) error {
	if err := sCfg.Vaild(); err != nil {
		// 防止外層傳入的logger不可用
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return RunWithSvr(sCfg, netsvr.NewChiServer(sCfg.Addr))
}

// RunWithSvr 與 Run() 相同，但允許呼叫端注入自訂的 NetSvr。
//
// 重要行為與合約（contract）：
//   - svr 參數必須非 nil，且若是 ChiAdapter 會要求 Ready() 為 true（避免注入不完整的 server）。
//   - session runtime 與 server 一起交給 app 管理；關閉時先停 HTTP，再停止所有回合並關閉 session。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	if err := sCfg.Vaild(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if svr == nil {
		err := errs.NewFatal("svr is required")
		sCfg.Log.Error(err.Error())
		return err
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		err := errs.NewFatal("default server is not ready")
		sCfg.Log.Error(err.Error())
		return err
	}

	rt, err := Assemble(sCfg, svr)
	if err != nil {
		sCfg.Log.Error("assemble failed", slog.Any("err", err))
		return err
	}

	// 關閉順序：HTTP → runtime → async log drain
	a := app.NewWith(svr, rt)
	if ah, ok := sCfg.Log.Handler().(*logger.AsyncHandler); ok {
		a.Register(app.OnShutdown(func(ctx context.Context) error {
			return ah.Shutdown(ctx)
		}))
	}
	sCfg.Log.Info("[gridlab] listening",
		slog.String("addr", svr.Address()),
		slog.Duration("step_delay", sCfg.StepDelay),
		slog.Int("max_sessions", sCfg.MaxSessions),
	)
	if err := a.Run(); err != nil {
		// logger 可能已經 drain 完畢，直接寫 stderr
		fmt.Fprintln(os.Stderr, "app stopped:", err)
		return err
	}
	return nil
}

// Assemble 建立 session runtime 並把所有路由掛到 svr 上，但不啟動任何東西。
//
// 測試或嵌入其他服務時可直接使用。
func Assemble(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) (*gridlab.SessionRuntime, error) {
	if err := sCfg.Vaild(); err != nil {
		return nil, err
	}
	rt, err := sCfg.Lab.BuildRuntime(sCfg.Log, sCfg.RuntimeOptions())
	if err != nil {
		return nil, errs.Wrap(err, "build session runtime error")
	}
	if err := api.RegisterRoutes(svr, sCfg, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

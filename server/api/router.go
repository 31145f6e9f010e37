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

package api

import (
	"log/slog"
	"net/http"

	"github.com/zintix-labs/gridlab"
	v1 "github.com/zintix-labs/gridlab/server/api/v1"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/server/netsvr/middleware"
	"github.com/zintix-labs/gridlab/server/svrcfg"
)

// RegisterRoutes 註冊
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, rt *gridlab.SessionRuntime) error {
	registerMiddleware(svr, sCfg.Log)       // 1. 註冊 middleware
	registerIndex(svr)                      // 2. 註冊主頁
	return registerV1API(svr, sCfg.Log, rt) // 3. 註冊 v1 api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover(log))
	svr.Use(middleware.Compression)
}

var endpoints = []string{
	"GET    /v1/tables",
	"GET    /v1/tables/{ref}",
	"POST   /v1/sessions",
	"GET    /v1/sessions",
	"GET    /v1/sessions/{id}",
	"DELETE /v1/sessions/{id}",
	"POST   /v1/sessions/{id}/bets",
	"PUT    /v1/sessions/{id}/volatility",
	"POST   /v1/sessions/{id}/start",
	"POST   /v1/sessions/{id}/reset",
	"GET    /v1/sessions/{id}/replay",
	"GET    /v1/sessions/{id}/events (websocket)",
	"GET    /v1/sim",
	"POST   /v1/sim",
	"GET    /v1/simplayer",
	"POST   /v1/simplayer",
	"POST   /v1/simbycfg",
	"POST   /v1/replay",
	"POST   /v1/stat",
}

// 註冊主頁
func registerIndex(svr netsvr.NetSvr) {
	svr.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("gridlab\n\n"))
		for _, e := range endpoints {
			_, _ = w.Write([]byte(e + "\n"))
		}
	})
	svr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, log *slog.Logger, rt *gridlab.SessionRuntime) error {
	lab := rt.Lab()
	t, err := v1.NewTableHandler(lab)
	if err != nil {
		return err
	}
	s, err := v1.NewSessionHandler(rt, log)
	if err != nil {
		return err
	}
	sim, err := v1.NewSimHandler(lab)
	if err != nil {
		return err
	}
	rp, err := v1.NewReplayHandler(lab)
	if err != nil {
		return err
	}
	st, err := v1.NewStatHandler(lab)
	if err != nil {
		return err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/tables", t.List)
		vOne.Get("/tables/{ref}", t.Get)

		vOne.Post("/sessions", s.Open)
		vOne.Get("/sessions", s.List)
		vOne.Get("/sessions/{id}", s.Get)
		vOne.Delete("/sessions/{id}", s.Close)
		vOne.Post("/sessions/{id}/bets", s.Bet)
		vOne.Put("/sessions/{id}/volatility", s.Volatility)
		vOne.Post("/sessions/{id}/start", s.Start)
		vOne.Post("/sessions/{id}/reset", s.Reset)
		vOne.Get("/sessions/{id}/replay", s.Replay)
		vOne.Get("/sessions/{id}/events", s.Events)

		vOne.Get("/sim", sim.Sim)
		vOne.Post("/sim", sim.Sim)
		vOne.Get("/simplayer", sim.SimPlayers)
		vOne.Post("/simplayer", sim.SimPlayers)
		vOne.Post("/simbycfg", sim.SimByCfg)

		vOne.Post("/replay", rp.Replay)
		vOne.Post("/stat", st.Stat)
	})
	return nil
}

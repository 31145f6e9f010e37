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
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zintix-labs/gridlab/demo"
	"github.com/zintix-labs/gridlab/server"
	"github.com/zintix-labs/gridlab/server/logger"
	"github.com/zintix-labs/gridlab/server/svrcfg"
)

// This command is the lab server entrypoint: demo tables plus any extra configs given by -configs.
func main() {
	cfg, closeLog, err := loadConfigFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	err = server.Run(cfg)
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

type config struct {
	LogMode     string
	Addr        string
	StepDelay   time.Duration
	SessionTTL  time.Duration
	MaxSessions int
	ConfigDir   string
	Rng         string
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, func(), error) {
	cfg := new(config)
	flag.StringVar(&cfg.LogMode, "log-mode", "dev", "log mode: dev|prod|silence")
	flag.StringVar(&cfg.Addr, "addr", svrcfg.DefaultAddr, "listen address")
	flag.DurationVar(&cfg.StepDelay, "step", svrcfg.DefaultStepDelay, "delay between path steps (negative: settle immediately)")
	flag.DurationVar(&cfg.SessionTTL, "ttl", svrcfg.DefaultSessionTTL, "idle session ttl")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", svrcfg.DefaultMaxSessions, "max concurrent sessions")
	flag.StringVar(&cfg.ConfigDir, "configs", "", "extra table config directory (flat)")
	flag.StringVar(&cfg.Rng, "rng", "pcg64", "prng: pcg64|pcg32")

	flag.Parse()

	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return nil, nil, err
	}
	lab, err := demo.NewLabFromFlags(cfg.Rng, cfg.ConfigDir)
	if err != nil {
		return nil, nil, err
	}

	log, ah := logger.NewAsync(4096, mode)
	sCfg := &svrcfg.SvrCfg{
		Log:         log,
		Lab:         lab,
		Addr:        cfg.Addr,
		StepDelay:   cfg.StepDelay,
		SessionTTL:  cfg.SessionTTL,
		MaxSessions: cfg.MaxSessions,
	}
	return sCfg, ah.Close, nil
}

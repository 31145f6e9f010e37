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
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/big"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/zintix-labs/gridlab"
	"github.com/zintix-labs/gridlab/demo"
	"github.com/zintix-labs/gridlab/errs"
	"github.com/zintix-labs/gridlab/sdk/perf"
	"github.com/zintix-labs/gridlab/spec"
	"github.com/zintix-labs/gridlab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	name      string
	id        spec.TID
	worker    int
	player    int
	bankroll  int
	rounds    int
	cells     int
	units     int
	seed      int64
	rng       string
	configDir string
	output    string
	replay    string
	pprofmode perf.Mode
}

type tidFlag struct{ p *spec.TID }

func (f tidFlag) String() string {
	if f.p == nil {
		return "0"
	}
	return fmt.Sprint(uint(*f.p))
}

func (f tidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = spec.TID(uint(u))
	return nil
}

func bindVar() error {
	var pp string
	// 綁定 Flag 到本地變數的指標 (&)
	flag.Var(tidFlag{&cfg.id}, "table", "target table id")
	flag.StringVar(&cfg.name, "name", "", "target table name (overrides -table)")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.player, "player", 1, "number of players")
	flag.IntVar(&cfg.bankroll, "bankroll", 0, "initial credits per player (0: starting_credits)")
	flag.IntVar(&cfg.rounds, "rounds", 1000000, "rounds per worker (per player when -player > 1)")
	flag.IntVar(&cfg.cells, "cells", 1, "cells backed per round")
	flag.IntVar(&cfg.units, "units", 1, "bet units per backed cell")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.rng, "rng", "pcg64", "prng: pcg64|pcg32")
	flag.StringVar(&cfg.configDir, "configs", "", "extra table config directory (flat)")
	flag.StringVar(&cfg.output, "o", "text", "report format: text|json|yaml")
	flag.StringVar(&cfg.replay, "replay", "", "replay token: print the regenerated round and exit")
	flag.StringVar(&pp, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	m, err := perf.ParseMode(pp)
	if err != nil {
		return err
	}
	cfg.pprofmode = m

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			return errs.Wrap(err, "seed generate failed")
		}
		cfg.seed = seed.Int64()
	}
	return nil
}

func newLab() (*gridlab.Lab, error) {
	return demo.NewLabFromFlags(cfg.rng, cfg.configDir)
}

// 這裡解析並分支要執行的模擬器
func execute() error {
	lab, err := newLab()
	if err != nil {
		return err
	}
	if cfg.replay != "" {
		return executeReplay(lab)
	}
	if err := cfg.valid(); err != nil { // 基本檢查
		return err
	}
	return executeSimulator(lab)
}

func executeReplay(lab *gridlab.Lab) error {
	b, err := gridlab.ParseReplayToken(cfg.replay)
	if err != nil {
		return err
	}
	rep, err := lab.Replay(b)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func executeSimulator(lab *gridlab.Lab) error {
	id, err := lab.Resolve(cfg.id, cfg.name)
	if err != nil {
		return err
	}
	s, err := lab.NewSimulatorWithSeed(id, cfg.seed)
	if err != nil {
		return err
	}
	render, ok := stats.RenderByName(cfg.output)
	if !ok {
		return errs.Warnf("unknown output format: %q", cfg.output)
	}
	cfg.name = s.TableName
	rb := gridlab.RandomBettor{Cells: cfg.cells, Units: cfg.units}
	text := cfg.output == "" || cfg.output == "text"

	// 至此確保可執行
	p := message.NewPrinter(language.English)
	title := color.New(color.FgGreen, color.Bold)
	banner := func(format string, a ...any) {
		if text {
			_, _ = title.Println(p.Sprintf(format, a...))
		}
	}
	// 進度條只在終端機顯示，輸出被導向檔案時保持乾淨
	showpb := text && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))

	if cfg.player == 1 { // 純桌台模擬
		var (
			st  *stats.StatReport
			err error
		)
		if cfg.worker == 1 { // 單線程
			banner("[TABLE:%s] [SEED:%d] [BETTOR:%dx%d] [ROUNDS:%d]", cfg.name, cfg.seed, cfg.cells, cfg.units, cfg.rounds)
			st, _, err = s.Sim(rb, cfg.rounds, showpb)
		} else {
			banner("[WORKERS:%d] [TABLE:%s] [SEED:%d] [BETTOR:%dx%d] [ROUNDS:%d]", cfg.worker, cfg.name, cfg.seed, cfg.cells, cfg.units, cfg.worker*cfg.rounds)
			st, _, err = s.SimMP(rb, cfg.rounds, cfg.worker, showpb) // 併發
		}
		if err != nil {
			return err
		}
		return st.WriteWith(os.Stdout, render)
	}

	// 模擬多玩家體驗
	banner("[WORKERS:%d] [TABLE:%s] [PLAYERS:%d BANKROLL:%d BETTOR:%dx%d ROUNDS:%d]", cfg.worker, cfg.name, cfg.player, cfg.bankroll, cfg.cells, cfg.units, cfg.rounds)
	st, est, _, err := s.SimPlayers(cfg.worker, cfg.player, cfg.bankroll, rb, cfg.rounds, showpb)
	if err != nil {
		return err
	}
	if err := st.WriteWith(os.Stdout, render); err != nil {
		return err
	}
	er, _ := stats.EstimatorRenderByName(cfg.output)
	return er.Write(os.Stdout, est)
}

func (cfg *config) valid() error {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		return errs.NewWarn("value err : workers must > 0")
	}

	// 玩家數量 > 0
	if cfg.player < 1 {
		return errs.NewWarn("value err : player must > 0")
	}
	// 玩家數量太多 resize
	if cfg.player > 100000 {
		p.Printf("too much players: %d resized to 100k players\n", cfg.player)
		cfg.player = 100000
	}
	if cfg.bankroll < 0 {
		return errs.NewWarn("value err : bankroll must >= 0")
	}

	// 回合數檢查
	if cfg.rounds < 1 {
		return errs.NewWarn("value err : rounds must > 0")
	}

	// 模擬玩家的時候，每個玩家最高不超過15000回合
	if cfg.player > 1 && cfg.rounds > 15000 {
		p.Printf("too much rounds for each players : %d resized to 15k rounds for each player\n", cfg.rounds)
		cfg.rounds = 15000
	}
	return nil
}

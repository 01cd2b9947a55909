// Copyright 2026 The Vega Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vega-lang/vega/internal/agentrt"
	"github.com/vega-lang/vega/internal/budget"
	"github.com/vega-lang/vega/internal/bytecode"
	"github.com/vega-lang/vega/internal/httpseam"
	"github.com/vega-lang/vega/internal/interp"
	"github.com/vega-lang/vega/internal/proc"
	"github.com/vega-lang/vega/internal/trace"
	"github.com/vega-lang/vega/internal/tracestore"
	"github.com/vega-lang/vega/internal/vegaconfig"
	"github.com/vega-lang/vega/internal/vegalog"
	"github.com/vega-lang/vega/internal/vmvalue"
)

func runVega(cmd *cobra.Command, args []string) error {
	if flagDebug {
		l, _ := zap.NewDevelopment()
		vegalog.SetLogger(l)
	}

	cfg, err := vegaconfig.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagAPIKey != "" {
		cfg.AnthropicAPIKey = flagAPIKey
	}
	if cfg.AnthropicAPIKey == "" {
		vegalog.Warn("vega_no_api_key", zap.String("hint", "set ANTHROPIC_API_KEY, $HOME/.vega, or --api-key"))
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	image, err := bytecode.Load(data)
	if err != nil {
		return fmt.Errorf("loading image: %w", err)
	}

	if flagDebug {
		fmt.Fprintf(os.Stderr, "image: %d functions, %d agents, %d bytes of constants, %d bytes of code\n",
			len(image.Functions), len(image.Agents), len(image.Pool), len(image.Code))
	}

	arena := &vmvalue.Arena{}
	bus := trace.NewBus()
	scheduler := proc.NewScheduler()
	acct := budget.New(cfg.ToBudgetLimits())
	client := httpseam.NewClient(cfg.AnthropicAPIKey, flagEndpoint)
	manager := agentrt.NewManager(image, client, bus, acct, scheduler)

	if flagTraceDB != "" {
		store, err := tracestore.Open(flagTraceDB)
		if err != nil {
			return fmt.Errorf("opening trace store: %w", err)
		}
		defer store.Close()
		store.Attach(bus)
		defer store.Detach()
	}

	ctx := context.Background()
	it := interp.New(ctx, image, manager, scheduler, bus, arena)

	result, err := it.RunMain()
	if err != nil {
		printUsage(acct)
		return fmt.Errorf("running %s: %w", args[0], err)
	}

	fmt.Println(result.String())
	printUsage(acct)

	if flagDebug {
		stats := arena.Stats()
		fmt.Fprintf(os.Stderr, "arena: %d live, %d allocated, %d freed\n", stats.Live, stats.Allocated, stats.Freed)
	}
	return nil
}

func printUsage(acct *budget.Accountant) {
	u := acct.Snapshot()
	fmt.Fprintf(os.Stderr, "tokens: in=%d out=%d cost=$%.6f\n", u.InputTokens, u.OutputTokens, u.CostUSD)
}

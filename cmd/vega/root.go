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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagDebug        bool
	flagBudgetCost   float64
	flagBudgetInput  int64
	flagBudgetOutput int64
	flagTraceDB      string
	flagAPIKey       string
	flagEndpoint     string
)

var rootCmd = &cobra.Command{
	Use:     "vega [file.vgb]",
	Short:   "Vega runtime - stack-based bytecode VM for multi-agent LLM programs",
	Long:    `Vega loads a compiled .vgb image and runs its "main" function, spawning and scheduling agent processes against the Anthropic Messages API under budget and circuit-breaker controls.`,
	Args:    cobra.ExactArgs(1),
	RunE:    runVega,
	Version: "0.1.0",
}

func init() {
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "print image/memory diagnostics and enable verbose logging")
	rootCmd.Flags().Float64Var(&flagBudgetCost, "budget-cost", 0, "maximum total USD cost (0 = unlimited)")
	rootCmd.Flags().Int64Var(&flagBudgetInput, "budget-input", 0, "maximum input tokens across the run (0 = unlimited)")
	rootCmd.Flags().Int64Var(&flagBudgetOutput, "budget-output", 0, "maximum output tokens across the run (0 = unlimited)")
	rootCmd.Flags().StringVar(&flagTraceDB, "trace-db", "", "path to a sqlite file to persist trace.Bus events into (disabled if empty)")
	rootCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "Anthropic API key (overrides ANTHROPIC_API_KEY/keyring resolution)")
	rootCmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "Anthropic Messages API endpoint override")

	_ = viper.BindPFlag("budget.max_cost_usd", rootCmd.Flags().Lookup("budget-cost"))
	_ = viper.BindPFlag("budget.max_input_tokens", rootCmd.Flags().Lookup("budget-input"))
	_ = viper.BindPFlag("budget.max_output_tokens", rootCmd.Flags().Lookup("budget-output"))

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(tuiCmd)
}

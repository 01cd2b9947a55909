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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vega-lang/vega/internal/bytecode"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Scaffold a minimal .vgb image with a single main function",
	Long:  `init writes a skeleton bytecode image whose "main" function pushes 0 and returns it. There is no textual Vega source compiler yet (spec §1 names a front-end as out of scope for this runtime); edit the image with the bytecode package's CodeBuilder, or treat the output as a starting point to disassemble and extend.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	name := "main.vgb"
	if len(args) == 1 {
		name = args[0]
	}
	if _, err := os.Stat(name); err == nil {
		return fmt.Errorf("%s already exists", name)
	}

	mod := bytecode.NewModule()
	body := bytecode.NewCodeBuilder().
		PushInt(0).
		Return()
	mod.AddFunction("main", 0, 0, body)
	image := mod.Build()

	if err := os.WriteFile(name, image.Serialize(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	fmt.Printf("wrote %s\n", name)
	return nil
}

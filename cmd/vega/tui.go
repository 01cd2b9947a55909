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

	"github.com/spf13/cobra"
)

// tuiCmd is a documented placeholder. A bubbletea front end analogous to
// the teacher's internal/tui package would subscribe to a trace.Bus and
// render agent/process state live, but spec.md scopes the interactive
// front-end out of this runtime (see DESIGN.md's "left unbound" notes for
// the TUI dependency stack).
var tuiCmd = &cobra.Command{
	Use:    "tui [file.vgb]",
	Short:  "(unimplemented) interactive front end",
	Hidden: true,
	Args:   cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("vega tui: no interactive front end is wired into this build; run the image directly with `vega <file.vgb>` or attach a --trace-db sink and inspect it externally")
	},
}

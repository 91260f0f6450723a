// Copyright 2026 The bluestreak-go Authors
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

// Command bluestreakctl is a thin operational CLI over the bluestreak
// library façade: start a workflow, wait for one to finish, or run the
// poller loop. It is packaging, not part of the library's tested contract.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "bluestreakctl",
		Short: "Operate a bluestreak durable workflow engine",
		Long: `bluestreakctl is a small operational CLI around the bluestreak
library: it submits workflow instances, waits for them to finish, and runs
the poller loop against a configured document store. It exists for manual
operation and smoke testing, not as the library's primary interface.`,
	}

	// Accept snake_case spellings of every flag so config-file keys and
	// flag names stay interchangeable.
	root.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a bluestreakctl YAML config file")
	root.AddCommand(newStartCommand(&configPath))
	root.AddCommand(newWaitCommand(&configPath))
	root.AddCommand(newPollCommand(&configPath))

	return root
}

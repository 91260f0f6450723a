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

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newWaitCommand(configPath *string) *cobra.Command {
	var (
		retries       int
		pauseInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait <workflow-id>",
		Short: "Block until a workflow instance finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := args[0]

			ctx := cmd.Context()
			client, err := buildClient(ctx, *configPath)
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			result, err := client.Wait(ctx, workflowID, retries, pauseInterval)
			if err != nil {
				return err
			}

			out, err := json.Marshal(result)
			if err != nil {
				return fmt.Errorf("bluestreakctl: encode result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().IntVar(&retries, "retries", 30, "number of status probes after the first before giving up")
	cmd.Flags().DurationVar(&pauseInterval, "pause-interval", 0, "pause between probes (0 uses the configured default)")

	return cmd
}

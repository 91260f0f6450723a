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

	"github.com/spf13/cobra"
)

func newStartCommand(configPath *string) *cobra.Command {
	var (
		handlerID string
		inputJSON string
	)

	cmd := &cobra.Command{
		Use:   "start <workflow-id>",
		Short: "Create a new workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := args[0]

			var input any
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("bluestreakctl: parse --input: %w", err)
				}
			}

			ctx := cmd.Context()
			client, err := buildClient(ctx, *configPath)
			if err != nil {
				return err
			}
			defer client.Close(ctx)

			if err := client.Start(ctx, workflowID, handlerID, input); err != nil {
				return err
			}

			fmt.Printf("started %s\n", workflowID)
			return nil
		},
	}

	cmd.Flags().StringVar(&handlerID, "handler", "", "handler id to run this workflow under")
	cmd.Flags().StringVar(&inputJSON, "input", "", "JSON-encoded input payload")
	cmd.MarkFlagRequired("handler")

	return cmd
}

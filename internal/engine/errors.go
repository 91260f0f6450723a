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

package engine

import "fmt"

// InfraKind distinguishes the two infrastructure failures a Runner can
// raise — the only failures that cross the fire-and-forget dispatch
// boundary and terminate the Poller's loop. Kept local to engine (rather
// than the root package's *Error type) to avoid an import cycle; Client translates
// an *InfraError into the public *bluestreak.Error at the Poll boundary.
type InfraKind string

const (
	InfraWorkflowNotFound InfraKind = "workflow_not_found"
	InfraHandlerNotFound  InfraKind = "handler_not_found"
)

// InfraError is raised only for the two fatal-to-the-loop conditions: a
// claimed workflow whose instance vanished, or one whose handlerId nothing
// registered.
type InfraError struct {
	Kind       InfraKind
	WorkflowID string
	HandlerID  string
	Cause      error
}

func (e *InfraError) Error() string {
	switch e.Kind {
	case InfraHandlerNotFound:
		return fmt.Sprintf("engine: handler not found: %s", e.HandlerID)
	default:
		return fmt.Sprintf("engine: workflow not found: %s", e.WorkflowID)
	}
}

func (e *InfraError) Unwrap() error { return e.Cause }

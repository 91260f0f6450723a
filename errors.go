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

package bluestreak

import "fmt"

// ErrorKind classifies the closed set of errors the engine surfaces to
// callers. Handler-produced errors never take one of these kinds; they are
// recorded as workflow failures by the Runner and never reach the caller
// directly.
type ErrorKind string

const (
	// ErrWorkflowNotFound is raised by Wait and by internal lookups that
	// should never miss.
	ErrWorkflowNotFound ErrorKind = "workflow_not_found"

	// ErrHandlerNotFound is raised by the Runner when a claimed instance
	// references a handlerId nothing has registered. Fatal to Poll.
	ErrHandlerNotFound ErrorKind = "handler_not_found"

	// ErrWaitTimeout is raised by Wait when its retry budget is exhausted
	// without the instance reaching finished.
	ErrWaitTimeout ErrorKind = "wait_timeout"

	// ErrWorkflowAlreadyStarted is raised by Start on workflowId collision.
	ErrWorkflowAlreadyStarted ErrorKind = "workflow_already_started"
)

// Error is the single error type for every kind above. It carries whichever
// identifier is relevant (a workflow id or a handler id) plus, where one
// exists, the underlying cause.
type Error struct {
	Kind       ErrorKind
	WorkflowID string
	HandlerID  string
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrHandlerNotFound:
		return fmt.Sprintf("bluestreak: handler not found: %s", e.HandlerID)
	case ErrWorkflowAlreadyStarted:
		return fmt.Sprintf("bluestreak: workflow already started: %s", e.WorkflowID)
	case ErrWaitTimeout:
		return fmt.Sprintf("bluestreak: wait timed out: %s", e.WorkflowID)
	default:
		return fmt.Sprintf("bluestreak: workflow not found: %s", e.WorkflowID)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error makes the ErrorKind constants usable as errors.Is targets.
func (k ErrorKind) Error() string { return string(k) }

// Is lets errors.Is match on kind alone, so callers can write
// errors.Is(err, bluestreak.ErrWorkflowNotFound) directly against the
// ErrorKind constants rather than unwrapping an *Error by hand. See IsKind
// for the typed accessor version.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && e.Kind == k
}

// newWorkflowNotFoundError, newHandlerNotFoundError, newWaitTimeoutError and
// newWorkflowAlreadyStartedError construct the four distinguished kinds.
func newWorkflowNotFoundError(workflowID string) *Error {
	return &Error{Kind: ErrWorkflowNotFound, WorkflowID: workflowID}
}

func newHandlerNotFoundError(handlerID string) *Error {
	return &Error{Kind: ErrHandlerNotFound, HandlerID: handlerID}
}

func newWaitTimeoutError(workflowID string) *Error {
	return &Error{Kind: ErrWaitTimeout, WorkflowID: workflowID}
}

func newWorkflowAlreadyStartedError(workflowID string, cause error) *Error {
	return &Error{Kind: ErrWorkflowAlreadyStarted, WorkflowID: workflowID, Cause: cause}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var be *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			be = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return be != nil && be.Kind == kind
}

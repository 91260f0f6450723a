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

package errors

import (
	stderrors "errors"
	"testing"
)

func TestWrap(t *testing.T) {
	base := New("base")
	wrapped := Wrap(base, "context")

	if wrapped.Error() != "context: base" {
		t.Errorf("unexpected message: %q", wrapped.Error())
	}
	if !Is(wrapped, base) {
		t.Error("expected wrapped error to match base")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("expected nil for nil error")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestWrapf(t *testing.T) {
	base := stderrors.New("base")
	wrapped := Wrapf(base, "op %s failed", "claim")

	if wrapped.Error() != "op claim failed: base" {
		t.Errorf("unexpected message: %q", wrapped.Error())
	}
	if !stderrors.Is(wrapped, base) {
		t.Error("expected wrapped error to match base")
	}
}

func TestAs(t *testing.T) {
	type myErr struct{ error }
	base := myErr{New("typed")}
	wrapped := Wrap(base, "outer")

	var target myErr
	if !As(wrapped, &target) {
		t.Error("expected As to find the typed error")
	}
}

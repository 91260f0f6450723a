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

// Package bluestreak implements the durable workflow execution engine's
// public surface: Client.Start submits a workflow instance, Client.Poll
// claims and runs due instances, and a registered Handler coordinates its
// side effects through a *Context's Step and Sleep methods.
//
// Basic usage:
//
//	bs := bluestreak.New(bluestreak.WithDBURL("mongodb://localhost:27017"))
//	if err := bs.Init(ctx); err != nil { ... }
//	defer bs.Close(ctx)
//
//	bs.RegisterHandler("greet", func(ctx *bluestreak.Context, input any) (any, error) {
//		return ctx.Step("say-hello", func() (any, error) {
//			return "hello, " + input.(string), nil
//		})
//	})
//
//	bs.Start(ctx, "w1", "greet", "world")
//	go bs.Poll(ctx)
//	result, err := bs.Wait(ctx, "w1", 10, time.Second)
package bluestreak

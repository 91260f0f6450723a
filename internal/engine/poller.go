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

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	blog "github.com/ferromir/bluestreak-go/internal/log"
	"github.com/ferromir/bluestreak-go/internal/metrics"
	"github.com/ferromir/bluestreak-go/internal/store"
)

// Poller is a single cooperative loop that repeatedly
// asks the store to claim one due instance, dispatches it to the Runner
// fire-and-forget, and otherwise sleeps for pollInterval. It stops when
// shouldStop fires or a dispatched Runner returns an infrastructure error.
type Poller struct {
	store           store.Store
	runner          *Runner
	clock           clock.Clock
	pollInterval    time.Duration
	timeoutInterval time.Duration
	shouldStop      func() bool
	logger          *slog.Logger
}

// NewPoller builds a Poller.
func NewPoller(st store.Store, runner *Runner, clk clock.Clock, pollInterval, timeoutInterval time.Duration, shouldStop func() bool, logger *slog.Logger) *Poller {
	return &Poller{
		store:           st,
		runner:          runner,
		clock:           clk,
		pollInterval:    pollInterval,
		timeoutInterval: timeoutInterval,
		shouldStop:      shouldStop,
		logger:          logger,
	}
}

// Poll runs the claim loop until shouldStop fires or a dispatched run
// surfaces an *InfraError. golang.org/x/sync/errgroup gives the
// fire-and-forget semantics the loop needs for free: each claimed run is
// g.Go'd, and the group's derived context is cancelled the instant any one
// of them returns a non-nil error, which is also the first error Wait
// ultimately returns — matching "first infrastructure failure wins,
// subsequent ones are suppressed."
func (p *Poller) Poll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for {
		if p.shouldStop != nil && p.shouldStop() {
			break
		}
		if gctx.Err() != nil {
			break
		}

		now := p.clock.Now()
		workflowID, err := p.store.ClaimDue(gctx, now, now.Add(p.timeoutInterval))
		if err != nil {
			// Drain in-flight runs before surfacing the claim error; if one
			// of them is what cancelled gctx, its error takes precedence.
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}

		if workflowID == "" {
			select {
			case <-gctx.Done():
			case <-p.clock.After(p.pollInterval):
			}
			continue
		}

		metrics.RecordClaim()
		metrics.RecordDispatch()
		p.logger.Info("claimed workflow", blog.WorkflowIDKey, workflowID)

		wid := workflowID
		g.Go(func() error {
			defer metrics.RecordRunEnd()
			return p.runner.Run(gctx, wid)
		})
	}

	return g.Wait()
}

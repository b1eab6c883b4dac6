// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import (
	"context"
	"time"

	"github.com/bureau-foundation/rendezvous/lib/clock"
	"github.com/bureau-foundation/rendezvous/lib/liveness"
)

// WatchCreator polls checker every interval until the process
// described by creator is no longer alive, then calls
// coordinator.SignalCreatorExit. It returns when that happens or when
// ctx is cancelled.
func WatchCreator(ctx context.Context, checker *liveness.Checker, creator liveness.Record, clk clock.Clock, interval time.Duration, coordinator *Coordinator) {
	if !checker.IsOwnerAlive(creator) {
		coordinator.SignalCreatorExit()
		return
	}
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !checker.IsOwnerAlive(creator) {
				coordinator.SignalCreatorExit()
				return
			}
		}
	}
}

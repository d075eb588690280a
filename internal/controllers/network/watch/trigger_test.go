// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package watch_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/siderolabs/slaac/internal/controllers/network/watch"
)

type countingTrigger struct {
	count atomic.Int64
}

func (t *countingTrigger) QueueReconcile() {
	t.count.Add(1)
}

func TestChannelTrigger(t *testing.T) {
	ch := make(chan struct{}, 1)

	trigger := watch.ChannelTrigger(ch)

	// second send should be dropped, not block
	trigger.QueueReconcile()
	trigger.QueueReconcile()

	select {
	case <-ch:
	default:
		t.Fatal("expected a queued reconcile")
	}

	select {
	case <-ch:
		t.Fatal("expected the second reconcile to be dropped")
	default:
	}
}

func TestRateLimitedTrigger(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dest := &countingTrigger{}

	trigger := watch.NewRateLimitedTrigger(ctx, dest, 10, 1)

	start := time.Now()

	// hammer the trigger for a while, events should be compressed
	// to the configured rate
	for time.Since(start) < 500*time.Millisecond {
		trigger.QueueReconcile()

		time.Sleep(time.Millisecond)
	}

	count := dest.count.Load()

	assert.Greater(t, count, int64(1))
	assert.LessOrEqual(t, count, int64(10))
}

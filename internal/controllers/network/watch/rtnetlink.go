// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package watch

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jsimonetti/rtnetlink/v2"
	"github.com/mdlayher/netlink"
)

// Watcher is a running netlink watch.
type Watcher interface {
	Done()
}

type rtnetlinkWatcher struct {
	wg     sync.WaitGroup
	cancel context.CancelFunc
	conn   *rtnetlink.Conn
}

// NewRtNetlink starts rtnetlink watch over specified groups, queueing a
// reconcile on each received message.
//
// If msgTypes are given, only messages of those types trigger a reconcile.
func NewRtNetlink(ctx context.Context, trigger Trigger, groups uint32, msgTypes ...netlink.HeaderType) (Watcher, error) {
	watcher := &rtnetlinkWatcher{}

	ctx, watcher.cancel = context.WithCancel(ctx)

	var err error

	watcher.conn, err = rtnetlink.Dial(&netlink.Config{
		Groups: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("error dialing watch socket: %w", err)
	}

	watcher.wg.Add(1)

	go func() {
		defer watcher.wg.Done()

		for {
			_, raw, watchErr := watcher.conn.Receive()
			if watchErr != nil {
				return
			}

			if ctx.Err() != nil {
				return
			}

			matches := len(msgTypes) == 0 || slices.ContainsFunc(raw, func(msg netlink.Message) bool {
				return slices.Contains(msgTypes, msg.Header.Type)
			})

			if matches {
				trigger.QueueReconcile()
			}
		}
	}()

	return watcher, nil
}

func (watcher *rtnetlinkWatcher) Done() {
	watcher.cancel()
	watcher.conn.Close() //nolint:errcheck

	watcher.wg.Wait()
}

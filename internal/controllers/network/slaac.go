// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package network provides controllers which manage the node's SLAAC
// addresses.
package network

import (
	"context"
	"fmt"
	"iter"
	"net/netip"
	"path/filepath"
	"slices"

	"github.com/cosi-project/runtime/pkg/controller"
	"github.com/cosi-project/runtime/pkg/safe"
	"github.com/cosi-project/runtime/pkg/state"
	"github.com/mdlayher/netlink"
	"github.com/siderolabs/gen/optional"
	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"
	"go4.org/netipx"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/slaac/internal/controllers/network/watch"
	"github.com/siderolabs/slaac/internal/netif"
	"github.com/siderolabs/slaac/internal/store"
	"github.com/siderolabs/slaac/pkg/resources/mesh"
	"github.com/siderolabs/slaac/pkg/slaac"
)

// SlaacController drives the SLAAC engine: it feeds advertised prefix
// snapshots and external change notifications into the engine and publishes
// the installed addresses.
//
// The controller's Run goroutine is the single writer into the engine.
type SlaacController struct {
	LinkName     string
	StateDir     string
	EngineConfig slaac.Config

	// Netif overrides the rtnetlink collaborator (tests).
	Netif slaac.Netif
	// Entropy overrides the system random sources (tests).
	Entropy slaac.Entropy
	// AddressEvents overrides the netlink address watch (tests).
	AddressEvents <-chan struct{}
}

// Name implements controller.Controller interface.
func (ctrl *SlaacController) Name() string {
	return "network.SlaacController"
}

// Inputs implements controller.Controller interface.
func (ctrl *SlaacController) Inputs() []controller.Input {
	return []controller.Input{
		{
			Namespace: mesh.NamespaceName,
			Type:      mesh.AdvertisedPrefixType,
			Kind:      controller.InputWeak,
		},
		{
			Namespace: mesh.NamespaceName,
			Type:      mesh.SlaacConfigType,
			ID:        optional.Some(mesh.SlaacConfigID),
			Kind:      controller.InputWeak,
		},
	}
}

// Outputs implements controller.Controller interface.
func (ctrl *SlaacController) Outputs() []controller.Output {
	return []controller.Output{
		{
			Type: mesh.SlaacAddressStatusType,
			Kind: controller.OutputExclusive,
		},
	}
}

// prefixSnapshot adapts the resource listing to the engine's PrefixSource.
// The Run loop refreshes the snapshot before every engine invocation.
type prefixSnapshot struct {
	list slaac.PrefixList
}

func (s *prefixSnapshot) AdvertisedPrefixes() iter.Seq[slaac.AdvertisedPrefix] {
	return s.list.AdvertisedPrefixes()
}

// Run implements controller.Controller interface.
//
//nolint:gocyclo,cyclop
func (ctrl *SlaacController) Run(ctx context.Context, r controller.Runtime, logger *zap.Logger) error {
	nif := ctrl.Netif
	if nif == nil {
		client, err := netif.New(ctrl.LinkName)
		if err != nil {
			return fmt.Errorf("error setting up netlink client: %w", err)
		}

		defer client.Close() //nolint:errcheck

		nif = client
	}

	addressEvents := ctrl.AddressEvents
	if addressEvents == nil {
		// watch for addresses removed outside of the engine (e.g. failed
		// duplicate address detection), as the engine might need to fill the
		// prefix the removed address was occupying
		eventCh := make(chan struct{}, 1)

		watcher, err := watch.NewRtNetlink(
			ctx,
			watch.NewDefaultRateLimitedTrigger(ctx, watch.ChannelTrigger(eventCh)),
			unix.RTMGRP_IPV6_IFADDR,
			netlink.HeaderType(unix.RTM_DELADDR),
		)
		if err != nil {
			return err
		}

		defer watcher.Done()

		addressEvents = eventCh
	}

	snapshot := &prefixSnapshot{}

	engine := slaac.New(ctrl.EngineConfig, slaac.Dependencies{
		Prefixes: snapshot,
		Netif:    nif,
		Secrets:  store.NewFile(filepath.Join(ctrl.StateDir, "slaac.key")),
		Entropy:  ctrl.Entropy,
	}, logger)

	var (
		appliedExclude []netip.Prefix
		filterPresent  bool
	)

	for {
		var event slaac.Event

		select {
		case <-ctx.Done():
			return nil
		case <-r.EventCh():
			event = slaac.EventPrefixesChanged
		case <-addressEvents:
			event = slaac.EventAddressRemoved
		}

		r.StartTrackingOutputs()

		cfg, err := safe.ReaderGetByID[*mesh.SlaacConfig](ctx, r, mesh.SlaacConfigID)
		if err != nil && !state.IsNotFoundError(err) {
			return fmt.Errorf("error getting SLAAC config: %w", err)
		}

		prefixes, err := safe.ReaderListAll[*mesh.AdvertisedPrefix](ctx, r)
		if err != nil {
			return fmt.Errorf("error listing advertised prefixes: %w", err)
		}

		snapshot.list = xslices.Map(slices.Collect(prefixes.All()), func(res *mesh.AdvertisedPrefix) slaac.AdvertisedPrefix {
			return slaac.AdvertisedPrefix{
				Prefix:    res.TypedSpec().Prefix,
				SLAAC:     res.TypedSpec().SLAAC,
				Preferred: res.TypedSpec().Preferred,
			}
		})

		// without explicit configuration the engine runs enabled and
		// unfiltered
		enabled := true

		var exclude []netip.Prefix

		if cfg != nil {
			enabled = cfg.TypedSpec().Enabled
			exclude = cfg.TypedSpec().ExcludeSubnets
		}

		switch {
		case len(exclude) == 0 && filterPresent:
			engine.SetFilter(optional.None[slaac.Filter]())

			appliedExclude, filterPresent = nil, false
		case len(exclude) > 0 && !slices.Equal(exclude, appliedExclude):
			if filter, filterErr := buildExcludeFilter(exclude); filterErr != nil {
				logger.Warn("invalid exclude subnets, keeping previous filter", zap.Error(filterErr))
			} else {
				engine.SetFilter(optional.Some(filter))

				appliedExclude, filterPresent = slices.Clone(exclude), true
			}
		}

		if enabled {
			engine.Enable()
		} else {
			engine.Disable()
		}

		engine.HandleEvent(event)

		for _, addr := range engine.Addresses() {
			if err = safe.WriterModify(
				ctx,
				r,
				mesh.NewSlaacAddressStatus(mesh.NamespaceName, addr.Address.String()),
				func(res *mesh.SlaacAddressStatus) error {
					res.TypedSpec().Address = addr.Address
					res.TypedSpec().Preferred = addr.Preferred
					res.TypedSpec().LinkName = ctrl.LinkName

					return nil
				},
			); err != nil {
				return fmt.Errorf("error updating address status: %w", err)
			}
		}

		if err = safe.CleanupOutputs[*mesh.SlaacAddressStatus](ctx, r); err != nil {
			return fmt.Errorf("error cleaning up address statuses: %w", err)
		}
	}
}

// buildExcludeFilter compiles the exclude subnets into a prefix filter.
func buildExcludeFilter(exclude []netip.Prefix) (slaac.Filter, error) {
	var builder netipx.IPSetBuilder

	for _, subnet := range exclude {
		builder.AddPrefix(subnet)
	}

	set, err := builder.IPSet()
	if err != nil {
		return nil, err
	}

	return func(prefix netip.Prefix) bool {
		return set.OverlapsPrefix(prefix)
	}, nil
}

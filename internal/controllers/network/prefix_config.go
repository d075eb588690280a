// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package network

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/cosi-project/runtime/pkg/controller"
	"github.com/cosi-project/runtime/pkg/safe"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/slaac/pkg/resources/mesh"
)

// PrefixConfigController loads the prefix advertisement file into resources.
//
// The file is a local stand-in for the mesh network-data agent: whatever
// distributes prefixes across the mesh ultimately writes this file, and the
// controller re-reads it whenever it changes.
type PrefixConfigController struct {
	ConfigPath string
}

// Name implements controller.Controller interface.
func (ctrl *PrefixConfigController) Name() string {
	return "network.PrefixConfigController"
}

// Inputs implements controller.Controller interface.
func (ctrl *PrefixConfigController) Inputs() []controller.Input {
	return nil
}

// Outputs implements controller.Controller interface.
func (ctrl *PrefixConfigController) Outputs() []controller.Output {
	return []controller.Output{
		{
			Type: mesh.AdvertisedPrefixType,
			Kind: controller.OutputExclusive,
		},
		{
			Type: mesh.SlaacConfigType,
			Kind: controller.OutputExclusive,
		},
	}
}

// prefixConfigFile is the on-disk format.
type prefixConfigFile struct {
	Enabled        *bool    `yaml:"enabled"`
	ExcludeSubnets []string `yaml:"excludeSubnets"`
	Prefixes       []struct {
		Prefix    string `yaml:"prefix"`
		SLAAC     *bool  `yaml:"slaac"`
		Preferred *bool  `yaml:"preferred"`
	} `yaml:"prefixes"`
}

// Run implements controller.Controller interface.
//
//nolint:gocyclo
func (ctrl *PrefixConfigController) Run(ctx context.Context, r controller.Runtime, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating fsnotify watcher: %w", err)
	}

	defer watcher.Close() //nolint:errcheck

	// watch the directory: file replacements (write to temp, rename over)
	// don't deliver events on the file itself
	if err = watcher.Add(filepath.Dir(ctrl.ConfigPath)); err != nil {
		return fmt.Errorf("error watching %q: %w", filepath.Dir(ctrl.ConfigPath), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.EventCh():
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(ctrl.ConfigPath) {
				continue
			}
		case watchErr := <-watcher.Errors:
			logger.Warn("fsnotify error", zap.Error(watchErr))

			continue
		}

		r.StartTrackingOutputs()

		if err = ctrl.apply(ctx, r, logger); err != nil {
			return err
		}

		if err = safe.CleanupOutputs[*mesh.AdvertisedPrefix](ctx, r); err != nil {
			return fmt.Errorf("error cleaning up advertised prefixes: %w", err)
		}

		if err = safe.CleanupOutputs[*mesh.SlaacConfig](ctx, r); err != nil {
			return fmt.Errorf("error cleaning up SLAAC config: %w", err)
		}
	}
}

func (ctrl *PrefixConfigController) apply(ctx context.Context, r controller.Runtime, logger *zap.Logger) error {
	contents, err := os.ReadFile(ctrl.ConfigPath)
	if err != nil {
		// a missing file means no advertised prefixes and default engine
		// configuration
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to read prefix config", zap.String("path", ctrl.ConfigPath), zap.Error(err))
		}

		return nil
	}

	var file prefixConfigFile

	if err = yaml.Unmarshal(contents, &file); err != nil {
		logger.Warn("failed to parse prefix config, ignoring it", zap.String("path", ctrl.ConfigPath), zap.Error(err))

		return nil
	}

	if err = safe.WriterModify(
		ctx,
		r,
		mesh.NewSlaacConfig(mesh.NamespaceName, mesh.SlaacConfigID),
		func(res *mesh.SlaacConfig) error {
			res.TypedSpec().Enabled = boolDefault(file.Enabled, true)
			res.TypedSpec().ExcludeSubnets = parsePrefixes(file.ExcludeSubnets, logger)

			return nil
		},
	); err != nil {
		return fmt.Errorf("error updating SLAAC config: %w", err)
	}

	for _, entry := range file.Prefixes {
		prefix, parseErr := netip.ParsePrefix(entry.Prefix)
		if parseErr != nil {
			logger.Warn("skipping unparseable prefix", zap.String("prefix", entry.Prefix), zap.Error(parseErr))

			continue
		}

		if err = safe.WriterModify(
			ctx,
			r,
			mesh.NewAdvertisedPrefix(mesh.NamespaceName, prefix.String()),
			func(res *mesh.AdvertisedPrefix) error {
				res.TypedSpec().Prefix = prefix
				res.TypedSpec().SLAAC = boolDefault(entry.SLAAC, true)
				res.TypedSpec().Preferred = boolDefault(entry.Preferred, true)

				return nil
			},
		); err != nil {
			return fmt.Errorf("error updating advertised prefix: %w", err)
		}
	}

	return nil
}

func parsePrefixes(subnets []string, logger *zap.Logger) []netip.Prefix {
	var result []netip.Prefix //nolint:prealloc

	for _, subnet := range subnets {
		prefix, err := netip.ParsePrefix(subnet)
		if err != nil {
			logger.Warn("skipping unparseable subnet", zap.String("subnet", subnet), zap.Error(err))

			continue
		}

		result = append(result, prefix)
	}

	return result
}

func boolDefault(value *bool, def bool) bool {
	if value == nil {
		return def
	}

	return *value
}

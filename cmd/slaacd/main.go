// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main implements slaacd, the SLAAC address daemon for mesh network
// nodes.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cosi-project/runtime/pkg/controller/runtime"
	"github.com/cosi-project/runtime/pkg/state"
	"github.com/cosi-project/runtime/pkg/state/impl/inmem"
	"github.com/cosi-project/runtime/pkg/state/impl/namespaced"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/siderolabs/slaac/internal/controllers/network"
	"github.com/siderolabs/slaac/pkg/logging"
	"github.com/siderolabs/slaac/pkg/slaac"
)

var opts struct {
	linkName   string
	stateDir   string
	configFile string
	poolSize   int
	debug      bool
}

var rootCmd = &cobra.Command{
	Use:   "slaacd",
	Short: "SLAAC address daemon for mesh network nodes",
	Long: `slaacd installs and retires IPv6 addresses on a mesh node's interface,
following the prefixes advertised across the mesh and deriving stable
RFC 7217 interface identifiers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&opts.linkName, "link", "mesh0", "name of the mesh network link")
	rootCmd.Flags().StringVar(&opts.stateDir, "state-dir", "/var/lib/slaacd", "directory holding persistent state (IID secret key)")
	rootCmd.Flags().StringVar(&opts.configFile, "config", "/etc/slaacd/prefixes.yaml", "path to the advertised prefix file")
	rootCmd.Flags().IntVar(&opts.poolSize, "pool-size", slaac.DefaultPoolSize, "max number of SLAAC addresses installed simultaneously")
	rootCmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
}

func run(ctx context.Context) error {
	level := zapcore.InfoLevel
	if opts.debug {
		level = zapcore.DebugLevel
	}

	logger := logging.ZapLogger(
		logging.NewLogDestination(os.Stderr, level, logging.WithColoredLevels()),
	).With(logging.Component("slaacd"))

	defer logger.Sync() //nolint:errcheck

	// route standard library log output (used by some dependencies) into zap
	log.SetOutput(logging.NewWriter(logger, zapcore.InfoLevel))

	st := state.WrapCore(namespaced.NewState(inmem.Build))

	rt, err := runtime.NewRuntime(st, logger)
	if err != nil {
		return fmt.Errorf("error setting up controller runtime: %w", err)
	}

	if err = rt.RegisterController(&network.PrefixConfigController{
		ConfigPath: opts.configFile,
	}); err != nil {
		return fmt.Errorf("error registering prefix config controller: %w", err)
	}

	if err = rt.RegisterController(&network.SlaacController{
		LinkName: opts.linkName,
		StateDir: opts.stateDir,
		EngineConfig: slaac.Config{
			PoolSize: opts.poolSize,
		},
	}); err != nil {
		return fmt.Errorf("error registering SLAAC controller: %w", err)
	}

	logger.Info("starting", zap.String("link", opts.linkName))

	return rt.Run(ctx)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("error: %v", err)
	}
}

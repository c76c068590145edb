/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
streamnode-server is one node in a streamnode cluster: it loads its
configuration, opens its internal (peer) and public (client) listeners, runs
the coordination kernel, and serves append/poll/admin traffic until asked to
stop.

Usage:

	streamnode-server --config /etc/streamnode/node1.toml
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/net/netutil"

	"streamnode/internal/cluster"
	"streamnode/internal/config"
	"streamnode/internal/logging"
	"streamnode/internal/streamlog"
)

// maxPeerConnections bounds how many concurrent connections the internal
// peer listener accepts, per SPEC_FULL.md's domain-stack wiring table — a
// handful of cluster peers will never open more than this many connections
// at once, and bounding it keeps a misbehaving or malicious peer from
// exhausting file descriptors.
const maxPeerConnections = 64

func main() {
	configPath := flag.String("config", "", "Path to a TOML-flavored config file")
	flag.Parse()

	mgr := config.Global()
	if *configPath != "" {
		if err := mgr.LoadFromFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "streamnode-server: %v\n", err)
			os.Exit(1)
		}
	}
	mgr.LoadFromEnv()
	cfg := mgr.Get()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "streamnode-server: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
	logger := logging.NewLogger("server")

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	streamer := streamlog.NewStreamer(cfg.Stream.Path, cfg.Node.ID)
	existing, err := existingStreamIDs(cfg.Stream.Path)
	if err != nil {
		return fmt.Errorf("scan stream path: %w", err)
	}
	if err := streamer.LoadExisting(existing); err != nil {
		return fmt.Errorf("load existing streams: %w", err)
	}
	logger.Info("loaded streams", "count", len(existing))

	coordinator, err := cluster.NewCoordinator(cfg, streamer)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}
	dispatcher := cluster.NewDispatcher(coordinator, streamer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	peerListener, err := net.Listen("tcp", cfg.Node.Address)
	if err != nil {
		return fmt.Errorf("listen on node address %s: %w", cfg.Node.Address, err)
	}
	peerListener = netutil.LimitListener(peerListener, maxPeerConnections)
	defer peerListener.Close()

	clientListener, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("listen on server address %s: %w", cfg.Server.Address, err)
	}
	defer clientListener.Close()

	if err := coordinator.Start(ctx); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer coordinator.Stop()

	errCh := make(chan error, 2)
	go func() { errCh <- dispatcher.Serve(ctx, peerListener) }()
	go func() { errCh <- dispatcher.Serve(ctx, clientListener) }()

	logger.Info("streamnode-server ready",
		"node_id", cfg.Node.ID,
		"node_address", cfg.Node.Address,
		"server_address", cfg.Server.Address)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	return nil
}

// existingStreamIDs scans basePath for subdirectories named after a stream
// id, restoring the in-memory catalog after a restart. A directory that
// doesn't parse as a uint64 is some other file and is skipped rather than
// treated as an error.
func existingStreamIDs(basePath string) ([]uint64, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []uint64
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(filepath.Base(e.Name()), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

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

package metrics

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"streamnode/internal/logging"
)

// DiscoveredNode is one streamnode process found on the LAN via mDNS.
type DiscoveredNode struct {
	NodeID          string
	Name            string
	InternalAddress string
	Version         string
}

// DiscoveryConfig configures a DiscoveryService.
type DiscoveryConfig struct {
	NodeID      uint64
	Name        string
	Address     string // internal cluster address to advertise; ignored if Enabled is false
	ServiceName string // mDNS service name, e.g. "_streamnode._tcp"
	Enabled     bool   // whether to advertise this node on the LAN
}

// DiscoveryService advertises this node's internal address over mDNS and/or
// browses the LAN for other advertising nodes. It exists purely to
// pre-populate an operator's static peer list at startup (cluster.nodes);
// membership itself stays static for the process lifetime — see
// spec.md's Non-goals (no membership changes).
type DiscoveryService struct {
	cfg    DiscoveryConfig
	server *mdns.Server
	logger *logging.Logger
}

// NewDiscoveryService builds a DiscoveryService from cfg. It does not start
// advertising until Advertise is called.
func NewDiscoveryService(cfg DiscoveryConfig) *DiscoveryService {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "_streamnode._tcp"
	}
	return &DiscoveryService{cfg: cfg, logger: logging.NewLogger("discovery")}
}

// Advertise registers this node on the LAN via mDNS for the process
// lifetime; call Shutdown to stop. A no-op when cfg.Enabled is false, which
// is how a discovery-only client (e.g. the streamnode-discover CLI) avoids
// advertising itself as a cluster member.
func (d *DiscoveryService) Advertise() error {
	if !d.cfg.Enabled {
		return nil
	}
	host, portStr, err := net.SplitHostPort(d.cfg.Address)
	if err != nil {
		return fmt.Errorf("discovery: invalid address %q: %w", d.cfg.Address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("discovery: invalid port in %q: %w", d.cfg.Address, err)
	}

	var ips []net.IP
	if host != "" && host != "0.0.0.0" {
		if ip := net.ParseIP(host); ip != nil {
			ips = append(ips, ip)
		}
	}
	info := []string{
		fmt.Sprintf("node_id=%d", d.cfg.NodeID),
		fmt.Sprintf("name=%s", d.cfg.Name),
	}

	hostname := fmt.Sprintf("streamnode-%d", d.cfg.NodeID)
	service, err := mdns.NewMDNSService(hostname, d.cfg.ServiceName, "", "", port, ips, info)
	if err != nil {
		return fmt.Errorf("discovery: build mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("discovery: start mdns server: %w", err)
	}
	d.logger.Info("advertising on mdns", "service", d.cfg.ServiceName, "address", d.cfg.Address)
	d.server = server
	return nil
}

// Shutdown stops advertising, if Advertise was called. Safe to call
// unconditionally.
func (d *DiscoveryService) Shutdown() error {
	if d.server == nil {
		return nil
	}
	return d.server.Shutdown()
}

// DiscoverNodes browses the LAN for streamnode peers for up to timeout,
// returning whatever responded. Discovery is a one-shot, startup-only
// lookup: the returned nodes are never re-checked by the cluster.
func (d *DiscoveryService) DiscoverNodes(timeout time.Duration) ([]*DiscoveredNode, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var nodes []*DiscoveredNode
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			nodes = append(nodes, parseEntry(e))
		}
	}()

	params := mdns.DefaultParams(d.cfg.ServiceName)
	params.Entries = entries
	params.Timeout = timeout
	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("discovery: query: %w", err)
	}
	return nodes, nil
}

func parseEntry(e *mdns.ServiceEntry) *DiscoveredNode {
	addr := e.AddrV4
	if addr == nil {
		addr = e.AddrV6
	}
	node := &DiscoveredNode{
		InternalAddress: fmt.Sprintf("%s:%d", addr, e.Port),
	}
	for _, f := range e.InfoFields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch k {
		case "node_id":
			node.NodeID = v
		case "name":
			node.Name = v
		}
	}
	return node
}

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
streamnode-discover - cluster peer discovery tool

Discovers streamnode processes advertising themselves on the local network
via mDNS. Useful for pre-populating a new node's cluster.nodes config
section before it joins — discovery itself is never consulted again once a
node has started (see internal/metrics.DiscoveryService).

Usage:
    streamnode-discover                 # discover nodes (5 second timeout)
    streamnode-discover --timeout 10    # custom timeout in seconds
    streamnode-discover --json          # output as JSON
    streamnode-discover --quiet         # only output addresses (for scripting)
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"streamnode/internal/metrics"
)

const (
	version   = "1.0.0"
	copyright = "Copyright (c) 2026 Firefly Software Solutions Inc."
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func main() {
	timeout := flag.Int("timeout", 5, "Discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	quiet := flag.Bool("quiet", false, "Only output cluster addresses (for scripting)")
	serviceName := flag.String("service", "_streamnode._tcp", "mDNS service name to browse for")
	help := flag.Bool("help", false, "Show help")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(help, "h", false, "Show help")
	flag.BoolVar(showVersion, "v", false, "Show version information")

	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}
	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// Suppress mDNS library logging (it logs IPv6 errors that are not critical).
	log.SetOutput(io.Discard)

	if !*quiet && !*jsonOutput {
		printBanner()
	}

	discovery := metrics.NewDiscoveryService(metrics.DiscoveryConfig{
		ServiceName: *serviceName,
		Enabled:     false, // discovery-only: never advertise this client
	})

	if !*quiet && !*jsonOutput {
		fmt.Printf("%s%sℹ%s Scanning for streamnode peers on the network (timeout: %ds)...\n\n",
			cyan, bold, reset, *timeout)
	}

	nodes, err := discovery.DiscoverNodes(time.Duration(*timeout) * time.Second)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "%s%s✗%s Discovery failed: %v\n", red, bold, reset, err)
		}
		os.Exit(1)
	}

	if len(nodes) == 0 {
		if !*quiet && !*jsonOutput {
			fmt.Printf("%s%s⚠%s No streamnode peers found on the network.\n\n", yellow, bold, reset)
			fmt.Printf("%s%sTROUBLESHOOTING%s\n\n", bold, cyan, reset)
			fmt.Printf("%s  Common issues:%s\n", dim, reset)
			fmt.Printf("    %s•%s Peer nodes are not running with discovery.enabled = true\n", yellow, reset)
			fmt.Printf("    %s•%s mDNS is blocked by a firewall (UDP port 5353)\n", yellow, reset)
			fmt.Printf("    %s•%s Nodes are on a different network segment\n\n", yellow, reset)
			fmt.Printf("%s  Try:%s\n", dim, reset)
			fmt.Printf("    %sstreamnode-discover --timeout 10%s   # Increase timeout\n\n", green, reset)
		}
		os.Exit(0)
	}

	if *jsonOutput {
		outputJSON(nodes)
	} else if *quiet {
		outputQuiet(nodes)
	} else {
		outputHuman(nodes)
	}
}

func printBanner() {
	fmt.Println()
	fmt.Printf("  %s%sstreamnode-discover%s %sv%s%s\n", green, bold, reset, dim, version, reset)
	fmt.Printf("  %sLAN peer discovery for cluster bootstrap%s\n\n", dim, reset)
}

func printVersion() {
	fmt.Println()
	fmt.Printf("  %s%sstreamnode-discover%s %sv%s%s\n", cyan, bold, reset, dim, version, reset)
	fmt.Printf("  %s%s%s\n\n", dim, copyright, reset)
}

func printUsage() {
	printBanner()

	fmt.Printf("%s  Discovers streamnode peers on the local network using mDNS.%s\n", dim, reset)
	fmt.Printf("%s  Useful for pre-populating cluster.nodes before a node joins.%s\n\n", dim, reset)

	fmt.Printf("%sUsage:%s streamnode-discover [options]\n\n", bold, reset)

	fmt.Printf("%s%sOPTIONS%s\n\n", bold, cyan, reset)
	fmt.Printf("    %s--timeout%s <seconds>   Discovery timeout (default: 5)\n", green, reset)
	fmt.Printf("    %s--service%s <name>      mDNS service name (default: _streamnode._tcp)\n", green, reset)
	fmt.Printf("    %s--json%s               Output results as JSON\n", green, reset)
	fmt.Printf("    %s--quiet%s, %s-q%s          Only output addresses (for scripting)\n", green, reset, green, reset)
	fmt.Printf("    %s--version%s, %s-v%s        Show version information\n", green, reset, green, reset)
	fmt.Printf("    %s--help%s, %s-h%s           Show this help message\n\n", green, reset, green, reset)

	fmt.Printf("%s%sEXAMPLES%s\n\n", bold, cyan, reset)
	fmt.Printf("%s    # Discover nodes with default timeout%s\n", dim, reset)
	fmt.Println("    streamnode-discover")
	fmt.Println()
	fmt.Printf("%s    # Get just addresses for scripting%s\n", dim, reset)
	fmt.Println("    streamnode-discover --quiet")
	fmt.Println()
	fmt.Printf("%s    # Use to seed a new node's peer list%s\n", dim, reset)
	fmt.Println("    PEERS=$(streamnode-discover --quiet)")
	fmt.Println()

	fmt.Printf("%s%sNETWORK REQUIREMENTS%s\n\n", bold, cyan, reset)
	fmt.Printf("    %s•%s mDNS uses UDP port 5353 (multicast)\n", yellow, reset)
	fmt.Printf("    %s•%s Nodes must be on the same network segment\n", yellow, reset)
	fmt.Printf("    %s•%s Firewalls must allow mDNS traffic\n\n", yellow, reset)
}

func outputJSON(nodes []*metrics.DiscoveredNode) {
	type nodeOutput struct {
		NodeID          string `json:"node_id,omitempty"`
		Name            string `json:"name,omitempty"`
		InternalAddress string `json:"internal_address"`
	}

	output := make([]nodeOutput, len(nodes))
	for i, n := range nodes {
		output[i] = nodeOutput{NodeID: n.NodeID, Name: n.Name, InternalAddress: n.InternalAddress}
	}

	data, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(data))
}

func outputQuiet(nodes []*metrics.DiscoveredNode) {
	addrs := make([]string, len(nodes))
	for i, n := range nodes {
		addrs[i] = n.InternalAddress
	}
	fmt.Println(strings.Join(addrs, ","))
}

func outputHuman(nodes []*metrics.DiscoveredNode) {
	fmt.Printf("%s%s✓%s Found %d streamnode peer(s)\n\n", green, bold, reset, len(nodes))

	for i, n := range nodes {
		label := n.Name
		if label == "" {
			label = n.NodeID
		}
		fmt.Printf("  %s[%d]%s %s%s%s\n", dim, i+1, reset, bold+cyan, label, reset)
		fmt.Printf("      %sInternal Address:%s %s%s%s\n", dim, reset, green, n.InternalAddress, reset)
		if n.NodeID != "" {
			fmt.Printf("      %sNode ID:%s          %s\n", dim, reset, n.NodeID)
		}
		fmt.Println()
	}

	fmt.Printf("%s  Tip: Use --json for machine-readable output%s\n\n", dim, reset)
}

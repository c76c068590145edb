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
Package config loads and validates streamnode's node/cluster/stream/server
configuration. This is an external collaborator in the strictest sense (the
coordination kernel never loads a file itself), but a working loader is built
here in the teacher's idiom: a TOML-flavored file format, environment
variable overrides with env taking precedence over file taking precedence
over defaults, a reloadable Manager, and a process-wide singleton reached via
Global() for the server/CLI entrypoints.
*/
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Environment variable names recognized by LoadFromEnv.
const (
	EnvNodeID                   = "STREAMNODE_NODE_ID"
	EnvNodeName                 = "STREAMNODE_NODE_NAME"
	EnvNodeAddress              = "STREAMNODE_NODE_ADDRESS"
	EnvClusterSecret            = "STREAMNODE_CLUSTER_SECRET"
	EnvServerAddress            = "STREAMNODE_SERVER_ADDRESS"
	EnvStreamPath               = "STREAMNODE_STREAM_PATH"
	EnvRequiredAcknowledgements = "STREAMNODE_REQUIRED_ACKNOWLEDGEMENTS"
	EnvLogLevel                 = "STREAMNODE_LOG_LEVEL"
	EnvLogJSON                  = "STREAMNODE_LOG_JSON"
)

// ClusterNodeConfig describes one peer entry in the static cluster member list.
type ClusterNodeConfig struct {
	ID               uint64
	Name             string
	PublicAddress    string
	InternalAddress  string
}

// NodeConfig is this process's own identity.
type NodeConfig struct {
	ID      uint64
	Name    string
	Address string
}

// ClusterConfig governs coordination timing and the static peer list.
type ClusterConfig struct {
	HeartbeatIntervalMS      uint64
	ReconnectionIntervalMS   uint64
	ReconnectionRetries      uint32
	Secret                   string
	Nodes                    []ClusterNodeConfig
	ElectionTimeoutFromMS    uint64
	ElectionTimeoutToMS      uint64
	RequiredAcknowledgements string // "none" | "leader" | "majority"
}

// StreamConfig governs where stream data is persisted.
type StreamConfig struct {
	Path string
}

// ServerConfig governs the public client-facing listener.
type ServerConfig struct {
	Address string
}

// CompressionConfig governs optional payload compression for cluster
// replication traffic (SyncMessages batches above MinSize), negotiated
// per-link via the Hello handshake's SupportsCompression flag.
type CompressionConfig struct {
	Algorithm string // "none" | "lz4" | "snappy" | "zstd"
	MinSize   int    // bytes; batches below this are sent uncompressed
}

// DiscoveryConfig governs the optional mDNS peer-advertisement helper used
// by operator tooling to pre-populate the static peer list at startup.
// Cluster membership itself stays static (see Cluster.Nodes); discovery is
// never consulted again once the process has started.
type DiscoveryConfig struct {
	Enabled     bool
	ServiceName string
}

// Config is the full, validated configuration for one streamnode process.
type Config struct {
	Node        NodeConfig
	Cluster     ClusterConfig
	Stream      StreamConfig
	Server      ServerConfig
	Compression CompressionConfig
	Discovery   DiscoveryConfig

	LogLevel string
	LogJSON  bool

	// ConfigFile records the path this Config was loaded from, if any.
	ConfigFile string
}

// DefaultConfig returns the configuration defaults, matching the values the
// coordination kernel was originally specified and tested against.
func DefaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID:      1,
			Name:    "node",
			Address: "0.0.0.0:8201",
		},
		Cluster: ClusterConfig{
			HeartbeatIntervalMS:      3000,
			ReconnectionIntervalMS:   1000,
			ReconnectionRetries:      10,
			Secret:                   "secret123!",
			Nodes:                    nil,
			ElectionTimeoutFromMS:    100,
			ElectionTimeoutToMS:      300,
			RequiredAcknowledgements: "majority",
		},
		Stream: StreamConfig{
			Path: "local_data/streams",
		},
		Server: ServerConfig{
			Address: "0.0.0.0:8101",
		},
		Compression: CompressionConfig{
			Algorithm: "none",
			MinSize:   512,
		},
		Discovery: DiscoveryConfig{
			Enabled:     false,
			ServiceName: "_streamnode._tcp",
		},
		LogLevel: "info",
		LogJSON:  false,
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Node.Address == "" {
		return fmt.Errorf("node.address must not be empty")
	}
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Stream.Path == "" {
		return fmt.Errorf("stream.path must not be empty")
	}
	if c.Cluster.Secret == "" {
		return fmt.Errorf("cluster.secret must not be empty")
	}
	if c.Cluster.ElectionTimeoutFromMS > c.Cluster.ElectionTimeoutToMS {
		return fmt.Errorf("cluster.election_timeout_range_from (%d) must be <= election_timeout_range_to (%d)",
			c.Cluster.ElectionTimeoutFromMS, c.Cluster.ElectionTimeoutToMS)
	}
	switch c.Cluster.RequiredAcknowledgements {
	case "none", "leader", "majority":
	default:
		return fmt.Errorf("cluster.required_acknowledgements must be one of none|leader|majority, got %q", c.Cluster.RequiredAcknowledgements)
	}
	switch c.Compression.Algorithm {
	case "none", "lz4", "snappy", "zstd":
	default:
		return fmt.Errorf("compression.algorithm must be one of none|lz4|snappy|zstd, got %q", c.Compression.Algorithm)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be one of debug|info|warn|error, got %q", c.LogLevel)
	}
	return nil
}

// ToTOML renders the configuration as a TOML-flavored document.
func (c *Config) ToTOML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[node]\n")
	fmt.Fprintf(&b, "id = %d\n", c.Node.ID)
	fmt.Fprintf(&b, "name = %q\n", c.Node.Name)
	fmt.Fprintf(&b, "address = %q\n\n", c.Node.Address)

	fmt.Fprintf(&b, "[cluster]\n")
	fmt.Fprintf(&b, "heartbeat_interval_ms = %d\n", c.Cluster.HeartbeatIntervalMS)
	fmt.Fprintf(&b, "reconnection_interval_ms = %d\n", c.Cluster.ReconnectionIntervalMS)
	fmt.Fprintf(&b, "reconnection_retries = %d\n", c.Cluster.ReconnectionRetries)
	fmt.Fprintf(&b, "secret = %q\n", c.Cluster.Secret)
	fmt.Fprintf(&b, "election_timeout_range_from_ms = %d\n", c.Cluster.ElectionTimeoutFromMS)
	fmt.Fprintf(&b, "election_timeout_range_to_ms = %d\n", c.Cluster.ElectionTimeoutToMS)
	fmt.Fprintf(&b, "required_acknowledgements = %q\n\n", c.Cluster.RequiredAcknowledgements)

	for _, n := range c.Cluster.Nodes {
		fmt.Fprintf(&b, "[[cluster.nodes]]\n")
		fmt.Fprintf(&b, "id = %d\n", n.ID)
		fmt.Fprintf(&b, "name = %q\n", n.Name)
		fmt.Fprintf(&b, "public_address = %q\n", n.PublicAddress)
		fmt.Fprintf(&b, "internal_address = %q\n\n", n.InternalAddress)
	}

	fmt.Fprintf(&b, "[stream]\n")
	fmt.Fprintf(&b, "path = %q\n\n", c.Stream.Path)

	fmt.Fprintf(&b, "[server]\n")
	fmt.Fprintf(&b, "address = %q\n\n", c.Server.Address)

	fmt.Fprintf(&b, "[compression]\n")
	fmt.Fprintf(&b, "algorithm = %q\n", c.Compression.Algorithm)
	fmt.Fprintf(&b, "min_size = %d\n\n", c.Compression.MinSize)

	fmt.Fprintf(&b, "[discovery]\n")
	fmt.Fprintf(&b, "enabled = %t\n", c.Discovery.Enabled)
	fmt.Fprintf(&b, "service_name = %q\n\n", c.Discovery.ServiceName)

	fmt.Fprintf(&b, "port = %d\n", 0)
	fmt.Fprintf(&b, "binary_port = %d\n", 0)

	// Flat legacy-style keys kept for round-trip simplicity with our own
	// minimal parser (see LoadFromFile).
	fmt.Fprintf(&b, "role = %q\n", "standalone")
	fmt.Fprintf(&b, "db_path = %q\n", c.Stream.Path)
	fmt.Fprintf(&b, "log_level = %q\n", c.LogLevel)
	fmt.Fprintf(&b, "log_json = %t\n", c.LogJSON)
	return b.String()
}

// SaveToFile writes the configuration to path, creating parent directories
// as needed.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(c.ToTOML()), 0o644)
}

// String renders a short human-readable summary.
func (c *Config) String() string {
	return fmt.Sprintf("Config -> { Node: %+v, Role: node, Port: %s }", c.Node, c.Server.Address)
}

// Manager owns one Config and supports file/env loading, reload-with-
// callback, and a process-wide singleton via Global().
type Manager struct {
	mu       sync.RWMutex
	cfg      *Config
	onReload []func(*Config)
}

// NewManager returns a Manager seeded with DefaultConfig.
func NewManager() *Manager {
	return &Manager{cfg: DefaultConfig()}
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// LoadFromFile parses a TOML-flavored config file and merges it over the
// current defaults, recording the source path on ConfigFile.
func (m *Manager) LoadFromFile(path string) error {
	values, err := parseSimpleTOML(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	applyFlatValues(m.cfg, values)
	m.cfg.ConfigFile = path
	return nil
}

// LoadFromEnv overlays recognized environment variables onto the current
// configuration. Environment values take precedence over whatever was
// loaded from a file or the defaults.
func (m *Manager) LoadFromEnv() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v := os.Getenv(EnvNodeID); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			m.cfg.Node.ID = n
		}
	}
	if v := os.Getenv(EnvNodeName); v != "" {
		m.cfg.Node.Name = v
	}
	if v := os.Getenv(EnvNodeAddress); v != "" {
		m.cfg.Node.Address = v
	}
	if v := os.Getenv(EnvClusterSecret); v != "" {
		m.cfg.Cluster.Secret = v
	}
	if v := os.Getenv(EnvServerAddress); v != "" {
		m.cfg.Server.Address = v
	}
	if v := os.Getenv(EnvStreamPath); v != "" {
		m.cfg.Stream.Path = v
	}
	if v := os.Getenv(EnvRequiredAcknowledgements); v != "" {
		m.cfg.Cluster.RequiredAcknowledgements = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		m.cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			m.cfg.LogJSON = b
		}
	}
}

// Reload re-reads the file the Manager was last loaded from and invokes any
// registered reload callbacks.
func (m *Manager) Reload() error {
	m.mu.RLock()
	path := m.cfg.ConfigFile
	m.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("manager was not loaded from a file")
	}
	if err := m.LoadFromFile(path); err != nil {
		return err
	}

	m.mu.RLock()
	cfg := m.cfg
	callbacks := append([]func(*Config){}, m.onReload...)
	m.mu.RUnlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
	return nil
}

// OnReload registers a callback invoked after every successful Reload.
func (m *Manager) OnReload(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReload = append(m.onReload, fn)
}

var (
	globalOnce sync.Once
	globalMgr  *Manager
)

// Global returns the process-wide Manager singleton, creating it on first
// use. This is the one intentional piece of global state in streamnode,
// used only by the server/CLI entrypoints, never by the coordination
// kernel's internal packages.
func Global() *Manager {
	globalOnce.Do(func() {
		globalMgr = NewManager()
	})
	return globalMgr
}

// applyFlatValues overlays a flat key/value map (from parseSimpleTOML) onto
// cfg, recognizing both the sectioned keys (node.id, cluster.secret, ...)
// and the flat legacy-style keys our own ToTOML also emits for round-trip
// simplicity (port, role, db_path, log_level, log_json).
func applyFlatValues(cfg *Config, values map[string]string) {
	if v, ok := values["node.id"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Node.ID = n
		}
	}
	if v, ok := values["node.name"]; ok {
		cfg.Node.Name = v
	}
	if v, ok := values["node.address"]; ok {
		cfg.Node.Address = v
	}
	if v, ok := values["cluster.secret"]; ok {
		cfg.Cluster.Secret = v
	}
	if v, ok := values["cluster.heartbeat_interval_ms"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Cluster.HeartbeatIntervalMS = n
		}
	}
	if v, ok := values["cluster.reconnection_interval_ms"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Cluster.ReconnectionIntervalMS = n
		}
	}
	if v, ok := values["cluster.reconnection_retries"]; ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Cluster.ReconnectionRetries = uint32(n)
		}
	}
	if v, ok := values["cluster.election_timeout_range_from_ms"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Cluster.ElectionTimeoutFromMS = n
		}
	}
	if v, ok := values["cluster.election_timeout_range_to_ms"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Cluster.ElectionTimeoutToMS = n
		}
	}
	if v, ok := values["cluster.required_acknowledgements"]; ok {
		cfg.Cluster.RequiredAcknowledgements = v
	}
	if v, ok := values["stream.path"]; ok {
		cfg.Stream.Path = v
	}
	if v, ok := values["server.address"]; ok {
		cfg.Server.Address = v
	}
	if v, ok := values["compression.algorithm"]; ok {
		cfg.Compression.Algorithm = v
	}
	if v, ok := values["compression.min_size"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Compression.MinSize = n
		}
	}
	if v, ok := values["discovery.enabled"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Discovery.Enabled = b
		}
	}
	if v, ok := values["discovery.service_name"]; ok {
		cfg.Discovery.ServiceName = v
	}

	// Flat legacy keys (also accepted directly, e.g. hand-written configs
	// or our own ToTOML output).
	if v, ok := values["role"]; ok {
		_ = v // role is accepted for compatibility but does not map onto this domain's Config
	}
	if v, ok := values["db_path"]; ok {
		cfg.Stream.Path = v
	}
	if v, ok := values["port"]; ok {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil && n != 0 {
			host, _, splitErr := splitHostPort(cfg.Server.Address)
			if splitErr == nil {
				cfg.Server.Address = fmt.Sprintf("%s:%d", host, n)
			}
		}
	}
	if v, ok := values["binary_port"]; ok {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil && n != 0 {
			host, _, splitErr := splitHostPort(cfg.Node.Address)
			if splitErr == nil {
				cfg.Node.Address = fmt.Sprintf("%s:%d", host, n)
			}
		}
	}
	if v, ok := values["log_level"]; ok {
		cfg.LogLevel = v
	}
	if v, ok := values["log_json"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
	if v, ok := values["master_addr"]; ok {
		_ = v // accepted for compatibility; this domain has no master/slave replication mode
	}
}

func splitHostPort(addr string) (string, string, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, "", fmt.Errorf("no port in address %q", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}

// parseSimpleTOML reads a minimal TOML-flavored config file: `[section]`
// headers, `key = value` pairs (quoted strings, bare numbers/bools), and
// `#` comments. It is intentionally small — no third-party TOML library
// appears anywhere in the example corpus this repository was grounded on,
// so none is introduced here; see DESIGN.md.
func parseSimpleTOML(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	defer f.Close()

	values := make(map[string]string)
	section := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			section = strings.Trim(line, "[]")
			section = strings.TrimPrefix(section, "[")
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		val = strings.Trim(val, `"`)

		if section != "" && !strings.Contains(key, ".") {
			key = section + "." + key
		}
		values[key] = val
	}
	return values, scanner.Err()
}

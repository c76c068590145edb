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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Node.ID != 1 {
		t.Errorf("Expected default node id 1, got %d", cfg.Node.ID)
	}
	if cfg.Node.Address != "0.0.0.0:8201" {
		t.Errorf("Expected default node address '0.0.0.0:8201', got '%s'", cfg.Node.Address)
	}
	if cfg.Server.Address != "0.0.0.0:8101" {
		t.Errorf("Expected default server address '0.0.0.0:8101', got '%s'", cfg.Server.Address)
	}
	if cfg.Stream.Path != "local_data/streams" {
		t.Errorf("Expected default stream path 'local_data/streams', got '%s'", cfg.Stream.Path)
	}
	if cfg.Cluster.Secret != "secret123!" {
		t.Errorf("Expected default secret 'secret123!', got '%s'", cfg.Cluster.Secret)
	}
	if cfg.Cluster.RequiredAcknowledgements != "majority" {
		t.Errorf("Expected default required_acknowledgements 'majority', got '%s'", cfg.Cluster.RequiredAcknowledgements)
	}
	if cfg.Cluster.ElectionTimeoutFromMS != 100 || cfg.Cluster.ElectionTimeoutToMS != 300 {
		t.Errorf("Expected default election timeout range 100-300, got %d-%d",
			cfg.Cluster.ElectionTimeoutFromMS, cfg.Cluster.ElectionTimeoutToMS)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != false {
		t.Errorf("Expected default log_json false, got %v", cfg.LogJSON)
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"empty node address", func(c *Config) { c.Node.Address = "" }, true},
		{"empty server address", func(c *Config) { c.Server.Address = "" }, true},
		{"empty stream path", func(c *Config) { c.Stream.Path = "" }, true},
		{"empty secret", func(c *Config) { c.Cluster.Secret = "" }, true},
		{"inverted election timeout range", func(c *Config) {
			c.Cluster.ElectionTimeoutFromMS = 500
			c.Cluster.ElectionTimeoutToMS = 100
		}, true},
		{"invalid required_acknowledgements", func(c *Config) {
			c.Cluster.RequiredAcknowledgements = "everyone"
		}, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "streamnode_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `# Test configuration
[node]
id = 7
name = "node-7"
address = "10.0.0.7:8201"

[cluster]
secret = "test-secret"
heartbeat_interval_ms = 1500
required_acknowledgements = "leader"

[stream]
path = "/tmp/streams"

[server]
address = "10.0.0.7:8101"
`

	configPath := filepath.Join(tmpDir, "streamnode.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	cfg := mgr.Get()

	if cfg.Node.ID != 7 {
		t.Errorf("Expected node id 7, got %d", cfg.Node.ID)
	}
	if cfg.Node.Address != "10.0.0.7:8201" {
		t.Errorf("Expected node address '10.0.0.7:8201', got '%s'", cfg.Node.Address)
	}
	if cfg.Cluster.Secret != "test-secret" {
		t.Errorf("Expected secret 'test-secret', got '%s'", cfg.Cluster.Secret)
	}
	if cfg.Cluster.HeartbeatIntervalMS != 1500 {
		t.Errorf("Expected heartbeat_interval_ms 1500, got %d", cfg.Cluster.HeartbeatIntervalMS)
	}
	if cfg.Cluster.RequiredAcknowledgements != "leader" {
		t.Errorf("Expected required_acknowledgements 'leader', got '%s'", cfg.Cluster.RequiredAcknowledgements)
	}
	if cfg.Stream.Path != "/tmp/streams" {
		t.Errorf("Expected stream path '/tmp/streams', got '%s'", cfg.Stream.Path)
	}
	if cfg.ConfigFile != configPath {
		t.Errorf("Expected ConfigFile '%s', got '%s'", configPath, cfg.ConfigFile)
	}
}

func TestLoadFromEnv(t *testing.T) {
	origSecret := os.Getenv(EnvClusterSecret)
	origLogLevel := os.Getenv(EnvLogLevel)
	origLogJSON := os.Getenv(EnvLogJSON)

	defer func() {
		os.Setenv(EnvClusterSecret, origSecret)
		os.Setenv(EnvLogLevel, origLogLevel)
		os.Setenv(EnvLogJSON, origLogJSON)
	}()

	os.Setenv(EnvClusterSecret, "env-secret")
	os.Setenv(EnvLogLevel, "debug")
	os.Setenv(EnvLogJSON, "true")

	mgr := NewManager()
	mgr.LoadFromEnv()

	cfg := mgr.Get()

	if cfg.Cluster.Secret != "env-secret" {
		t.Errorf("Expected secret 'env-secret' from env, got '%s'", cfg.Cluster.Secret)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log_level 'debug' from env, got '%s'", cfg.LogLevel)
	}
	if cfg.LogJSON != true {
		t.Errorf("Expected log_json true from env, got %v", cfg.LogJSON)
	}
}

func TestConfigPrecedence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "streamnode_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `[cluster]
secret = "file-secret"
`
	configPath := filepath.Join(tmpDir, "streamnode.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	origSecret := os.Getenv(EnvClusterSecret)
	defer os.Setenv(EnvClusterSecret, origSecret)
	os.Setenv(EnvClusterSecret, "env-secret")

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	mgr.LoadFromEnv()

	cfg := mgr.Get()

	// Env var should override file value.
	if cfg.Cluster.Secret != "env-secret" {
		t.Errorf("Expected secret 'env-secret' (env override), got '%s'", cfg.Cluster.Secret)
	}
}

func TestToTOML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Node.ID = 3
	cfg.Cluster.Secret = "abc"

	toml := cfg.ToTOML()

	if !strings.Contains(toml, "id = 3") {
		t.Error("TOML output missing node id")
	}
	if !strings.Contains(toml, `secret = "abc"`) {
		t.Error("TOML output missing secret")
	}
	if !strings.Contains(toml, "[cluster]") {
		t.Error("TOML output missing [cluster] section")
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "streamnode_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := DefaultConfig()
	cfg.Node.ID = 42
	cfg.Node.Name = "node-42"

	configPath := filepath.Join(tmpDir, "subdir", "streamnode.conf")
	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	loaded := mgr.Get()
	if loaded.Node.ID != 42 {
		t.Errorf("Expected node id 42, got %d", loaded.Node.ID)
	}
	if loaded.Node.Name != "node-42" {
		t.Errorf("Expected node name 'node-42', got '%s'", loaded.Node.Name)
	}
}

func TestReload(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "streamnode_config_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `[cluster]
heartbeat_interval_ms = 1000
`
	configPath := filepath.Join(tmpDir, "streamnode.conf")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.LoadFromFile(configPath); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Cluster.HeartbeatIntervalMS != 1000 {
		t.Errorf("Expected initial heartbeat_interval_ms 1000, got %d", cfg.Cluster.HeartbeatIntervalMS)
	}

	reloadCalled := false
	mgr.OnReload(func(c *Config) {
		reloadCalled = true
	})

	newContent := `[cluster]
heartbeat_interval_ms = 2000
`
	if err := os.WriteFile(configPath, []byte(newContent), 0644); err != nil {
		t.Fatalf("Failed to update config file: %v", err)
	}

	if err := mgr.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	cfg = mgr.Get()
	if cfg.Cluster.HeartbeatIntervalMS != 2000 {
		t.Errorf("Expected reloaded heartbeat_interval_ms 2000, got %d", cfg.Cluster.HeartbeatIntervalMS)
	}
	if !reloadCalled {
		t.Error("Reload callback was not called")
	}
}

func TestGlobalManager(t *testing.T) {
	mgr := Global()
	if mgr == nil {
		t.Fatal("Global() returned nil")
	}

	mgr2 := Global()
	if mgr != mgr2 {
		t.Error("Global() returned different instances")
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	str := cfg.String()

	if !strings.Contains(str, "Node:") {
		t.Error("String() missing Node")
	}
}

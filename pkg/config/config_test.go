// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
ledger_a:
  type: "fabric"
  endpoint: "http://localhost:7050"
  channel: "verification-channel"
ledger_b:
  type: "ethereum"
  timeout: "30s"
eventsync:
  queue_size: 128
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.LedgerA.Type != "fabric" || cfg.LedgerA.Channel != "verification-channel" {
		t.Errorf("LedgerA: got %+v", cfg.LedgerA)
	}
	if cfg.LedgerB.Timeout != "30s" {
		t.Errorf("LedgerB.Timeout: got %q", cfg.LedgerB.Timeout)
	}
	if cfg.EventSync.QueueSize != 128 {
		t.Errorf("EventSync.QueueSize: got %d", cfg.EventSync.QueueSize)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q", cfg.Log.Level)
	}
}

func TestLoadConfig_EnvExpansion(t *testing.T) {
	dir := t.TempDir()
	yaml := `
records:
  type: "postgres"
  dsn: "${DOCVERIFY_TEST_DSN}"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("DOCVERIFY_TEST_DSN", "postgres://u:p@db:5432/docverify")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Records.DSN != "postgres://u:p@db:5432/docverify" {
		t.Errorf("DSN not expanded: %q", cfg.Records.DSN)
	}
}

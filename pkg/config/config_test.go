package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/backendex/backendex/pkg/export"
)

const validConfig = `
controller:
  base_url: https://acme.example.com:8090
  account: acme
  username: reporter
  password: hunter2
export:
  application_names: "^prod-"
output:
  path: /tmp/backends.csv
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backendex.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Controller.Account != "acme" {
		t.Errorf("account = %q", cfg.Controller.Account)
	}

	// Defaults applied
	if cfg.Export.BackendTypes != ".*" {
		t.Errorf("backend_types default = %q, want .*", cfg.Export.BackendTypes)
	}
	if cfg.Output.Format != "csv" {
		t.Errorf("format default = %q, want csv", cfg.Output.Format)
	}
	if time.Duration(cfg.Controller.Timeout) != 60*time.Second {
		t.Errorf("timeout default = %v, want 60s", time.Duration(cfg.Controller.Timeout))
	}
	if cfg.Telemetry.Logging.Level != "info" {
		t.Errorf("log level default = %q, want info", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadParsesDuration(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
controller:
  base_url: https://acme.example.com:8090
  account: acme
  username: reporter
  password: hunter2
  timeout: 30s
export:
  application_names: ".*"
output:
  path: /tmp/backends.csv
`))
	if err != nil {
		t.Fatal(err)
	}
	if time.Duration(cfg.Controller.Timeout) != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", time.Duration(cfg.Controller.Timeout))
	}
}

func TestLoadRejectsInvalidConfigs(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{
			name: "unknown section",
			config: validConfig + `
exprot:
  application_names: ".*"
`,
		},
		{
			name: "misspelled field",
			config: `
controller:
  base_url: https://acme.example.com:8090
  acount: acme
  username: reporter
  password: hunter2
export:
  application_names: ".*"
output:
  path: /tmp/backends.csv
`,
		},
		{
			name: "missing credentials",
			config: `
controller:
  base_url: https://acme.example.com:8090
  account: acme
  username: reporter
export:
  application_names: ".*"
output:
  path: /tmp/backends.csv
`,
		},
		{
			name: "invalid application pattern",
			config: `
controller:
  base_url: https://acme.example.com:8090
  account: acme
  username: reporter
  password: hunter2
export:
  application_names: "("
output:
  path: /tmp/backends.csv
`,
		},
		{
			name: "invalid output format",
			config: `
controller:
  base_url: https://acme.example.com:8090
  account: acme
  username: reporter
  password: hunter2
export:
  application_names: ".*"
output:
  format: parquet
  path: /tmp/backends.csv
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.config))
			if err == nil {
				t.Fatal("expected error")
			}
			if !export.IsConfig(err) {
				t.Errorf("expected config error class, got %v", err)
			}
		})
	}
}

func TestLoadSecretOnlyIsValid(t *testing.T) {
	_, err := Load(writeConfig(t, `
controller:
  base_url: https://acme.example.com:8090
  account: acme
  username: reporter
  secret: s3cret
export:
  application_names: ".*"
output:
  path: /tmp/backends.csv
`))
	if err != nil {
		t.Fatalf("secret without password must be valid: %v", err)
	}
}

func TestLoadSFTPDeliveryValidation(t *testing.T) {
	_, err := Load(writeConfig(t, validConfig+`
delivery:
  sftp:
    host: reports.example.com
    username: drop
    remote_path: /in/
`))
	if err == nil {
		t.Fatal("sftp without credentials must be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !export.IsConfig(err) {
		t.Errorf("expected config error, got %v", err)
	}
}

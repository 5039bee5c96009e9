package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ryandielhenn/izzy/pkg/heartbeat"
	"github.com/ryandielhenn/izzy/pkg/status"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "izzy.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Unit.Name != "izzy" || cfg.Net.Listen != ":9001" || cfg.Net.ReplyBind != ":9000" {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
	if cfg.Tag() != heartbeat.DefaultTag {
		t.Fatalf("tag = %s", cfg.Tag())
	}
	if cfg.InitialStatus() != status.Available {
		t.Fatalf("initial status = %s", cfg.InitialStatus())
	}
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
unit:
  name: izzy-2
  id: 6f1c2a0e-8d7b-4a55-9b1e-2c3d4e5f6a7b
  initial_status: moving
protocol:
  tag: izzymessage
net:
  listen: ":9101"
  reply_port: 9000
  reply_bind: "127.0.0.1:9100"
  send_timeout_ms: 250
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Unit.Name != "izzy-2" || cfg.Net.Listen != ":9101" || cfg.Net.ReplyPort != 9000 || cfg.Net.ReplyBind != "127.0.0.1:9100" {
		t.Fatalf("file values not applied: %#v", cfg)
	}
	if cfg.UnitID().String() != "6f1c2a0e-8d7b-4a55-9b1e-2c3d4e5f6a7b" {
		t.Fatalf("unit id = %s", cfg.UnitID())
	}
	if cfg.Tag() != heartbeat.AltTag {
		t.Fatalf("tag = %s", cfg.Tag())
	}
	if cfg.InitialStatus() != status.Moving {
		t.Fatalf("initial status = %s", cfg.InitialStatus())
	}
	if cfg.SendTimeout().Milliseconds() != 250 {
		t.Fatalf("send timeout = %s", cfg.SendTimeout())
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("IZZY_NET_LISTEN", ":9555")
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Net.Listen != ":9555" {
		t.Fatalf("listen = %q", cfg.Net.Listen)
	}
}

func TestValidate(t *testing.T) {
	bad := map[string]string{
		"log level": "log:\n  level: loud\n",
		"tag":       "protocol:\n  tag: nope\n",
		"unit id":   "unit:\n  id: not-a-uuid\n",
		"status":    "unit:\n  initial_status: flying\n",
		"port":      "net:\n  reply_port: 70000\n",
	}
	for name, body := range bad {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

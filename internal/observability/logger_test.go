package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ryandielhenn/izzy/internal/config"
)

func TestSetupLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "izzy.log")
	for _, rotate := range []bool{false, true} {
		_ = os.Remove(path)
		logger, err := SetupLogger(config.LogConfig{
			Level:    "debug",
			Format:   "json",
			Outputs:  []string{path},
			Rotation: config.RotationConfig{Enable: rotate, MaxSizeMB: 1},
		})
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
		logger.Debug("frame dropped", zap.String("reason", "framing"))
		_ = logger.Sync()

		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log (rotate=%v): %v", rotate, err)
		}
		if !strings.Contains(string(b), `"reason":"framing"`) {
			t.Fatalf("log missing field (rotate=%v): %s", rotate, b)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "debug", "WARN": "warn", "warning": "warn", "error": "error", "": "info", "bogus": "info"}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

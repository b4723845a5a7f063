package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/harvest-engine/internal/gpio"
	"github.com/sweeney/harvest-engine/internal/logic"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harvest.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestDefaultEngineMatchesLogic(t *testing.T) {
	lc, err := DefaultConfig().Engine.Logic()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc != logic.DefaultConfig() {
		t.Errorf("got %+v, want %+v", lc, logic.DefaultConfig())
	}
}

func TestDefaultPinsMatchGPIO(t *testing.T) {
	pins, err := DefaultConfig().Daemon.Pins.ToPins()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pins != gpio.DefaultPins() {
		t.Errorf("got %+v, want %+v", pins, gpio.DefaultPins())
	}
}

func TestLoadNoArgs(t *testing.T) {
	cfg, err := Load(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Daemon.Poll != 100*time.Millisecond {
		t.Errorf("poll: got %v", cfg.Daemon.Poll)
	}
	if cfg.Daemon.Backend != BackendGPIOCDev {
		t.Errorf("backend: got %s", cfg.Daemon.Backend)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load(newFlagSet(), []string{
		"-poll", "10ms",
		"-broker", "tcp://localhost:1883",
		"-settle-steps", "8",
		"-http", "",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Daemon.Poll != 10*time.Millisecond {
		t.Errorf("poll: got %v", cfg.Daemon.Poll)
	}
	if cfg.Daemon.Broker != "tcp://localhost:1883" {
		t.Errorf("broker: got %s", cfg.Daemon.Broker)
	}
	if cfg.Engine.SettleSteps != 8 {
		t.Errorf("settle steps: got %d", cfg.Engine.SettleSteps)
	}
	if cfg.Daemon.HTTPAddr != "" {
		t.Errorf("http: got %q, want empty", cfg.Daemon.HTTPAddr)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
engine:
  baseline_samples: 8
  deviation:
    low: 5
    moderate: 20
    high: 40
  classifier:
    near_class_max: mid
daemon:
  poll: 20ms
  heartbeat: 1m
  backend: scenario
  scenario: field.yaml
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.BaselineSamples != 8 {
		t.Errorf("baseline samples: got %d", cfg.Engine.BaselineSamples)
	}
	if cfg.Engine.Deviation != (DeviationConfig{Low: 5, Moderate: 20, High: 40}) {
		t.Errorf("deviation: got %+v", cfg.Engine.Deviation)
	}
	if cfg.Daemon.Poll != 20*time.Millisecond {
		t.Errorf("poll: got %v", cfg.Daemon.Poll)
	}
	if cfg.Daemon.Heartbeat != time.Minute {
		t.Errorf("heartbeat: got %v", cfg.Daemon.Heartbeat)
	}
	// Keys absent from the file keep their defaults
	if cfg.Engine.SettleSteps != 5 {
		t.Errorf("settle steps: got %d, want default 5", cfg.Engine.SettleSteps)
	}
	if cfg.Daemon.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("broker: got %s", cfg.Daemon.Broker)
	}

	lc, err := cfg.Engine.Logic()
	if err != nil {
		t.Fatalf("logic config: %v", err)
	}
	if lc.Classifier.NearClassMax != logic.DistanceMid {
		t.Errorf("near class max: got %v", lc.Classifier.NearClassMax)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, `
daemon:
  poll: 20ms
  debounce: 1s
  broker: tcp://file:1883
`)
	cfg, err := Load(newFlagSet(), []string{"-config", path, "-broker", "tcp://flag:1883"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Daemon.Broker != "tcp://flag:1883" {
		t.Errorf("broker: got %s, want flag value", cfg.Daemon.Broker)
	}
	if cfg.Daemon.Poll != 20*time.Millisecond {
		t.Errorf("poll: got %v, want file value", cfg.Daemon.Poll)
	}
	if cfg.Daemon.Debounce != time.Second {
		t.Errorf("debounce: got %v, want file value", cfg.Daemon.Debounce)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(newFlagSet(), []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, "engine: [not, a, map]\n")
	if _, err := Load(newFlagSet(), []string{"-config", path}); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadCallerFlags(t *testing.T) {
	fs := newFlagSet()
	printState := fs.Bool("print-state", false, "")
	if _, err := Load(fs, []string{"-print-state"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !*printState {
		t.Error("caller flag should be parsed")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero poll", func(c *Config) { c.Daemon.Poll = 0 }},
		{"negative debounce", func(c *Config) { c.Daemon.Debounce = -time.Second }},
		{"negative heartbeat", func(c *Config) { c.Daemon.Heartbeat = -time.Second }},
		{"empty outbox", func(c *Config) { c.Daemon.Outbox = 0 }},
		{"unknown backend", func(c *Config) { c.Daemon.Backend = "spi" }},
		{"scenario without file", func(c *Config) { c.Daemon.Backend = BackendScenario }},
		{"short data bus", func(c *Config) { c.Daemon.Pins.Data = []int{1, 2, 3} }},
		{"one channel line", func(c *Config) { c.Daemon.Pins.Channel = []int{20} }},
		{"duplicate line", func(c *Config) { c.Daemon.Pins.Echo = c.Daemon.Pins.Mode }},
		{"zero baseline samples", func(c *Config) { c.Engine.BaselineSamples = 0 }},
		{"bands out of order", func(c *Config) { c.Engine.Deviation.Moderate = 5 }},
		{"unknown class", func(c *Config) { c.Engine.Classifier.NearClassMax = "adjacent" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDaemonMQTTOptions(t *testing.T) {
	cfg, err := Load(newFlagSet(), []string{
		"-broker", "tcp://broker:1883",
		"-client-id", "field-7",
		"-mqtt-user", "farm",
		"-mqtt-pass", "secret",
		"-outbox", "32",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o := cfg.Daemon.MQTT()
	if o.Broker != "tcp://broker:1883" || o.ClientID != "field-7" {
		t.Errorf("broker/client: got %+v", o)
	}
	if o.Username != "farm" || o.Password != "secret" {
		t.Errorf("credentials: got %q/%q", o.Username, o.Password)
	}
	if o.OutboxSize != 32 {
		t.Errorf("outbox: got %d, want 32", o.OutboxSize)
	}
}

func TestValidateScenarioSkipsPins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Daemon.Backend = BackendScenario
	cfg.Daemon.Scenario = "field.yaml"
	cfg.Daemon.Pins.Data = nil
	if err := cfg.Validate(); err != nil {
		t.Errorf("scenario backend should not need pins: %v", err)
	}
}

func TestParseClass(t *testing.T) {
	tests := []struct {
		in   string
		want logic.DistanceClass
	}{
		{"near", logic.DistanceNear},
		{"MID", logic.DistanceMid},
		{" far ", logic.DistanceFar},
		{"out_of_range", logic.DistanceOutOfRange},
	}
	for _, tt := range tests {
		got, err := parseClass(tt.in)
		if err != nil {
			t.Fatalf("parseClass(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseClass(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if parsed, _ := parseClass(classKey(got)); parsed != got {
			t.Errorf("classKey(%v) does not parse back", got)
		}
	}
}

// Package config loads daemon and engine settings from an optional YAML file
// and command-line flags. Flags override values present in the file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/harvest-engine/internal/gpio"
	"github.com/sweeney/harvest-engine/internal/logic"
	"github.com/sweeney/harvest-engine/internal/mqtt"
)

// MQTT returns the publisher options.
func (d DaemonConfig) MQTT() mqtt.Options {
	return mqtt.Options{
		Broker:     d.Broker,
		ClientID:   d.ClientID,
		Username:   d.Username,
		Password:   d.Password,
		OutboxSize: d.Outbox,
	}
}

// Bus backends.
const (
	BackendGPIOCDev = "gpiocdev"
	BackendPeriph   = "periph"
	BackendScenario = "scenario"
)

type DeviationConfig struct {
	Low      int `yaml:"low"`
	Moderate int `yaml:"moderate"`
	High     int `yaml:"high"`
}

type RangerConfig struct {
	NearCycles uint32 `yaml:"near_cycles"`
	MidCycles  uint32 `yaml:"mid_cycles"`
	FarCycles  uint32 `yaml:"far_cycles"`
}

type ClassifierConfig struct {
	GreenMin     uint8  `yaml:"green_min"`
	RowsMin      uint16 `yaml:"rows_min"`
	NearClassMax string `yaml:"near_class_max"` // near|mid|far|out_of_range
}

// EngineConfig holds the decision engine's tunables.
type EngineConfig struct {
	SettleSteps     int              `yaml:"settle_steps"`
	BaselineSamples int              `yaml:"baseline_samples"`
	IdleClearSteps  int              `yaml:"idle_clear_steps"`
	Deviation       DeviationConfig  `yaml:"deviation"`
	Ranger          RangerConfig     `yaml:"ranger"`
	Classifier      ClassifierConfig `yaml:"classifier"`
	ClockHz         uint32           `yaml:"clock_hz"`
}

// PinsConfig maps bus signals to BCM line numbers. -1 leaves reset or enable
// unwired.
type PinsConfig struct {
	Data      []int `yaml:"data"`
	Mode      int   `yaml:"mode"`
	Channel   []int `yaml:"channel"`
	FrameSync int   `yaml:"frame_sync"`
	RowSync   int   `yaml:"row_sync"`
	Echo      int   `yaml:"echo"`
	ResetN    int   `yaml:"reset_n"`
	Enable    int   `yaml:"enable"`
}

// DaemonConfig holds the settings of the hosting process.
type DaemonConfig struct {
	Poll      time.Duration `yaml:"poll"`
	Debounce  time.Duration `yaml:"debounce"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	Outbox    int           `yaml:"outbox"` // messages held while the broker is unreachable
	HTTPAddr  string        `yaml:"http_addr"`
	WSBroker  string        `yaml:"ws_broker"`
	Backend   string        `yaml:"backend"`
	Chip      string        `yaml:"chip"`
	Scenario  string        `yaml:"scenario"`
	Pins      PinsConfig    `yaml:"pins"`
}

// Config is the complete configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Daemon DaemonConfig `yaml:"daemon"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	lc := logic.DefaultConfig()
	p := gpio.DefaultPins()
	return Config{
		Engine: EngineConfig{
			SettleSteps:     lc.SettleSteps,
			BaselineSamples: lc.BaselineSamples,
			IdleClearSteps:  lc.IdleClearSteps,
			Deviation: DeviationConfig{
				Low:      lc.Deviation.Low,
				Moderate: lc.Deviation.Moderate,
				High:     lc.Deviation.High,
			},
			Ranger: RangerConfig{
				NearCycles: lc.Ranger.NearCycles,
				MidCycles:  lc.Ranger.MidCycles,
				FarCycles:  lc.Ranger.FarCycles,
			},
			Classifier: ClassifierConfig{
				GreenMin:     lc.Classifier.GreenMin,
				RowsMin:      lc.Classifier.RowsMin,
				NearClassMax: classKey(lc.Classifier.NearClassMax),
			},
			ClockHz: lc.ClockHz,
		},
		Daemon: DaemonConfig{
			Poll:      100 * time.Millisecond,
			Debounce:  250 * time.Millisecond,
			Heartbeat: 15 * time.Minute,
			Broker:    "tcp://192.168.1.200:1883",
			ClientID:  "harvest-engine",
			Outbox:    mqtt.DefaultOutboxSize,
			HTTPAddr:  ":80",
			WSBroker:  "=broker",
			Backend:   BackendGPIOCDev,
			Chip:      "gpiochip0",
			Pins: PinsConfig{
				Data:      append([]int(nil), p.Data[:]...),
				Mode:      p.Mode,
				Channel:   append([]int(nil), p.Channel[:]...),
				FrameSync: p.FrameSync,
				RowSync:   p.RowSync,
				Echo:      p.Echo,
				ResetN:    p.ResetN,
				Enable:    p.Enable,
			},
		},
	}
}

// LoadFile reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load registers the daemon flags on fs, parses args, and returns the merged
// configuration: defaults, then the -config file, then explicitly set flags.
// Callers may register their own flags on fs before calling Load.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := DefaultConfig()

	path := fs.String("config", "", "Path to YAML config file")
	fs.DurationVar(&cfg.Daemon.Poll, "poll", cfg.Daemon.Poll, "Bus polling interval (one engine step per poll)")
	fs.DurationVar(&cfg.Daemon.Debounce, "debounce", cfg.Daemon.Debounce, "Debounce duration for published transitions")
	fs.DurationVar(&cfg.Daemon.Heartbeat, "heartbeat", cfg.Daemon.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&cfg.Daemon.Broker, "broker", cfg.Daemon.Broker, "MQTT broker address")
	fs.StringVar(&cfg.Daemon.ClientID, "client-id", cfg.Daemon.ClientID, "MQTT client id")
	fs.StringVar(&cfg.Daemon.Username, "mqtt-user", cfg.Daemon.Username, "MQTT username")
	fs.StringVar(&cfg.Daemon.Password, "mqtt-pass", cfg.Daemon.Password, "MQTT password")
	fs.IntVar(&cfg.Daemon.Outbox, "outbox", cfg.Daemon.Outbox, "Messages held while the broker is unreachable")
	fs.StringVar(&cfg.Daemon.HTTPAddr, "http", cfg.Daemon.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&cfg.Daemon.WSBroker, "ws-broker", cfg.Daemon.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	fs.StringVar(&cfg.Daemon.Backend, "backend", cfg.Daemon.Backend, "Bus backend: gpiocdev|periph|scenario")
	fs.StringVar(&cfg.Daemon.Chip, "chip", cfg.Daemon.Chip, "GPIO chip for the gpiocdev backend")
	fs.StringVar(&cfg.Daemon.Scenario, "scenario", cfg.Daemon.Scenario, "Scenario file for the scenario backend")
	fs.IntVar(&cfg.Engine.SettleSteps, "settle-steps", cfg.Engine.SettleSteps, "Steps after reset before ready")
	fs.IntVar(&cfg.Engine.BaselineSamples, "baseline-samples", cfg.Engine.BaselineSamples, "Samples averaged into a channel baseline")
	fs.IntVar(&cfg.Engine.IdleClearSteps, "idle-clear-steps", cfg.Engine.IdleClearSteps, "Unselected steps after which a baseline is relearned (0 disables)")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		// Remember what was given on the command line, load the file over
		// the defaults, then apply the flags again.
		set := map[string]string{}
		fs.Visit(func(f *flag.Flag) {
			if f.Name != "config" {
				set[f.Name] = f.Value.String()
			}
		})

		// Flags are bound to cfg's fields, so the file is copied in place.
		loaded, err := LoadFile(*path)
		if err != nil {
			return loaded, err
		}
		cfg = loaded
		for name, v := range set {
			if err := fs.Set(name, v); err != nil {
				return cfg, fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the daemon settings and the engine tunables.
func (c Config) Validate() error {
	if c.Daemon.Poll <= 0 {
		return errors.New("poll must be > 0")
	}
	if c.Daemon.Debounce < 0 {
		return errors.New("debounce must be >= 0")
	}
	if c.Daemon.Heartbeat < 0 {
		return errors.New("heartbeat must be >= 0")
	}
	if c.Daemon.Outbox < 1 {
		return errors.New("outbox must be >= 1")
	}
	switch c.Daemon.Backend {
	case BackendGPIOCDev, BackendPeriph:
		if _, err := c.Daemon.Pins.ToPins(); err != nil {
			return fmt.Errorf("pins: %w", err)
		}
	case BackendScenario:
		if c.Daemon.Scenario == "" {
			return errors.New("scenario backend needs a scenario file")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Daemon.Backend)
	}
	if _, err := c.Engine.Logic(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Logic converts the engine section into a validated logic.Config.
func (e EngineConfig) Logic() (logic.Config, error) {
	class, err := parseClass(e.Classifier.NearClassMax)
	if err != nil {
		return logic.Config{}, err
	}
	lc := logic.Config{
		SettleSteps:     e.SettleSteps,
		BaselineSamples: e.BaselineSamples,
		IdleClearSteps:  e.IdleClearSteps,
		Deviation: logic.DeviationBands{
			Low:      e.Deviation.Low,
			Moderate: e.Deviation.Moderate,
			High:     e.Deviation.High,
		},
		Ranger: logic.RangerThresholds{
			NearCycles: e.Ranger.NearCycles,
			MidCycles:  e.Ranger.MidCycles,
			FarCycles:  e.Ranger.FarCycles,
		},
		Classifier: logic.ClassifierThresholds{
			GreenMin:     e.Classifier.GreenMin,
			RowsMin:      e.Classifier.RowsMin,
			NearClassMax: class,
		},
		ClockHz: e.ClockHz,
	}
	if err := lc.Validate(); err != nil {
		return logic.Config{}, err
	}
	return lc, nil
}

// ToPins converts the pin section into a validated gpio.Pins.
func (p PinsConfig) ToPins() (gpio.Pins, error) {
	var pins gpio.Pins
	if len(p.Data) != len(pins.Data) {
		return pins, fmt.Errorf("data: want %d lines, got %d", len(pins.Data), len(p.Data))
	}
	if len(p.Channel) != len(pins.Channel) {
		return pins, fmt.Errorf("channel: want %d lines, got %d", len(pins.Channel), len(p.Channel))
	}
	copy(pins.Data[:], p.Data)
	copy(pins.Channel[:], p.Channel)
	pins.Mode = p.Mode
	pins.FrameSync = p.FrameSync
	pins.RowSync = p.RowSync
	pins.Echo = p.Echo
	pins.ResetN = p.ResetN
	pins.Enable = p.Enable
	if err := pins.Validate(); err != nil {
		return pins, err
	}
	return pins, nil
}

var classKeys = map[string]logic.DistanceClass{
	"near":         logic.DistanceNear,
	"mid":          logic.DistanceMid,
	"far":          logic.DistanceFar,
	"out_of_range": logic.DistanceOutOfRange,
}

func parseClass(s string) (logic.DistanceClass, error) {
	c, ok := classKeys[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("near_class_max: unknown distance class %q", s)
	}
	return c, nil
}

func classKey(c logic.DistanceClass) string {
	return strings.ToLower(c.String())
}

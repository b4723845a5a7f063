// Command harvest-engine samples the field unit's input bus, steps the
// decision engine once per poll, and publishes debounced status transitions
// to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/harvest-engine/internal/config"
	"github.com/sweeney/harvest-engine/internal/gpio"
	"github.com/sweeney/harvest-engine/internal/logic"
	"github.com/sweeney/harvest-engine/internal/mqtt"
	"github.com/sweeney/harvest-engine/internal/status"
	"github.com/sweeney/harvest-engine/internal/stimulus"
	"github.com/sweeney/harvest-engine/internal/web"
)

func main() {
	printState := flag.Bool("print-state", false, "Print the current bus inputs and exit")

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ws := resolveWSBroker(cfg.Daemon.WSBroker, cfg.Daemon.Broker)
	if err := run(cfg, *printState, ws); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool, wsBroker string) error {
	d := cfg.Daemon

	lc, err := cfg.Engine.Logic()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	reader, err := openReader(d)
	if err != nil {
		return fmt.Errorf("init %s bus: %w", d.Backend, err)
	}
	defer reader.Close()

	// Print state mode
	if printState {
		in, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read bus: %w", err)
		}
		fmt.Println(formatInputs(in))
		return nil
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(d.MQTT())
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:          d.Poll.Milliseconds(),
		DebounceMs:      d.Debounce.Milliseconds(),
		HeartbeatMs:     d.Heartbeat.Milliseconds(),
		Broker:          d.Broker,
		HTTPPort:        d.HTTPAddr,
		WSBroker:        wsBroker,
		Backend:         d.Backend,
		Scenario:        scenarioPath(d),
		SettleSteps:     lc.SettleSteps,
		BaselineSamples: lc.BaselineSamples,
		ClockHz:         lc.ClockHz,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	refreshMQTT(tracker, publisher)

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if d.HTTPAddr != "" {
		srv := web.New(d.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", d.HTTPAddr)
	}

	log.Printf("started: backend=%s poll=%v debounce=%v broker=%s heartbeat=%v settle=%d",
		d.Backend, d.Poll, d.Debounce, d.Broker, d.Heartbeat, lc.SettleSteps)

	ticker := time.NewTicker(d.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(reader, logic.NewEngine(lc), publisher, publisher, tracker, d.Debounce, d.Heartbeat, time.Now, ticker.C, sigCh)
}

// openReader returns the bus reader for the configured backend.
func openReader(d config.DaemonConfig) (gpio.Reader, error) {
	switch d.Backend {
	case config.BackendScenario:
		r, err := stimulus.Open(d.Scenario)
		if err != nil {
			return nil, err
		}
		log.Printf("stimulus: playing %q (%d steps)", r.Name(), r.Len())
		return r, nil
	case config.BackendPeriph:
		pins, err := d.Pins.ToPins()
		if err != nil {
			return nil, err
		}
		return gpio.NewPeriphReader(pins)
	default:
		pins, err := d.Pins.ToPins()
		if err != nil {
			return nil, err
		}
		return gpio.NewRealReader(d.Chip, pins)
	}
}

func scenarioPath(d config.DaemonConfig) string {
	if d.Backend != config.BackendScenario {
		return ""
	}
	return d.Scenario
}

// finisher is implemented by readers that can run out of input.
type finisher interface {
	Done() bool
}

func runLoop(reader gpio.Reader, engine *logic.Engine, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, debounce, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	monitor := logic.NewMonitor(debounce, startTime)
	fin, _ := reader.(finisher)
	finished := false

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refreshMQTT(tracker, mqttStatus)
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			in, err := reader.Read()
			if err != nil {
				log.Printf("bus read error: %v", err)
				continue
			}

			word := engine.Step(in)
			events := monitor.Process(logic.MonitorInput{Word: word, Time: t})

			for _, event := range events {
				log.Printf("event: %s (alert=%s prediction=%s mode=%s word=0x%02X)",
					event.Type, event.Alert, event.Prediction, event.Mode, event.Word.Byte())
				if err := publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			if fin != nil && !finished && fin.Done() {
				finished = true
				log.Printf("stimulus: scenario finished, holding last bus state")
			}

			if !monitor.IsBaselined() {
				// Still waiting for baseline
				if tracker != nil {
					tracker.Update(engine.Snapshot(), monitorState(monitor))
				}
				continue
			}

			// Check for heartbeat
			if hbData := monitor.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v alert_on=%d alert_off=%d harvest_ready=%d harvest_cleared=%d",
					hbData.Uptime, hbData.Counts.AlertOn, hbData.Counts.AlertOff, hbData.Counts.HarvestReady, hbData.Counts.HarvestCleared)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					refreshMQTT(tracker, mqttStatus)
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.Update(engine.Snapshot(), monitorState(monitor))
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			if tracker != nil {
				tracker.Update(engine.Snapshot(), monitorState(monitor))
				refreshMQTT(tracker, mqttStatus)
			}
		}
	}
}

func monitorState(m *logic.Monitor) status.MonitorState {
	alert, prediction, mode := m.CurrentState()
	return status.MonitorState{
		Alert:      alert,
		Prediction: prediction,
		Mode:       mode,
		Baselined:  m.IsBaselined(),
		Counts:     m.EventCountsSnapshot(),
	}
}

// refreshMQTT copies the connection and outbox state into the tracker.
func refreshMQTT(tracker *status.Tracker, conn mqtt.ConnectionStatus) {
	if conn == nil {
		return
	}
	st := status.MQTTState{Connected: conn.IsConnected()}
	if ob, ok := conn.(mqtt.OutboxStatus); ok {
		st.Pending, st.Dropped = ob.Held()
	}
	tracker.SetMQTT(st)
}

// formatInputs renders one bus sample for -print-state.
func formatInputs(in logic.Inputs) string {
	return fmt.Sprintf("data=0x%02X ctrl=0x%02X mode=%s channel=%d (%s) vsync=%s href=%s echo=%s reset_n=%s enable=%s",
		in.Data, in.ControlByte(), in.Mode, in.Channel&0x03, logic.ChannelName(in.Channel),
		levelString(in.FrameSync), levelString(in.RowSync), levelString(in.Echo),
		levelString(in.ResetN), levelString(in.Enable))
}

func levelString(on bool) string {
	if on {
		return "HIGH"
	}
	return "LOW"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}

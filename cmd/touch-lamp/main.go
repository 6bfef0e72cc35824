// Command touch-lamp senses a capacitive touch plate and toggles a lamp,
// publishing lamp changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/touch-lamp/internal/config"
	"github.com/sweeney/touch-lamp/internal/diag"
	"github.com/sweeney/touch-lamp/internal/gpio"
	"github.com/sweeney/touch-lamp/internal/logic"
	"github.com/sweeney/touch-lamp/internal/mqtt"
	"github.com/sweeney/touch-lamp/internal/power"
	"github.com/sweeney/touch-lamp/internal/status"
	"github.com/sweeney/touch-lamp/internal/web"
)

type options struct {
	configPath  string
	broker      *string
	httpAddr    *string
	serialPort  *string
	diagLog     bool
	measure     int
	writeConfig string
}

func main() {
	var opts options
	var broker, httpAddr, serialPort string

	flag.StringVar(&opts.configPath, "config", "/etc/touch-lamp.yaml", "YAML config file (missing file = defaults)")
	flag.StringVar(&broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&httpAddr, "http", "", "HTTP status address (overrides config)")
	flag.StringVar(&serialPort, "serial", "", "Serial port for diagnostic lines (overrides config)")
	flag.BoolVar(&opts.diagLog, "diag", false, "Log one diagnostic line per cycle")
	flag.IntVar(&opts.measure, "measure", 0, "Print N raw samples and exit")
	flag.StringVar(&opts.writeConfig, "write-config", "", "Write the effective config to this path and exit")

	flag.Parse()

	// Only flags given on the command line override the file, so an explicit
	// empty value can disable a surface.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "broker":
			opts.broker = &broker
		case "http":
			opts.httpAddr = &httpAddr
		case "serial":
			opts.serialPort = &serialPort
		}
	})

	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.broker != nil {
		cfg.MQTT.Broker = *opts.broker
	}
	if opts.httpAddr != nil {
		cfg.HTTP.Addr = *opts.httpAddr
	}
	if opts.serialPort != nil {
		cfg.Serial.Port = *opts.serialPort
	}
	return cfg, nil
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	if opts.writeConfig != "" {
		if err := cfg.Save(opts.writeConfig); err != nil {
			return err
		}
		log.Printf("wrote config to %s", opts.writeConfig)
		return nil
	}

	intervals := cfg.Intervals()
	params := cfg.Params()

	// Initialize GPIO
	sleeper := power.TimerSleeper{Intervals: intervals}
	sampler, err := gpio.NewRealSampler(cfg.GPIO.Chip, []int{cfg.GPIO.SensePin}, sleeper)
	if err != nil {
		return fmt.Errorf("init sampler: %w", err)
	}
	defer sampler.Close()

	// Measure mode
	if opts.measure > 0 {
		waker := power.NewTickerWaker(intervals.Tick())
		defer waker.Stop()
		return printSamples(context.Background(), os.Stdout, sampler, cfg.GPIO.SensePin, waker, opts.measure)
	}

	lamp, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.LampPin, cfg.GPIO.LampActiveLow)
	if err != nil {
		return fmt.Errorf("init lamp output: %w", err)
	}
	defer lamp.Close()

	var boot gpio.Output
	if cfg.GPIO.BootPin >= 0 {
		out, err := gpio.NewRealOutput(cfg.GPIO.Chip, cfg.GPIO.BootPin, false)
		if err != nil {
			return fmt.Errorf("init boot indicator: %w", err)
		}
		defer out.Close()
		boot = out
	}

	// Diagnostics
	var emitters diag.Multi
	if opts.diagLog {
		emitters = append(emitters, diag.LogEmitter{})
	}
	if cfg.Serial.Port != "" {
		line, err := diag.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return fmt.Errorf("init serial diagnostics: %w", err)
		}
		defer func() {
			line.Close()
			if n := line.Dropped(); n > 0 {
				log.Printf("serial diagnostics dropped %d lines", n)
			}
		}()
		emitters = append(emitters, line)
		log.Printf("serial diagnostics on %s at %d baud", cfg.Serial.Port, cfg.Serial.Baud)
	}

	// Initialize MQTT
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.Nop{}
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTTOptions())
	} else {
		log.Printf("mqtt disabled: no broker configured")
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		TickMs:           intervals.Tick().Milliseconds(),
		LoopsPerSecond:   params.LoopsPerSecond,
		AutoOffSeconds:   params.AutoOffSeconds,
		HeartbeatSeconds: cfg.HeartbeatSeconds(),
		Polarity:         params.Polarity.String(),
		Broker:           cfg.MQTT.Broker,
		HTTPAddr:         cfg.HTTP.Addr,
		SerialPort:       cfg.Serial.Port,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

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
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, cfg.HTTP.LiveInterval)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: tick=%v lps=%d auto_off=%ds polarity=%s broker=%s heartbeat=%ds",
		intervals.Tick(), params.LoopsPerSecond, params.AutoOffSeconds, params.Polarity, cfg.MQTT.Broker, cfg.HeartbeatSeconds())
	log.Printf("baseline: drift bound 0x%x, follows ramps up to %d counts/tick, rebases after %d frozen ticks",
		params.MaxDriftLevel, params.MaxRampSlope(), params.FreezeLimit)

	waker := power.NewTickerWaker(intervals.Tick())
	defer waker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		sampler:          sampler,
		sensePin:         cfg.GPIO.SensePin,
		lamp:             lamp,
		boot:             boot,
		sleeper:          sleeper,
		ctrl:             logic.NewController(params),
		emitter:          emitters,
		publisher:        publisher,
		mqttStatus:       publisher,
		tracker:          tracker,
		heartbeatSeconds: cfg.HeartbeatSeconds(),
		now:              time.Now,
	}
	return l.run(waker.C(), sigCh)
}

// printSamples writes n raw measurements, one per wake, for offline tuning.
func printSamples(ctx context.Context, w io.Writer, sampler gpio.Sampler, pin int, waker power.Waker, n int) error {
	for i := 0; i < n; i++ {
		if err := waker.Wait(ctx); err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%d\t0x%04x\n", i, pin, sampler.Measure(pin))
	}
	return nil
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

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/touch-lamp/internal/gpio"
	"github.com/sweeney/touch-lamp/internal/logic"
	"github.com/sweeney/touch-lamp/internal/mqtt"
	"github.com/sweeney/touch-lamp/internal/power"
	"github.com/sweeney/touch-lamp/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	blank := ""
	addr := ":8080"
	opts := options{
		configPath: filepath.Join(t.TempDir(), "missing.yaml"),
		broker:     &blank,
		httpAddr:   &addr,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.MQTT.Broker != "" {
		t.Errorf("broker: got %q, want empty", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http: got %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Serial.Port != "" {
		t.Errorf("serial: got %q, want default empty", cfg.Serial.Port)
	}
}

func TestLoadConfigParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("timing: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(options{configPath: path}); err == nil {
		t.Error("expected error for malformed config")
	}
}

// --- loop tests ---

const (
	base     = 0x1000
	touchRaw = base - 0x300
)

// testParams runs four ticks per second with a 16-sample window, so IDLE
// is reached after 4 settle ticks plus 16 reseed ticks.
func testParams() logic.Params {
	return logic.Params{
		SamplesShift:        4,
		DerivativeThreshold: 0x100,
		IntegralThreshold:   0x400,
		Leakage:             0x40,
		MaxDriftLevel:       0x100,
		Polarity:            logic.PolarityFalling,
		AutoOffSeconds:      60,
		LoopsPerSecond:      4,
		SettleTicks:         4,
		FreezeLimit:         12,
	}
}

const ticksToIdle = 4 + 16

// touchCounts reaches IDLE, presses for two ticks and then releases; the
// lamp toggles on the tick after the press.
func touchCounts() []uint16 {
	var counts []uint16
	for i := 0; i < ticksToIdle; i++ {
		counts = append(counts, base)
	}
	counts = append(counts, touchRaw, touchRaw, base)
	return counts
}

const ticksToLampOn = ticksToIdle + 3

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from the loop goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type harness struct {
	sampler *gpio.FakeSampler
	lamp    *gpio.FakeOutput
	boot    *gpio.FakeOutput
	sleeper *power.FakeSleeper
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	loop    *loop
}

func newHarness(p logic.Params, counts []uint16, heartbeat uint32) *harness {
	h := &harness{
		sampler: gpio.NewFakeSampler(counts),
		lamp:    &gpio.FakeOutput{},
		boot:    &gpio.FakeOutput{},
		sleeper: &power.FakeSleeper{},
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{}),
	}
	h.loop = &loop{
		sampler:          h.sampler,
		sensePin:         gpio.DefaultPinSense,
		lamp:             h.lamp,
		boot:             h.boot,
		sleeper:          h.sleeper,
		ctrl:             logic.NewController(p),
		publisher:        h.pub,
		mqttStatus:       h.pub,
		tracker:          h.tracker,
		heartbeatSeconds: heartbeat,
		now:              fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 250*time.Millisecond),
	}
	return h
}

// drive feeds nTicks ticks and then the signal, returning run's error.
func (h *harness) drive(t *testing.T, nTicks int, s os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.loop.run(tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- s

	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after signal")
		return nil
	}
}

func systemEvents(pub *mqtt.FakePublisher, name string) []mqtt.SystemEvent {
	var out []mqtt.SystemEvent
	for _, se := range pub.SystemEvents {
		if se.Event == name {
			out = append(out, se)
		}
	}
	return out
}

func TestRunLoopNoEventsWhileUntouched(t *testing.T) {
	h := newHarness(testParams(), []uint16{base}, 0)

	if err := h.drive(t, 60, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if len(h.pub.Events) != 0 {
		t.Errorf("expected 0 lamp events, got %d", len(h.pub.Events))
	}
	if len(h.pub.SystemEvents) != 1 || h.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %+v", h.pub.SystemEvents)
	}
	if len(h.lamp.Values) != 0 {
		t.Errorf("lamp output should never be written, got %v", h.lamp.Values)
	}
	if h.sampler.Calls() != 60 {
		t.Errorf("measurements: got %d, want 60", h.sampler.Calls())
	}
	for _, pin := range h.sampler.Pins {
		if pin != gpio.DefaultPinSense {
			t.Fatalf("measured pin %d, want %d", pin, gpio.DefaultPinSense)
		}
	}
}

func TestRunLoopSleepsIdleEachCycle(t *testing.T) {
	h := newHarness(testParams(), []uint16{base}, 0)

	if err := h.drive(t, 25, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if got := h.sleeper.Count(power.IntervalIdle); got != 25 {
		t.Errorf("idle sleeps: got %d, want 25", got)
	}
	if got := len(h.sleeper.Slept); got != 25 {
		t.Errorf("loop slept %d intervals, want only the 25 idle ones", got)
	}
	if got := h.sampler.Calls(); got != 25 {
		t.Errorf("measurements: got %d, want 25", got)
	}
}

func TestRunLoopBootIndicatorDuringReseed(t *testing.T) {
	h := newHarness(testParams(), []uint16{base}, 0)

	if err := h.drive(t, ticksToIdle, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	want := []bool{true, false}
	if len(h.boot.Values) != len(want) || h.boot.Values[0] != want[0] || h.boot.Values[1] != want[1] {
		t.Errorf("boot indicator writes: got %v, want %v", h.boot.Values, want)
	}
}

func TestRunLoopTouchTurnsLampOn(t *testing.T) {
	h := newHarness(testParams(), touchCounts(), 0)

	if err := h.drive(t, ticksToLampOn, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	if got := h.pub.EventTypes(); len(got) != 1 || got[0] != logic.EventLampOn {
		t.Fatalf("expected [LAMP_ON], got %v", got)
	}
	ev := h.pub.Events[0]
	if ev.Event.Countdown != 60 {
		t.Errorf("countdown: got %d, want 60", ev.Event.Countdown)
	}
	if !strings.Contains(string(h.pub.Payloads[0]), `"state":"ON"`) {
		t.Errorf("unexpected payload: %s", h.pub.Payloads[0])
	}

	// On during the run, switched off for shutdown.
	if len(h.lamp.Values) != 2 || !h.lamp.Values[0] || h.lamp.Values[1] {
		t.Errorf("lamp writes: got %v, want [true false]", h.lamp.Values)
	}

	snap := h.tracker.Snapshot()
	if snap.Ticks != ticksToLampOn {
		t.Errorf("tracker ticks: got %d, want %d", snap.Ticks, ticksToLampOn)
	}
	if snap.Counts.Touches != 1 || snap.Counts.LampOn != 1 {
		t.Errorf("tracker counts: %+v", snap.Counts)
	}
}

func TestRunLoopAutoOff(t *testing.T) {
	p := testParams()
	p.AutoOffSeconds = 3
	h := newHarness(p, touchCounts(), 0)

	nTicks := ticksToLampOn + 3*4
	if err := h.drive(t, nTicks, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	got := h.pub.EventTypes()
	if len(got) != 2 || got[0] != logic.EventLampOn || got[1] != logic.EventAutoOff {
		t.Fatalf("expected [LAMP_ON AUTO_OFF], got %v", got)
	}
	if len(h.lamp.Values) != 2 || !h.lamp.Values[0] || h.lamp.Values[1] {
		t.Errorf("lamp writes: got %v, want [true false]", h.lamp.Values)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	h := newHarness(testParams(), touchCounts(), 0)
	h.pub.PublishError = errors.New("broker down")

	if err := h.drive(t, ticksToLampOn, syscall.SIGTERM); err != nil {
		t.Fatalf("run should survive publish errors: %v", err)
	}

	if !h.lamp.Values[0] {
		t.Error("lamp should still turn on when publishing fails")
	}
	if len(systemEvents(h.pub, "SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN after publish errors")
	}
}

func TestRunLoopLampOutputError(t *testing.T) {
	h := newHarness(testParams(), touchCounts(), 0)
	h.lamp.SetError = errors.New("line busy")

	if err := h.drive(t, ticksToLampOn+5, syscall.SIGTERM); err != nil {
		t.Fatalf("run should survive output errors: %v", err)
	}

	if len(h.pub.Events) != 1 {
		t.Errorf("lamp event should still be published, got %d", len(h.pub.Events))
	}
	if len(h.lamp.Values) != 0 {
		t.Errorf("failed writes should not be recorded, got %v", h.lamp.Values)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newHarness(testParams(), []uint16{base}, 2)
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.7")

	// Seconds complete on ticks 4, 8, 12 and 16; heartbeats at 2s and 4s.
	if err := h.drive(t, 17, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	hbs := systemEvents(h.pub, "HEARTBEAT")
	if len(hbs) != 2 {
		t.Fatalf("expected 2 HEARTBEAT events, got %d", len(hbs))
	}
	payload := string(hbs[0].RawPayload)
	if !strings.Contains(payload, `"event":"HEARTBEAT"`) {
		t.Errorf("heartbeat payload missing event: %s", payload)
	}
	if !strings.Contains(payload, `"ip":"10.0.0.7"`) {
		t.Errorf("heartbeat payload missing network info: %s", payload)
	}
	if len(systemEvents(h.pub, "SHUTDOWN")) != 1 {
		t.Error("expected 1 SHUTDOWN event")
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	h := newHarness(testParams(), []uint16{base}, 0)

	if err := h.drive(t, 100, syscall.SIGTERM); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if n := len(systemEvents(h.pub, "HEARTBEAT")); n != 0 {
		t.Errorf("expected no heartbeats, got %d", n)
	}
}

func TestRunLoopShutdownReasons(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			h := newHarness(testParams(), []uint16{base}, 0)
			h.pub.Connected = true

			if err := h.drive(t, 1, tt.sig); err != nil {
				t.Fatalf("run returned error: %v", err)
			}

			shutdowns := systemEvents(h.pub, "SHUTDOWN")
			if len(shutdowns) != 1 {
				t.Fatalf("expected 1 SHUTDOWN, got %d", len(shutdowns))
			}
			se := shutdowns[0]
			if se.Reason != tt.want {
				t.Errorf("reason: got %q, want %q", se.Reason, tt.want)
			}
			if !se.Retained {
				t.Error("SHUTDOWN should be retained")
			}
			payload := string(se.RawPayload)
			if !strings.Contains(payload, `"reason":"`+tt.want+`"`) {
				t.Errorf("payload missing reason: %s", payload)
			}
			if !strings.Contains(payload, `"connected":true`) {
				t.Errorf("payload should report mqtt connected: %s", payload)
			}
		})
	}
}

func TestRunLoopWithoutOptionalParts(t *testing.T) {
	h := newHarness(testParams(), touchCounts(), 0)
	h.loop.boot = nil
	h.loop.tracker = nil
	h.loop.mqttStatus = nil

	if err := h.drive(t, ticksToLampOn, syscall.SIGINT); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if len(h.pub.Events) != 1 {
		t.Errorf("expected 1 lamp event, got %d", len(h.pub.Events))
	}
	if h.pub.SystemEvents[0].RawPayload != nil {
		t.Error("SHUTDOWN without tracker should use the simple payload")
	}
}

func TestPrintSamples(t *testing.T) {
	sampler := gpio.NewFakeSampler([]uint16{0x1000, 0x0fff, 0x0d00})
	wake := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		wake <- struct{}{}
	}

	var buf bytes.Buffer
	err := printSamples(context.Background(), &buf, sampler, 17, power.ChanWaker{C: wake}, 3)
	if err != nil {
		t.Fatalf("printSamples: %v", err)
	}

	want := "0\t17\t0x1000\n1\t17\t0x0fff\n2\t17\t0x0d00\n"
	if buf.String() != want {
		t.Errorf("output:\ngot:  %q\nwant: %q", buf.String(), want)
	}
}

func TestPrintSamplesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := printSamples(ctx, &buf, gpio.NewFakeSampler(nil), 17, power.ChanWaker{C: make(chan struct{})}, 5)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

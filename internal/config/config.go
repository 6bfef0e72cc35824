// Package config loads the touch-lamp deployment settings from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/touch-lamp/internal/diag"
	"github.com/sweeney/touch-lamp/internal/gpio"
	"github.com/sweeney/touch-lamp/internal/logic"
	"github.com/sweeney/touch-lamp/internal/mqtt"
	"github.com/sweeney/touch-lamp/internal/power"
	"github.com/sweeney/touch-lamp/internal/web"
)

// Config represents the daemon configuration.
type Config struct {
	GPIO   GPIOConfig   `yaml:"gpio"`
	Timing TimingConfig `yaml:"timing"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	Serial SerialConfig `yaml:"serial"`
}

// GPIOConfig selects the chip and BCM line offsets.
type GPIOConfig struct {
	Chip          string `yaml:"chip"`
	SensePin      int    `yaml:"sense_pin"`
	LampPin       int    `yaml:"lamp_pin"`
	BootPin       int    `yaml:"boot_pin"` // -1 = no boot indicator
	LampActiveLow bool   `yaml:"lamp_active_low"`
}

// TimingConfig contains the wake cycle and lamp timers.
type TimingConfig struct {
	Discharge time.Duration `yaml:"discharge"`
	Capture   time.Duration `yaml:"capture"`
	Idle      time.Duration `yaml:"idle"`
	AutoOff   time.Duration `yaml:"auto_off"`  // whole seconds; 0 disables
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Topic       string `yaml:"topic"`
	TopicSystem string `yaml:"topic_system"`
	BufferSize  int    `yaml:"buffer_size"`
}

// HTTPConfig contains the status server settings. An empty addr disables it.
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	LiveInterval time.Duration `yaml:"live_interval"`
}

// SerialConfig contains the diagnostic serial port. An empty port disables it.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// Default returns the configuration the lamp ships with.
func Default() *Config {
	iv := power.DefaultIntervals()
	return &Config{
		GPIO: GPIOConfig{
			Chip:     gpio.DefaultChip,
			SensePin: gpio.DefaultPinSense,
			LampPin:  gpio.DefaultPinLamp,
			BootPin:  gpio.DefaultPinBoot,
		},
		Timing: TimingConfig{
			Discharge: iv.Discharge,
			Capture:   iv.Capture,
			Idle:      iv.Idle,
			AutoOff:   logic.DefaultAutoOffSeconds * time.Second,
			Heartbeat: 15 * time.Minute,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://192.168.1.200:1883",
			ClientID:    mqtt.ClientID,
			Topic:       mqtt.Topic,
			TopicSystem: mqtt.TopicSystem,
			BufferSize:  mqtt.DefaultBufferSize,
		},
		HTTP: HTTPConfig{
			Addr:         ":80",
			LiveInterval: web.DefaultLiveInterval,
		},
		Serial: SerialConfig{
			Baud: diag.DefaultBaudRate,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist the
// defaults are returned; fields missing from the file keep their defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills settings that have no meaningful zero value.
// Broker, HTTP addr and serial port stay empty when explicitly blanked.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}

	if c.Timing.Discharge == 0 {
		c.Timing.Discharge = def.Timing.Discharge
	}
	if c.Timing.Capture == 0 {
		c.Timing.Capture = def.Timing.Capture
	}
	if c.Timing.Idle == 0 {
		c.Timing.Idle = def.Timing.Idle
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.TopicSystem == "" {
		c.MQTT.TopicSystem = def.MQTT.TopicSystem
	}
	if c.MQTT.BufferSize == 0 {
		c.MQTT.BufferSize = def.MQTT.BufferSize
	}

	if c.HTTP.LiveInterval == 0 {
		c.HTTP.LiveInterval = def.HTTP.LiveInterval
	}

	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}
}

// Validate reports settings the daemon cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.GPIO.SensePin < 0 || c.GPIO.LampPin < 0 {
		errs = append(errs, errors.New("gpio: sense and lamp pins must be set"))
	}
	if c.GPIO.SensePin == c.GPIO.LampPin {
		errs = append(errs, fmt.Errorf("gpio: sense and lamp share pin %d", c.GPIO.SensePin))
	}
	if c.GPIO.BootPin >= 0 && (c.GPIO.BootPin == c.GPIO.SensePin || c.GPIO.BootPin == c.GPIO.LampPin) {
		errs = append(errs, fmt.Errorf("gpio: boot pin %d is already in use", c.GPIO.BootPin))
	}

	if c.Timing.Discharge < 0 || c.Timing.Capture < 0 || c.Timing.Idle < 0 {
		errs = append(errs, errors.New("timing: intervals must not be negative"))
	}
	if c.Timing.AutoOff < 0 || c.Timing.AutoOff > math.MaxUint16*time.Second {
		errs = append(errs, fmt.Errorf("timing: auto_off %v out of range 0..%ds", c.Timing.AutoOff, math.MaxUint16))
	}
	if c.Timing.Heartbeat < 0 {
		errs = append(errs, errors.New("timing: heartbeat must not be negative"))
	}

	if c.MQTT.BufferSize < 0 {
		errs = append(errs, errors.New("mqtt: buffer_size must not be negative"))
	}
	if c.Serial.Baud < 0 {
		errs = append(errs, errors.New("serial: baud must not be negative"))
	}

	if err := c.Params().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %v", errs)
	}
	return nil
}

// Intervals returns the wake cycle timing.
func (c *Config) Intervals() power.Intervals {
	return power.Intervals{
		Discharge: c.Timing.Discharge,
		Capture:   c.Timing.Capture,
		Idle:      c.Timing.Idle,
	}
}

// Params returns the detector tuning with the loop rate and auto-off
// derived from the timing section. RESET settles for one second and a
// frozen baseline rebases after DefaultFreezeSeconds.
func (c *Config) Params() logic.Params {
	p := logic.DefaultParams()
	p.LoopsPerSecond = c.Intervals().LoopsPerSecond()
	p.SettleTicks = p.LoopsPerSecond
	p.FreezeLimit = logic.DefaultFreezeSeconds * p.LoopsPerSecond
	p.AutoOffSeconds = autoOffSeconds(c.Timing.AutoOff)
	return p
}

// HeartbeatSeconds returns the heartbeat period in whole seconds.
func (c *Config) HeartbeatSeconds() uint32 {
	if c.Timing.Heartbeat <= 0 {
		return 0
	}
	s := c.Timing.Heartbeat / time.Second
	if s < 1 {
		return 1
	}
	if s > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(s)
}

// MQTTOptions returns the publisher settings.
func (c *Config) MQTTOptions() mqtt.Options {
	return mqtt.Options{
		Broker:      c.MQTT.Broker,
		ClientID:    c.MQTT.ClientID,
		Topic:       c.MQTT.Topic,
		TopicSystem: c.MQTT.TopicSystem,
		BufferSize:  c.MQTT.BufferSize,
	}
}

func autoOffSeconds(d time.Duration) uint16 {
	if d <= 0 {
		return 0
	}
	s := d / time.Second
	if s > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(s)
}

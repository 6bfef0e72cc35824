package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Lamp          string       `json:"lamp"`
	Phase         string       `json:"phase"`
	CountdownS    uint16       `json:"countdown_s"`
	Ready         bool         `json:"ready"`
	Ticks         uint64       `json:"ticks"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sensor        SensorJSON   `json:"sensor"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON exposes the detector's working values for tuning.
type SensorJSON struct {
	Raw        uint16 `json:"raw"`
	Avg        uint16 `json:"avg"`
	Derivative int32  `json:"derivative"`
	Integral   int32  `json:"integral"`
	Frozen     bool   `json:"frozen"`
	Rebases    uint32 `json:"rebases"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Touches int `json:"touches"`
	LampOn  int `json:"lamp_on"`
	LampOff int `json:"lamp_off"`
	AutoOff int `json:"auto_off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs           int64  `json:"tick_ms"`
	LoopsPerSecond   uint32 `json:"loops_per_second"`
	AutoOffSeconds   uint16 `json:"auto_off_s"`
	HeartbeatSeconds uint32 `json:"heartbeat_s"`
	Polarity         string `json:"polarity"`
	Broker           string `json:"broker"`
	HTTPAddr         string `json:"http_addr"`
	SerialPort       string `json:"serial_port,omitempty"`
}

func lampString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Lamp:          lampString(snap.Lamp),
		Phase:         snap.Phase.String(),
		CountdownS:    snap.Countdown,
		Ready:         snap.Baselined,
		Ticks:         snap.Ticks,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensor: SensorJSON{
			Raw:        snap.Detector.Raw,
			Avg:        snap.Detector.Avg,
			Derivative: snap.Detector.Derivative,
			Integral:   snap.Detector.Integral,
			Frozen:     snap.Detector.Frozen,
			Rebases:    snap.Detector.Rebases,
		},
		MQTT: MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Touches: snap.Counts.Touches,
			LampOn:  snap.Counts.LampOn,
			LampOff: snap.Counts.LampOff,
			AutoOff: snap.Counts.AutoOff,
		},
		Config: ConfigJSON{
			TickMs:           snap.Config.TickMs,
			LoopsPerSecond:   snap.Config.LoopsPerSecond,
			AutoOffSeconds:   snap.Config.AutoOffSeconds,
			HeartbeatSeconds: snap.Config.HeartbeatSeconds,
			Polarity:         snap.Config.Polarity,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
			SerialPort:       snap.Config.SerialPort,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatCompactJSON is FormatJSON without indentation, used for websocket frames.
func FormatCompactJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

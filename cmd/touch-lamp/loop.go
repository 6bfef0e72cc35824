package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/touch-lamp/internal/diag"
	"github.com/sweeney/touch-lamp/internal/gpio"
	"github.com/sweeney/touch-lamp/internal/logic"
	"github.com/sweeney/touch-lamp/internal/mqtt"
	"github.com/sweeney/touch-lamp/internal/power"
	"github.com/sweeney/touch-lamp/internal/status"
)

// loop runs one controller against the hardware. All fields are owned by
// the run goroutine; boot, sleeper, tracker and mqttStatus may be nil.
type loop struct {
	sampler  gpio.Sampler
	sensePin int
	lamp     gpio.Output
	boot     gpio.Output
	sleeper  power.Sleeper

	ctrl       *logic.Controller
	emitter    diag.Emitter
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker

	heartbeatSeconds uint32
	now              func() time.Time

	// outputs start released (off); only changes are written
	lampOn, bootOn bool
	uptime         logic.SecondCounter
	lastHeartbeat  uint64
}

// run cycles once per tick until a signal arrives. Each cycle is the
// sampler's discharge and capture, the step, then the idle interval; the
// tick is the wake source that ends the idle.
func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	l.uptime = logic.NewSecondCounter(l.ctrl.Params().LoopsPerSecond)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(signalName(s))
			return nil

		case <-tick:
			l.step()
			if l.sleeper != nil {
				l.sleeper.Sleep(power.IntervalIdle)
			}
		}
	}
}

func (l *loop) step() {
	raw := l.sampler.Measure(l.sensePin)
	res := l.ctrl.Step(raw)

	l.setLamp(res.Lamp)
	l.setBoot(res.Boot)

	if l.emitter != nil {
		l.emitter.Emit(diag.FromResult(res))
	}

	if res.Event != nil {
		event := *res.Event
		log.Printf("event: %s (lamp=%s countdown=%ds tick=%d)", event.Type, mqtt.StateString(event.LampOn), event.Countdown, event.Tick)
		if err := l.publisher.Publish(l.now(), event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}

	// Update status tracker for HTTP consumers
	if l.tracker != nil {
		l.tracker.Update(res, l.ctrl.EventCountsSnapshot())
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
	}

	if l.uptime.Advance() > 0 {
		l.checkHeartbeat()
	}
}

func (l *loop) setLamp(on bool) {
	if on == l.lampOn {
		return
	}
	if err := l.lamp.Set(on); err != nil {
		log.Printf("lamp output error: %v", err)
		return
	}
	l.lampOn = on
}

func (l *loop) setBoot(on bool) {
	if l.boot == nil || on == l.bootOn {
		return
	}
	if err := l.boot.Set(on); err != nil {
		log.Printf("boot indicator error: %v", err)
		return
	}
	l.bootOn = on
}

func (l *loop) checkHeartbeat() {
	if l.heartbeatSeconds == 0 {
		return
	}
	uptime := l.uptime.Seconds()
	if uptime-l.lastHeartbeat < uint64(l.heartbeatSeconds) {
		return
	}
	l.lastHeartbeat = uptime

	counts := l.ctrl.EventCountsSnapshot()
	log.Printf("heartbeat: uptime=%ds touches=%d lamp_on=%d lamp_off=%d auto_off=%d",
		uptime, counts.Touches, counts.LampOn, counts.LampOff, counts.AutoOff)

	hbEvent := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	if err := l.publisher.PublishSystem(hbEvent); err != nil {
		log.Printf("heartbeat publish error: %v", err)
	}
}

// shutdown switches the lamp off and announces the exit.
func (l *loop) shutdown(reason string) {
	l.setBoot(false)
	if l.lampOn {
		log.Printf("switching lamp off for shutdown")
	}
	l.setLamp(false)

	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if l.tracker != nil {
		if l.mqttStatus != nil {
			l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", reason)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

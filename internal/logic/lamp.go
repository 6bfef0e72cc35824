package logic

// Controller is the lamp state machine: RESET -> IDLE -> ACTION -> RESET.
//
// RESET first discards SettleTicks samples so the hand that caused the last
// actuation can leave the sensor, then reseeds the detector with the boot
// indicator lit. IDLE feeds every
// sample to the detector and moves to ACTION on a touch. ACTION toggles the
// lamp and always returns to RESET.
type Controller struct {
	p   Params
	det *Detector

	phase  Phase
	settle uint32
	tick   uint64

	lamp      bool
	countdown uint16
	autoOff   SecondCounter

	counts EventCounts
}

// NewController creates a controller in RESET with the lamp off.
func NewController(p Params) *Controller {
	c := &Controller{
		p:       p,
		det:     NewDetector(p),
		autoOff: NewSecondCounter(p.LoopsPerSecond),
	}
	c.enterReset()
	return c
}

// Step evaluates exactly one transition for one raw sample.
func (c *Controller) Step(raw uint16) Result {
	c.tick++
	res := Result{Tick: c.tick, From: c.phase}

	var ev *Event
	if c.phase != PhaseAction {
		ev = c.countDown()
	}

	switch c.phase {
	case PhaseReset:
		if c.settle < c.p.SettleTicks {
			c.settle++
			break
		}
		c.det.Update(raw)
		if c.det.IsSteady() {
			c.phase = PhaseIdle
		} else {
			res.Boot = true
		}

	case PhaseIdle:
		if c.det.Update(raw) {
			res.Touch = true
			c.counts.Touches++
			c.phase = PhaseAction
		}

	case PhaseAction:
		ev = c.toggle()
		c.enterReset()
	}

	res.Phase = c.phase
	res.Lamp = c.lamp
	res.Countdown = c.countdown
	res.Detector = c.det.State()
	res.Event = ev
	return res
}

func (c *Controller) enterReset() {
	c.phase = PhaseReset
	c.settle = 0
	c.det.Reset()
}

func (c *Controller) toggle() *Event {
	c.lamp = !c.lamp
	ev := &Event{Tick: c.tick, LampOn: c.lamp}
	if c.lamp {
		c.countdown = c.p.AutoOffSeconds
		c.autoOff.Reset()
		c.counts.LampOn++
		ev.Type = EventLampOn
	} else {
		c.countdown = 0
		c.counts.LampOff++
		ev.Type = EventLampOff
	}
	ev.Countdown = c.countdown
	return ev
}

// countDown runs the auto-off timer while the lamp is on.
func (c *Controller) countDown() *Event {
	if !c.lamp || c.p.AutoOffSeconds == 0 {
		return nil
	}
	secs := c.autoOff.Advance()
	if uint32(c.countdown) > secs {
		c.countdown -= uint16(secs)
		return nil
	}
	c.countdown = 0
	c.lamp = false
	c.counts.AutoOff++
	return &Event{Tick: c.tick, Type: EventAutoOff}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Lamp returns whether the lamp is on.
func (c *Controller) Lamp() bool {
	return c.lamp
}

// Countdown returns the remaining auto-off seconds (0 when off or disabled).
func (c *Controller) Countdown() uint16 {
	return c.countdown
}

// IsBaselined returns whether the detector has a seeded baseline.
func (c *Controller) IsBaselined() bool {
	return c.det.IsSteady()
}

// EventCountsSnapshot returns a copy of the event counters.
func (c *Controller) EventCountsSnapshot() EventCounts {
	return c.counts
}

// Params returns the tuning the controller was built with.
func (c *Controller) Params() Params {
	return c.p
}

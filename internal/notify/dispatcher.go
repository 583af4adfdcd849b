package notify

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hamdamapp/backend/internal/model/event"
)

// Sink surfaces treatments to the user. Implemented by the UI layer; in this
// service a WebSocket sink pushes the rendered notification to the client.
type Sink interface {
	// ShowToast surfaces a transient in-app banner.
	ShowToast(ev event.PartnerEvent, t Treatment)
	// ShowAlert surfaces a persistent affordance that stays until the event
	// is acknowledged. Used for SOS.
	ShowAlert(ev event.PartnerEvent, t Treatment)
	// PlayHaptic triggers a local vibration pattern.
	PlayHaptic(p HapticPattern)
}

// SuppressionWindow is a daily quiet-hours range in local wall-clock minutes.
// A window may wrap past midnight (22:00–07:00). The zero value disables
// suppression.
type SuppressionWindow struct {
	StartMinute int
	EndMinute   int
	Enabled     bool
}

// ParseSuppressionWindow builds a window from "15:04" formatted bounds.
// Two empty strings disable suppression.
func ParseSuppressionWindow(start, end string) (SuppressionWindow, error) {
	if strings.TrimSpace(start) == "" && strings.TrimSpace(end) == "" {
		return SuppressionWindow{}, nil
	}
	startMin, err := parseClock(start)
	if err != nil {
		return SuppressionWindow{}, fmt.Errorf("quiet hours start: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return SuppressionWindow{}, fmt.Errorf("quiet hours end: %w", err)
	}
	return SuppressionWindow{StartMinute: startMin, EndMinute: endMin, Enabled: true}, nil
}

func parseClock(value string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return hour*60 + minute, nil
}

// Contains reports whether the instant falls inside the window.
func (w SuppressionWindow) Contains(at time.Time) bool {
	if !w.Enabled {
		return false
	}
	minute := at.Hour()*60 + at.Minute()
	if w.StartMinute <= w.EndMinute {
		return minute >= w.StartMinute && minute < w.EndMinute
	}
	// Wraps past midnight.
	return minute >= w.StartMinute || minute < w.EndMinute
}

// Delivery records one received notification, surfaced or not. Suppression
// affects presentation only, never whether the event was recorded.
type Delivery struct {
	Event      event.PartnerEvent `json:"event"`
	Treatment  Treatment          `json:"treatment"`
	Suppressed bool               `json:"suppressed"`
	ReceivedAt time.Time          `json:"receivedAt"`
}

// Dispatcher applies the receiving-side policy: de-duplication across the
// life of the process, quiet-hours suppression for low/medium urgency, and
// classification-specific surfacing.
type Dispatcher struct {
	sink   Sink
	window SuppressionWindow
	now    func() time.Time

	mu      sync.Mutex
	seen    map[string]struct{}
	history []Delivery
}

// NewDispatcher builds a dispatcher for one receiving client.
func NewDispatcher(sink Sink, window SuppressionWindow) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		window: window,
		now:    time.Now,
		seen:   make(map[string]struct{}),
	}
}

// Dispatch handles one delivered event. Safe to call with duplicates; the bus
// is at-least-once and repeats are ignored by event id.
func (d *Dispatcher) Dispatch(ev event.PartnerEvent) {
	d.mu.Lock()
	if _, dup := d.seen[ev.ID]; dup {
		d.mu.Unlock()
		log.Printf("[notify] ignoring duplicate delivery of event %s", ev.ID)
		return
	}
	d.seen[ev.ID] = struct{}{}
	d.mu.Unlock()

	treatment := Classify(ev)
	suppressed := d.suppress(treatment)

	d.mu.Lock()
	d.history = append(d.history, Delivery{
		Event:      ev,
		Treatment:  treatment,
		Suppressed: suppressed,
		ReceivedAt: d.now().UTC(),
	})
	d.mu.Unlock()

	if suppressed {
		log.Printf("[notify] quiet hours: suppressed %s event %s", ev.Type, ev.ID)
		return
	}

	if treatment.Persistent {
		d.sink.ShowAlert(ev, treatment)
	} else {
		d.sink.ShowToast(ev, treatment)
	}
	if treatment.Haptic != HapticNone {
		d.sink.PlayHaptic(treatment.Haptic)
	}
}

// suppress applies the quiet-hours policy: high and critical urgency always
// go through, everything else is held inside the window.
func (d *Dispatcher) suppress(t Treatment) bool {
	if t.BypassSuppression || t.Urgency >= UrgencyHigh {
		return false
	}
	return d.window.Contains(d.now())
}

// History returns every recorded delivery, oldest first.
func (d *Dispatcher) History() []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Delivery, len(d.history))
	copy(out, d.history)
	return out
}

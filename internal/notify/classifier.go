// Package notify maps incoming partner events to notification treatments and
// applies the receiving-side dispatch policy.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hamdamapp/backend/internal/model/event"
)

// Urgency orders how aggressively a notification is surfaced.
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

// String implements fmt.Stringer for log and wire output.
func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	case UrgencyCritical:
		return "critical"
	}
	return "unknown"
}

// HapticPattern names the local vibration pattern for a treatment.
type HapticPattern string

const (
	HapticNone HapticPattern = "none"
	HapticTap  HapticPattern = "tap"
	HapticBuzz HapticPattern = "buzz"
	// HapticSOS repeats at least three pulses.
	HapticSOS HapticPattern = "sos"
)

// Pulses returns how many vibration pulses the pattern plays.
func (p HapticPattern) Pulses() int {
	switch p {
	case HapticNone:
		return 0
	case HapticTap:
		return 1
	case HapticBuzz:
		return 2
	case HapticSOS:
		return 3
	}
	return 0
}

// Treatment describes how one event should be surfaced to the partner.
type Treatment struct {
	Title             string        `json:"title"`
	Body              string        `json:"body"`
	Urgency           Urgency       `json:"urgency"`
	Haptic            HapticPattern `json:"haptic"`
	BypassSuppression bool          `json:"bypassSuppression"`
	// Persistent requests a dismiss-until-acknowledged affordance instead of
	// a transient toast.
	Persistent bool `json:"persistent"`
}

// moodEmoji maps the 1..5 mood value to an emoji scale.
func moodEmoji(mood int) string {
	scale := []string{"😢", "🙁", "😐", "🙂", "🥰"}
	if mood < 1 || mood > len(scale) {
		return "😐"
	}
	return scale[mood-1]
}

func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Minute {
		return fmt.Sprintf("%d min", int(d.Minutes()))
	}
	return fmt.Sprintf("%d sec", seconds)
}

// Classify is a pure mapping from an event to its notification treatment.
// Payload fields fill the message templates; an unreadable payload falls back
// to the template without the detail.
func Classify(ev event.PartnerEvent) Treatment {
	switch ev.Type {
	case event.TypeLove:
		return Treatment{
			Title:   "A little love ❤️",
			Body:    "Your partner is thinking of you.",
			Urgency: UrgencyLow,
			Haptic:  HapticTap,
		}
	case event.TypeMoodUpdate:
		var payload event.MoodPayload
		_ = json.Unmarshal(ev.Payload, &payload)
		return Treatment{
			Title:   "Mood update",
			Body:    fmt.Sprintf("Your partner is feeling %s today.", moodEmoji(payload.Mood)),
			Urgency: UrgencyLow,
			Haptic:  HapticTap,
		}
	case event.TypeKickSession:
		var payload event.KickSessionPayload
		_ = json.Unmarshal(ev.Payload, &payload)
		return Treatment{
			Title:   "Baby kicks!",
			Body:    fmt.Sprintf("%d kicks counted in %s.", payload.KickCount, formatDuration(payload.DurationSeconds)),
			Urgency: UrgencyLow,
			Haptic:  HapticTap,
		}
	case event.TypeWaterGoal:
		return Treatment{
			Title:   "Hydration goal reached",
			Body:    "Your partner hit today's water goal. 💧",
			Urgency: UrgencyLow,
			Haptic:  HapticTap,
		}
	case event.TypeContractionStarted:
		var payload event.ContractionPayload
		_ = json.Unmarshal(ev.Payload, &payload)
		body := "A contraction was just recorded."
		if payload.DurationSeconds > 0 {
			body = fmt.Sprintf("A contraction lasting %s was just recorded.", formatDuration(payload.DurationSeconds))
		}
		return Treatment{
			Title:   "Contraction recorded",
			Body:    body,
			Urgency: UrgencyMedium,
			Haptic:  HapticBuzz,
		}
	case event.TypeContraction511:
		return Treatment{
			Title:             "5-1-1 pattern reached",
			Body:              "Contractions are 5 minutes apart, lasting 1 minute, for 1 hour. Time to call the midwife.",
			Urgency:           UrgencyHigh,
			Haptic:            HapticBuzz,
			BypassSuppression: true,
		}
	case event.TypeSOSAlert:
		var payload event.SOSPayload
		_ = json.Unmarshal(ev.Payload, &payload)
		body := payload.Message
		if body == "" {
			body = "Your partner needs you right now."
		}
		if payload.Latitude != nil && payload.Longitude != nil {
			body = fmt.Sprintf("%s (at %.5f, %.5f)", body, *payload.Latitude, *payload.Longitude)
		}
		return Treatment{
			Title:             "SOS — your partner needs help",
			Body:              body,
			Urgency:           UrgencyCritical,
			Haptic:            HapticSOS,
			BypassSuppression: true,
			Persistent:        true,
		}
	}
	return Treatment{
		Title:   "Partner update",
		Body:    "Your partner sent an update.",
		Urgency: UrgencyLow,
		Haptic:  HapticNone,
	}
}

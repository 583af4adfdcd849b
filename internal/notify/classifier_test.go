package notify

import (
	"strings"
	"testing"

	"github.com/hamdamapp/backend/internal/model/event"
)

func TestClassifyKickSessionIncludesCount(t *testing.T) {
	treatment := Classify(event.PartnerEvent{
		Type:    event.TypeKickSession,
		Payload: []byte(`{"kickCount":12,"durationSeconds":900}`),
	})

	if !strings.Contains(treatment.Body, "12") {
		t.Fatalf("body must contain the kick count, got %q", treatment.Body)
	}
	if treatment.Urgency != UrgencyLow {
		t.Fatalf("kick_session should be low urgency, got %s", treatment.Urgency)
	}
}

func TestClassifyMoodMapsToEmojiScale(t *testing.T) {
	low := Classify(event.PartnerEvent{Type: event.TypeMoodUpdate, Payload: []byte(`{"mood":1}`)})
	high := Classify(event.PartnerEvent{Type: event.TypeMoodUpdate, Payload: []byte(`{"mood":5}`)})

	if low.Body == high.Body {
		t.Fatal("different mood values should render different bodies")
	}
	if low.Urgency != UrgencyLow || high.Urgency != UrgencyLow {
		t.Fatal("mood_update should be low urgency")
	}
}

func TestClassifyUrgencyTiers(t *testing.T) {
	cases := []struct {
		eventType event.Type
		urgency   Urgency
		bypass    bool
	}{
		{event.TypeLove, UrgencyLow, false},
		{event.TypeMoodUpdate, UrgencyLow, false},
		{event.TypeKickSession, UrgencyLow, false},
		{event.TypeWaterGoal, UrgencyLow, false},
		{event.TypeContractionStarted, UrgencyMedium, false},
		{event.TypeContraction511, UrgencyHigh, true},
		{event.TypeSOSAlert, UrgencyCritical, true},
	}

	for _, tc := range cases {
		treatment := Classify(event.PartnerEvent{Type: tc.eventType})
		if treatment.Urgency != tc.urgency {
			t.Fatalf("%s: urgency %s, want %s", tc.eventType, treatment.Urgency, tc.urgency)
		}
		if treatment.BypassSuppression != tc.bypass {
			t.Fatalf("%s: bypass %v, want %v", tc.eventType, treatment.BypassSuppression, tc.bypass)
		}
	}
}

func TestClassifySOSAlert(t *testing.T) {
	treatment := Classify(event.PartnerEvent{
		Type:    event.TypeSOSAlert,
		Payload: []byte(`{"message":"come home","latitude":35.6892,"longitude":51.389}`),
	})

	if !treatment.Persistent {
		t.Fatal("sos_alert must request a persistent, acknowledge-gated affordance")
	}
	if treatment.Haptic.Pulses() < 3 {
		t.Fatalf("sos_alert haptic must repeat at least 3 pulses, got %d", treatment.Haptic.Pulses())
	}
	if !strings.Contains(treatment.Body, "come home") {
		t.Fatalf("body should carry the sender's message, got %q", treatment.Body)
	}
}

func TestClassifyToleratesBrokenPayload(t *testing.T) {
	treatment := Classify(event.PartnerEvent{Type: event.TypeKickSession, Payload: []byte(`{broken`)})
	if treatment.Title == "" || treatment.Body == "" {
		t.Fatal("classification must still produce a readable treatment")
	}
}

func TestClassifyUnknownTypeFallsBack(t *testing.T) {
	treatment := Classify(event.PartnerEvent{Type: event.Type("mystery")})
	if treatment.Urgency != UrgencyLow {
		t.Fatalf("unknown types default to low urgency, got %s", treatment.Urgency)
	}
}

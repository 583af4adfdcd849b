package event

import (
	"encoding/json"
	"time"
)

// Type enumerates the life events a primary user can send to a partner.
type Type string

const (
	TypeLove               Type = "love"
	TypeMoodUpdate         Type = "mood_update"
	TypeKickSession        Type = "kick_session"
	TypeWaterGoal          Type = "water_goal"
	TypeContractionStarted Type = "contraction_started"
	TypeContraction511     Type = "contraction_511"
	TypeSOSAlert           Type = "sos_alert"
)

// Valid reports whether the type is one of the known event types.
func (t Type) Valid() bool {
	switch t {
	case TypeLove, TypeMoodUpdate, TypeKickSession, TypeWaterGoal,
		TypeContractionStarted, TypeContraction511, TypeSOSAlert:
		return true
	}
	return false
}

// PartnerEvent is one durable life-event record. Immutable except for the
// single false→true acknowledgement transition, set only by the receiver.
type PartnerEvent struct {
	ID             string          `json:"id"`
	SenderID       string          `json:"senderId"`
	ReceiverID     string          `json:"receiverId"`
	Type           Type            `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	IsAcknowledged bool            `json:"isAcknowledged"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// MoodPayload carries a mood value on a 1..5 scale.
type MoodPayload struct {
	Mood int `json:"mood"`
}

// ContractionPayload carries the timing of one contraction.
type ContractionPayload struct {
	DurationSeconds int  `json:"durationSeconds"`
	IntervalSeconds *int `json:"intervalSeconds,omitempty"`
}

// KickSessionPayload summarizes a kick-counting session.
type KickSessionPayload struct {
	KickCount       int `json:"kickCount"`
	DurationSeconds int `json:"durationSeconds"`
}

// SOSPayload carries an emergency alert with an optional location fix.
type SOSPayload struct {
	Message   string   `json:"message"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Link is the symmetric pairing relation between two users. Established
// out-of-band by the pairing flow; the event bus treats it as read-only.
type Link struct {
	UserA string `json:"userA"`
	UserB string `json:"userB"`
}

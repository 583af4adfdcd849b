package chat

import "time"

// Channel identifies a logical conversation stream scoped to one user.
type Channel string

const (
	// ChannelPrimary is the user's own assistant thread.
	ChannelPrimary Channel = "primary"
	// ChannelPartner is the partner-context assistant thread.
	ChannelPartner Channel = "partner"
)

// Valid reports whether the channel is one of the known values.
func (c Channel) Valid() bool {
	return c == ChannelPrimary || c == ChannelPartner
}

// Role distinguishes who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one finalized conversation turn. Immutable once written.
type Turn struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Channel   Channel   `json:"channel"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

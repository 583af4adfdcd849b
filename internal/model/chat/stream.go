package chat

// StreamState is a read-only snapshot of an in-progress assistant message.
// AccumulatedText is the authoritative current value, not a diff; the UI
// should re-render it wholesale after each update.
type StreamState struct {
	SessionID       string `json:"sessionId"`
	Role            Role   `json:"role"`
	AccumulatedText string `json:"accumulatedText"`
	IsComplete      bool   `json:"isComplete"`
	IsErrored       bool   `json:"isErrored"`
}

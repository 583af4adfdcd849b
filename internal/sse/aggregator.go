package sse

import (
	"log"
	"strings"

	"github.com/bytedance/sonic"
)

// chunkEnvelope mirrors the provider's chat-completion chunk shape; only the
// delta content is extracted.
type chunkEnvelope struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Aggregator folds decoded frames into one growing assistant message.
// Fragments are appended in exactly transport order; nothing is trimmed,
// reordered, or deduplicated. One Aggregator per session.
type Aggregator struct {
	text     strings.Builder
	complete bool
}

// NewAggregator returns a fresh per-session aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Apply consumes one frame. Data payloads that fail to parse are dropped
// silently: producers occasionally emit heartbeat or comment records that are
// not meant to be parsed as content, and they must not corrupt the session.
func (a *Aggregator) Apply(frame Frame) {
	if a.complete {
		return
	}

	switch frame.Kind {
	case FrameTerminator:
		a.complete = true
	case FrameData:
		var env chunkEnvelope
		if err := sonic.UnmarshalString(frame.Payload, &env); err != nil {
			log.Printf("[sse] dropping unparseable delta payload: %v", err)
			return
		}
		if len(env.Choices) > 0 {
			a.text.WriteString(env.Choices[0].Delta.Content)
		}
	case FrameMalformed:
		// Tolerated upstream noise.
	}
}

// Text returns the accumulated message so far.
func (a *Aggregator) Text() string {
	return a.text.String()
}

// Complete reports whether an explicit terminator was seen.
func (a *Aggregator) Complete() bool {
	return a.complete
}

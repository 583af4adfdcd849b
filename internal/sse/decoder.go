// Package sse decodes the provider's newline-delimited streaming wire format
// into discrete frames and folds data frames into a growing assistant message.
package sse

import (
	"bytes"
	"log"
	"strings"
)

// FrameKind tags a decoded transport record.
type FrameKind int

const (
	// FrameData carries one JSON chunk payload.
	FrameData FrameKind = iota
	// FrameTerminator marks the explicit end of the stream.
	FrameTerminator
	// FrameMalformed is any other non-empty record; tolerated, never fatal.
	FrameMalformed
)

// Frame is one decoded logical record from the raw transport byte stream.
type Frame struct {
	Kind    FrameKind
	Payload string
}

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// Decoder splits a raw chunk stream into frames. Chunk boundaries are
// arbitrary; a trailing partial record is buffered until the next chunk.
// One Decoder per session, discarded with the session.
type Decoder struct {
	buf []byte
}

// NewDecoder returns a fresh per-session decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk to the internal buffer and returns every complete
// frame it unlocked, in transport order. It never blocks waiting for input.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return frames
		}
		record := strings.TrimRight(string(d.buf[:i]), "\r")
		d.buf = d.buf[i+1:]

		if strings.TrimSpace(record) == "" {
			continue
		}
		frames = append(frames, classify(record))
	}
}

// classify turns one complete record into a tagged frame.
func classify(record string) Frame {
	if strings.HasPrefix(record, dataPrefix) {
		payload := strings.TrimSpace(record[len(dataPrefix):])
		if payload == doneSentinel {
			return Frame{Kind: FrameTerminator}
		}
		return Frame{Kind: FrameData, Payload: payload}
	}
	if strings.TrimSpace(record) == doneSentinel {
		return Frame{Kind: FrameTerminator}
	}
	log.Printf("[sse] ignoring malformed record: %q", truncate(record, 120))
	return Frame{Kind: FrameMalformed}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

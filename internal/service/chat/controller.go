// Package chat owns the lifecycle of streaming assistant exchanges.
package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/hamdamapp/backend/internal/model/chat"
	"github.com/hamdamapp/backend/internal/model/profile"
	"github.com/hamdamapp/backend/internal/sse"
)

var (
	ErrEmptyPrompt   = errors.New("prompt is required")
	ErrSessionActive = errors.New("a streaming session is already active for this channel")
	ErrNoSession     = errors.New("no active session for this channel")
)

// apologyText replaces the assistant bubble whenever the exchange failed or
// produced nothing, so the UI never shows an indefinitely empty bubble.
const apologyText = "Sorry, I couldn't answer right now. Please try again in a moment."

// cancelledText replaces the partial bubble after an explicit user cancel.
const cancelledText = "Response cancelled."

// State tracks one session through its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateAborted
)

// Transport opens the exchange with the response-generation collaborator.
// Implemented by ai.Client.
type Transport interface {
	StreamingEnabled() bool
	OpenStream(ctx context.Context, history []model.Turn, prompt string, prof profile.Context) (io.ReadCloser, error)
	Complete(ctx context.Context, history []model.Turn, prompt string, prof profile.Context) (string, error)
}

// Session owns one in-flight exchange for a channel. All mutation happens on
// the single goroutine driving the transport read loop; the UI layer only
// reads snapshots.
type Session struct {
	id      string
	ownerID string
	channel model.Channel
	prompt  string

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   State
	text    string
	errored bool
	updated chan struct{}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed once the session reaches Completed or Aborted.
func (s *Session) Done() <-chan struct{} { return s.done }

// Updated signals (coalesced) that the snapshot changed.
func (s *Session) Updated() <-chan struct{} { return s.updated }

// Snapshot returns the current read-only view of the in-progress message.
func (s *Session) Snapshot() model.StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.StreamState{
		SessionID:       s.id,
		Role:            model.RoleAssistant,
		AccumulatedText: s.text,
		IsComplete:      s.state == StateCompleted,
		IsErrored:       s.errored,
	}
}

// Cancel aborts the session if it has not finished yet.
func (s *Session) Cancel() {
	s.cancel()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) set(state State, text string, errored bool) {
	s.mu.Lock()
	s.state = state
	s.text = text
	s.errored = errored
	s.mu.Unlock()
	s.notify()
}

func (s *Session) setText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	select {
	case s.updated <- struct{}{}:
	default:
	}
}

func (s *Session) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRequesting || s.state == StateStreaming
}

type sessionKey struct {
	ownerID string
	channel model.Channel
}

// Controller drives streaming sessions: at most one concurrent session per
// (owner, channel), independent sessions fully concurrent.
type Controller struct {
	transport Transport
	history   History
	profiles  profile.Store

	mu     sync.Mutex
	active map[sessionKey]*Session
}

// NewController wires the controller to its collaborators.
func NewController(transport Transport, history History, profiles profile.Store) *Controller {
	return &Controller{
		transport: transport,
		history:   history,
		profiles:  profiles,
		active:    make(map[sessionKey]*Session),
	}
}

// Submit captures the user's prompt as a turn, starts a streaming session for
// the channel and returns it. Rejects the request while a prior session for
// the same channel is still running; the caller must wait or cancel first.
func (c *Controller) Submit(ctx context.Context, ownerID string, channel model.Channel, prompt string) (*Session, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	key := sessionKey{ownerID: ownerID, channel: channel}

	c.mu.Lock()
	if prev, ok := c.active[key]; ok && prev.running() {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session := &Session{
		id:      uuid.NewString(),
		ownerID: ownerID,
		channel: channel,
		prompt:  prompt,
		cancel:  cancel,
		done:    make(chan struct{}),
		updated: make(chan struct{}, 1),
		state:   StateRequesting,
	}
	c.active[key] = session
	c.mu.Unlock()

	history, err := c.history.ListTurns(ctx, ownerID, channel, 0)
	if err != nil {
		log.Printf("[chat] failed to load history for %s/%s: %v", ownerID, channel, err)
		history = nil
	}

	// The prompt becomes the most recent user turn before the request begins.
	userTurn := model.Turn{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Channel:   channel,
		Role:      model.RoleUser,
		Content:   prompt,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.history.AppendTurn(ctx, userTurn); err != nil {
		cancel()
		c.release(key, session)
		return nil, err
	}

	prof, _ := c.profiles.FindByUserID(ownerID)
	if channel == model.ChannelPartner {
		prof.IsPartnerChannel = true
	}

	go c.run(runCtx, key, session, history, prof)

	return session, nil
}

// Active returns the session currently bound to the channel, if any.
func (c *Controller) Active(ownerID string, channel model.Channel) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.active[sessionKey{ownerID: ownerID, channel: channel}]
	return session, ok
}

// Cancel aborts the running session for the channel.
func (c *Controller) Cancel(ownerID string, channel model.Channel) error {
	session, ok := c.Active(ownerID, channel)
	if !ok || !session.running() {
		return ErrNoSession
	}
	session.Cancel()
	return nil
}

// run drives one exchange to a terminal state. It is the only writer of the
// session's streaming state.
func (c *Controller) run(ctx context.Context, key sessionKey, session *Session, history []model.Turn, prof profile.Context) {
	defer close(session.done)
	defer session.cancel()

	if !c.transport.StreamingEnabled() {
		c.runOneShot(ctx, session, history, prof)
		return
	}

	body, err := c.transport.OpenStream(ctx, history, session.prompt, prof)
	if err != nil {
		log.Printf("[chat] session=%s connect failed: %v", session.id, err)
		session.set(StateAborted, apologyText, true)
		return
	}
	defer body.Close()

	session.set(StateStreaming, "", false)

	decoder := sse.NewDecoder()
	aggregator := sse.NewAggregator()
	buf := make([]byte, 4096)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, frame := range decoder.Feed(buf[:n]) {
				aggregator.Apply(frame)
			}
			session.setText(aggregator.Text())
			if aggregator.Complete() {
				break
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// Silent close counts as implicit completion.
				break
			}
			if ctx.Err() != nil {
				log.Printf("[chat] session=%s cancelled", session.id)
				session.set(StateAborted, cancelledText, true)
				return
			}
			log.Printf("[chat] session=%s transport error: %v", session.id, readErr)
			session.set(StateAborted, apologyText, true)
			return
		}
	}

	text := aggregator.Text()
	if text == "" {
		text = apologyText
	}
	c.finalize(ctx, session, text)
}

// runOneShot is the non-streaming fallback: one blocking exchange, treated as
// a single Completed transition.
func (c *Controller) runOneShot(ctx context.Context, session *Session, history []model.Turn, prof profile.Context) {
	text, err := c.transport.Complete(ctx, history, session.prompt, prof)
	if err != nil {
		if ctx.Err() != nil {
			session.set(StateAborted, cancelledText, true)
			return
		}
		log.Printf("[chat] session=%s one-shot exchange failed: %v", session.id, err)
		session.set(StateAborted, apologyText, true)
		return
	}
	if text == "" {
		text = apologyText
	}
	c.finalize(ctx, session, text)
}

// finalize records the assistant turn and transitions to Completed. An
// aborted response is never persisted; only this path writes assistant turns.
func (c *Controller) finalize(ctx context.Context, session *Session, text string) {
	session.set(StateCompleted, text, false)

	turn := model.Turn{
		ID:        uuid.NewString(),
		OwnerID:   session.ownerID,
		Channel:   session.channel,
		Role:      model.RoleAssistant,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	// Persist even if the caller went away mid-stream.
	if err := c.history.AppendTurn(context.WithoutCancel(ctx), turn); err != nil {
		log.Printf("[chat] session=%s failed to persist assistant turn: %v", session.id, err)
	}

	log.Printf("[chat] session=%s completed, length=%d", session.id, len(text))
}

func (c *Controller) release(key sessionKey, session *Session) {
	c.mu.Lock()
	if c.active[key] == session {
		delete(c.active, key)
	}
	c.mu.Unlock()
}

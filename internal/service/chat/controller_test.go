package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	model "github.com/hamdamapp/backend/internal/model/chat"
	"github.com/hamdamapp/backend/internal/model/profile"
)

type memHistory struct {
	mu    sync.Mutex
	turns []model.Turn
}

func (h *memHistory) AppendTurn(_ context.Context, turn model.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	return nil
}

func (h *memHistory) ListTurns(_ context.Context, ownerID string, channel model.Channel, limit int) ([]model.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []model.Turn
	for _, turn := range h.turns {
		if turn.OwnerID == ownerID && turn.Channel == channel {
			out = append(out, turn)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (h *memHistory) ClearTurns(_ context.Context, ownerID string, channel model.Channel) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.turns[:0]
	for _, turn := range h.turns {
		if turn.OwnerID != ownerID || turn.Channel != channel {
			kept = append(kept, turn)
		}
	}
	h.turns = kept
	return nil
}

func (h *memHistory) byRole(role model.Role) []model.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []model.Turn
	for _, turn := range h.turns {
		if turn.Role == role {
			out = append(out, turn)
		}
	}
	return out
}

type fakeTransport struct {
	streaming  bool
	openErr    error
	stream     string
	streamErr  error
	blockRead  bool
	oneShot    string
	oneShotErr error
}

func (t *fakeTransport) StreamingEnabled() bool { return t.streaming }

func (t *fakeTransport) OpenStream(ctx context.Context, _ []model.Turn, _ string, _ profile.Context) (io.ReadCloser, error) {
	if t.openErr != nil {
		return nil, t.openErr
	}
	return &fakeBody{ctx: ctx, rest: t.stream, err: t.streamErr, block: t.blockRead}, nil
}

func (t *fakeTransport) Complete(_ context.Context, _ []model.Turn, _ string, _ profile.Context) (string, error) {
	return t.oneShot, t.oneShotErr
}

// fakeBody serves the configured stream, then either returns the configured
// error, blocks until cancellation, or EOFs.
type fakeBody struct {
	ctx   context.Context
	rest  string
	err   error
	block bool
}

func (b *fakeBody) Read(p []byte) (int, error) {
	if b.rest != "" {
		n := copy(p, b.rest)
		b.rest = b.rest[n:]
		return n, nil
	}
	if b.err != nil {
		return 0, b.err
	}
	if b.block {
		<-b.ctx.Done()
		return 0, b.ctx.Err()
	}
	return 0, io.EOF
}

func (b *fakeBody) Close() error { return nil }

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish in time")
	}
}

const salamStream = "data: {\"choices\":[{\"delta\":{\"content\":\"Sa\"}}]}\n" +
	"data: {\"choices\":[{\"delta\":{\"content\":\"lam\"}}]}\n" +
	"data: [DONE]\n"

func TestSubmitCompletesAndPersistsTurnPair(t *testing.T) {
	history := &memHistory{}
	ctrl := NewController(&fakeTransport{streaming: true, stream: salamStream}, history, profile.NewMemoryStore(nil))

	session, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "hello")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	waitDone(t, session)

	snap := session.Snapshot()
	if snap.AccumulatedText != "Salam" || !snap.IsComplete || snap.IsErrored {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	turns, err := history.ListTurns(context.Background(), "u1", model.ChannelPrimary, 0)
	if err != nil {
		t.Fatalf("ListTurns err: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected exactly 2 persisted turns, got %d", len(turns))
	}
	if turns[0].Role != model.RoleUser || turns[0].Content != "hello" {
		t.Fatalf("first turn should be the user prompt: %+v", turns[0])
	}
	if turns[1].Role != model.RoleAssistant || turns[1].Content != "Salam" {
		t.Fatalf("second turn should be the assistant reply: %+v", turns[1])
	}
}

func TestSubmitConnectFailureAborts(t *testing.T) {
	history := &memHistory{}
	ctrl := NewController(&fakeTransport{streaming: true, openErr: errors.New("dial tcp: refused")}, history, profile.NewMemoryStore(nil))

	session, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "hi")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	waitDone(t, session)

	snap := session.Snapshot()
	if !snap.IsErrored || snap.IsComplete {
		t.Fatalf("expected errored snapshot, got %+v", snap)
	}
	if snap.AccumulatedText == "" {
		t.Fatal("aborted session must leave a readable message, not a blank bubble")
	}
	if got := history.byRole(model.RoleAssistant); len(got) != 0 {
		t.Fatalf("aborted session must not persist an assistant turn, got %d", len(got))
	}
}

func TestSubmitMidStreamErrorAborts(t *testing.T) {
	history := &memHistory{}
	transport := &fakeTransport{
		streaming: true,
		stream:    "data: {\"choices\":[{\"delta\":{\"content\":\"part\"}}]}\n",
		streamErr: errors.New("connection reset"),
	}
	ctrl := NewController(transport, history, profile.NewMemoryStore(nil))

	session, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "hi")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	waitDone(t, session)

	if session.State() != StateAborted {
		t.Fatalf("expected Aborted, got %d", session.State())
	}
	if got := history.byRole(model.RoleAssistant); len(got) != 0 {
		t.Fatalf("aborted session must not persist an assistant turn, got %d", len(got))
	}
}

func TestSilentCloseIsImplicitCompletion(t *testing.T) {
	history := &memHistory{}
	transport := &fakeTransport{
		streaming: true,
		stream:    "data: {\"choices\":[{\"delta\":{\"content\":\"partial answer\"}}]}\n",
	}
	ctrl := NewController(transport, history, profile.NewMemoryStore(nil))

	session, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "hi")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	waitDone(t, session)

	snap := session.Snapshot()
	if !snap.IsComplete || snap.IsErrored {
		t.Fatalf("silent close should complete the session: %+v", snap)
	}
	if snap.AccumulatedText != "partial answer" {
		t.Fatalf("unexpected text: %q", snap.AccumulatedText)
	}
	if got := history.byRole(model.RoleAssistant); len(got) != 1 {
		t.Fatalf("expected one assistant turn, got %d", len(got))
	}
}

func TestSilentCloseWithNothingAccumulatedFallsBack(t *testing.T) {
	history := &memHistory{}
	ctrl := NewController(&fakeTransport{streaming: true}, history, profile.NewMemoryStore(nil))

	session, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "hi")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	waitDone(t, session)

	snap := session.Snapshot()
	if !snap.IsComplete {
		t.Fatalf("expected completion, got %+v", snap)
	}
	if snap.AccumulatedText == "" {
		t.Fatal("empty stream must fall back to the apology text")
	}
}

func TestSubmitRejectsConcurrentSessionPerChannel(t *testing.T) {
	history := &memHistory{}
	ctrl := NewController(&fakeTransport{streaming: true, blockRead: true}, history, profile.NewMemoryStore(nil))

	first, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "one")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	if _, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "two"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	// A different channel runs independently of the blocked one.
	other, err := ctrl.Submit(context.Background(), "u1", model.ChannelPartner, "three")
	if err != nil {
		t.Fatalf("Submit on independent channel err: %v", err)
	}

	first.Cancel()
	waitDone(t, first)
	other.Cancel()
	waitDone(t, other)
}

func TestCancelAbortsWithoutPersisting(t *testing.T) {
	history := &memHistory{}
	transport := &fakeTransport{
		streaming: true,
		stream:    "data: {\"choices\":[{\"delta\":{\"content\":\"half a \"}}]}\n",
		blockRead: true,
	}
	ctrl := NewController(transport, history, profile.NewMemoryStore(nil))

	session, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "hi")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	if err := ctrl.Cancel("u1", model.ChannelPrimary); err != nil {
		t.Fatalf("Cancel err: %v", err)
	}
	waitDone(t, session)

	snap := session.Snapshot()
	if !snap.IsErrored || snap.IsComplete {
		t.Fatalf("expected aborted snapshot, got %+v", snap)
	}
	if got := history.byRole(model.RoleAssistant); len(got) != 0 {
		t.Fatalf("cancelled session must not persist an assistant turn, got %d", len(got))
	}

	// Retry is a fresh Requesting cycle once the old session finished.
	retryTransport := &fakeTransport{streaming: true, stream: salamStream}
	ctrl2 := NewController(retryTransport, history, profile.NewMemoryStore(nil))
	retry, err := ctrl2.Submit(context.Background(), "u1", model.ChannelPrimary, "hi again")
	if err != nil {
		t.Fatalf("retry Submit err: %v", err)
	}
	waitDone(t, retry)
}

func TestOneShotFallbackWhenStreamingDisabled(t *testing.T) {
	history := &memHistory{}
	ctrl := NewController(&fakeTransport{oneShot: "full reply"}, history, profile.NewMemoryStore(nil))

	session, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, "hi")
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	waitDone(t, session)

	snap := session.Snapshot()
	if !snap.IsComplete || snap.AccumulatedText != "full reply" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSubmitRejectsEmptyPrompt(t *testing.T) {
	ctrl := NewController(&fakeTransport{}, &memHistory{}, profile.NewMemoryStore(nil))
	if _, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, ""); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if _, err := ctrl.Submit(context.Background(), "u1", model.ChannelPrimary, strings.Repeat(" ", 3)); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

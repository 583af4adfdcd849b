package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	model "github.com/hamdamapp/backend/internal/model/chat"
	"github.com/hamdamapp/backend/internal/model/profile"
	chatService "github.com/hamdamapp/backend/internal/service/chat"
)

type stubTransport struct{}

func (stubTransport) StreamingEnabled() bool { return true }

func (stubTransport) OpenStream(context.Context, []model.Turn, string, profile.Context) (io.ReadCloser, error) {
	stream := "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\ndata: [DONE]\n"
	return io.NopCloser(strings.NewReader(stream)), nil
}

func (stubTransport) Complete(context.Context, []model.Turn, string, profile.Context) (string, error) {
	return "ok", nil
}

type stubHistory struct {
	mu    sync.Mutex
	turns []model.Turn
}

func (h *stubHistory) AppendTurn(_ context.Context, turn model.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
	return nil
}

func (h *stubHistory) ListTurns(_ context.Context, ownerID string, channel model.Channel, _ int) ([]model.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []model.Turn
	for _, turn := range h.turns {
		if turn.OwnerID == ownerID && turn.Channel == channel {
			out = append(out, turn)
		}
	}
	return out, nil
}

func (h *stubHistory) ClearTurns(_ context.Context, ownerID string, channel model.Channel) error {
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

func setupRouter() (*chi.Mux, *chatService.Controller, *stubHistory) {
	history := &stubHistory{}
	controller := chatService.NewController(stubTransport{}, history, profile.NewMemoryStore(nil))
	handler := New(controller, history)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, controller, history
}

func submitRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat/primary/messages", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	return req
}

func TestSubmitMessage(t *testing.T) {
	r, controller, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, submitRequest(`{"message":"hello"}`))

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["sessionId"] == "" {
		t.Fatal("expected a session id in the response")
	}

	session, ok := controller.Active("u1", model.ChannelPrimary)
	if !ok {
		t.Fatal("expected an active session")
	}
	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestSubmitRequiresUserHeader(t *testing.T) {
	r, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/chat/primary/messages", bytes.NewReader([]byte(`{"message":"hi"}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestSubmitUnknownChannel(t *testing.T) {
	r, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/chat/nope/messages", bytes.NewReader([]byte(`{"message":"hi"}`)))
	req.Header.Set("X-User-ID", "u1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSubmitEmptyMessage(t *testing.T) {
	r, _, _ := setupRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, submitRequest(`{"message":""}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestListAndClearMessages(t *testing.T) {
	r, _, history := setupRouter()

	_ = history.AppendTurn(context.Background(), model.Turn{
		ID: "t1", OwnerID: "u1", Channel: model.ChannelPrimary, Role: model.RoleUser, Content: "hi",
	})

	req := httptest.NewRequest(http.MethodGet, "/chat/primary/messages", nil)
	req.Header.Set("X-User-ID", "u1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var turns []model.Turn
	if err := json.NewDecoder(resp.Body).Decode(&turns); err != nil {
		t.Fatalf("decode turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}

	req = httptest.NewRequest(http.MethodDelete, "/chat/primary/messages", nil)
	req.Header.Set("X-User-ID", "u1")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}

	got, _ := history.ListTurns(context.Background(), "u1", model.ChannelPrimary, 0)
	if len(got) != 0 {
		t.Fatalf("expected cleared history, got %d turns", len(got))
	}
}

func TestCancelWithoutSession(t *testing.T) {
	r, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/chat/primary/cancel", nil)
	req.Header.Set("X-User-ID", "u1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

package partner

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hamdamapp/backend/internal/model/event"
	"github.com/hamdamapp/backend/internal/notify"
	partnerService "github.com/hamdamapp/backend/internal/service/partner"
	"github.com/hamdamapp/backend/pkg/utils"
)

// WebSocketHandler pushes classified partner notifications to a connected
// client and accepts acknowledgements over the same connection.
type WebSocketHandler struct {
	bus      *partnerService.Bus
	window   notify.SuppressionWindow
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the push-delivery handler.
func NewWebSocketHandler(bus *partnerService.Bus, window notify.SuppressionWindow) *WebSocketHandler {
	return &WebSocketHandler{
		bus:    bus,
		window: window,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

type inboundMessage struct {
	Action  string `json:"action"`
	EventID string `json:"eventId,omitempty"`
}

// outboundMessage is one rendered notification pushed to the client.
type outboundMessage struct {
	Kind      string               `json:"kind"` // "toast", "alert", "haptic", "pong"
	Event     *event.PartnerEvent  `json:"event,omitempty"`
	Treatment *notify.Treatment    `json:"treatment,omitempty"`
	Haptic    notify.HapticPattern `json:"haptic,omitempty"`
}

// wsSink renders treatments onto the WebSocket connection. Writes are
// serialized; gorilla connections do not allow concurrent writers.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) send(msg outboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		log.Printf("[partner] websocket write failed: %v", err)
	}
}

func (s *wsSink) ShowToast(ev event.PartnerEvent, t notify.Treatment) {
	s.send(outboundMessage{Kind: "toast", Event: &ev, Treatment: &t})
}

func (s *wsSink) ShowAlert(ev event.PartnerEvent, t notify.Treatment) {
	s.send(outboundMessage{Kind: "alert", Event: &ev, Treatment: &t})
}

func (s *wsSink) PlayHaptic(p notify.HapticPattern) {
	s.send(outboundMessage{Kind: "haptic", Haptic: p})
}

// handleWebSocket upgrades the connection, subscribes the caller to their
// partner events, and reads acknowledgements until the client disconnects.
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := userID(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "websocket upgrade failed")
		return
	}
	defer conn.Close()

	log.Printf("[partner] websocket connected for user=%s", receiverID)

	sink := &wsSink{conn: conn}
	dispatcher := notify.NewDispatcher(sink, h.window)

	sub := h.bus.Subscribe(r.Context(), receiverID, dispatcher.Dispatch)
	defer sub.Close()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[partner] websocket closed unexpectedly for user=%s: %v", receiverID, err)
			}
			return
		}

		switch msg.Action {
		case "ack":
			if msg.EventID == "" {
				continue
			}
			if err := h.bus.Acknowledge(r.Context(), receiverID, msg.EventID); err != nil {
				log.Printf("[partner] ack failed for event=%s: %v", msg.EventID, err)
			}
		case "ping":
			sink.send(outboundMessage{Kind: "pong"})
		default:
			log.Printf("[partner] unknown websocket action %q from user=%s", msg.Action, receiverID)
		}
	}
}

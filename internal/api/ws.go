package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jmau0/riobutcher/internal/core"
	"github.com/jmau0/riobutcher/internal/transcript"
)

// Websocket message types.
const (
	wsTypeSelect     = "select"
	wsTypeSend       = "send"
	wsTypeStatus     = "status"
	wsTypeTranscript = "transcript"
	wsTypeTurn       = "turn"
	wsTypeError      = "error"
)

// WSMessage is the JSON protocol spoken on /api/ws.
type WSMessage struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Content   string           `json:"content,omitempty"`
	Storage   string           `json:"storage,omitempty"`
	Turn      *transcript.Turn `json:"turn,omitempty"`
}

// wsTranscript always carries turns, even when the conversation is empty.
type wsTranscript struct {
	Type      string            `json:"type"`
	SessionID string            `json:"session_id"`
	Turns     []transcript.Turn `json:"turns"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketHandler serves the live conversation view. Each connection owns
// one ConversationView, so selecting a conversation drops the push
// subscription of the previous one.
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	username, _ := r.Context().Value(usernameKey).(string)
	logger := h.logger.With("username", username, "remote", r.RemoteAddr)
	client := &wsClient{conn: conn}

	var view *core.ConversationView
	view = core.NewConversationView(h.store, h.opts.DedupeWindow, logger, func(turn transcript.Turn) {
		client.send(WSMessage{Type: wsTypeTurn, SessionID: view.Session(), Turn: &turn})
	})

	logger.Info("websocket client connected")
	defer func() {
		view.Close()
		conn.Close()
		logger.Info("websocket client disconnected")
	}()

	client.send(WSMessage{Type: wsTypeStatus, Storage: core.StorageStatus(r.Context(), h.store)})

	// Handlers run with the request context, which is cancelled once the
	// connection is gone.
	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("websocket read error", "err", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("invalid websocket message", "err", err)
			client.send(WSMessage{Type: wsTypeError, Content: "mensagem inválida"})
			continue
		}

		switch msg.Type {
		case wsTypeSelect:
			if msg.SessionID == "" {
				client.send(WSMessage{Type: wsTypeError, Content: "session_id obrigatório"})
				continue
			}
			turns, err := view.Select(ctx, msg.SessionID)
			client.send(wsTranscript{Type: wsTypeTranscript, SessionID: msg.SessionID, Turns: turns})
			if err != nil {
				client.send(WSMessage{Type: wsTypeError, SessionID: msg.SessionID, Content: "Falha ao carregar a conversa"})
			}

		case wsTypeSend:
			sessionID := view.Session()
			if sessionID == "" {
				client.send(WSMessage{Type: wsTypeError, Content: "nenhuma conversa selecionada"})
				continue
			}
			echo, err := h.conversations.Echo(sessionID, msg.Content)
			if errors.Is(err, core.ErrEmptyMessage) {
				continue
			}
			// The echo goes on screen before the webhook runs; the stored
			// copy pushed while it is in flight is then a duplicate.
			if view.SendLocal(echo) {
				client.send(WSMessage{Type: wsTypeTurn, SessionID: sessionID, Turn: &echo})
			}
			if err := h.conversations.Deliver(ctx, sessionID, echo); err != nil {
				client.send(WSMessage{Type: wsTypeError, SessionID: sessionID, Content: "Falha ao enviar a mensagem"})
			}

		default:
			logger.Debug("unknown websocket message", "type", msg.Type)
		}
	}
}

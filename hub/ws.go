package hub

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Dashboard běží na jiném originu; přístup řeší reverzní proxy před námi.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler obsluhuje websocket endpoint dashboardu. Životní cyklus session:
// upgrade -> join skupiny + úvodní snapshot -> čekání na zavření spojení.
// Klient nám nic neposílá, read smyčka jen detekuje odpojení.
type Handler struct {
	hub         *Hub
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewHandler(hub *Hub, broadcaster *Broadcaster, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, broadcaster: broadcaster, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Upgrade na websocket selhal", "error", err)
		return
	}

	// Úvodní snapshot, aby klient neměl prázdnou obrazovku do prvního
	// organického pushe. Při prázdné cache se neposílá nic.
	initial, err := h.broadcaster.Frame(r.Context())
	if err != nil {
		h.logger.Warn("Úvodní snapshot selhal, klient počká na první push", "error", err)
		initial = nil
	}

	session := h.hub.Join(conn, initial)
	h.logger.Info("Dashboard klient připojen", "sessions", h.hub.Count())

	defer func() {
		h.hub.Leave(session)
		h.logger.Info("Dashboard klient odpojen", "sessions", h.hub.Count())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

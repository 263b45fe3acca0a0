package hub

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn je minimální transport jedné session. Splňuje ho *websocket.Conn;
// testy si podstrčí vlastní implementaci.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session je jeden připojený dashboard klient. Nedrží žádná data cache —
// každý push, který dostane, je kompletní snapshot.
//
// Kanál out má kapacitu 1: čeká v něm vždy jen nejnovější frame.
type Session struct {
	conn Conn
	out  chan []byte
}

// Hub je broadcast skupina všech připojených dashboard sessions.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		sessions: make(map[*Session]struct{}),
	}
}

// Join zaregistruje připojení do skupiny a spustí jeho doručovací smyčku.
// Nenulový initial frame se klientovi doručí jako první (úvodní snapshot) —
// ledaže ho ještě před odesláním stihne nahradit čerstvější broadcast,
// což je jedině dobře.
func (h *Hub) Join(conn Conn, initial []byte) *Session {
	session := &Session{
		conn: conn,
		out:  make(chan []byte, 1),
	}
	if initial != nil {
		session.out <- initial
	}

	h.mu.Lock()
	h.sessions[session] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(session)
	return session
}

// Leave odebere session ze skupiny a zavře její spojení.
// Opakované volání pro stejnou session je neškodné.
func (h *Hub) Leave(session *Session) {
	h.mu.Lock()
	_, ok := h.sessions[session]
	if ok {
		delete(h.sessions, session)
		close(session.out)
	}
	h.mu.Unlock()

	if ok {
		session.conn.Close()
	}
}

// Count vrátí počet aktuálně připojených sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast zařadí frame každé session ve skupině. Nikdy neblokuje:
// pokud session ještě neodebrala předchozí frame, starý se zahodí
// a nahradí novým (last-write-wins). Klient chce vždy jen nejčerstvější
// snapshot, diffy neposíláme.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for session := range h.sessions {
		select {
		case session.out <- frame:
		default:
			// Plný buffer: vyhodit čekající frame a zkusit znovu.
			select {
			case <-session.out:
			default:
			}
			select {
			case session.out <- frame:
			default:
			}
		}
	}
}

// writeLoop doručuje frames jedné session. Chyba zápisu ukončí pouze tuto
// session; ostatních členů skupiny se nijak nedotkne. Nedoručené frames
// se neopakují — další mutace cache přinese čerstvější snapshot.
func (h *Hub) writeLoop(session *Session) {
	for frame := range session.out {
		if err := session.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug("Zápis do session selhal, odpojuji klienta", "error", err)
			h.Leave(session)
			return
		}
	}
}

package hub

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Snapshotter čte point-in-time obsah cache (všechny topicy pod patternem).
type Snapshotter interface {
	Snapshot(ctx context.Context, pattern string) (map[string][]string, error)
}

// Broadcaster po každé mutaci cache pošle celé skupině kompletní snapshot
// všech topiců v namespace. Žádné diffy: klient, který jeden push propásne,
// dostane příštím pushem plný a čerstvější obraz.
type Broadcaster struct {
	cache   Snapshotter
	hub     *Hub
	pattern string
	logger  *slog.Logger
}

func NewBroadcaster(cache Snapshotter, hub *Hub, namespace string, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		cache:   cache,
		hub:     hub,
		pattern: namespace + "/*",
		logger:  logger,
	}
}

// Frame serializuje aktuální snapshot do jednoho frame
// (JSON objekt topic -> seznam posledních hodnot). Vrací nil bez chyby,
// pokud cache nic nemá — prázdné payloady se neposílají.
func (b *Broadcaster) Frame(ctx context.Context) ([]byte, error) {
	snapshot, err := b.cache.Snapshot(ctx, b.pattern)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, nil
	}
	return json.Marshal(snapshot)
}

// Push doručí snapshot broadcast skupině. Chyba cache znamená jen jeden
// vynechaný push, nic víc — další mutace cache doručí čerstvější stav.
func (b *Broadcaster) Push(ctx context.Context) {
	frame, err := b.Frame(ctx)
	if err != nil {
		b.logger.Warn("Snapshot pro push selhal", "error", err)
		return
	}
	if frame == nil {
		return
	}
	b.hub.Broadcast(frame)
}

package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable znamená, že cache store (Redis) neodpovídá.
// Pro pipeline to není fatální stav: volající zaloguje, přeskočí aktuální
// operaci a další cyklus to zkusí znovu.
var ErrUnavailable = errors.New("cache store není dostupný")

// Store je omezená (bounded) cache posledních hodnot per topic nad Redisem.
// Každý topic je Redis list a drží vždy jen posledních N surových payloadů:
// index 0 = nejstarší z posledních N, poslední index = nejčerstvější.
type Store struct {
	rdb      *redis.Client
	capacity int64
}

// New vytvoří Store s danou kapacitou na topic (typicky 30).
func New(rdb *redis.Client, capacity int) *Store {
	return &Store{rdb: rdb, capacity: int64(capacity)}
}

// Append přidá hodnotu na konec listu topicu a ořízne ho na kapacitu.
// RPUSH + LTRIM jedou v jedné transakci (MULTI/EXEC), takže žádný čtenář
// neuvidí list delší než N ani napůl oříznutý.
func (s *Store) Append(ctx context.Context, topic, value string) error {
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, topic, value)
	pipe.LTrim(ctx, topic, -s.capacity, -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Latest vrátí naposledy přidanou hodnotu topicu. Druhý návrat je false,
// pokud topic zatím žádnou zprávu nedostal — to není chyba.
func (s *Store) Latest(ctx context.Context, topic string) (string, bool, error) {
	value, err := s.rdb.LIndex(ctx, topic, -1).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}

// Snapshot vrátí aktuální obsah všech topiců odpovídajících glob patternu
// (např. "Biogestor/*"). Není to jedna transakce přes všechny klíče —
// atomicitu garantujeme jen per topic. Klíč smazaný mezi KEYS a LRANGE
// se ze snapshotu prostě vynechá.
func (s *Store) Snapshot(ctx context.Context, pattern string) (map[string][]string, error) {
	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	snapshot := make(map[string][]string, len(keys))
	for _, key := range keys {
		values, err := s.rdb.LRange(ctx, key, 0, -1).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if len(values) == 0 {
			continue
		}
		snapshot[key] = values
	}
	return snapshot, nil
}

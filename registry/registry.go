package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sensor je jeden záznam z tabulky 'sensors'. Tabulku vlastní CRUD část
// systému (tam se senzory zakládají a editují), my ji jen čteme.
type Sensor struct {
	ID   int64
	Code string // mqtt_code, unikátní sufix topicu
	Name string

	// Platný rozsah měření. Hodnota mimo rozsah je chyba senzoru,
	// ne měření — sampler ji neukládá.
	MinRange float64
	MaxRange float64
}

// Topic odvodí MQTT topic senzoru v daném namespace,
// např. "Biogestor/internal_temp".
func (s Sensor) Topic(namespace string) string {
	return namespace + "/" + s.Code
}

// Service drží roster senzorů v paměti a periodicky ho obnovuje z DB.
// Roster chrání RWMutex; Load připraví nový slice bokem a pak ho pod zámkem
// jen prohodí (read-copy-update), takže čtenáři nikdy nečekají na DB.
type Service struct {
	db     *pgxpool.Pool
	logger *slog.Logger

	mu      sync.RWMutex
	sensors []Sensor
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Load provede SQL dotaz a atomicky nahradí lokální roster.
// Volá se blokující při startu a pak periodicky na pozadí.
func (s *Service) Load(ctx context.Context) error {
	query := `
		SELECT id, mqtt_code, name, min_range, max_range
		FROM sensors
		ORDER BY id ASC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("SQL dotaz na senzory selhal: %w", err)
	}
	defer rows.Close()

	var fresh []Sensor
	for rows.Next() {
		var sensor Sensor
		if err := rows.Scan(&sensor.ID, &sensor.Code, &sensor.Name, &sensor.MinRange, &sensor.MaxRange); err != nil {
			s.logger.Error("Nepodařilo se načíst řádek senzoru", "error", err)
			continue
		}
		fresh = append(fresh, sensor)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("čtení senzorů selhalo: %w", err)
	}

	s.mu.Lock()
	s.sensors = fresh
	s.mu.Unlock()

	s.logger.Info("Roster senzorů obnoven", "count", len(fresh))
	return nil
}

// List vrátí kopii aktuálního rosteru. Kopie proto, aby si volající nemohl
// sáhnout na slice, který příští Load prohodí.
func (s *Service) List() []Sensor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sensor, len(s.sensors))
	copy(out, s.sensors)
	return out
}

// StartAutoRefresh obnovuje roster v daném intervalu, dokud se nezruší
// context. Díky tomu se nový senzor založený přes CRUD začne odebírat
// bez restartu služby (wildcard odběr už ho pokrývá, sampler ho uvidí tady).
func (s *Service) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Load(ctx); err != nil {
				s.logger.Error("Automatická obnova rosteru selhala", "error", err)
			}
		}
	}
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository zapouzdřuje zápis vzorků do Postgres (tabulka 'sensor_data').
// Zbytek aplikace neví, jak se píše SQL, jen volá metody repozitáře.
// Tabulku i migrace vlastní CRUD část systému.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSample uloží jeden trvalý vzorek (senzor, hodnota, čas měření).
// Vzorky se nikdy neupravují ani nemažou — jen přibývají.
func (r *Repository) SaveSample(ctx context.Context, sensorID int64, value float64, at time.Time) error {
	query := `INSERT INTO sensor_data (time, sensor_id, value) VALUES ($1, $2, $3)`

	if _, err := r.pool.Exec(ctx, query, at, sensorID, value); err != nil {
		return fmt.Errorf("chyba insertu do PG: %w", err)
	}
	return nil
}

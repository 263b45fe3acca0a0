package sampler

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/CharFranR/Biogestor/registry"
)

// LatestReader čte poslední cachovanou hodnotu topicu.
type LatestReader interface {
	Latest(ctx context.Context, topic string) (string, bool, error)
}

// SensorLister dodává aktuální roster senzorů.
type SensorLister interface {
	List() []registry.Sensor
}

// SampleWriter ukládá jeden trvalý vzorek.
type SampleWriter interface {
	SaveSample(ctx context.Context, sensorID int64, value float64, at time.Time) error
}

// Sampler jednou za interval projde všechny známé senzory a uloží jejich
// poslední cachovanou hodnotu jako trvalý vzorek. Je to záměrná decimace:
// pošle-li senzor během intervalu víc hodnot, do DB se dostane jen ta
// poslední před tikem. Cache mezitím dál drží všechny surové payloady.
type Sampler struct {
	cache     LatestReader
	sensors   SensorLister
	samples   SampleWriter
	namespace string
	interval  time.Duration
	logger    *slog.Logger

	running atomic.Bool
	done    chan struct{}
}

func New(cache LatestReader, sensors SensorLister, samples SampleWriter,
	namespace string, interval time.Duration, logger *slog.Logger) *Sampler {
	return &Sampler{
		cache:     cache,
		sensors:   sensors,
		samples:   samples,
		namespace: namespace,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start spustí smyčku na pozadí. Je idempotentní: běží-li už, druhé volání
// nic nespustí a vrátí false. V procesu tak existuje vždy nejvýš jedna
// aktivní smyčka na instanci.
func (s *Sampler) Start(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	go s.run(ctx)
	return true
}

// Wait blokuje, dokud smyčka po zrušení contextu neskončí.
// Shutdown tak nikdy neuřízne tick uprostřed zápisu.
func (s *Sampler) Wait() {
	<-s.done
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Sampler běží", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sampler končí")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick zpracuje jeden průchod rosterem. Celý tick má timeout rovný
// intervalu: jeden zaseknutý zápis nesmí vyhladovět zbytek senzorů
// ani způsobit překryv s dalším tikem.
func (s *Sampler) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	for _, sensor := range s.sensors.List() {
		if tickCtx.Err() != nil {
			return
		}
		s.sampleOne(tickCtx, sensor)
	}
}

// sampleOne zkusí uložit jeden vzorek. Všechny "neúspěchy" kromě chyby
// zápisu jsou normální provozní stavy, žádný z nich tick nepřeruší.
func (s *Sampler) sampleOne(ctx context.Context, sensor registry.Sensor) {
	topic := sensor.Topic(s.namespace)

	raw, ok, err := s.cache.Latest(ctx, topic)
	if err != nil {
		s.logger.Warn("Cache nedostupná, senzor přeskočen", "sensor", sensor.Code, "error", err)
		return
	}
	if !ok {
		// Senzor zatím nic neposlal — není to chyba.
		return
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.logger.Debug("Hodnota není číslo, přeskočeno", "sensor", sensor.Code, "raw", raw)
		return
	}

	if value < sensor.MinRange || value > sensor.MaxRange {
		s.logger.Debug("Hodnota mimo rozsah senzoru, přeskočeno",
			"sensor", sensor.Code, "value", value, "min", sensor.MinRange, "max", sensor.MaxRange)
		return
	}

	if err := s.samples.SaveSample(ctx, sensor.ID, value, time.Now().UTC()); err != nil {
		s.logger.Error("Uložení vzorku selhalo", "sensor", sensor.Code, "error", err)
	}
}

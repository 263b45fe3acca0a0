package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CharFranR/Biogestor/registry"
)

// --- Fakes ---

type fakeCache struct {
	values map[string]string
	err    error
}

func (f *fakeCache) Latest(_ context.Context, topic string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	value, ok := f.values[topic]
	return value, ok, nil
}

type fakeLister struct {
	sensors []registry.Sensor
}

func (f *fakeLister) List() []registry.Sensor {
	return f.sensors
}

type savedSample struct {
	sensorID int64
	value    float64
}

type fakeWriter struct {
	mu      sync.Mutex
	saved   []savedSample
	failFor map[int64]error
}

func (f *fakeWriter) SaveSample(_ context.Context, sensorID int64, value float64, _ time.Time) error {
	if err, ok := f.failFor[sensorID]; ok {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedSample{sensorID: sensorID, value: value})
	return nil
}

func (f *fakeWriter) samples() []savedSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedSample(nil), f.saved...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSampler(cache *fakeCache, lister *fakeLister, writer *fakeWriter) *Sampler {
	return New(cache, lister, writer, "Biogestor", 5*time.Second, testLogger())
}

func wideRange(id int64, code string) registry.Sensor {
	return registry.Sensor{ID: id, Code: code, MinRange: -1000, MaxRange: 1000}
}

// --- Testy ---

// Decimace: během intervalu přišly dvě hodnoty, tick uloží přesně jeden
// vzorek a to ten poslední.
func TestTickSavesOnlyLatestValue(t *testing.T) {
	cache := &fakeCache{values: map[string]string{}}
	lister := &fakeLister{sensors: []registry.Sensor{wideRange(1, "ph")}}
	writer := &fakeWriter{}
	s := testSampler(cache, lister, writer)

	// Simulace dvou zpráv v jednom intervalu: v cache zůstala jen poslední.
	cache.values["Biogestor/ph"] = "12.3"
	cache.values["Biogestor/ph"] = "13.4"

	s.tick(context.Background())

	saved := writer.samples()
	require.Len(t, saved, 1)
	assert.Equal(t, int64(1), saved[0].sensorID)
	assert.Equal(t, 13.4, saved[0].value)
}

func TestTickSkipsSensorWithoutData(t *testing.T) {
	cache := &fakeCache{values: map[string]string{}}
	lister := &fakeLister{sensors: []registry.Sensor{wideRange(1, "ph")}}
	writer := &fakeWriter{}
	s := testSampler(cache, lister, writer)

	s.tick(context.Background())

	assert.Empty(t, writer.samples())
}

func TestTickSkipsMalformedValue(t *testing.T) {
	cache := &fakeCache{values: map[string]string{"Biogestor/ph": "N/A"}}
	lister := &fakeLister{sensors: []registry.Sensor{wideRange(1, "ph")}}
	writer := &fakeWriter{}
	s := testSampler(cache, lister, writer)

	s.tick(context.Background())

	assert.Empty(t, writer.samples())
}

func TestTickSkipsValueOutOfRange(t *testing.T) {
	cache := &fakeCache{values: map[string]string{"Biogestor/temp": "120.5"}}
	lister := &fakeLister{sensors: []registry.Sensor{
		{ID: 1, Code: "temp", MinRange: 0, MaxRange: 80},
	}}
	writer := &fakeWriter{}
	s := testSampler(cache, lister, writer)

	s.tick(context.Background())

	assert.Empty(t, writer.samples())
}

func TestTickSkipsSensorWhenCacheUnavailable(t *testing.T) {
	cache := &fakeCache{err: errors.New("store je mimo")}
	lister := &fakeLister{sensors: []registry.Sensor{wideRange(1, "ph")}}
	writer := &fakeWriter{}
	s := testSampler(cache, lister, writer)

	s.tick(context.Background())

	assert.Empty(t, writer.samples())
}

// Izolace chyb: selhání zápisu jednoho senzoru nesmí utnout zbytek ticku.
func TestWriteFailureDoesNotAbortTick(t *testing.T) {
	cache := &fakeCache{values: map[string]string{
		"Biogestor/ph":   "7.1",
		"Biogestor/temp": "35.42",
	}}
	lister := &fakeLister{sensors: []registry.Sensor{
		wideRange(1, "ph"),
		wideRange(2, "temp"),
	}}
	writer := &fakeWriter{failFor: map[int64]error{1: errors.New("insert selhal")}}
	s := testSampler(cache, lister, writer)

	s.tick(context.Background())

	saved := writer.samples()
	require.Len(t, saved, 1)
	assert.Equal(t, int64(2), saved[0].sensorID)
	assert.Equal(t, 35.42, saved[0].value)
}

func TestStartIsIdempotent(t *testing.T) {
	cache := &fakeCache{values: map[string]string{}}
	lister := &fakeLister{}
	writer := &fakeWriter{}
	s := New(cache, lister, writer, "Biogestor", 50*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	assert.True(t, s.Start(ctx))
	assert.False(t, s.Start(ctx), "druhý start musí být no-op")

	cancel()
	s.Wait()
}

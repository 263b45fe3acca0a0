package registry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensorTopic(t *testing.T) {
	sensor := Sensor{Code: "internal_temp"}
	assert.Equal(t, "Biogestor/internal_temp", sensor.Topic("Biogestor"))
}

func TestListReturnsCopy(t *testing.T) {
	svc := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.sensors = []Sensor{
		{ID: 1, Code: "ph", Name: "pH reaktoru"},
		{ID: 2, Code: "temp", Name: "Teplota"},
	}

	first := svc.List()
	assert.Len(t, first, 2)

	// Úprava kopie nesmí prosáknout do interního rosteru.
	first[0].Code = "zmeneno"
	second := svc.List()
	assert.Equal(t, "ph", second[0].Code)
}

func TestListOnEmptyRoster(t *testing.T) {
	svc := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Empty(t, svc.List())
}

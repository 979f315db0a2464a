package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestTelemetry_RecordsThroughTiers(t *testing.T) {
	tel, err := NewTelemetry(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	s := NewMemoryStore(2, WithTelemetry(tel))
	s.Store(Entry{ID: "a"})
	s.Store(Entry{ID: "b"})
	s.Store(Entry{ID: "c"})
	assert.Len(t, s.Search(Query{}, 0), 2)

	e := NewEpisodicMemory(1, 1, WithTelemetry(tel))
	e.CreateEpisode(nil)
	e.CreateEpisode(nil)
	assert.Equal(t, 1, e.Size())
}

func TestTelemetry_GlobalMeter(t *testing.T) {
	tel, err := NewTelemetry(nil)
	require.NoError(t, err)
	assert.NotNil(t, tel)
}

func TestTelemetry_NilIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotPanics(t, func() {
		tel.recordEviction("store", 3)
		tel.recordSearch("store", 1)
	})
}

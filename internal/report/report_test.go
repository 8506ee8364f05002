package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(minute int, received, delivered uint64) Sample {
	return Sample{
		At:         time.Date(2024, 1, 1, 0, minute, 0, 0, time.UTC),
		Received:   received,
		Offered:    received,
		Delivered:  delivered,
		QueueDepth: minute,
	}
}

func TestSeriesKeepsNewest(t *testing.T) {
	s := NewSeries(3)
	for i := 0; i < 5; i++ {
		s.Append(sampleAt(i, uint64(i), 0))
	}

	got := s.Samples()
	require.Len(t, got, 3)
	assert.Equal(t, uint64(2), got[0].Received)
	assert.Equal(t, uint64(4), got[2].Received)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, uint64(4), last.Received)
}

func TestSampleDelta(t *testing.T) {
	d := sampleAt(2, 150, 7).Delta(sampleAt(1, 100, 5))
	assert.Equal(t, uint64(50), d.Received)
	assert.Equal(t, uint64(2), d.Delivered)
	assert.Equal(t, 2, d.QueueDepth)

	// Counters never go backwards; a reset reads as zero.
	assert.Equal(t, uint64(0), sampleAt(2, 10, 0).Delta(sampleAt(1, 100, 0)).Received)
}

func TestReporterTickRecordsSamples(t *testing.T) {
	var received uint64
	series := NewSeries(10)
	r := NewReporter(func() Sample {
		received += 100
		return Sample{Received: received}
	}, series, zerolog.Nop())

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Tick(context.Background(), at))
	require.NoError(t, r.Tick(context.Background(), at.Add(time.Minute)))

	got := r.Series().Samples()
	require.Len(t, got, 2)
	assert.Equal(t, at, got[0].At)
	assert.Equal(t, uint64(200), got[1].Received)
}

func TestDownsampleSamples(t *testing.T) {
	var samples []Sample
	for i := 0; i < 10; i++ {
		samples = append(samples, sampleAt(i, uint64(i), 0))
	}

	out := downsampleSamples(samples, 4)
	require.Len(t, out, 4)
	assert.Equal(t, samples[0], out[0])
	assert.Equal(t, samples[9], out[3])

	assert.Len(t, downsampleSamples(samples, 0), 10)
	assert.Len(t, downsampleSamples(samples, 20), 10)
}

func TestExportWritesFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "stats.csv")
	pngPath := filepath.Join(dir, "out", "stats.png")

	samples := []Sample{sampleAt(0, 0, 0), sampleAt(1, 120, 3), sampleAt(2, 300, 5)}
	require.NoError(t, Export(samples, ExportOptions{CSVPath: csvPath, PNGPath: pngPath}))

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ts", rows[0][0])
	assert.Equal(t, []string{"2024-01-01T00:01:00Z", "120", "120", "0", "0", "0", "3", "0", "0", "1", "0"}, rows[2])

	info, err := os.Stat(pngPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportIdleSeriesStillRenders(t *testing.T) {
	pngPath := filepath.Join(t.TempDir(), "idle.png")
	samples := []Sample{sampleAt(0, 0, 0), sampleAt(1, 0, 0), sampleAt(2, 0, 0)}
	for i := range samples {
		samples[i].QueueDepth = 0
	}
	require.NoError(t, Export(samples, ExportOptions{PNGPath: pngPath}))
	_, err := os.Stat(pngPath)
	assert.NoError(t, err)
}

func TestExportRequiresOutput(t *testing.T) {
	assert.Error(t, Export([]Sample{sampleAt(0, 1, 1)}, ExportOptions{}))
}

package report

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
)

// ExportOptions select the output files.
type ExportOptions struct {
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// Export writes samples as CSV and/or a PNG chart of per-interval activity.
func Export(samples []Sample, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of csv_path or png_path must be set")
	}
	if len(samples) == 0 {
		return nil
	}

	samples = downsampleSamples(samples, opts.MaxPoints)

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, samples); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" && len(samples) >= 2 {
		if err := writeSamplesPNG(opts.PNGPath, samples); err != nil {
			return err
		}
	}
	return nil
}

func downsampleSamples(samples []Sample, max int) []Sample {
	if max <= 1 || len(samples) <= max {
		return samples
	}

	result := make([]Sample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []Sample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ts", "received", "offered", "evicted", "dispatched", "fetch_failed", "delivered", "rate_limited", "delivery_failed", "queue_depth", "in_flight"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, s := range samples {
		record := []string{
			s.At.UTC().Format(time.RFC3339),
			strconv.FormatUint(s.Received, 10),
			strconv.FormatUint(s.Offered, 10),
			strconv.FormatUint(s.Evicted, 10),
			strconv.FormatUint(s.Dispatched, 10),
			strconv.FormatUint(s.FetchFailed, 10),
			strconv.FormatUint(s.Delivered, 10),
			strconv.FormatUint(s.RateLimited, 10),
			strconv.FormatUint(s.DeliveryFailed, 10),
			strconv.Itoa(s.QueueDepth),
			strconv.FormatInt(s.InFlight, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeSamplesPNG plots per-interval deltas, so it needs at least two samples.
func writeSamplesPNG(path string, samples []Sample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	n := len(samples) - 1
	x := make([]time.Time, n)
	received := make([]float64, n)
	evicted := make([]float64, n)
	delivered := make([]float64, n)
	depth := make([]float64, n)

	for i := 1; i < len(samples); i++ {
		d := samples[i].Delta(samples[i-1])
		x[i-1] = d.At
		received[i-1] = float64(d.Received)
		evicted[i-1] = float64(d.Evicted)
		delivered[i-1] = float64(d.Delivered)
		depth[i-1] = float64(d.QueueDepth)
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Events per interval",
			ValueFormatter: countFormatter,
			Range:          nonZeroRange(received, evicted, delivered),
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Queue depth",
			ValueFormatter: countFormatter,
			Range:          nonZeroRange(depth),
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Received", XValues: x, YValues: received},
			chart.TimeSeries{Name: "Evicted", XValues: x, YValues: evicted},
			chart.TimeSeries{Name: "Delivered", XValues: x, YValues: delivered},
			chart.TimeSeries{Name: "Queue depth", XValues: x, YValues: depth, YAxis: chart.YAxisSecondary},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// nonZeroRange spans 0..max so idle intervals still render.
func nonZeroRange(series ...[]float64) *chart.ContinuousRange {
	top := 1.0
	for _, values := range series {
		for _, v := range values {
			top = math.Max(top, v)
		}
	}
	return &chart.ContinuousRange{Min: 0, Max: top}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

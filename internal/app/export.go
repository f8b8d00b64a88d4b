package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"axewatch/internal/difficulty"
	"axewatch/internal/storage"
)

// Export renders the best-difficulty history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	history, err := a.newHistory().Load(ctx)
	if err != nil {
		return err
	}

	records := chartable(history)
	if len(records) == 0 {
		a.Logger.Info().Msg("no best difficulty records to export")
		return nil
	}

	downsampled := downsampleRecords(records, opts.MaxPoints)
	a.Logger.Info().Int("total", len(records)).Int("exported", len(downsampled)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if len(downsampled) < 2 {
			return errors.New("at least two records are needed to draw a chart")
		}
		if err := writeHistoryPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

// chartable keeps the records that have both a value and a timestamp.
func chartable(history []storage.DifficultyRecord) []storage.DifficultyRecord {
	out := make([]storage.DifficultyRecord, 0, len(history))
	for _, rec := range history {
		if rec.Valid && !rec.Timestamp.IsZero() {
			out = append(out, rec)
		}
	}
	return out
}

func downsampleRecords(records []storage.DifficultyRecord, max int) []storage.DifficultyRecord {
	if max <= 0 || len(records) <= max {
		return records
	}
	if max == 1 {
		return records[len(records)-1:]
	}

	result := make([]storage.DifficultyRecord, 0, max)
	step := float64(len(records)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(records) {
			idx = len(records) - 1
		}
		result = append(result, records[idx])
	}
	return result
}

func writeHistoryCSV(path string, records []storage.DifficultyRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"timestamp", "best", "best_short"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(rec.Best, 'f', -1, 64),
			difficulty.Abbreviate(rec.Best),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeHistoryPNG(path string, records []storage.DifficultyRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(records))
	best := make([]float64, len(records))
	for i, rec := range records {
		x[i] = rec.Timestamp
		best[i] = rec.Best
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Best difficulty",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return difficulty.Abbreviate(f)
				}
				return fmt.Sprint(v)
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Best difficulty",
				XValues: x,
				YValues: best,
			},
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

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

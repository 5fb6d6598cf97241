package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"stake-mirror-watch/internal/service"
	"stake-mirror-watch/internal/storage"
	"stake-mirror-watch/internal/timeline"
)

// Curve runs one reconciliation pass against the live feeds and prints the
// resulting debt-vs-mirror curve without touching the database.
func (a *App) Curve(ctx context.Context, opts CurveOptions) error {
	svc := service.New(a.Config, nil, a.newFeeds(), nil, nil, a.Logger)

	obs, err := svc.Observe(ctx)
	if err != nil {
		return err
	}

	points := obs.Curve
	if opts.Limit > 0 && len(points) > opts.Limit {
		points = points[len(points)-opts.Limit:]
	}
	if len(points) == 0 {
		fmt.Fprintln(os.Stdout, "no curve points: no performance samples to anchor against")
		return nil
	}

	if opts.CSVPath != "" || opts.PNGPath != "" {
		if opts.CSVPath != "" {
			if err := writeCurveCSV(opts.CSVPath, points); err != nil {
				return err
			}
		}
		if opts.PNGPath != "" {
			return writeCurvePNG(opts.PNGPath, toCurveRows(points))
		}
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tDebt Pool\tMirror Pool")
	for _, point := range points {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			time.Unix(point.Timestamp, 0).UTC().Format(time.RFC3339),
			formatDecimal(point.DebtPool, 2),
			formatDecimal(point.MirrorPool, 2),
		)
	}
	writer.Flush()
	return nil
}

func toCurveRows(points []timeline.CurvePoint) []storage.CurvePointRow {
	rows := make([]storage.CurvePointRow, len(points))
	for i, point := range points {
		rows[i] = storage.CurvePointRow{
			Timestamp:  time.Unix(point.Timestamp, 0).UTC(),
			DebtPool:   point.DebtPool,
			MirrorPool: point.MirrorPool,
		}
	}
	return rows
}

func writeCurveCSV(path string, points []timeline.CurvePoint) error {
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

	if err := writer.Write([]string{"timestamp", "debt_pool", "mirror_pool"}); err != nil {
		return err
	}
	for _, point := range points {
		record := []string{
			strconv.FormatInt(point.Timestamp, 10),
			point.DebtPool.String(),
			point.MirrorPool.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

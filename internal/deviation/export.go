package deviation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVHeader lists the columns written by WriteCSV
var CSVHeader = []string{
	"flight_id", "start", "stop", "duration", "neighbour_id",
	"min_f_dist", "min_f_time", "min_fp_dist", "min_fp_time", "difference",
	"horizon", "separation", "predicted",
}

// WriteCSV writes records as a table, one row per record. Null fields are empty cells.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.FlightID,
			csvTime(&r.Start),
			csvTime(&r.Stop),
			strconv.FormatFloat(r.Duration, 'f', -1, 64),
			csvString(r.NeighbourID),
			csvFloat(r.MinFDist),
			csvTime(r.MinFTime),
			csvFloat(r.MinFPDist),
			csvTime(r.MinFPTime),
			csvFloat(r.Difference),
			csvTime(&r.Horizon),
			string(r.Separation),
			strconv.FormatBool(r.Predicted),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record of %s: %w", r.FlightID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func csvFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', 3, 64)
}

func csvTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

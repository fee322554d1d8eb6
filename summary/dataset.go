package summary

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Table file names expected under a dataset directory. Missing files are
// fine; the corresponding table stays empty.
const (
	buildingsFile   = "buildings.csv"
	consumptionFile = "consumption.csv"
	weatherFile     = "weather.csv"
	waterFile       = "water.csv"
)

// ReadDataset loads the CSV tables found under dir.
func ReadDataset(dir string) (Dataset, error) {
	var ds Dataset

	if rows, header, ok, err := readCSV(filepath.Join(dir, buildingsFile)); err != nil {
		return Dataset{}, err
	} else if ok {
		ds.Buildings = parseBuildings(header, rows)
	}

	if rows, header, ok, err := readCSV(filepath.Join(dir, consumptionFile)); err != nil {
		return Dataset{}, err
	} else if ok {
		ds.Consumption = parseReadings(header, rows)
	}

	if rows, header, ok, err := readCSV(filepath.Join(dir, weatherFile)); err != nil {
		return Dataset{}, err
	} else if ok {
		ds.Weather = parseWeather(header, rows)
	}

	if rows, header, ok, err := readCSV(filepath.Join(dir, waterFile)); err != nil {
		return Dataset{}, err
	} else if ok {
		ds.Water = parseReadings(header, rows)
	}

	return ds, nil
}

// readCSV returns data rows plus a header index map. ok is false when the
// file does not exist.
func readCSV(path string) (rows [][]string, header map[string]int, ok bool, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("summary: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, false, fmt.Errorf("summary: parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil, true, nil
	}

	header = make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return records[1:], header, true, nil
}

func parseBuildings(header map[string]int, rows [][]string) []Building {
	var out []Building
	for _, row := range rows {
		b := Building{
			ID:        field(header, row, "unique_id"),
			Type:      field(header, row, "building_type"),
			Zone:      field(header, row, "zone_name"),
			SurfaceM2: number(header, row, "surface_area_m2"),
			Latitude:  number(header, row, "latitude"),
			Longitude: number(header, row, "longitude"),
		}
		if b.ID == "" && b.Type == "" && b.Zone == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

func parseReadings(header map[string]int, rows [][]string) []Reading {
	var out []Reading
	for _, row := range rows {
		ts, ok := timestamp(header, row)
		if !ok {
			continue
		}
		out = append(out, Reading{
			SeriesID:  field(header, row, "unique_id"),
			Timestamp: ts,
			Value:     number(header, row, "y"),
		})
	}
	return out
}

func parseWeather(header map[string]int, rows [][]string) []WeatherRow {
	var out []WeatherRow
	for _, row := range rows {
		ts, ok := timestamp(header, row)
		if !ok {
			continue
		}
		vars := make(map[string]float64)
		for name, idx := range header {
			if name == "timestamp" || name == "unique_id" {
				continue
			}
			if idx < len(row) {
				if v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64); err == nil {
					vars[name] = v
				}
			}
		}
		out = append(out, WeatherRow{Timestamp: ts, Variables: vars})
	}
	return out
}

func field(header map[string]int, row []string, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func number(header map[string]int, row []string, name string) float64 {
	v, _ := strconv.ParseFloat(field(header, row, name), 64)
	return v
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func timestamp(header map[string]int, row []string) (time.Time, bool) {
	raw := field(header, row, "timestamp")
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

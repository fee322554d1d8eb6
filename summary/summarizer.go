package summary

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Summarize renders every table of the dataset into knowledge items.
// Output is deterministic: group keys are visited in sorted order, so the
// same dataset always yields the same items in the same order (and therefore
// the same content hashes downstream).
func Summarize(ds Dataset) []Item {
	var items []Item
	items = append(items, buildingTypeSummaries(ds.Buildings)...)
	items = append(items, zoneSummaries(ds.Buildings)...)
	items = append(items, surfaceSummary(ds.Buildings)...)
	items = append(items, consumptionPatterns(ds.Consumption)...)
	items = append(items, weeklyPatterns(ds.Consumption)...)
	items = append(items, temporalStatistics(ds.Consumption)...)
	items = append(items, weatherSummary(ds.Weather)...)
	items = append(items, waterSummary(ds.Water)...)
	return items
}

// buildingTypeSummaries aggregates the inventory per building type.
func buildingTypeSummaries(buildings []Building) []Item {
	if len(buildings) == 0 {
		return nil
	}

	type agg struct {
		count   int
		surface float64
	}
	byType := make(map[string]*agg)
	for _, b := range buildings {
		t := b.Type
		if t == "" {
			t = "unknown"
		}
		if byType[t] == nil {
			byType[t] = &agg{}
		}
		byType[t].count++
		byType[t].surface += b.SurfaceM2
	}

	var items []Item
	for _, t := range sortedKeys(byType) {
		a := byType[t]
		avg := a.surface / float64(a.count)
		share := float64(a.count) / float64(len(buildings)) * 100

		content := fmt.Sprintf(`Building type: %s
Count: %d buildings
Average surface: %.1f m²
Total surface: %.0f m²
Represents %.1f%% of all buildings`, t, a.count, avg, a.surface, share)

		items = append(items, Item{
			Content: content,
			Metadata: map[string]any{
				"type":          "building_type_summary",
				"building_type": t,
				"count":         a.count,
				"avg_surface":   avg,
				"total_surface": a.surface,
			},
		})
	}
	return items
}

// zoneSummaries aggregates the inventory per geographic zone.
func zoneSummaries(buildings []Building) []Item {
	if len(buildings) == 0 {
		return nil
	}

	type agg struct {
		count   int
		surface float64
		types   map[string]int
	}
	byZone := make(map[string]*agg)
	for _, b := range buildings {
		if b.Zone == "" {
			continue
		}
		if byZone[b.Zone] == nil {
			byZone[b.Zone] = &agg{types: make(map[string]int)}
		}
		a := byZone[b.Zone]
		a.count++
		a.surface += b.SurfaceM2
		t := b.Type
		if t == "" {
			t = "unknown"
		}
		a.types[t]++
	}
	if len(byZone) == 0 {
		return nil
	}

	var items []Item
	for _, zone := range sortedKeys(byZone) {
		a := byZone[zone]
		avg := a.surface / float64(a.count)

		var mix []string
		for _, t := range sortedKeys(a.types) {
			mix = append(mix, fmt.Sprintf("%s: %d", t, a.types[t]))
		}

		content := fmt.Sprintf(`Geographic zone: %s
Buildings: %d
Average surface: %.1f m²
Building mix: %s
Building density within this Malaysian zone`, zone, a.count, avg, strings.Join(mix, ", "))

		items = append(items, Item{
			Content: content,
			Metadata: map[string]any{
				"type":        "zone_summary",
				"zone_name":   zone,
				"count":       a.count,
				"avg_surface": avg,
			},
		})
	}
	return items
}

// surfaceSummary renders inventory-wide surface statistics.
func surfaceSummary(buildings []Building) []Item {
	if len(buildings) == 0 {
		return nil
	}

	surfaces := make([]float64, 0, len(buildings))
	for _, b := range buildings {
		surfaces = append(surfaces, b.SurfaceM2)
	}
	sort.Float64s(surfaces)

	var total float64
	for _, s := range surfaces {
		total += s
	}
	mean := total / float64(len(surfaces))
	median := percentile50(surfaces)
	std := stddev(surfaces, mean)

	content := fmt.Sprintf(`Building surface statistics:
Total surface: %.0f m²
Average surface: %.1f m²
Median surface: %.1f m²
Largest building: %.0f m²
Smallest building: %.0f m²
Standard deviation: %.1f m²`,
		total, mean, median, surfaces[len(surfaces)-1], surfaces[0], std)

	return []Item{{
		Content: content,
		Metadata: map[string]any{
			"type":           "surface_statistics",
			"total_surface":  total,
			"mean_surface":   mean,
			"median_surface": median,
			"max_surface":    surfaces[len(surfaces)-1],
			"min_surface":    surfaces[0],
			"std_surface":    std,
		},
	}}
}

// consumptionPatterns renders the hourly load curve (peak and trough hours).
func consumptionPatterns(readings []Reading) []Item {
	if len(readings) == 0 {
		return nil
	}

	var sums [24]float64
	var counts [24]int
	for _, r := range readings {
		h := r.Timestamp.Hour()
		sums[h] += r.Value
		counts[h]++
	}

	peakHour, minHour := -1, -1
	var peakAvg, minAvg, total float64
	hours := 0
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		avg := sums[h] / float64(counts[h])
		total += avg
		hours++
		if peakHour < 0 || avg > peakAvg {
			peakHour, peakAvg = h, avg
		}
		if minHour < 0 || avg < minAvg {
			minHour, minAvg = h, avg
		}
	}
	if hours == 0 {
		return nil
	}

	content := fmt.Sprintf(`Electricity consumption patterns:
Peak consumption: %dh (%.2f kWh average)
Minimum consumption: %dh (%.2f kWh average)
Daily variation: %.2f kWh
Average over 24h: %.2f kWh`,
		peakHour, peakAvg, minHour, minAvg, peakAvg-minAvg, total/float64(hours))

	return []Item{{
		Content: content,
		Metadata: map[string]any{
			"type":            "consumption_patterns",
			"peak_hour":       peakHour,
			"min_hour":        minHour,
			"daily_variation": peakAvg - minAvg,
			"avg_consumption": total / float64(hours),
		},
	}}
}

// weeklyPatterns renders the weekday load profile.
func weeklyPatterns(readings []Reading) []Item {
	if len(readings) == 0 {
		return nil
	}

	var sums [7]float64
	var counts [7]int
	for _, r := range readings {
		d := int(r.Timestamp.Weekday())
		sums[d] += r.Value
		counts[d]++
	}

	peakDay, minDay := -1, -1
	var peakAvg, minAvg float64
	for d := 0; d < 7; d++ {
		if counts[d] == 0 {
			continue
		}
		avg := sums[d] / float64(counts[d])
		if peakDay < 0 || avg > peakAvg {
			peakDay, peakAvg = d, avg
		}
		if minDay < 0 || avg < minAvg {
			minDay, minAvg = d, avg
		}
	}
	if peakDay < 0 {
		return nil
	}

	content := fmt.Sprintf(`Weekly consumption patterns:
Highest consumption day: %s (%.2f kWh)
Lowest consumption day: %s (%.2f kWh)
Weekly variation: %.2f kWh`,
		time.Weekday(peakDay), peakAvg, time.Weekday(minDay), minAvg, peakAvg-minAvg)

	return []Item{{
		Content: content,
		Metadata: map[string]any{
			"type":             "weekly_patterns",
			"peak_day":         time.Weekday(peakDay).String(),
			"min_day":          time.Weekday(minDay).String(),
			"weekly_variation": peakAvg - minAvg,
		},
	}}
}

// temporalStatistics renders coverage and totals of the consumption series.
func temporalStatistics(readings []Reading) []Item {
	if len(readings) == 0 {
		return nil
	}

	start, end := readings[0].Timestamp, readings[0].Timestamp
	var total float64
	maxVal := math.Inf(-1)
	minVal := math.Inf(1)
	for _, r := range readings {
		if r.Timestamp.Before(start) {
			start = r.Timestamp
		}
		if r.Timestamp.After(end) {
			end = r.Timestamp
		}
		total += r.Value
		maxVal = math.Max(maxVal, r.Value)
		minVal = math.Min(minVal, r.Value)
	}

	content := fmt.Sprintf(`Temporal data statistics:
Period covered: %s to %s
Data points: %d
Total consumption: %.2f kWh
Average consumption: %.2f kWh
Peak consumption: %.2f kWh
Minimum consumption: %.2f kWh`,
		start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"),
		len(readings), total, total/float64(len(readings)), maxVal, minVal)

	return []Item{{
		Content: content,
		Metadata: map[string]any{
			"type":              "temporal_statistics",
			"start_date":        start.Format(time.RFC3339),
			"end_date":          end.Format(time.RFC3339),
			"total_points":      len(readings),
			"total_consumption": total,
			"avg_consumption":   total / float64(len(readings)),
			"max_consumption":   maxVal,
			"min_consumption":   minVal,
		},
	}}
}

// weatherSummary renders an overview of the weather observations.
func weatherSummary(rows []WeatherRow) []Item {
	if len(rows) == 0 {
		return nil
	}

	start, end := rows[0].Timestamp, rows[0].Timestamp
	vars := make(map[string]struct{})
	for _, row := range rows {
		if row.Timestamp.Before(start) {
			start = row.Timestamp
		}
		if row.Timestamp.After(end) {
			end = row.Timestamp
		}
		for name := range row.Variables {
			vars[name] = struct{}{}
		}
	}

	names := sortedKeys(vars)
	content := fmt.Sprintf(`Available weather data:
Weather variables: %d
Period: %s to %s
Data points: %d
Tracked variables: %s`,
		len(names), start.Format("2006-01-02"), end.Format("2006-01-02"),
		len(rows), strings.Join(names, ", "))

	return []Item{{
		Content: content,
		Metadata: map[string]any{
			"type":          "weather_summary",
			"columns_count": len(names),
			"data_points":   len(rows),
		},
	}}
}

// waterSummary renders totals over the water consumption series.
func waterSummary(readings []Reading) []Item {
	if len(readings) == 0 {
		return nil
	}

	var total float64
	maxVal := math.Inf(-1)
	minVal := math.Inf(1)
	for _, r := range readings {
		total += r.Value
		maxVal = math.Max(maxVal, r.Value)
		minVal = math.Min(minVal, r.Value)
	}

	content := fmt.Sprintf(`Water consumption data:
Data points: %d
Total consumption: %.2f L
Average consumption: %.2f L
Peak consumption: %.2f L
Minimum consumption: %.2f L`,
		len(readings), total, total/float64(len(readings)), maxVal, minVal)

	return []Item{{
		Content: content,
		Metadata: map[string]any{
			"type":              "water_summary",
			"data_points":       len(readings),
			"total_consumption": total,
			"avg_consumption":   total / float64(len(readings)),
			"max_consumption":   maxVal,
			"min_consumption":   minVal,
		},
	}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func percentile50(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

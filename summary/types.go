package summary

import "time"

// Building is one row of the building inventory.
type Building struct {
	ID        string  `json:"id"`
	Type      string  `json:"building_type"`
	Zone      string  `json:"zone_name"`
	SurfaceM2 float64 `json:"surface_area_m2"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Reading is one timestamped measurement (electricity in kWh, water in L).
type Reading struct {
	SeriesID  string    `json:"unique_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"y"`
}

// WeatherRow is one timestamped weather observation. Variables holds the
// tracked measurements keyed by column name (temperature, humidity, ...).
type WeatherRow struct {
	Timestamp time.Time          `json:"timestamp"`
	Variables map[string]float64 `json:"variables,omitempty"`
}

// Dataset bundles the tables a dashboard exposes. Any table may be empty;
// summarizers for missing tables simply produce nothing.
type Dataset struct {
	Buildings   []Building   `json:"buildings,omitempty"`
	Consumption []Reading    `json:"consumption,omitempty"`
	Weather     []WeatherRow `json:"weather,omitempty"`
	Water       []Reading    `json:"water,omitempty"`
}

// Item is one generated knowledge item.
type Item struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

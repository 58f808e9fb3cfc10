package models

import "encoding/json"

// Station is one row of the station table.
type Station struct {
	Station   string
	Name      string
	Latitude  *float64
	Longitude *float64
	Elevation *float64
}

// Measurement is one row of the measurement table. Prcp and Tobs are nil when the column is NULL.
type Measurement struct {
	Station string
	Date    string
	Prcp    *float64
	Tobs    *float64
}

// PrecipitationReading is a (date, prcp) pair. It encodes as a two-element JSON array.
type PrecipitationReading struct {
	Date string
	Prcp *float64
}

func (p PrecipitationReading) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Date, p.Prcp})
}

// StationSummary is one element of the stations response. NULL columns encode as null.
type StationSummary struct {
	Name      *string `json:"Name"`
	StationID *string `json:"Station ID"`
}

type TemperatureObservation struct {
	Date        string   `json:"Date"`
	Temperature *float64 `json:"Temperature"`
}

// TemperatureAggregate is the single row produced by MIN/AVG/MAX over tobs.
// All three are nil when no row matched.
type TemperatureAggregate struct {
	Min *float64
	Avg *float64
	Max *float64
}

// TemperatureStats is the response object of the temperature statistics routes.
// Fields are declared in key order so the encoded object is sorted. EndDate is
// omitted for open-ended ranges.
type TemperatureStats struct {
	AverageTemperature *float64 `json:"Average Temperature"`
	EndDate            *string  `json:"End Date,omitempty"`
	MaximumTemperature *float64 `json:"Maximum Temperature"`
	MinimumTemperature *float64 `json:"Minimum Temperature"`
	StartDate          string   `json:"Start Date"`
}

package models

import (
	"encoding/json"
	"strconv"
)

// Field firmware occasionally sends metric values as quoted numbers or
// outright garbage. A malformed metric decodes as absent rather than
// failing the reading, so one bad field cannot take the whole sample down.

func lenientFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v
	}

	// Quoted numbers are common enough to tolerate
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return &f
		}
	}

	return nil
}

// UnmarshalJSON decodes the block leniently
func (d *DHT22) UnmarshalJSON(b []byte) error {
	var aux struct {
		Temperature json.RawMessage `json:"temperature"`
		Humidity    json.RawMessage `json:"humidity"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return nil
	}
	d.Temperature = lenientFloat(aux.Temperature)
	d.Humidity = lenientFloat(aux.Humidity)
	return nil
}

// UnmarshalJSON decodes the block leniently
func (m *MAX30100) UnmarshalJSON(b []byte) error {
	var aux struct {
		HeartRate json.RawMessage `json:"heartRate"`
		SpO2      json.RawMessage `json:"spo2"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return nil
	}
	m.HeartRate = lenientFloat(aux.HeartRate)
	m.SpO2 = lenientFloat(aux.SpO2)
	return nil
}

// UnmarshalJSON decodes the block leniently
func (d *DS18B20) UnmarshalJSON(b []byte) error {
	var aux struct {
		Temperature json.RawMessage `json:"temperature"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return nil
	}
	d.Temperature = lenientFloat(aux.Temperature)
	return nil
}

// UnmarshalJSON decodes the block leniently
func (g *GPS) UnmarshalJSON(b []byte) error {
	var aux struct {
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return nil
	}
	g.Latitude = lenientFloat(aux.Latitude)
	g.Longitude = lenientFloat(aux.Longitude)
	return nil
}

package models

import (
	"errors"
	"strings"
	"time"
)

// Validation errors
var (
	ErrMissingTagNumber = errors.New("tagNumber is required")
	ErrTagNumberTooLong = errors.New("tagNumber exceeds maximum length")
)

// MaxTagNumberLength bounds the device identifier size
const MaxTagNumberLength = 64

// DefaultTimeZone is the fixed zone readings are stamped in when the device
// does not supply a timestamp (farm deployment runs on Pakistan time).
var DefaultTimeZone = time.FixedZone("PKT", 5*60*60)

// DHT22 is the ambient temperature/humidity sensor block
type DHT22 struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// MAX30100 is the pulse-oximeter sensor block
type MAX30100 struct {
	HeartRate *float64 `json:"heartRate,omitempty"`
	SpO2      *float64 `json:"spo2,omitempty"`
}

// DS18B20 is the body-temperature probe block
type DS18B20 struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

// GPS is the location block
type GPS struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Reading is one sensor sample from a wearable tag.
//
// TagNumber is the only required field. Every sensor block is optional and
// independently nullable: an absent block means the metric was not sampled,
// not that it was zero.
type Reading struct {
	TagNumber string    `json:"tagNumber"`
	DHT22     *DHT22    `json:"dht22,omitempty"`
	MAX30100  *MAX30100 `json:"max30100,omitempty"`
	DS18B20   *DS18B20  `json:"ds18b20,omitempty"`
	GPS       *GPS      `json:"gps,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Normalize trims the tag identifier and stamps missing timestamps with the
// ingestion time in the default zone.
func (r *Reading) Normalize() {
	r.TagNumber = strings.TrimSpace(r.TagNumber)

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().In(DefaultTimeZone)
	}
}

// Validate checks the reading for required fields
func (r *Reading) Validate() error {
	if r.TagNumber == "" {
		return ErrMissingTagNumber
	}

	if len(r.TagNumber) > MaxTagNumberLength {
		return ErrTagNumberTooLong
	}

	return nil
}

// HeartRate returns the heart rate metric, or nil if not sampled
func (r *Reading) HeartRate() *float64 {
	if r.MAX30100 == nil {
		return nil
	}
	return r.MAX30100.HeartRate
}

// SpO2 returns the blood-oxygen metric, or nil if not sampled
func (r *Reading) SpO2() *float64 {
	if r.MAX30100 == nil {
		return nil
	}
	return r.MAX30100.SpO2
}

// BodyTemperature returns the probe temperature, or nil if not sampled
func (r *Reading) BodyTemperature() *float64 {
	if r.DS18B20 == nil {
		return nil
	}
	return r.DS18B20.Temperature
}

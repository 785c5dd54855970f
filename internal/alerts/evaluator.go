package alerts

import (
	"github.com/UmarSaeed090/sensors-backend/internal/config"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

// Condition names raised by the default thresholds
const (
	ConditionAbnormalBodyTemperature = "Abnormal Body Temperature"
	ConditionAbnormalHeartRate       = "Abnormal Heart Rate"
	ConditionLowSpO2                 = "Low SpO2"
)

// Metric keys used for configuration overrides
const (
	MetricBodyTemperature = "body_temperature"
	MetricHeartRate       = "heart_rate"
	MetricSpO2            = "spo2"
)

// Threshold is one alert rule: a named condition with an open or closed
// numeric range over a single metric. Nil bounds are unbounded. A value
// exactly at a bound is in range; breaches are strict.
type Threshold struct {
	Condition string
	Metric    string
	Min       *float64
	Max       *float64
	Value     func(*models.Reading) *float64
}

// Breached reports whether v falls strictly outside the range
func (t Threshold) Breached(v float64) bool {
	if t.Min != nil && v < *t.Min {
		return true
	}
	if t.Max != nil && v > *t.Max {
		return true
	}
	return false
}

// Evaluator classifies readings against a fixed set of thresholds.
// It is pure and stateless: identical readings always produce the same
// condition set, in threshold declaration order.
type Evaluator struct {
	thresholds []Threshold
}

func f64(v float64) *float64 { return &v }

func defaultThresholds() []Threshold {
	return []Threshold{
		{
			Condition: ConditionAbnormalBodyTemperature,
			Metric:    MetricBodyTemperature,
			Min:       f64(30),
			Max:       f64(39),
			Value:     (*models.Reading).BodyTemperature,
		},
		{
			Condition: ConditionAbnormalHeartRate,
			Metric:    MetricHeartRate,
			Min:       f64(60),
			Max:       f64(100),
			Value:     (*models.Reading).HeartRate,
		},
		{
			Condition: ConditionLowSpO2,
			Metric:    MetricSpO2,
			Min:       f64(95),
			Value:     (*models.Reading).SpO2,
		},
	}
}

// NewEvaluator builds an evaluator with the default livestock thresholds,
// applying any per-metric range overrides from configuration.
func NewEvaluator(overrides map[string]config.ThresholdConfig) *Evaluator {
	thresholds := defaultThresholds()

	for i := range thresholds {
		o, ok := overrides[thresholds[i].Metric]
		if !ok {
			continue
		}
		if o.Min != nil {
			thresholds[i].Min = o.Min
		}
		if o.Max != nil {
			thresholds[i].Max = o.Max
		}
	}

	return &Evaluator{thresholds: thresholds}
}

// Evaluate returns the names of every condition the reading breaches.
// Metrics absent from the reading are skipped, never treated as zero.
func (e *Evaluator) Evaluate(r *models.Reading) []string {
	var conditions []string

	for _, t := range e.thresholds {
		v := t.Value(r)
		if v == nil {
			continue
		}
		if t.Breached(*v) {
			conditions = append(conditions, t.Condition)
		}
	}

	return conditions
}

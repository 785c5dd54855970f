package alerts

import (
	"reflect"
	"testing"

	"github.com/UmarSaeed090/sensors-backend/internal/config"
	"github.com/UmarSaeed090/sensors-backend/internal/models"
)

func f(v float64) *float64 { return &v }

func bodyTempReading(v float64) *models.Reading {
	return &models.Reading{
		TagNumber: "COW1",
		DS18B20:   &models.DS18B20{Temperature: f(v)},
	}
}

func TestEvaluateBodyTemperatureBoundaries(t *testing.T) {
	e := NewEvaluator(nil)

	cases := []struct {
		value  float64
		breach bool
	}{
		{30, false}, // exactly at the bound is not a breach
		{39, false},
		{29.9, true},
		{39.1, true},
		{35, false},
	}

	for _, tc := range cases {
		conditions := e.Evaluate(bodyTempReading(tc.value))
		got := len(conditions) > 0
		if got != tc.breach {
			t.Errorf("body temperature %v: breach=%v, want %v", tc.value, got, tc.breach)
		}
	}
}

func TestEvaluateHeartRate(t *testing.T) {
	e := NewEvaluator(nil)

	r := &models.Reading{
		TagNumber: "COW1",
		MAX30100:  &models.MAX30100{HeartRate: f(150)},
	}

	conditions := e.Evaluate(r)
	if !reflect.DeepEqual(conditions, []string{ConditionAbnormalHeartRate}) {
		t.Fatalf("unexpected conditions: %v", conditions)
	}

	for _, v := range []float64{60, 100, 80} {
		r.MAX30100.HeartRate = f(v)
		if got := e.Evaluate(r); len(got) != 0 {
			t.Errorf("heart rate %v should not breach, got %v", v, got)
		}
	}
}

func TestEvaluateSpO2(t *testing.T) {
	e := NewEvaluator(nil)

	r := &models.Reading{
		TagNumber: "COW1",
		MAX30100:  &models.MAX30100{SpO2: f(94.9)},
	}

	conditions := e.Evaluate(r)
	if !reflect.DeepEqual(conditions, []string{ConditionLowSpO2}) {
		t.Fatalf("unexpected conditions: %v", conditions)
	}

	// SpO2 has no upper limit
	for _, v := range []float64{95, 99, 100} {
		r.MAX30100.SpO2 = f(v)
		if got := e.Evaluate(r); len(got) != 0 {
			t.Errorf("spo2 %v should not breach, got %v", v, got)
		}
	}
}

func TestEvaluateAbsentBlocks(t *testing.T) {
	e := NewEvaluator(nil)

	if got := e.Evaluate(&models.Reading{TagNumber: "COW1"}); len(got) != 0 {
		t.Errorf("empty reading should not breach, got %v", got)
	}

	// A block present with a nil metric is still not a breach
	r := &models.Reading{TagNumber: "COW1", MAX30100: &models.MAX30100{}}
	if got := e.Evaluate(r); len(got) != 0 {
		t.Errorf("nil metrics should not breach, got %v", got)
	}
}

func TestEvaluateMultipleBreaches(t *testing.T) {
	e := NewEvaluator(nil)

	r := &models.Reading{
		TagNumber: "COW1",
		DS18B20:   &models.DS18B20{Temperature: f(41)},
		MAX30100:  &models.MAX30100{HeartRate: f(150), SpO2: f(88)},
	}

	want := []string{
		ConditionAbnormalBodyTemperature,
		ConditionAbnormalHeartRate,
		ConditionLowSpO2,
	}
	if got := e.Evaluate(r); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEvaluator(nil)

	r := &models.Reading{
		TagNumber: "COW1",
		MAX30100:  &models.MAX30100{HeartRate: f(150), SpO2: f(88)},
	}

	first := e.Evaluate(r)
	for i := 0; i < 10; i++ {
		if got := e.Evaluate(r); !reflect.DeepEqual(got, first) {
			t.Fatalf("evaluation not deterministic: %v vs %v", got, first)
		}
	}
}

func TestEvaluateConfigOverrides(t *testing.T) {
	e := NewEvaluator(map[string]config.ThresholdConfig{
		MetricHeartRate: {Max: f(160)},
	})

	r := &models.Reading{
		TagNumber: "COW1",
		MAX30100:  &models.MAX30100{HeartRate: f(150)},
	}
	if got := e.Evaluate(r); len(got) != 0 {
		t.Errorf("150 bpm under raised limit should not breach, got %v", got)
	}

	r.MAX30100.HeartRate = f(161)
	if got := e.Evaluate(r); !reflect.DeepEqual(got, []string{ConditionAbnormalHeartRate}) {
		t.Errorf("161 bpm should breach raised limit, got %v", got)
	}

	// Min side keeps the default when only Max is overridden
	r.MAX30100.HeartRate = f(50)
	if got := e.Evaluate(r); !reflect.DeepEqual(got, []string{ConditionAbnormalHeartRate}) {
		t.Errorf("50 bpm should still breach default min, got %v", got)
	}
}

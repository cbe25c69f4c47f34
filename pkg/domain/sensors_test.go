package domain

import "testing"

func TestDetectBreaches(t *testing.T) {
	limits := DefaultSensorLimits()
	ok := SensorReading{TemperatureC: 4, HumidityPct: 90, SensorState: SensorOperational}
	if got := DetectBreaches(ok, limits); len(got) != 0 {
		t.Fatalf("expected no breaches, got %+v", got)
	}

	warm := SensorReading{TemperatureC: 8.5, HumidityPct: 82, SensorState: SensorOperational}
	got := DetectBreaches(warm, limits)
	if len(got) != 2 {
		t.Fatalf("expected two breaches, got %+v", got)
	}
	if got[0].Parameter != "temperature_c" || got[0].Limit != 8 || got[0].Level != AlertMedium {
		t.Fatalf("unexpected temperature breach %+v", got[0])
	}
	if got[1].Parameter != "humidity_pct" || got[1].Limit != 85 || got[1].Level != AlertLow {
		t.Fatalf("unexpected humidity breach %+v", got[1])
	}

	fault := SensorReading{TemperatureC: 4, HumidityPct: 90, SensorState: SensorFault}
	got = DetectBreaches(fault, limits)
	if len(got) != 1 || got[0].Type != AlertTypeSensorFault {
		t.Fatalf("expected fault breach, got %+v", got)
	}
}

func TestBreachLevelGrades(t *testing.T) {
	cases := []struct {
		detected, limit float64
		want            AlertLevel
	}{
		{8.2, 8, AlertLow},
		{9, 8, AlertMedium},
		{10, 8, AlertHigh},
		{20, 8, AlertCritical},
		{0.2, 0, AlertHigh},
	}
	for _, tc := range cases {
		if got := breachLevel(tc.detected, tc.limit); got != tc.want {
			t.Fatalf("breachLevel(%v, %v) = %s, want %s", tc.detected, tc.limit, got, tc.want)
		}
	}
}

func TestDisabledRangeSkipsParameter(t *testing.T) {
	r := SensorReading{PH: 13, Brix: 40, SensorState: SensorOperational}
	if got := DetectBreaches(r, SensorLimits{}); len(got) != 0 {
		t.Fatalf("zero limits should disable checks, got %+v", got)
	}
}

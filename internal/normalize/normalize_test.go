package normalize

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeGeocode(t *testing.T) {
	raw := `{"geocodes":[{"location":"113.5,22.3","formatted_address":"珠海市香洲区","city":"珠海市","district":"香洲区"}]}`

	result := Normalize(raw)
	if result.Kind != KindGeocode {
		t.Fatalf("Kind = %v, want KindGeocode", result.Kind)
	}

	g := result.Geocode
	if g.Location != "113.5,22.3" {
		t.Errorf("Location = %q, want %q", g.Location, "113.5,22.3")
	}
	if g.FormattedAddress != "珠海市香洲区" {
		t.Errorf("FormattedAddress = %q", g.FormattedAddress)
	}
	if g.City != "珠海市" {
		t.Errorf("City = %q", g.City)
	}
	if g.District != "香洲区" {
		t.Errorf("District = %q", g.District)
	}

	// Only the reduced fields survive.
	var fields map[string]any
	if err := json.Unmarshal([]byte(result.Compact()), &fields); err != nil {
		t.Fatalf("Compact not valid JSON: %v", err)
	}
	if len(fields) != 4 {
		t.Errorf("Compact carries %d fields, want 4: %v", len(fields), fields)
	}
}

func TestNormalizeGeocodeFirstCandidateOnly(t *testing.T) {
	raw := `{"geocodes":[{"formatted_address":"first"},{"formatted_address":"second"}]}`

	result := Normalize(raw)
	if result.Kind != KindGeocode {
		t.Fatalf("Kind = %v, want KindGeocode", result.Kind)
	}
	if result.Geocode.FormattedAddress != "first" {
		t.Errorf("FormattedAddress = %q, want first candidate", result.Geocode.FormattedAddress)
	}
}

func TestNormalizeReverseGeocode(t *testing.T) {
	raw := `{"regeocode":{"formatted_address":"广东省珠海市香洲区","addressComponent":{"city":"珠海市","district":"香洲区"}}}`

	result := Normalize(raw)
	if result.Kind != KindReverseGeocode {
		t.Fatalf("Kind = %v, want KindReverseGeocode", result.Kind)
	}
	if result.ReverseGeocode.City != "珠海市" {
		t.Errorf("City = %q", result.ReverseGeocode.City)
	}
	if result.ReverseGeocode.FormattedAddress != "广东省珠海市香洲区" {
		t.Errorf("FormattedAddress = %q", result.ReverseGeocode.FormattedAddress)
	}
}

func TestNormalizeRoute(t *testing.T) {
	raw := `{"route":{"paths":[{"distance":"66000","duration":"4500","tolls":"85","strategy":"速度最快"},{"distance":"72000"}]}}`

	result := Normalize(raw)
	if result.Kind != KindRoute {
		t.Fatalf("Kind = %v, want KindRoute", result.Kind)
	}
	r := result.Route
	if r.Distance != "66000" || r.Duration != "4500" || r.Tolls != "85" {
		t.Errorf("Route = %+v", r)
	}
	if r.Strategy != "速度最快" {
		t.Errorf("Strategy = %q", r.Strategy)
	}
}

func TestNormalizeRouteDefaultsMissingFields(t *testing.T) {
	result := Normalize(`{"route":{"paths":[{"distance":"1000"}]}}`)
	if result.Kind != KindRoute {
		t.Fatalf("Kind = %v, want KindRoute", result.Kind)
	}
	if result.Route.Duration != "0" || result.Route.Tolls != "0" {
		t.Errorf("missing fields should default to 0, got %+v", result.Route)
	}
}

func TestNormalizeForecastCapsAtThreeDays(t *testing.T) {
	raw := `{"forecasts":[{"city":"珠海市","casts":[
		{"date":"2025-01-01","dayweather":"晴","daytemp":"20","nighttemp":"12"},
		{"date":"2025-01-02","dayweather":"多云","daytemp":"19","nighttemp":"11"},
		{"date":"2025-01-03","dayweather":"小雨","daytemp":"16","nighttemp":"10"},
		{"date":"2025-01-04","dayweather":"阴","daytemp":"15","nighttemp":"9"}
	]}]}`

	result := Normalize(raw)
	if result.Kind != KindForecast {
		t.Fatalf("Kind = %v, want KindForecast", result.Kind)
	}
	if result.Forecast.City != "珠海市" {
		t.Errorf("City = %q", result.Forecast.City)
	}
	if len(result.Forecast.Casts) != 3 {
		t.Fatalf("Casts = %d, want 3", len(result.Forecast.Casts))
	}
	if result.Forecast.Casts[0].DayWeather != "晴" {
		t.Errorf("first cast = %+v", result.Forecast.Casts[0])
	}
}

func TestNormalizePlacesCapsAtThree(t *testing.T) {
	raw := `{"pois":[
		{"name":"甲","address":"a","location":"1,1","type":"餐饮"},
		{"name":"乙","address":"b","location":"2,2","type":"餐饮"},
		{"name":"丙","address":"c","location":"3,3","type":"餐饮"},
		{"name":"丁","address":"d","location":"4,4","type":"餐饮"}
	]}`

	result := Normalize(raw)
	if result.Kind != KindPlaceList {
		t.Fatalf("Kind = %v, want KindPlaceList", result.Kind)
	}
	if len(result.Places) != 3 {
		t.Fatalf("Places = %d, want 3", len(result.Places))
	}
	if !strings.HasPrefix(result.Compact(), `{"pois":`) {
		t.Errorf("Compact = %q, want pois wrapper", result.Compact())
	}
}

func TestNormalizeOpaquePassthrough(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain text", "骑行约2小时"},
		{"invalid json", "{not json"},
		{"unrecognized shape", `{"status":"1","info":"OK"}`},
		{"json array", `[1,2,3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.raw)
			if result.Kind != KindOpaque {
				t.Fatalf("Kind = %v, want KindOpaque", result.Kind)
			}
			if result.Text != tt.raw {
				t.Errorf("Text = %q, want input unchanged", result.Text)
			}
			if result.Compact() != tt.raw {
				t.Errorf("Compact = %q, want input unchanged", result.Compact())
			}
		})
	}
}

func TestStrToleratesNumbers(t *testing.T) {
	result := Normalize(`{"route":{"paths":[{"distance":66000,"duration":4500}]}}`)
	if result.Kind != KindRoute {
		t.Fatalf("Kind = %v, want KindRoute", result.Kind)
	}
	if result.Route.Distance != "66000" {
		t.Errorf("Distance = %q, want numeric value rendered as string", result.Route.Distance)
	}
}

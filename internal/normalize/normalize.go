// Package normalize reduces raw tool responses to the small fixed
// structures the orchestrator reasons over. The reduction is lossy on
// purpose: only a bounded subset of fields survives, keeping model
// context small.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind identifies the recognized response shape.
type Kind int

const (
	// KindOpaque is an unrecognized payload, passed through as text.
	KindOpaque Kind = iota
	KindGeocode
	KindReverseGeocode
	KindRoute
	KindForecast
	KindPlaceList
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindGeocode:
		return "geocode"
	case KindReverseGeocode:
		return "reverse_geocode"
	case KindRoute:
		return "route"
	case KindForecast:
		return "forecast"
	case KindPlaceList:
		return "place_list"
	default:
		return "opaque"
	}
}

// Geocode is the reduced form of a forward-geocoding response.
// Only the first candidate survives.
type Geocode struct {
	Location         string `json:"location"`
	FormattedAddress string `json:"formatted_address"`
	City             string `json:"city"`
	District         string `json:"district"`
}

// ReverseGeocode is the reduced form of a reverse-geocoding response.
type ReverseGeocode struct {
	FormattedAddress string `json:"formatted_address"`
	City             string `json:"city"`
	District         string `json:"district"`
}

// Route is the reduced form of a direction response. Only the first
// path survives. Distances are meters and durations seconds, carried
// as strings the way the upstream API reports them.
type Route struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Tolls    string `json:"tolls"`
	Strategy string `json:"strategy"`
}

// Cast is a single day of a weather forecast.
type Cast struct {
	Date       string `json:"date"`
	DayWeather string `json:"dayweather"`
	DayTemp    string `json:"daytemp"`
	NightTemp  string `json:"nighttemp"`
}

// Forecast is the reduced form of a weather response, capped at the
// first three days.
type Forecast struct {
	City  string `json:"city"`
	Casts []Cast `json:"casts"`
}

// Place is a single point of interest.
type Place struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Location string `json:"location"`
	Type     string `json:"type"`
}

// Result is the tagged union over recognized response shapes. Exactly
// the variant matching Kind is populated; Text carries the original
// payload for KindOpaque.
type Result struct {
	Kind           Kind
	Geocode        *Geocode
	ReverseGeocode *ReverseGeocode
	Route          *Route
	Forecast       *Forecast
	Places         []Place
	Text           string
}

// Normalize classifies and reduces a raw tool response. Text that does
// not look object-shaped, or parses to an unrecognized shape, passes
// through unchanged as KindOpaque.
func Normalize(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return Result{Kind: KindOpaque, Text: raw}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return Result{Kind: KindOpaque, Text: raw}
	}

	if r, ok := reduceGeocode(payload); ok {
		return r
	}
	if r, ok := reduceReverseGeocode(payload); ok {
		return r
	}
	if r, ok := reduceRoute(payload); ok {
		return r
	}
	if r, ok := reduceForecast(payload); ok {
		return r
	}
	if r, ok := reducePlaces(payload); ok {
		return r
	}

	return Result{Kind: KindOpaque, Text: raw}
}

// Compact renders the reduced result as the string stored in
// conversation history and the tool cache. Recognized shapes become
// compact JSON; opaque results are returned verbatim.
func (r Result) Compact() string {
	var v any
	switch r.Kind {
	case KindGeocode:
		v = r.Geocode
	case KindReverseGeocode:
		v = r.ReverseGeocode
	case KindRoute:
		v = r.Route
	case KindForecast:
		v = r.Forecast
	case KindPlaceList:
		v = map[string]any{"pois": r.Places}
	default:
		return r.Text
	}
	data, err := json.Marshal(v)
	if err != nil {
		return r.Text
	}
	return string(data)
}

func reduceGeocode(payload map[string]any) (Result, bool) {
	list, ok := payload["geocodes"].([]any)
	if !ok || len(list) == 0 {
		return Result{}, false
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return Result{}, false
	}
	return Result{
		Kind: KindGeocode,
		Geocode: &Geocode{
			Location:         str(first["location"]),
			FormattedAddress: str(first["formatted_address"]),
			City:             str(first["city"]),
			District:         str(first["district"]),
		},
	}, true
}

func reduceReverseGeocode(payload map[string]any) (Result, bool) {
	regeo, ok := payload["regeocode"].(map[string]any)
	if !ok {
		return Result{}, false
	}
	component, _ := regeo["addressComponent"].(map[string]any)
	return Result{
		Kind: KindReverseGeocode,
		ReverseGeocode: &ReverseGeocode{
			FormattedAddress: str(regeo["formatted_address"]),
			City:             str(component["city"]),
			District:         str(component["district"]),
		},
	}, true
}

func reduceRoute(payload map[string]any) (Result, bool) {
	route, ok := payload["route"].(map[string]any)
	if !ok {
		return Result{}, false
	}
	paths, ok := route["paths"].([]any)
	if !ok || len(paths) == 0 {
		return Result{}, false
	}
	first, ok := paths[0].(map[string]any)
	if !ok {
		return Result{}, false
	}
	return Result{
		Kind: KindRoute,
		Route: &Route{
			Distance: strOr(first["distance"], "0"),
			Duration: strOr(first["duration"], "0"),
			Tolls:    strOr(first["tolls"], "0"),
			Strategy: str(first["strategy"]),
		},
	}, true
}

func reduceForecast(payload map[string]any) (Result, bool) {
	list, ok := payload["forecasts"].([]any)
	if !ok || len(list) == 0 {
		return Result{}, false
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return Result{}, false
	}

	var casts []Cast
	if rawCasts, ok := first["casts"].([]any); ok {
		for _, rc := range rawCasts {
			if len(casts) >= 3 {
				break
			}
			cast, ok := rc.(map[string]any)
			if !ok {
				continue
			}
			casts = append(casts, Cast{
				Date:       str(cast["date"]),
				DayWeather: str(cast["dayweather"]),
				DayTemp:    str(cast["daytemp"]),
				NightTemp:  str(cast["nighttemp"]),
			})
		}
	}

	return Result{
		Kind: KindForecast,
		Forecast: &Forecast{
			City:  str(first["city"]),
			Casts: casts,
		},
	}, true
}

func reducePlaces(payload map[string]any) (Result, bool) {
	list, ok := payload["pois"].([]any)
	if !ok {
		return Result{}, false
	}

	var places []Place
	for _, rp := range list {
		if len(places) >= 3 {
			break
		}
		poi, ok := rp.(map[string]any)
		if !ok {
			continue
		}
		places = append(places, Place{
			Name:     str(poi["name"]),
			Address:  str(poi["address"]),
			Location: str(poi["location"]),
			Type:     str(poi["type"]),
		})
	}

	return Result{Kind: KindPlaceList, Places: places}, true
}

// str renders a decoded JSON value as a string. The upstream API
// reports numeric fields as strings, but be tolerant of numbers.
func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func strOr(v any, fallback string) string {
	if s := str(v); s != "" {
		return s
	}
	return fallback
}

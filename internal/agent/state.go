package agent

import "strings"

// Category tags a tool by the kind of information it yields.
type Category int

const (
	CategoryNone Category = iota
	CategoryLocation
	CategoryRoute
	CategoryWeather
	CategoryPOI
)

// categorize maps an AMap tool name to its information category.
// Direction and search tools are matched by substring since they come
// in families (driving, walking, transit; text, around, detail).
func categorize(toolName string) Category {
	switch {
	case toolName == "maps_geo" || toolName == "maps_regeocode":
		return CategoryLocation
	case strings.Contains(toolName, "direction"):
		return CategoryRoute
	case toolName == "maps_weather":
		return CategoryWeather
	case strings.Contains(toolName, "search"):
		return CategoryPOI
	default:
		return CategoryNone
	}
}

// InfoState tracks which information categories have been gathered
// during one query. Flags only ever go from false to true; a fresh
// value is used for each query.
type InfoState struct {
	Location bool
	Route    bool
	Weather  bool
	POI      bool
}

// Mark records a successful tool call of the given category.
func (s *InfoState) Mark(c Category) {
	switch c {
	case CategoryLocation:
		s.Location = true
	case CategoryRoute:
		s.Route = true
	case CategoryWeather:
		s.Weather = true
	case CategoryPOI:
		s.POI = true
	}
}

// Sufficient reports whether the gathered categories satisfy the
// query kind. General queries have no shortcut and always return
// false.
func (s InfoState) Sufficient(kind QueryKind) bool {
	switch kind {
	case QueryTravel:
		return s.Location && s.Route
	case QueryWeather:
		return s.Location && s.Weather
	case QuerySearch:
		return s.POI
	default:
		return false
	}
}

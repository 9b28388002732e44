// Package memory provides the cross-query store: locations, points of
// interest, route plans, and a short conversation digest that carry
// over from one query to the next.
package memory

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/waypoint-ai/waypoint/internal/normalize"
	"github.com/waypoint-ai/waypoint/internal/routeinfo"
)

// Capacity limits for the bounded collections.
const (
	MaxPOIs          = 10
	MaxDigestEntries = 5
)

// Location is a named place the user has asked about.
type Location struct {
	Address     string `json:"address"`
	Coordinates string `json:"location"`
	City        string `json:"city"`
}

// RoutePlan is a remembered route between two places. Details is set
// once, when the route is first seen.
type RoutePlan struct {
	Distance string             `json:"distance"`
	Duration string             `json:"duration"`
	Tolls    string             `json:"tolls"`
	Details  *routeinfo.Template `json:"details,omitempty"`
}

// DigestEntry is one remembered query/answer exchange.
type DigestEntry struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// Snapshot is the serializable state of the store, used for the memory
// API endpoint and SQLite persistence.
type Snapshot struct {
	Locations  map[string]Location  `json:"locations"`
	POIs       []normalize.Place    `json:"pois"`
	RoutePlans map[string]RoutePlan `json:"route_plans"`
	LastQuery  string               `json:"last_query"`
	QueryCount int                  `json:"query_count"`
	Digest     []DigestEntry        `json:"conversation_digest"`
}

// Store holds cross-query memory. It lives for the process lifetime
// and is only written at the end of a completed query.
type Store struct {
	mu         sync.RWMutex
	locations  map[string]Location
	pois       []normalize.Place
	routePlans map[string]RoutePlan
	lastQuery  string
	queryCount int
	digest     []DigestEntry

	routes *routeinfo.Table
	logger *slog.Logger
}

// NewStore creates an empty store using routes for first-sighting
// route-plan enrichment.
func NewStore(routes *routeinfo.Table, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if routes == nil {
		routes = routeinfo.Default()
	}
	return &Store{
		locations:  make(map[string]Location),
		routePlans: make(map[string]RoutePlan),
		routes:     routes,
		logger:     logger.With("component", "memory"),
	}
}

// QueryCount returns the number of completed queries folded in so far.
func (s *Store) QueryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryCount
}

// Reset clears all remembered state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = make(map[string]Location)
	s.pois = nil
	s.routePlans = make(map[string]RoutePlan)
	s.lastQuery = ""
	s.queryCount = 0
	s.digest = nil
	s.logger.Info("memory reset")
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Locations:  make(map[string]Location, len(s.locations)),
		POIs:       append([]normalize.Place(nil), s.pois...),
		RoutePlans: make(map[string]RoutePlan, len(s.routePlans)),
		LastQuery:  s.lastQuery,
		QueryCount: s.queryCount,
		Digest:     append([]DigestEntry(nil), s.digest...),
	}
	for k, v := range s.locations {
		snap.Locations[k] = v
	}
	for k, v := range s.routePlans {
		snap.RoutePlans[k] = v
	}
	return snap
}

// Restore replaces the store state with a previously taken snapshot.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locations = snap.Locations
	if s.locations == nil {
		s.locations = make(map[string]Location)
	}
	s.pois = snap.POIs
	s.routePlans = snap.RoutePlans
	if s.routePlans == nil {
		s.routePlans = make(map[string]RoutePlan)
	}
	s.lastQuery = snap.LastQuery
	s.queryCount = snap.QueryCount
	s.digest = snap.Digest
}

// Update folds one completed query into the store: named locations from
// geocode results, POIs (bounded), route plans keyed origin-destination
// with first-sighting template enrichment, and the conversation digest.
func (s *Store) Update(query string, results []normalize.Result, finalAnswer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queryCount++
	s.lastQuery = query

	if finalAnswer != "" {
		s.digest = append(s.digest, DigestEntry{
			Query:  query,
			Answer: truncateRunes(finalAnswer, 200),
		})
		if len(s.digest) > MaxDigestEntries {
			s.digest = s.digest[len(s.digest)-MaxDigestEntries:]
		}
	}

	for _, result := range results {
		switch result.Kind {
		case normalize.KindGeocode:
			g := result.Geocode
			if g.FormattedAddress == "" || g.Location == "" {
				continue
			}
			name := extractLocationName(query, g.FormattedAddress)
			if name == "" {
				continue // no name, no memory write
			}
			s.locations[name] = Location{
				Address:     g.FormattedAddress,
				Coordinates: g.Location,
				City:        g.City,
			}

		case normalize.KindPlaceList:
			for _, poi := range result.Places {
				if poi.Name == "" || poi.Location == "" {
					continue
				}
				s.pois = append(s.pois, poi)
			}
			if len(s.pois) > MaxPOIs {
				s.pois = s.pois[len(s.pois)-MaxPOIs:]
			}

		case normalize.KindRoute:
			origin, destination := s.routeEndpointsLocked(query)
			if origin == "" || destination == "" {
				continue
			}
			key := origin + "-" + destination
			plan := RoutePlan{
				Distance: result.Route.Distance,
				Duration: result.Route.Duration,
				Tolls:    result.Route.Tolls,
			}
			if prev, seen := s.routePlans[key]; seen {
				plan.Details = prev.Details
			} else {
				tpl, _ := s.routes.Lookup(origin, destination)
				plan.Details = &tpl
			}
			s.routePlans[key] = plan
		}
	}
}

// PromptFor builds the memory context prepended to a new query, or ""
// when there is nothing remembered yet.
func (s *Store) PromptFor(query string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.queryCount == 0 {
		return ""
	}

	parts := []string{"根据我们之前的对话，我知道以下信息:"}

	if len(s.locations) > 0 {
		parts = append(parts, "位置信息:")
		for name, loc := range s.locations {
			parts = append(parts, fmt.Sprintf("  - %s: %s (%s)", name, loc.Address, loc.Coordinates))
		}
	}

	if len(s.pois) > 0 {
		parts = append(parts, "地点信息:")
		for _, poi := range s.pois {
			parts = append(parts, fmt.Sprintf("  - %s: %s", poi.Name, poi.Address))
		}
	}

	if len(s.routePlans) > 0 {
		parts = append(parts, "路线信息:")
		for key, plan := range s.routePlans {
			parts = append(parts, fmt.Sprintf("  - %s: 距离约%s公里, 时间约%s分钟",
				key, distanceKM(plan.Distance), durationMinutes(plan.Duration)))
		}
	}

	if len(s.digest) > 0 {
		parts = append(parts, "我们之前讨论过:")
		start := 0
		if len(s.digest) > 3 {
			start = len(s.digest) - 3
		}
		for _, entry := range s.digest[start:] {
			parts = append(parts, "  - 您问: "+entry.Query)
			parts = append(parts, "    我答: "+truncateRunes(entry.Answer, 100)+"...")
		}
	}

	if len(parts) == 1 {
		return ""
	}
	return strings.Join(parts, "\n")
}

// Context builds the memory section of the finalization prompt, or ""
// when there is nothing remembered yet.
func (s *Store) Context() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.queryCount == 0 {
		return ""
	}

	var sections []string

	if len(s.locations) > 0 {
		var lines []string
		for name, loc := range s.locations {
			lines = append(lines, fmt.Sprintf("%s（地址：%s，坐标：%s）", name, loc.Address, loc.Coordinates))
		}
		sections = append(sections, "记忆中的位置信息:\n"+strings.Join(lines, "\n"))
	}

	if len(s.pois) > 0 {
		start := 0
		if len(s.pois) > 3 {
			start = len(s.pois) - 3
		}
		var lines []string
		for _, poi := range s.pois[start:] {
			lines = append(lines, fmt.Sprintf("%s（地址：%s，类型：%s）", poi.Name, poi.Address, poi.Type))
		}
		sections = append(sections, "记忆中的POI信息:\n"+strings.Join(lines, "\n"))
	}

	if len(s.routePlans) > 0 {
		var lines []string
		for key, plan := range s.routePlans {
			lines = append(lines, fmt.Sprintf("%s（距离：约%s公里，时间：约%s分钟）",
				key, distanceKM(plan.Distance), durationMinutes(plan.Duration)))
		}
		sections = append(sections, "记忆中的路线信息:\n"+strings.Join(lines, "\n"))
	}

	if len(sections) == 0 {
		return ""
	}
	return "参考历史信息：\n" + strings.Join(sections, "\n\n")
}

// HasRelevantMemory reports whether the query mentions a remembered
// location or matches a remembered route plan. The orchestrator uses
// this to widen the first-iteration token budget.
func (s *Store) HasRelevantMemory(query string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.queryCount == 0 {
		return false
	}

	for name := range s.locations {
		if strings.Contains(query, name) {
			return true
		}
	}

	origin, destination := s.routeEndpointsLocked(query)
	if origin != "" && destination != "" {
		if _, ok := s.routePlans[origin+"-"+destination]; ok {
			return true
		}
	}

	return false
}

// RouteEndpoints extracts the origin and destination from the query
// text, falling back to the two most recently remembered locations.
// Either result may be "".
func (s *Store) RouteEndpoints(query string) (origin, destination string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routeEndpointsLocked(query)
}

func (s *Store) routeEndpointsLocked(query string) (string, string) {
	if o, d := matchRouteEndpoints(query); o != "" {
		return o, d
	}

	// Fall back to the last two named locations. Map order is not
	// insertion order, so this is only a weak heuristic, matching
	// the best-effort contract of endpoint extraction.
	if len(s.locations) >= 2 {
		names := make([]string, 0, len(s.locations))
		for name := range s.locations {
			names = append(names, name)
		}
		return names[len(names)-2], names[len(names)-1]
	}

	return "", ""
}

// distanceKM renders a meter count as kilometers, passing through
// non-numeric values.
func distanceKM(distance string) string {
	meters, err := strconv.ParseFloat(distance, 64)
	if err != nil {
		return distance
	}
	return strconv.FormatFloat(meters/1000, 'f', -1, 64)
}

// durationMinutes renders a second count as minutes, passing through
// non-numeric values.
func durationMinutes(duration string) string {
	secs, err := strconv.Atoi(duration)
	if err != nil {
		return duration
	}
	return strconv.Itoa(secs / 60)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

package memory

import (
	"regexp"
	"strings"
)

// knownCities is the name table consulted when deriving a memory key
// for a geocoded location. Contents are configuration for the target
// locale, not part of the store contract.
var knownCities = []string{
	"北京", "上海", "广州", "深圳", "杭州", "南京", "重庆", "武汉", "西安", "成都",
	"苏州", "天津", "郑州", "长沙", "东莞", "宁波", "佛山", "合肥", "青岛", "厦门",
	"福州", "济南", "珠海", "中山", "惠州", "香港", "澳门",
}

// poiNamePattern matches place names by suffix (parks, towers, malls,
// stations and the like) when no city name is present.
var poiNamePattern = regexp.MustCompile(`[\p{Han}]{2,6}(?:公园|大厦|广场|中心|大学|学校|医院|商场|酒店|景区|景点|火车站|飞机场|机场)`)

// routeEndpointPatterns match "A到B" style route questions. First
// match wins; both captures are required.
var routeEndpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`([\p{Han}]+)到([\p{Han}]+)怎么走`),
	regexp.MustCompile(`([\p{Han}]+)到([\p{Han}]+)的路线`),
	regexp.MustCompile(`从([\p{Han}]+)去([\p{Han}]+)`),
	regexp.MustCompile(`从([\p{Han}]+)到([\p{Han}]+)`),
}

// extractLocationName derives the memory key for a geocoded address.
// The address is consulted before the query: a route question names
// both endpoints, and only the address says which one was geocoded.
// Falls back to a POI-suffix match against the query; returns "" when
// nothing matches.
func extractLocationName(query, address string) string {
	for _, city := range knownCities {
		if strings.Contains(address, city) {
			return city
		}
	}
	for _, city := range knownCities {
		if strings.Contains(query, city) {
			return city
		}
	}
	return poiNamePattern.FindString(query)
}

// matchRouteEndpoints extracts origin and destination from the query
// text alone. Returns empty strings when no pattern matches.
func matchRouteEndpoints(query string) (string, string) {
	for _, re := range routeEndpointPatterns {
		if m := re.FindStringSubmatch(query); len(m) == 3 {
			return m[1], m[2]
		}
	}
	return "", ""
}

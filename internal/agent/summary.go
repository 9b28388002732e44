package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/waypoint-ai/waypoint/internal/normalize"
)

// localSummary builds a deterministic answer from the query's tool
// results and memory when the finalization call fails. No model call
// is involved.
func (o *Orchestrator) localSummary(s *session) string {
	parts := []string{"以下是基于已收集信息的总结：\n"}

	var (
		geocode  *normalize.Geocode
		route    *normalize.Route
		forecast *normalize.Forecast
		places   []normalize.Place
	)
	for _, r := range s.results {
		switch r.Kind {
		case normalize.KindGeocode:
			geocode = r.Geocode
		case normalize.KindRoute:
			route = r.Route
		case normalize.KindForecast:
			forecast = r.Forecast
		case normalize.KindPlaceList:
			places = r.Places
		}
	}

	origin, destination := o.mem.RouteEndpoints(s.query)

	if geocode != nil && (geocode.FormattedAddress != "" || geocode.Location != "") {
		parts = append(parts, fmt.Sprintf("📍 位置信息: %s %s", geocode.FormattedAddress, geocode.Location))
	}

	if len(places) > 0 {
		names := make([]string, 0, len(places))
		for _, p := range places {
			if p.Name != "" {
				names = append(names, p.Name)
			}
		}
		if len(names) > 0 {
			parts = append(parts, fmt.Sprintf("🏢 找到的地点: %s", strings.Join(names, ", ")))
			if places[0].Address != "" {
				parts = append(parts, fmt.Sprintf("   地址: %s", places[0].Address))
			}
			if places[0].Location != "" {
				parts = append(parts, fmt.Sprintf("   坐标: %s", places[0].Location))
			}
		}
	}

	if forecast != nil && len(forecast.Casts) > 0 {
		cast := forecast.Casts[0]
		parts = append(parts, fmt.Sprintf("🌤️ 天气信息: %s %s %s", forecast.City, cast.Date, cast.DayWeather))
		if cast.DayTemp != "" || cast.NightTemp != "" {
			parts = append(parts, fmt.Sprintf("   温度: %s°C - %s°C", cast.DayTemp, cast.NightTemp))
		}
	}

	var distanceKM float64
	if route != nil {
		if route.Distance != "" {
			distanceKM = meterToKM(route.Distance)
			parts = append(parts, fmt.Sprintf("🚗 路线信息: 距离约 %.1f 公里", distanceKM))
		}
		if line := driveTimeLine(route.Duration); line != "" {
			parts = append(parts, line)
		}
		if route.Tolls != "" && route.Tolls != "0" {
			parts = append(parts, fmt.Sprintf("   过路费: 约%s元", route.Tolls))
		}

		if origin != "" && destination != "" {
			if tpl, known := o.routes.Lookup(origin, destination); known {
				parts = append(parts, fmt.Sprintf("\n🛣️ %s到%s路线详情:", origin, destination))
				if len(tpl.Highways) > 0 {
					parts = append(parts, fmt.Sprintf("   主要道路: %s", strings.Join(tpl.Highways, " → ")))
				}
				if len(tpl.TollStations) > 0 {
					parts = append(parts, fmt.Sprintf("   主要收费站: %s", strings.Join(tpl.TollStations, "、")))
				}
				if len(tpl.ServiceAreas) > 0 {
					parts = append(parts, fmt.Sprintf("   推荐服务区: %s", strings.Join(tpl.ServiceAreas, "、")))
				}
			}
		}
	}

	if origin != "" && destination != "" {
		if tpl, known := o.routes.Lookup(origin, destination); known {
			if len(tpl.Attractions) > 0 {
				parts = append(parts, fmt.Sprintf("\n🏞️ %s附近景点推荐: %s", destination, strings.Join(tpl.Attractions, "、")))
			}
			if len(tpl.Foods) > 0 {
				parts = append(parts, fmt.Sprintf("🍲 %s特色美食: %s", destination, strings.Join(tpl.Foods, "、")))
			}
		}
	}

	if related := o.relatedLocations(s.query, origin, destination); len(related) > 0 && geocode == nil {
		parts = append(parts, "\n📌 您之前查询过的相关位置:")
		for _, line := range related {
			parts = append(parts, "   - "+line)
		}
	}

	if origin != "" && destination != "" {
		parts = append(parts, "\n💡 出行建议:")
		parts = append(parts, travelAdvice(distanceKM)...)
		parts = append(parts, destinationAdvice(destination)...)
		if forecast != nil && len(forecast.Casts) > 0 && strings.Contains(forecast.Casts[0].DayWeather, "雨") {
			parts = append(parts, "5. 目的地天气可能有雨，请携带雨具")
		}
	}

	return strings.Join(parts, "\n")
}

// relatedLocations lists remembered locations mentioned by the query
// or matching the route endpoints.
func (o *Orchestrator) relatedLocations(query, origin, destination string) []string {
	snap := o.mem.Snapshot()
	var out []string
	for name, loc := range snap.Locations {
		if strings.Contains(query, name) || name == origin || name == destination {
			out = append(out, fmt.Sprintf("%s: %s", name, loc.Address))
		}
	}
	return out
}

func meterToKM(distance string) float64 {
	m, err := strconv.ParseFloat(distance, 64)
	if err != nil {
		return 0
	}
	return m / 1000
}

// driveTimeLine renders the AMap duration (seconds) as hours/minutes.
func driveTimeLine(duration string) string {
	secs, err := strconv.Atoi(duration)
	if err != nil || secs <= 0 {
		if duration != "" {
			return fmt.Sprintf("   预计行驶时间: %s", duration)
		}
		return ""
	}
	mins := secs / 60
	hours := mins / 60
	mins = mins % 60
	if hours > 0 {
		return fmt.Sprintf("   预计行驶时间: %d小时%d分钟", hours, mins)
	}
	return fmt.Sprintf("   预计行驶时间: %d分钟", mins)
}

// travelAdvice scales generic driving advice to the trip length.
func travelAdvice(distanceKM float64) []string {
	switch {
	case distanceKM > 300:
		return []string{
			"1. 长途驾驶建议每隔2小时休息一次，避免疲劳驾驶",
			"2. 出发前检查车况，确保轮胎、机油和冷却液等正常",
			"3. 准备充足的饮用水和零食，以及常用药品",
		}
	case distanceKM > 100:
		return []string{
			"1. 中等距离行程，建议提前规划好休息点",
			"2. 途中可以在服务区短暂休息，补充能量",
		}
	default:
		return []string{
			"1. 短途行程，建议避开早晚高峰期出行",
			"2. 提前查看目的地的停车场情况",
		}
	}
}

// destinationAdvice adds city-specific tips for the few destinations
// the route table knows well.
func destinationAdvice(destination string) []string {
	switch {
	case strings.Contains(destination, "珠海"):
		return []string{
			"3. 珠海沿海地区风景优美，可以安排海滨游览",
			"4. 珠海与澳门相邻，如有需要可考虑前往澳门游玩",
		}
	case strings.Contains(destination, "杭州"):
		return []string{
			"3. 杭州西湖景区游客较多，建议避开周末和节假日",
			"4. 可以品尝杭帮菜，如西湖醋鱼、龙井虾仁等特色美食",
		}
	case strings.Contains(destination, "北京"):
		return []string{
			"3. 北京景点分布较广，建议合理规划行程",
			"4. 故宫、长城等热门景点最好提前在线预约",
		}
	default:
		return nil
	}
}

package agent

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	k := DefaultKeywords()

	tests := []struct {
		query string
		want  QueryKind
	}{
		{"深圳到珠海怎么走", QueryTravel},
		{"帮我规划去杭州的路线", QueryTravel},
		{"plan my travel to Beijing", QueryTravel},
		{"珠海明天天气怎么样", QueryWeather},
		{"What's the weather like", QueryWeather},
		{"找一下附近的咖啡馆", QuerySearch},
		{"查询珠海大剧院的信息", QuerySearch},
		{"你好，介绍一下你自己", QueryGeneral},
		// Route language beats search language.
		{"查询深圳到珠海的路线", QueryTravel},
	}
	for _, tt := range tests {
		if got := k.Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	k := DefaultKeywords()
	if got := k.Classify("WEATHER in Zhuhai"); got != QueryWeather {
		t.Errorf("Classify = %v, want %v", got, QueryWeather)
	}
}

func TestQueryKindString(t *testing.T) {
	tests := []struct {
		kind QueryKind
		want string
	}{
		{QueryGeneral, "general"},
		{QueryTravel, "travel"},
		{QueryWeather, "weather"},
		{QuerySearch, "search"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestLooksConcluding(t *testing.T) {
	k := DefaultKeywords()
	long := strings.Repeat("这是一段关于路线规划的详细说明。", 10)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"long with keyword", "总结来说，" + long, true},
		{"long with suggestion keyword", long + "建议您走港珠澳大桥。", true},
		{"long without keyword", long, false},
		{"short with keyword", "总结：走高速。", false},
		{"40 chars over 100 bytes with keyword", "建议" + strings.Repeat("稍", 38), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := k.LooksConcluding(tt.text); got != tt.want {
				t.Errorf("LooksConcluding(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

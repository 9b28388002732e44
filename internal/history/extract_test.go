package history

import (
	"reflect"
	"testing"
)

func TestRegexExtractorFacts(t *testing.T) {
	e := NewRegexExtractor()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "location with colon",
			text: "查询结果：位置：珠海市香洲区。",
			want: []string{"位置: 珠海市香洲区"},
		},
		{
			name: "address",
			text: "详细地址：广东省珠海市情侣路1号附近",
			want: []string{"位置: 广东省珠海市情侣路1号附近"},
		},
		{
			name: "X located in Y",
			text: "珠海大剧院位于野狸岛",
			want: []string{"珠海大剧院位于野狸岛"},
		},
		{
			name: "weather and temperature",
			text: "今天天气：多云转晴，气温：15~22度。",
			want: []string{"天气: 多云转晴", "天气: 15~22度"},
		},
		{
			name: "route distance time and toll",
			text: "全程距离：66.5公里，预计时间：约1.2小时，过路费用：约40元。",
			want: []string{"路线: 66.5公里", "路线: 1.2小时", "路线: 40元"},
		},
		{
			name: "plain chatter yields nothing",
			text: "好的，我继续为您查询。",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ExtractFacts(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractFacts(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRegexExtractorMultipleMatches(t *testing.T) {
	e := NewRegexExtractor()

	text := "位置：深圳市南山区。位置：珠海市香洲区。"
	got := e.ExtractFacts(text)
	want := []string{"位置: 深圳市南山区", "位置: 珠海市香洲区"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractFacts = %v, want %v", got, want)
	}
}

package agent

import (
	"strings"
	"unicode/utf8"
)

// QueryKind classifies a free-text query by the information it needs.
type QueryKind int

const (
	QueryGeneral QueryKind = iota
	QueryTravel
	QueryWeather
	QuerySearch
)

func (k QueryKind) String() string {
	switch k {
	case QueryTravel:
		return "travel"
	case QueryWeather:
		return "weather"
	case QuerySearch:
		return "search"
	default:
		return "general"
	}
}

// Keywords holds the keyword sets driving query classification and
// final-answer detection. The defaults target Chinese-language travel
// queries; deployments for other locales swap the sets, the matching
// mechanism stays the same.
type Keywords struct {
	// Concluding marks assistant text as a likely final answer.
	Concluding []string `yaml:"concluding"`

	// Travel, Weather and Search classify the user query. Travel is
	// checked first, so route language wins over search language.
	Travel  []string `yaml:"travel"`
	Weather []string `yaml:"weather"`
	Search  []string `yaml:"search"`
}

// DefaultKeywords returns the built-in Chinese/English keyword sets.
func DefaultKeywords() Keywords {
	return Keywords{
		Concluding: []string{"总结", "小结", "总的来说", "综上所述", "最后", "建议", "方案"},
		Travel:     []string{"travel", "route", "旅行", "路线", "怎么走"},
		Weather:    []string{"weather", "天气"},
		Search:     []string{"找", "search", "查询"},
	}
}

// Classify maps a query to the kind whose keyword set matches first.
func (k Keywords) Classify(query string) QueryKind {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, k.Travel):
		return QueryTravel
	case containsAny(lower, k.Weather):
		return QueryWeather
	case containsAny(lower, k.Search):
		return QuerySearch
	default:
		return QueryGeneral
	}
}

// minAnswerLength is the shortest text, in runes, treated as a
// candidate final answer. Shorter text with concluding language is
// usually a preamble.
const minAnswerLength = 100

// LooksConcluding reports whether assistant text reads like a final
// answer: long enough and carrying concluding language.
func (k Keywords) LooksConcluding(text string) bool {
	if utf8.RuneCountInString(text) <= minAnswerLength {
		return false
	}
	return containsAny(strings.ToLower(text), k.Concluding)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

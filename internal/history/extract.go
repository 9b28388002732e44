package history

import (
	"fmt"
	"regexp"
)

// FactExtractor pulls key fact statements out of free-form assistant
// text. Implementations are best-effort digest aids, not parsers;
// missed or imprecise facts are acceptable.
type FactExtractor interface {
	ExtractFacts(text string) []string
}

// RegexExtractor matches fixed textual templates for location, weather,
// and route statements. The patterns target the Chinese phrasing the
// upstream travel tools produce; they are configuration, not contract.
type RegexExtractor struct {
	locationPatterns []*regexp.Regexp
	weatherPatterns  []*regexp.Regexp
	routePatterns    []*regexp.Regexp
}

// NewRegexExtractor compiles the default pattern set.
func NewRegexExtractor() *RegexExtractor {
	compile := func(patterns ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			out = append(out, regexp.MustCompile(p))
		}
		return out
	}

	return &RegexExtractor{
		locationPatterns: compile(
			`位置[:：是在]+([\p{Han}a-zA-Z0-9]+)`,
			`地址[:：是在]+([\p{Han}a-zA-Z0-9]+)`,
			`([\p{Han}]+)位于([\p{Han}a-zA-Z0-9]+)`,
		),
		weatherPatterns: compile(
			`天气[:：是为]+([\p{Han}]+)`,
			`气温[:：是为]+([\p{Han}\d~-]+度)`,
		),
		routePatterns: compile(
			`距离[:：是约为]+([\d.]+公里)`,
			`时间[:：需要约为]+([\d.]+小时)`,
			`费用[:：是约为]+([\d.]+元)`,
		),
	}
}

// ExtractFacts returns one statement per pattern match, in pattern order.
func (e *RegexExtractor) ExtractFacts(text string) []string {
	var facts []string

	for _, re := range e.locationPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if len(match) == 3 {
				facts = append(facts, fmt.Sprintf("%s位于%s", match[1], match[2]))
			} else if len(match) == 2 {
				facts = append(facts, "位置: "+match[1])
			}
		}
	}
	for _, re := range e.weatherPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if len(match) >= 2 {
				facts = append(facts, "天气: "+match[1])
			}
		}
	}
	for _, re := range e.routePatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			if len(match) >= 2 {
				facts = append(facts, "路线: "+match[1])
			}
		}
	}

	return facts
}

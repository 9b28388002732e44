// Package routeinfo provides static route detail templates keyed by
// origin/destination city pairs. Templates are looked up, never
// computed; unknown pairs yield a generic placeholder.
package routeinfo

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template holds the reference details for one route.
type Template struct {
	Highways     []string `yaml:"highways"`
	TollStations []string `yaml:"toll_stations"`
	ServiceAreas []string `yaml:"service_areas"`
	Attractions  []string `yaml:"attractions"`
	Foods        []string `yaml:"foods"`
}

// Placeholder returns the generic template used for unknown pairs.
func Placeholder() Template {
	return Template{
		Highways:     []string{"可能经过的高速路线"},
		TollStations: []string{"可能经过的收费站"},
		ServiceAreas: []string{"途经的服务区"},
		Attractions:  []string{"目的地周边景点"},
		Foods:        []string{"目的地特色美食"},
	}
}

// tableEntry pairs two cities with a template. Matching is unordered:
// the Shenzhen→Zhuhai entry also serves Zhuhai→Shenzhen.
type tableEntry struct {
	A        string   `yaml:"a"`
	B        string   `yaml:"b"`
	Template Template `yaml:"template"`
}

// Table maps unordered city pairs to templates.
type Table struct {
	entries map[string]Template
}

// pairKey builds the unordered lookup key.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// NewTable builds a table from entries. Later entries win on duplicate
// pairs.
func newTable(entries []tableEntry) *Table {
	t := &Table{entries: make(map[string]Template, len(entries))}
	for _, e := range entries {
		t.entries[pairKey(e.A, e.B)] = e.Template
	}
	return t
}

// Default returns the builtin table.
func Default() *Table {
	return newTable(builtinEntries)
}

// Load reads a table override from a YAML file. The file replaces the
// builtin entries entirely.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []tableEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse route table %s: %w", path, err)
	}

	return newTable(entries), nil
}

// Lookup returns the template for the pair and whether it is a known
// route. Unknown pairs get the generic placeholder.
func (t *Table) Lookup(origin, destination string) (Template, bool) {
	if tpl, ok := t.entries[pairKey(origin, destination)]; ok {
		return tpl, true
	}
	return Placeholder(), false
}

// Context renders the template as prompt context for a known route.
// It returns "" for unknown pairs so placeholders never reach the model.
func (t *Table) Context(origin, destination string) string {
	tpl, known := t.Lookup(origin, destination)
	if !known {
		return ""
	}

	parts := []string{fmt.Sprintf("关于%s到%s的路线信息：", origin, destination)}
	if len(tpl.Highways) > 0 {
		parts = append(parts, "主要道路: "+strings.Join(tpl.Highways, "、"))
	}
	if len(tpl.TollStations) > 0 {
		parts = append(parts, "收费站: "+strings.Join(tpl.TollStations, "、"))
	}
	if len(tpl.ServiceAreas) > 0 {
		parts = append(parts, "服务区: "+strings.Join(tpl.ServiceAreas, "、"))
	}
	if len(tpl.Attractions) > 0 {
		parts = append(parts, fmt.Sprintf("%s周边景点: %s", destination, strings.Join(tpl.Attractions, "、")))
	}
	if len(tpl.Foods) > 0 {
		parts = append(parts, fmt.Sprintf("%s特色美食: %s", destination, strings.Join(tpl.Foods, "、")))
	}

	return strings.Join(parts, "\n")
}

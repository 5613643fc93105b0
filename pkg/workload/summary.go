package workload

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"
	"strconv"
)

// Value is a metric value whose undefined (NaN) state encodes as null.
type Value float64

// IsNaN reports whether the value is undefined.
func (v Value) IsNaN() bool {
	return math.IsNaN(float64(v))
}

// MarshalJSON encodes NaN and infinities as null.
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}

	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// UnmarshalJSON decodes null as NaN.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value(math.NaN())

		return nil
	}

	var f float64

	err := json.Unmarshal(data, &f)
	if err != nil {
		return err
	}

	*v = Value(f)

	return nil
}

// MarshalYAML encodes NaN as null.
func (v Value) MarshalYAML() (any, error) {
	if v.IsNaN() {
		return nil, nil //nolint:nilnil // null is the encoding of an undefined metric.
	}

	return float64(v), nil
}

// String formats the value with four decimals, "n/a" when undefined.
func (v Value) String() string {
	if v.IsNaN() {
		return "n/a"
	}

	return strconv.FormatFloat(float64(v), 'f', 4, 64)
}

// TypeSummary holds the per-label metrics.
type TypeSummary struct {
	Type string `json:"type" yaml:"type"`
	PTW  int    `json:"ptw"  yaml:"ptw"`
	RPTW Value  `json:"rptw" yaml:"rptw"`
	PTI  int    `json:"pti"  yaml:"pti"`
	RPTI Value  `json:"rpti" yaml:"rpti"`
}

// AuthorSummary holds the per-author workload row.
type AuthorSummary struct {
	Author string         `json:"author" yaml:"author"`
	Total  int            `json:"total"  yaml:"total"`
	Types  map[string]int `json:"types"  yaml:"types"`
}

// Summary is the serialisable view of an Engine.
type Summary struct {
	PW         int             `json:"pw"          yaml:"pw"`
	NAP        int             `json:"nap"         yaml:"nap"`
	NTP        int             `json:"ntp"         yaml:"ntp"`
	PWS        Value           `json:"pws"         yaml:"pws"`
	RPWS       Value           `json:"rpws"        yaml:"rpws"`
	PIS        Value           `json:"pis"         yaml:"pis"`
	RPIS       Value           `json:"rpis"        yaml:"rpis"`
	AuthorGini Value           `json:"author_gini" yaml:"author_gini"`
	Types      []TypeSummary   `json:"types"       yaml:"types"`
	Authors    []AuthorSummary `json:"authors"     yaml:"authors"`
}

// Summary computes every metric. Types are ordered by PTW descending and
// authors by total descending, both with ties by name.
func (e *Engine) Summary() Summary {
	summary := Summary{
		PW:         e.PW(),
		NAP:        e.NAP(),
		NTP:        e.NTP(),
		PWS:        Value(e.PWS()),
		RPWS:       Value(e.RPWS()),
		PIS:        Value(e.PIS()),
		RPIS:       Value(e.RPIS()),
		AuthorGini: Value(e.AuthorGini()),
		Types:      make([]TypeSummary, 0, len(e.types)),
		Authors:    make([]AuthorSummary, 0, len(e.authors)),
	}

	for _, label := range e.SortedTypes() {
		summary.Types = append(summary.Types, TypeSummary{
			Type: label,
			PTW:  e.PTW(label),
			RPTW: Value(e.RPTW(label)),
			PTI:  e.PTI(label),
			RPTI: Value(e.RPTI(label)),
		})
	}

	for _, author := range e.authors {
		row := AuthorSummary{Author: author, Types: make(map[string]int, len(e.atw[author]))}

		for label, count := range e.atw[author] {
			row.Types[label] = count
			row.Total += count
		}

		summary.Authors = append(summary.Authors, row)
	}

	slices.SortStableFunc(summary.Authors, func(a, b AuthorSummary) int {
		return cmp.Compare(b.Total, a.Total)
	})

	return summary
}

// Package banding buckets numeric values into labelled ranges. Each range is
// (edges[i], edges[i+1]]: a value on an edge belongs to the lower band.
package banding

import (
	"fmt"
	"math"
	"time"

	"grant-insights/internal/table"
)

// Band returns the label of the range holding value, or nil when value is
// missing, not a number, at or below the first edge, or above the last edge.
func Band(value any, edges []float64, labels []string) any {
	f, ok, err := table.ToFloat(value)
	if err != nil || !ok {
		return nil
	}
	if len(edges) < 2 || f <= edges[0] || f > edges[len(edges)-1] {
		return nil
	}
	for i := 1; i < len(edges); i++ {
		if f <= edges[i] && i-1 < len(labels) {
			return labels[i-1]
		}
	}
	return nil
}

// Table is a named set of band edges and their labels
type Table struct {
	Name   string
	Edges  []float64
	Labels []string
}

// Validate checks the edges ascend strictly and there is one label per range
func (t Table) Validate() error {
	if len(t.Edges) < 2 {
		return fmt.Errorf("band table %s needs at least two edges", t.Name)
	}
	if len(t.Labels) != len(t.Edges)-1 {
		return fmt.Errorf("band table %s has %d labels for %d ranges", t.Name, len(t.Labels), len(t.Edges)-1)
	}
	for i := 1; i < len(t.Edges); i++ {
		if !(t.Edges[i] > t.Edges[i-1]) {
			return fmt.Errorf("band table %s edges are not strictly ascending at %d", t.Name, i)
		}
	}
	return nil
}

// Of bands a single value. Durations are measured in 365-day years.
func (t Table) Of(value any) any {
	if d, ok := value.(time.Duration); ok {
		value = Years(d)
	}
	return Band(value, t.Edges, t.Labels)
}

// Years converts a duration to 365-day years
func Years(d time.Duration) float64 {
	return d.Hours() / 24 / 365
}

var inf = math.Inf(1)

// Amount bands award amounts. Zero and negative amounts are left unbanded.
var Amount = Table{
	Name:  "amount",
	Edges: []float64{0, 500, 1000, 2000, 5000, 10000, 100000, 1000000, inf},
	Labels: []string{
		"Under £500", "£500 - £1k", "£1k - £2k", "£2k - £5k",
		"£5k - £10k", "£10k - £100k", "£100k - £1m", "Over £1m",
	},
}

// Income bands an organisation's latest income. The first edge is -1 so a
// reported income of zero still bands as the lowest range.
var Income = Table{
	Name:  "income",
	Edges: []float64{-1, 10000, 100000, 250000, 500000, 1000000, 10000000, inf},
	Labels: []string{
		"Under £10k", "£10k - £100k", "£100k - £250k", "£250k - £500k",
		"£500k - £1m", "£1m - £10m", "Over £10m",
	},
}

// Age bands organisation age in years. Organisations registered on or up to
// a year after the award still band as "Under 1 year".
var Age = Table{
	Name:  "age",
	Edges: []float64{-1, 1, 2, 5, 10, 25, 200},
	Labels: []string{
		"Under 1 year", "1-2 years", "2-5 years", "5-10 years", "10-25 years", "Over 25 years",
	},
}

// Package insights aggregates an enriched table into the summaries shown to
// users: counts and totals of grants by funder, programme, year, band, type
// and area.
package insights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"grant-insights/internal/banding"
	"grant-insights/internal/common/errors"
	"grant-insights/internal/orgid"
	"grant-insights/internal/pipeline/stages"
	"grant-insights/internal/table"
)

// Unknown labels grants with no value for a grouping
const Unknown = "Unknown"

// Bucket is one group of grants
type Bucket struct {
	Key    string  `json:"key"`
	Grants int     `json:"grants"`
	Amount float64 `json:"amount"`
}

// Insight computes one aggregation over an enriched table
type Insight func(t *table.Table) (any, error)

// Registry holds the named insights
type Registry struct {
	insights map[string]Insight
	names    []string
}

// NewRegistry returns a registry with every built-in insight
func NewRegistry() *Registry {
	r := &Registry{insights: make(map[string]Insight)}
	r.Register("summary", Summary)
	r.Register("by_funder", ByFunder)
	r.Register("by_grant_programme", ByGrantProgramme)
	r.Register("by_award_year", ByAwardYear)
	r.Register("by_amount_band", ByAmountBand)
	r.Register("by_org_type", ByOrgType)
	r.Register("by_income_band", ByIncomeBand)
	r.Register("by_age_band", ByAgeBand)
	r.Register("by_region", ByRegion)
	r.Register("by_country", ByCountry)
	return r
}

// Register adds or replaces an insight
func (r *Registry) Register(name string, fn Insight) {
	if _, ok := r.insights[name]; !ok {
		r.names = append(r.names, name)
	}
	r.insights[name] = fn
}

// Names returns insight names in registration order
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Run computes the named insight
func (r *Registry) Run(name string, t *table.Table) (any, error) {
	fn, ok := r.insights[name]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("insight %q", name))
	}
	return fn(t)
}

// RunAll computes every insight, keyed by name
func (r *Registry) RunAll(t *table.Table) (map[string]any, error) {
	out := make(map[string]any, len(r.names))
	for _, name := range r.names {
		v, err := r.insights[name](t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func amounts(t *table.Table) []float64 {
	out := make([]float64, t.Len())
	for i := range out {
		if f, ok, err := table.ToFloat(t.Value(stages.AmountAwarded, i)); err == nil && ok {
			out[i] = f
		}
	}
	return out
}

// group buckets grants by key(i). Rows where key returns "" are dropped.
func group(t *table.Table, key func(i int) string) []Bucket {
	amount := amounts(t)
	index := make(map[string]int)
	var buckets []Bucket
	for i := 0; i < t.Len(); i++ {
		k := key(i)
		if k == "" {
			continue
		}
		j, ok := index[k]
		if !ok {
			j = len(buckets)
			index[k] = j
			buckets = append(buckets, Bucket{Key: k})
		}
		buckets[j].Grants++
		buckets[j].Amount += amount[i]
	}
	return buckets
}

func column(t *table.Table, name, missing string) func(i int) string {
	return func(i int) string {
		if !t.Has(name) {
			return missing
		}
		v := t.Value(name, i)
		if v == nil {
			return missing
		}
		s, _ := table.ToString(v).(string)
		if s = strings.TrimSpace(s); s == "" {
			return missing
		}
		return s
	}
}

// byGrants sorts the largest groups first
func byGrants(buckets []Bucket) []Bucket {
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Grants != buckets[j].Grants {
			return buckets[i].Grants > buckets[j].Grants
		}
		return buckets[i].Key < buckets[j].Key
	})
	return buckets
}

// inOrder sorts buckets by the position of their key in order. Keys not in
// order go last.
func inOrder(buckets []Bucket, order []string) []Bucket {
	pos := make(map[string]int, len(order))
	for i, k := range order {
		pos[k] = i
	}
	rank := func(k string) int {
		if p, ok := pos[k]; ok {
			return p
		}
		return len(order)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return rank(buckets[i].Key) < rank(buckets[j].Key)
	})
	return buckets
}

func ByFunder(t *table.Table) (any, error) {
	return byGrants(group(t, column(t, stages.FunderName, Unknown))), nil
}

// ByGrantProgramme skips grants with no programme
func ByGrantProgramme(t *table.Table) (any, error) {
	return byGrants(group(t, column(t, stages.GrantProgramme, ""))), nil
}

func ByAwardYear(t *table.Table) (any, error) {
	buckets := group(t, column(t, stages.AwardYear, ""))
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets, nil
}

func ByAmountBand(t *table.Table) (any, error) {
	return inOrder(group(t, column(t, stages.AmountBands, "")), banding.Amount.Labels), nil
}

// ByOrgType uses the organisation type found by the lookups, falling back to
// a label for the identifier scheme
func ByOrgType(t *table.Table) (any, error) {
	orgType := column(t, stages.OrgType, "")
	scheme := column(t, stages.RecipientScheme, orgid.Scheme360G)
	return byGrants(group(t, func(i int) string {
		if v := orgType(i); v != "" {
			return v
		}
		return orgid.SchemeLabel(scheme(i))
	})), nil
}

// ByIncomeBand only counts recipients whose income is known
func ByIncomeBand(t *table.Table) (any, error) {
	return inOrder(group(t, column(t, stages.OrgIncomeBands, "")), banding.Income.Labels), nil
}

func ByAgeBand(t *table.Table) (any, error) {
	return inOrder(group(t, column(t, stages.OrgAgeBands, "")), banding.Age.Labels), nil
}

func ByRegion(t *table.Table) (any, error) {
	return byGrants(group(t, column(t, stages.GeoPrefix+"rgn", Unknown))), nil
}

func ByCountry(t *table.Table) (any, error) {
	return byGrants(group(t, column(t, stages.GeoPrefix+"ctry", Unknown))), nil
}

// CurrencyStats summarises the grants made in one currency
type CurrencyStats struct {
	Currency   string  `json:"currency"`
	Grants     int     `json:"grants"`
	Recipients int     `json:"recipients"`
	Total      float64 `json:"total"`
	Median     float64 `json:"median"`
}

// Stats is the headline summary of a dataset
type Stats struct {
	Grants     int             `json:"grants"`
	Recipients int             `json:"recipients"`
	Currencies []CurrencyStats `json:"currencies"`
	MinYear    *int64          `json:"min_award_year,omitempty"`
	MaxYear    *int64          `json:"max_award_year,omitempty"`
}

// DefaultCurrency applies to datasets without a Currency column
const DefaultCurrency = "GBP"

// Summary counts grants and recipients, totals and medians per currency with
// the most used currency first, and the range of award years
func Summary(t *table.Table) (any, error) {
	recipient := column(t, stages.RecipientID, "")
	currency := column(t, "Currency", DefaultCurrency)
	amount := amounts(t)

	stats := Stats{Grants: t.Len()}
	stats.Recipients = len(lo.Uniq(lo.Filter(lo.Times(t.Len(), recipient), func(s string, _ int) bool { return s != "" })))

	byCurrency := lo.GroupBy(lo.Range(t.Len()), func(i int) string { return currency(i) })
	for cur, rows := range byCurrency {
		values := lo.Map(rows, func(i int, _ int) float64 { return amount[i] })
		ids := lo.Uniq(lo.Map(rows, func(i int, _ int) string { return recipient(i) }))
		stats.Currencies = append(stats.Currencies, CurrencyStats{
			Currency:   cur,
			Grants:     len(rows),
			Recipients: len(lo.Without(ids, "")),
			Total:      lo.Sum(values),
			Median:     median(values),
		})
	}
	sort.Slice(stats.Currencies, func(i, j int) bool {
		a, b := stats.Currencies[i], stats.Currencies[j]
		if a.Grants != b.Grants {
			return a.Grants > b.Grants
		}
		return a.Currency < b.Currency
	})

	if t.Has(stages.AwardYear) {
		for _, v := range t.Column(stages.AwardYear).Values {
			y, ok := v.(int64)
			if !ok {
				continue
			}
			if stats.MinYear == nil || y < *stats.MinYear {
				stats.MinYear = lo.ToPtr(y)
			}
			if stats.MaxYear == nil || y > *stats.MaxYear {
				stats.MaxYear = lo.ToPtr(y)
			}
		}
	}
	return stats, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

package datasets

import (
	"time"

	"grant-insights/internal/table"
)

const (
	funderColumn    = "Funding Org:0:Name"
	awardDateColumn = "Award Date"
)

// Metadata describes a cached dataset without loading its table
type Metadata struct {
	ID       string            `json:"fileid"`
	Filename string            `json:"filename,omitempty"`
	Funders  []string          `json:"funders"`
	MinDate  *time.Time        `json:"min_date,omitempty"`
	MaxDate  *time.Time        `json:"max_date,omitempty"`
	Rows     int               `json:"rows"`
	Expires  *time.Time        `json:"expires,omitempty"`
	URL      string            `json:"url,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Registry map[string]any    `json:"registry_entry,omitempty"`
	Created  time.Time         `json:"created"`
}

// Expired reports whether the entry is past its expiry at now
func (m *Metadata) Expired(now time.Time) bool {
	return m.Expires != nil && !now.Before(*m.Expires)
}

// MetadataFor fills the funders, award date range and row count of meta from t
func MetadataFor(t *table.Table, meta Metadata) Metadata {
	meta.Rows = t.Len()
	meta.Funders = t.DistinctStrings(funderColumn)
	if meta.Funders == nil {
		meta.Funders = []string{}
	}
	meta.MinDate, meta.MaxDate = nil, nil

	if c := t.Column(awardDateColumn); c != nil {
		for _, v := range c.Values {
			d, ok := v.(time.Time)
			if !ok {
				continue
			}
			if meta.MinDate == nil || d.Before(*meta.MinDate) {
				min := d
				meta.MinDate = &min
			}
			if meta.MaxDate == nil || d.After(*meta.MaxDate) {
				max := d
				meta.MaxDate = &max
			}
		}
	}
	return meta
}

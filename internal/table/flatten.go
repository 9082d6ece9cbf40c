package table

import (
	"sort"
	"strconv"
	"strings"
)

// 360Giving JSON field names and their spreadsheet titles, in the order the
// standard lists them
var grantTitles = []struct{ key, title string }{
	{"id", "Identifier"},
	{"title", "Title"},
	{"description", "Description"},
	{"currency", "Currency"},
	{"amountAppliedFor", "Amount Applied For"},
	{"amountAwarded", "Amount Awarded"},
	{"amountDisbursed", "Amount Disbursed"},
	{"awardDate", "Award Date"},
	{"plannedDates", "Planned Dates"},
	{"startDate", "Start Date"},
	{"endDate", "End Date"},
	{"duration", "Duration (months)"},
	{"recipientOrganization", "Recipient Org"},
	{"recipientIndividual", "Recipient Ind"},
	{"name", "Name"},
	{"charityNumber", "Charity Number"},
	{"companyNumber", "Company Number"},
	{"streetAddress", "Street Address"},
	{"addressLocality", "City"},
	{"addressRegion", "County"},
	{"addressCountry", "Country"},
	{"postalCode", "Postal Code"},
	{"organisationType", "Organisation Type"},
	{"fundingOrganization", "Funding Org"},
	{"grantProgramme", "Grant Programme"},
	{"code", "Code"},
	{"beneficiaryLocation", "Beneficiary Location"},
	{"geoCode", "Geographic Code"},
	{"geoCodeType", "Geographic Code Type"},
	{"classifications", "Classifications"},
	{"vocabulary", "Vocabulary"},
	{"url", "Web Address"},
	{"dateModified", "Last Modified"},
	{"dataSource", "Data Source"},
	{"fromOpenCall", "From An Open Call?"},
}

var (
	titleOf = map[string]string{}
	rankOf  = map[string]int{}
)

func init() {
	for i, t := range grantTitles {
		titleOf[t.key] = t.title
		rankOf[t.key] = i
	}
}

type cell struct {
	title string
	value any
}

// flattenGrant turns one grant object into spreadsheet-style cells, e.g.
// recipientOrganization[0].id becomes "Recipient Org:0:Identifier". Address
// objects are folded into their parent, and the DataStore's additional_data
// block keeps its dotted field paths.
func flattenGrant(grant map[string]any) []cell {
	var out []cell
	for _, k := range sortedKeys(grant) {
		if k == "additional_data" {
			flattenDotted(&out, "additional_data", grant[k])
			continue
		}
		flattenTitled(&out, nil, k, grant[k])
	}
	return out
}

func flattenTitled(out *[]cell, parent []string, key string, v any) {
	path := parent
	if key != "address" {
		title, ok := titleOf[key]
		if !ok {
			title = key
		}
		path = append(append([]string{}, parent...), title)
	}

	switch x := v.(type) {
	case nil:
	case map[string]any:
		for _, k := range sortedKeys(x) {
			flattenTitled(out, path, k, x[k])
		}
	case []any:
		for i, item := range x {
			idx := append(append([]string{}, path...), strconv.Itoa(i))
			if obj, ok := item.(map[string]any); ok {
				for _, k := range sortedKeys(obj) {
					flattenTitled(out, idx, k, obj[k])
				}
				continue
			}
			if item != nil {
				*out = append(*out, cell{strings.Join(idx, ":"), item})
			}
		}
	default:
		*out = append(*out, cell{strings.Join(path, ":"), x})
	}
}

func flattenDotted(out *[]cell, prefix string, v any) {
	switch x := v.(type) {
	case nil:
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenDotted(out, prefix+"."+k, x[k])
		}
	case []any:
		for i, item := range x {
			flattenDotted(out, prefix+"."+strconv.Itoa(i), item)
		}
	default:
		*out = append(*out, cell{prefix, x})
	}
}

// sortedKeys orders known 360Giving fields as the standard does, then the
// rest alphabetically
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iok := rankOf[keys[i]]
		rj, jok := rankOf[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

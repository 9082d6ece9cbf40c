// Package orgid parses and builds organisation identifiers of the form
// <scheme>-<local id>, e.g. GB-CHC-225922.
package orgid

import "strings"

const (
	SchemeCharityEW       = "GB-CHC"
	SchemeCharityScotland = "GB-SC"
	SchemeCharityNI       = "GB-NIC"
	SchemeCompany         = "GB-COH"
	Scheme360G            = "360G"
)

// RecognisedSchemes are the schemes the organisation resolver holds records for
var RecognisedSchemes = []string{SchemeCharityEW, SchemeCharityNI, SchemeCharityScotland, SchemeCompany}

// ParseScheme splits an identifier into its scheme and local part. 360G- ids
// are a scheme of their own; otherwise the scheme is the first two dash
// separated segments. Short or malformed ids can give an empty scheme. A
// non-string value returns (nil, v).
func ParseScheme(v any) (scheme, local any) {
	s, ok := v.(string)
	if !ok {
		return nil, v
	}
	sch, rest := split(s)
	return sch, rest
}

// Scheme returns just the scheme part of id
func Scheme(id string) string {
	sch, _ := split(id)
	return sch
}

func split(id string) (string, string) {
	if rest, ok := strings.CutPrefix(id, Scheme360G+"-"); ok {
		return Scheme360G, rest
	}
	parts := strings.SplitN(id, "-", 3)
	switch len(parts) {
	case 1:
		return parts[0], ""
	case 2:
		return parts[0] + "-" + parts[1], ""
	default:
		return parts[0] + "-" + parts[1], parts[2]
	}
}

// IsRecognised reports whether scheme is one of RecognisedSchemes
func IsRecognised(scheme string) bool {
	for _, s := range RecognisedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// CharityNumberToOrgID builds an identifier from a registered charity number.
// Scottish numbers start with S and Northern Irish ones with N.
func CharityNumberToOrgID(regno string) string {
	regno = strings.TrimSpace(regno)
	if regno == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(regno, "S"):
		return SchemeCharityScotland + "-" + regno
	case strings.HasPrefix(regno, "N"):
		return SchemeCharityNI + "-" + regno
	default:
		return SchemeCharityEW + "-" + regno
	}
}

// CompanyNumberToOrgID builds a Companies House identifier
func CompanyNumberToOrgID(number string) string {
	number = strings.TrimSpace(number)
	if number == "" {
		return ""
	}
	return SchemeCompany + "-" + number
}

// CompanyNumber strips the Companies House scheme from id
func CompanyNumber(id string) string {
	return strings.TrimPrefix(id, SchemeCompany+"-")
}

// OrgType labels an organisation. Charity regulators are inferred from the
// identifier (or bare charity number) and win over the resolver's primary type.
func OrgType(id, primary string) string {
	switch {
	case strings.HasPrefix(id, "S"), strings.HasPrefix(id, SchemeCharityScotland+"-"):
		return "Registered Charity (Scotland)"
	case strings.HasPrefix(id, "N"), strings.HasPrefix(id, SchemeCharityNI+"-"):
		return "Registered Charity (NI)"
	case strings.HasPrefix(id, SchemeCharityEW+"-"):
		return "Registered Charity (E&W)"
	}
	return primary
}

var schemeLabels = map[string]string{
	Scheme360G:            "Identifier not recognised",
	SchemeCharityEW:       "Registered Charity (E&W)",
	SchemeCharityScotland: "Registered Charity (Scotland)",
	SchemeCharityNI:       "Registered Charity (NI)",
	SchemeCompany:         "Registered Company",
	"GB-GOR":              "Government",
	"GB-MPR":              "Mutual",
	"GB-NHS":              "NHS",
	"GB-UKPRN":            "School/University/Education",
	"GB-EDU":              "School/University/Education",
	"GB-SHPE":             "Social Housing Provider",
	"GB-LAE":              "Local Authority",
	"GB-LAS":              "Local Authority",
	"GB-REV":              "Registered Charity (HMRC)",
	"US-EIN":              "US - registered with IRS",
	"ZA-NPO":              "South Africa - registered with Nonprofit Organisation Directorate",
	"IM-GR":               "Registered Charity (Isle of Man)",
}

// SchemeLabel gives a readable name for an identifier scheme
func SchemeLabel(scheme string) string {
	if l, ok := schemeLabels[scheme]; ok {
		return l
	}
	return "Other identifier"
}

// Package stages holds the enrichment stages, in the order Default returns
// them. Each stage is a plain function over a table; column names follow the
// 360Giving titles.
package stages

import (
	"grant-insights/internal/pipeline"
)

const (
	AmountAwarded  = "Amount Awarded"
	FunderName     = "Funding Org:0:Name"
	FunderID       = "Funding Org:0:Identifier"
	AwardDate      = "Award Date"
	RecipientName  = "Recipient Org:0:Name"
	RecipientID    = "Recipient Org:0:Identifier"
	GrantProgramme = "Grant Programme:0:Title"

	AwardYear              = "Award Date:Year"
	RecipientScheme        = "Recipient Org:0:Identifier:Scheme"
	RecipientClean         = "Recipient Org:0:Identifier:Clean"
	RecipientCompanyNumber = "Recipient Org:0:Company Number"
	RecipientCharityNumber = "Recipient Org:0:Charity Number"
	RecipientPostcode      = "Recipient Org:0:Postal Code"
	AmountBands            = "Amount Awarded:Bands"

	OrgPrefix          = "__org_"
	GeoPrefix          = "__geo_"
	UsedAdditionalData = "__used_additional_data"

	OrgDateRegistered = OrgPrefix + "date_registered"
	OrgDateRemoved    = OrgPrefix + "date_removed"
	OrgPostcode       = OrgPrefix + "postcode"
	OrgLatestIncome   = OrgPrefix + "latest_income"
	OrgType           = OrgPrefix + "org_type"
	OrgAge            = OrgPrefix + "age"
	OrgIncomeBands    = OrgPrefix + "latest_income_bands"
	OrgAgeBands       = OrgPrefix + "age_bands"
)

// RequiredColumns must be present in every dataset
var RequiredColumns = []string{AmountAwarded, FunderName, AwardDate, RecipientName, RecipientID}

// DefaultProgramme is the grant programme of datasets that do not name one
const DefaultProgramme = "All grants"

// Default returns every stage in run order
func Default() []pipeline.Stage {
	return []pipeline.Stage{
		Load(),
		CheckColumnNames(),
		CheckColumnsExist(),
		CheckColumnTypes(),
		AddExtraColumns(),
		CleanRecipientIdentifiers(),
		MapAdditionalDataFields(),
		LookupCharityDetails(),
		LookupCompanyDetails(),
		MergeCompanyAndCharityDetails(),
		FetchPostcodes(),
		MergeGeoData(),
		AddExtraFieldsExternal(),
	}
}

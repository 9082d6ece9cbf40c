package testutil

// GrantsCSV is a two-grant file: a charity and a company recipient
const GrantsCSV = "Amount Awarded,Funding Org:0:Name,Award Date,Recipient Org:0:Name,Recipient Org:0:Identifier\n" +
	"500,The Funder,2019-01-01,Charity A,GB-CHC-225922\n" +
	"12000000,The Funder,2019-06-01,Company B,GB-COH-04325234\n"

// OrganisationRecords are resolver responses for the recipients in GrantsCSV
func OrganisationRecords() map[string]string {
	return map[string]string{
		"GB-CHC-225922": `{"id":"GB-CHC-225922","dateRegistered":"1963-01-01","latestIncome":50000,
			"address":{"postalCode":"SE1 1AA"}}`,
	}
}

// CompanyRecords are company registry responses, keyed by company number
func CompanyRecords() map[string]string {
	return map[string]string{
		"GB-COH-04325234": `{"primaryTopic":{"IncorporationDate":"03/12/2001","RegAddress":{"Postcode":"EC1V 4AY"}}}`,
	}
}

// PostcodeRecords are postcode resolver responses
func PostcodeRecords() map[string]string {
	return map[string]string{
		"SE1 1AA":  `{"data":{"attributes":{"ctry":"E92000001","lat":51.5}}}`,
		"EC1V 4AY": `{"data":{"attributes":{"ctry":"E92000001","lat":51.52}}}`,
	}
}

// GeocodeNames names the areas used by PostcodeRecords
func GeocodeNames() StaticGeocodes {
	return StaticGeocodes{"ctry-E92000001": "England"}
}

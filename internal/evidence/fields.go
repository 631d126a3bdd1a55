package evidence

// Canonical evidence field names. The extraction prompt instructs the
// oracle to use these names and the cross-validation checks read values
// by them; if the two sides disagree the checks see no input at all.
const (
	FieldSamplingDate   = "sampling_date"
	FieldImageryDate    = "imagery_date"
	FieldLandholderName = "landholder_name"
	FieldProjectID      = "project_id"
	FieldAreaHa         = "area_ha"
)

// fieldGlossary drives the prompt's naming instructions.
var fieldGlossary = []struct {
	name    string
	meaning string
}{
	{FieldSamplingDate, "date field sampling was performed, as YYYY-MM-DD"},
	{FieldImageryDate, "capture date of satellite or aerial imagery, as YYYY-MM-DD"},
	{FieldLandholderName, "full name of the landholder or title holder"},
	{FieldProjectID, "registry project identifier"},
	{FieldAreaHa, "stated project area in hectares, numeric value only"},
}

// CanonicalFields returns the field names the validation battery reads.
func CanonicalFields() []string {
	names := make([]string, len(fieldGlossary))
	for i, f := range fieldGlossary {
		names[i] = f.name
	}
	return names
}

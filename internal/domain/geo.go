package domain

// Supported region bounding box, inclusive on every edge.
const (
	MinSupportedLat = 6.0
	MaxSupportedLat = 37.0
	MinSupportedLon = 68.0
	MaxSupportedLon = 97.0
)

// IsWithinSupportedRegion reports whether (lat, lon) falls inside the
// bounding box covered by the geo-scoped earthquake and flood models.
// NaN coordinates are never inside.
func IsWithinSupportedRegion(lat, lon float64) bool {
	return lat >= MinSupportedLat && lat <= MaxSupportedLat &&
		lon >= MinSupportedLon && lon <= MaxSupportedLon
}

// forestFireStates lists the states and union territories the forest-fire
// model was trained on. The form selects one directly instead of passing
// coordinates.
var forestFireStates = []string{
	"Andhra Pradesh",
	"Arunachal Pradesh",
	"Assam",
	"Bihar",
	"Chhattisgarh",
	"Goa",
	"Gujarat",
	"Haryana",
	"Himachal Pradesh",
	"Jharkhand",
	"Karnataka",
	"Kerala",
	"Madhya Pradesh",
	"Maharashtra",
	"Manipur",
	"Meghalaya",
	"Mizoram",
	"Nagaland",
	"Odisha",
	"Punjab",
	"Rajasthan",
	"Sikkim",
	"Tamil Nadu",
	"Telangana",
	"Tripura",
	"Uttar Pradesh",
	"Uttarakhand",
	"West Bengal",
	"Andaman and Nicobar Islands",
	"Chandigarh",
	"Dadra and Nagar Haveli and Daman and Diu",
	"Lakshadweep",
	"Delhi",
	"Puducherry",
	"Jammu and Kashmir",
	"Ladakh",
}

// ForestFireStates returns a copy of the supported state list.
func ForestFireStates() []string {
	out := make([]string, len(forestFireStates))
	copy(out, forestFireStates)
	return out
}

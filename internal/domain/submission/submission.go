// Package submission contains the onboarding submission models and the
// mapping from the browser form payload to the canonical workflow schema.
package submission

// Inbound is the decoded form payload. No field is guaranteed to be present.
type Inbound map[string]any

// Inbound form keys.
const (
	KeyInvitationCode = "invitationCode"
	KeyCompanyName    = "companyName"
	KeyCompanyRegNo   = "companyRegNo"
	KeyContactName    = "primaryContactName"
	KeyContactTitle   = "contactTitle"
	KeyContactEmail   = "primaryContactEmail"
	KeyContactPhone   = "primaryContactPhone"
	KeyOffice         = "registeredOffice"
	KeyServices       = "services"
	KeyYearsTrading   = "yearsTrading"
	KeyTeamSize       = "teamSize"
	KeyCoverageRegion = "coverageRegion"
	KeyCertifications = "certifications"
)

// DefaultInvitationCode is used when the form carries no invitation code.
const DefaultInvitationCode = "UNKNOWN"

// DefaultSource identifies the onboarding site.
const DefaultSource = "epc.saberrenewable.energy"

// TimestampLayout renders UTC instants with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Canonical is the fixed record the workflow trigger expects.
// Every field is always populated.
type Canonical struct {
	InvitationCode     string   `json:"invitationCode"`
	CompanyName        string   `json:"companyName"`
	RegistrationNumber string   `json:"registrationNumber"`
	ContactName        string   `json:"contactName"`
	ContactTitle       string   `json:"contactTitle"`
	Email              string   `json:"email"`
	Phone              string   `json:"phone"`
	Address            string   `json:"address"`
	Services           []string `json:"services"`
	YearsExperience    int      `json:"yearsExperience"`
	TeamSize           int      `json:"teamSize"`
	Coverage           string   `json:"coverage"`
	Certifications     string   `json:"certifications"`
	Timestamp          string   `json:"timestamp"`
	Source             string   `json:"source"`
}

package probe

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/epcforward/internal/domain/submission"
)

// Payload builds the body for one probe submission. Each submission gets a
// fresh invitation code so flow runs can be told apart.
func Payload(cfg *Config, now time.Time) any {
	code := "TEST-" + uuid.NewString()[:8]
	if cfg.Target == TargetForwarder {
		return sampleForm(code)
	}
	return sampleCanonical(code, cfg.Source, now)
}

func sampleCanonical(code, source string, now time.Time) submission.Canonical {
	return submission.Canonical{
		InvitationCode:     code,
		CompanyName:        "Debug Test Company",
		RegistrationNumber: "DEBUG-123",
		ContactName:        "Debug Tester",
		ContactTitle:       "Test Manager",
		Email:              "debug@test.com",
		Phone:              "555-0123",
		Address:            "123 Debug Street",
		Services:           []string{"Testing"},
		YearsExperience:    1,
		TeamSize:           1,
		Coverage:           "Test Area",
		Certifications:     "None",
		Timestamp:          now.UTC().Format(submission.TimestampLayout),
		Source:             source,
	}
}

func sampleForm(code string) submission.Inbound {
	return submission.Inbound{
		submission.KeyInvitationCode: code,
		submission.KeyCompanyName:    "Debug Test Company",
		submission.KeyCompanyRegNo:   "DEBUG-123",
		submission.KeyContactName:    "Debug Tester",
		submission.KeyContactTitle:   "Test Manager",
		submission.KeyContactEmail:   "debug@test.com",
		submission.KeyContactPhone:   "555-0123",
		submission.KeyOffice:         "123 Debug Street",
		submission.KeyServices:       []string{"Testing"},
		submission.KeyYearsTrading:   "1",
		submission.KeyTeamSize:       "1",
		submission.KeyCoverageRegion: []string{"Test Area"},
		submission.KeyCertifications: "None",
	}
}

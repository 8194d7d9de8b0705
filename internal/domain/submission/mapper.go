package submission

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Mapper normalizes inbound payloads into Canonical records.
// It holds no mutable state and is safe for concurrent use.
type Mapper struct {
	source string
	now    func() time.Time
}

// NewMapper creates a Mapper with the given options.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		source: DefaultSource,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Source returns the site identifier stamped on mapped records.
func (m *Mapper) Source() string { return m.source }

// Map never fails: absent or malformed values degrade to defaults.
// Client supplied timestamp and source values are ignored.
func (m *Mapper) Map(in Inbound) Canonical {
	invitation := stringField(in[KeyInvitationCode])
	if invitation == "" {
		invitation = DefaultInvitationCode
	}

	return Canonical{
		InvitationCode:     invitation,
		CompanyName:        stringField(in[KeyCompanyName]),
		RegistrationNumber: stringField(in[KeyCompanyRegNo]),
		ContactName:        stringField(in[KeyContactName]),
		ContactTitle:       stringField(in[KeyContactTitle]),
		Email:              stringField(in[KeyContactEmail]),
		Phone:              stringField(in[KeyContactPhone]),
		Address:            stringField(in[KeyOffice]),
		Services:           servicesField(in[KeyServices]),
		YearsExperience:    intField(in[KeyYearsTrading]),
		TeamSize:           intField(in[KeyTeamSize]),
		Coverage:           coverageField(in[KeyCoverageRegion]),
		Certifications:     stringField(in[KeyCertifications]),
		Timestamp:          m.now().UTC().Format(TimestampLayout),
		Source:             m.source,
	}
}

// stringField renders strings verbatim and numbers in shortest form.
// Anything else becomes "".
func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func servicesField(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, elementString(item))
		}
		return out
	case []string:
		return append(make([]string, 0, len(t)), t...)
	}
	if truthy(v) {
		return []string{elementString(v)}
	}
	return []string{}
}

func coverageField(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, elementString(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	}
	return stringField(v)
}

// elementString is stringField extended with booleans, used for sequence items.
func elementString(v any) string {
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return stringField(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

// intField parses a leading integer ("5 years" -> 5). Numbers truncate toward zero.
func intField(v any) int {
	switch t := v.(type) {
	case string:
		return leadingInt(t)
	case float64:
		if math.IsNaN(t) || t >= math.MaxInt64 || t <= math.MinInt64 {
			return 0
		}
		return int(math.Trunc(t))
	case int:
		return t
	case int64:
		return int(t)
	default:
		return 0
	}
}

func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

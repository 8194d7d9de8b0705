package submission

import "time"

// Option applies a configuration option to the Mapper.
type Option func(*Mapper)

// WithSource sets the site identifier stamped on every record.
// Empty values are ignored.
func WithSource(source string) Option {
	return func(m *Mapper) {
		if source != "" {
			m.source = source
		}
	}
}

// WithClock overrides the time source used for the timestamp field.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) {
		if now != nil {
			m.now = now
		}
	}
}

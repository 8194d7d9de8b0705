package submission

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReferencePrefix starts every client visible reference number.
const ReferencePrefix = "EPC-"

// Reference modes.
const (
	ReferenceMillis = "millis"
	ReferenceULID   = "ulid"
)

// ErrUnknownReferenceMode is returned for unsupported reference modes.
var ErrUnknownReferenceMode = errors.New("unknown reference mode")

// ReferenceGenerator produces client visible reference numbers.
type ReferenceGenerator interface {
	Next(now time.Time) string
}

// NewReferenceGenerator returns the generator for mode.
func NewReferenceGenerator(mode string) (ReferenceGenerator, error) {
	switch mode {
	case "", ReferenceMillis:
		return MillisReferences{}, nil
	case ReferenceULID:
		return ULIDReferences{ids: NewULIDSource()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReferenceMode, mode)
	}
}

// MillisReferences renders EPC-<epoch millis>. Two submissions within the
// same millisecond share a reference.
type MillisReferences struct{}

// Next implements ReferenceGenerator.
func (MillisReferences) Next(now time.Time) string {
	return ReferencePrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// ULIDReferences renders EPC-<ULID>.
type ULIDReferences struct {
	ids *ULIDSource
}

// Next implements ReferenceGenerator.
func (g ULIDReferences) Next(now time.Time) string {
	return ReferencePrefix + g.ids.Next(now)
}

// ULIDSource hands out monotonic ULIDs. Safe for concurrent use.
type ULIDSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

// NewULIDSource creates a ULIDSource seeded from the clock.
func NewULIDSource() *ULIDSource {
	return &ULIDSource{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Next returns a ULID for now, strictly increasing within a millisecond.
func (s *ULIDSource) Next(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

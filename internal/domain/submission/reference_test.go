package submission

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/smartystreets/goconvey/convey"
)

func TestReferenceGenerators(t *testing.T) {
	Convey("Given reference generators", t, func() {
		now := time.UnixMilli(1_700_000_000_123)

		Convey("When using the millis mode", func() {
			g, err := NewReferenceGenerator(ReferenceMillis)
			So(err, ShouldBeNil)

			Convey("Then the reference is EPC- followed by epoch millis", func() {
				So(g.Next(now), ShouldEqual, "EPC-1700000000123")
				So(regexp.MustCompile(`^EPC-\d+$`).MatchString(g.Next(time.Now())), ShouldBeTrue)
			})
		})

		Convey("When using the ulid mode", func() {
			g, err := NewReferenceGenerator(ReferenceULID)
			So(err, ShouldBeNil)
			a, b := g.Next(now), g.Next(now)

			Convey("Then references are distinct valid ULIDs within one millisecond", func() {
				So(a, ShouldNotEqual, b)
				So(a < b, ShouldBeTrue)
				id, err := ulid.Parse(a[len(ReferencePrefix):])
				So(err, ShouldBeNil)
				So(int64(id.Time()), ShouldEqual, now.UnixMilli())
			})
		})

		Convey("When the mode is unknown", func() {
			_, err := NewReferenceGenerator("uuid")
			So(errors.Is(err, ErrUnknownReferenceMode), ShouldBeTrue)
		})
	})
}

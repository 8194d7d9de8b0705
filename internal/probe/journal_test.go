package probe

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/epcforward/internal/adapters/audit"
	. "github.com/smartystreets/goconvey/convey"
)

func TestJournalInspection(t *testing.T) {
	Convey("Given a journal with one resolved and two unresolved entries", t, func() {
		ctx := context.Background()
		store := audit.NewMemoryStore()
		base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
		So(store.Save(ctx, audit.Entry{ID: "01HZX0000000000000000000R1", Path: "/api/submit", Payload: []byte(`{"companyName":"Done"}`), ReceivedAt: base}), ShouldBeNil)
		So(store.Resolve(ctx, "01HZX0000000000000000000R1", audit.Resolution{
			Kind: "upstream_server_error", Action: "acknowledge", UpstreamStatus: 500,
			Reference: "EPC-1741942800000", ResolvedAt: base.Add(time.Second),
		}), ShouldBeNil)
		So(store.Save(ctx, audit.Entry{ID: "01HZX0000000000000000000P2", Path: "/", Payload: []byte(`{"companyName":"Late"}`), ReceivedAt: base.Add(2 * time.Minute)}), ShouldBeNil)
		So(store.Save(ctx, audit.Entry{ID: "01HZX0000000000000000000P1", Path: "/api/submit", Payload: []byte(`{"companyName":"Early"}`), ReceivedAt: base.Add(time.Minute)}), ShouldBeNil)

		Convey("When pending entries are listed", func() {
			var out bytes.Buffer
			n, err := ListPending(ctx, store, 0, &out)

			Convey("Then only unresolved entries appear, oldest first", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				text := out.String()
				So(text, ShouldNotContainSubstring, "R1")
				So(bytes.Index(out.Bytes(), []byte("P1")), ShouldBeLessThan, bytes.Index(out.Bytes(), []byte("P2")))
				So(text, ShouldContainSubstring, "2 pending")
			})
		})

		Convey("When a resolved entry is shown", func() {
			var out bytes.Buffer
			err := ShowEntry(ctx, store, "01HZX0000000000000000000R1", &out)

			Convey("Then its outcome and payload are printed", func() {
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, "upstream_server_error (acknowledge), upstream 500")
				So(out.String(), ShouldContainSubstring, "EPC-1741942800000")
				So(out.String(), ShouldContainSubstring, `"companyName": "Done"`)
			})
		})

		Convey("When an unknown entry is requested", func() {
			err := ShowEntry(ctx, store, "missing", &bytes.Buffer{})
			So(errors.Is(err, audit.ErrNotFound), ShouldBeTrue)
		})
	})
}

package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/okian/epcforward/internal/adapters/audit"
	"github.com/okian/epcforward/internal/adapters/upstream"
	service "github.com/okian/epcforward/internal/app"
	"github.com/okian/epcforward/internal/domain/outcome"
	"github.com/okian/epcforward/internal/domain/submission"
	"github.com/okian/epcforward/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var referencePattern = regexp.MustCompile(`^EPC-\d+$`)

// fakeDispatcher records payloads and answers with a canned response.
type fakeDispatcher struct {
	mu       sync.Mutex
	payloads []submission.Canonical
	resp     *upstream.Response
	err      error
}

func (f *fakeDispatcher) Post(_ context.Context, payload any) (*upstream.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload.(submission.Canonical))
	return f.resp, f.err
}

// failingJournal rejects every write.
type failingJournal struct{}

func (failingJournal) Save(context.Context, audit.Entry) error { return errors.New("disk full") }
func (failingJournal) Resolve(context.Context, string, audit.Resolution) error {
	return errors.New("disk full")
}
func (failingJournal) Get(context.Context, string) (audit.Entry, error) {
	return audit.Entry{}, audit.ErrNotFound
}
func (failingJournal) Pending(context.Context, int) ([]audit.Entry, error) {
	return nil, errors.New("disk full")
}
func (failingJournal) Close() error { return nil }

// cancellingDispatcher cancels the caller's context mid-flight, as a client
// disconnect does, then answers with resp.
type cancellingDispatcher struct {
	cancel context.CancelFunc
	resp   *upstream.Response
}

func (d *cancellingDispatcher) Post(context.Context, any) (*upstream.Response, error) {
	d.cancel()
	return d.resp, nil
}

// idJournal remembers the IDs it was asked to save.
type idJournal struct {
	audit.Store
	mu  sync.Mutex
	ids []string
}

func (j *idJournal) Save(ctx context.Context, e audit.Entry) error {
	j.mu.Lock()
	j.ids = append(j.ids, e.ID)
	j.mu.Unlock()
	return j.Store.Save(ctx, e)
}

func decodeReply(reply outcome.Reply) outcome.ClientResponse {
	var c outcome.ClientResponse
	So(json.Unmarshal(reply.Body, &c), ShouldBeNil)
	return c
}

func startService(opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

const formBody = `{"companyName":"Acme","primaryContactEmail":"a@b.com","coverageRegion":["North"],"yearsTrading":"5"}`

func TestService_Start(t *testing.T) {
	Convey("Given a service without a dispatcher", t, func() {
		svc := service.New()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then it should refuse to start", func() {
				So(errors.Is(err, service.ErrNoDispatcher), ShouldBeTrue)
				So(svc.Started(), ShouldBeFalse)
			})
		})

		Convey("When submitting before start", func() {
			reply := svc.Submit(context.Background(), "/api/submit", []byte(formBody))

			Convey("Then a local error is returned", func() {
				So(reply.Status, ShouldEqual, http.StatusInternalServerError)
				So(decodeReply(reply).Error, ShouldEqual, service.ErrNotStarted.Error())
			})
		})
	})

	Convey("Given a started service", t, func() {
		svc := startService(service.WithDispatcher(&fakeDispatcher{}))

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a started service with an in-memory journal", t, func() {
		journal := audit.NewMemoryStore()
		dispatcher := &fakeDispatcher{}
		now := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
		svc := startService(
			service.WithDispatcher(dispatcher),
			service.WithJournal(journal),
			service.WithClock(func() time.Time { return now }),
			service.WithMapper(submission.NewMapper(submission.WithClock(func() time.Time { return now }))),
		)
		defer svc.Stop()
		ctx := context.Background()

		Convey("When upstream rejects with 403", func() {
			dispatcher.resp = &upstream.Response{Status: http.StatusForbidden, Body: []byte(`{"error":"AuthorizationFailed"}`)}
			reply := svc.Submit(ctx, "/api/submit", []byte(formBody))
			body := decodeReply(reply)

			Convey("Then the client sees success with a reference", func() {
				So(reply.Status, ShouldEqual, http.StatusOK)
				So(body.Success, ShouldBeTrue)
				So(body.Message, ShouldEqual, outcome.MessageAccepted)
				So(referencePattern.MatchString(body.ReferenceNumber), ShouldBeTrue)
				So(body.ReferenceNumber, ShouldEqual, fmt.Sprintf("EPC-%d", now.UnixMilli()))
			})

			Convey("And the mapped record was dispatched once", func() {
				So(dispatcher.payloads, ShouldHaveLength, 1)
				p := dispatcher.payloads[0]
				So(p.CompanyName, ShouldEqual, "Acme")
				So(p.Email, ShouldEqual, "a@b.com")
				So(p.Coverage, ShouldEqual, "North")
				So(p.YearsExperience, ShouldEqual, 5)
				So(p.InvitationCode, ShouldEqual, "UNKNOWN")
				So(p.Services, ShouldResemble, []string{})
			})

			Convey("And the journal holds the resolved outcome", func() {
				So(journal.Len(), ShouldEqual, 1)
			})
		})

		Convey("When upstream fails with 500", func() {
			dispatcher.resp = &upstream.Response{Status: http.StatusInternalServerError}
			body := decodeReply(svc.Submit(ctx, "/submit-application", []byte(formBody)))

			Convey("Then the note marks manual processing", func() {
				So(body.Success, ShouldBeTrue)
				So(body.Note, ShouldEqual, outcome.NotePendingManual)
				So(body.ReferenceNumber, ShouldNotBeEmpty)
			})
		})

		Convey("When upstream accepts with a JSON body", func() {
			dispatcher.resp = &upstream.Response{Status: http.StatusAccepted, ContentType: "application/json", Body: []byte(`{"status":"queued"}`)}
			reply := svc.Submit(ctx, "/", []byte(formBody))

			Convey("Then the upstream reply is relayed", func() {
				So(reply.Status, ShouldEqual, http.StatusAccepted)
				So(string(reply.Body), ShouldEqual, `{"status":"queued"}`)
			})
		})

		Convey("When upstream is unreachable", func() {
			dispatcher.err = fmt.Errorf("%w: dial tcp: connection refused", upstream.ErrTransport)
			reply := svc.Submit(ctx, "/api/submit", []byte(formBody))

			Convey("Then the client still sees success", func() {
				So(reply.Status, ShouldEqual, http.StatusOK)
				So(decodeReply(reply).Success, ShouldBeTrue)
			})
		})

		Convey("When the request body is malformed JSON", func() {
			reply := svc.Submit(ctx, "/api/submit", []byte(`{"companyName":`))
			body := decodeReply(reply)

			Convey("Then a 500 local error is returned without dispatching", func() {
				So(reply.Status, ShouldEqual, http.StatusInternalServerError)
				So(body.Success, ShouldBeFalse)
				So(body.Message, ShouldEqual, outcome.MessageLocalError)
				So(body.Error, ShouldNotBeEmpty)
				So(dispatcher.payloads, ShouldBeEmpty)
			})

			Convey("And the raw payload is still journaled", func() {
				So(journal.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the body is valid JSON but not an object", func() {
			dispatcher.resp = &upstream.Response{Status: http.StatusOK}
			reply := svc.Submit(ctx, "/api/submit", []byte(`[1,2,3]`))

			Convey("Then it is mapped as an empty form", func() {
				So(reply.Status, ShouldEqual, http.StatusOK)
				So(dispatcher.payloads, ShouldHaveLength, 1)
				So(dispatcher.payloads[0].InvitationCode, ShouldEqual, "UNKNOWN")
			})
		})
	})
}

func TestService_JournalFailures(t *testing.T) {
	Convey("Given a service whose journal rejects writes", t, func() {
		dispatcher := &fakeDispatcher{resp: &upstream.Response{Status: http.StatusUnauthorized}}
		svc := startService(
			service.WithDispatcher(dispatcher),
			service.WithJournal(failingJournal{}),
		)
		defer svc.Stop()

		Convey("When a submission arrives", func() {
			reply := svc.Submit(context.Background(), "/api/submit", []byte(formBody))

			Convey("Then the submission is still answered", func() {
				So(reply.Status, ShouldEqual, http.StatusOK)
				So(decodeReply(reply).Success, ShouldBeTrue)
				So(dispatcher.payloads, ShouldHaveLength, 1)
			})
		})
	})
}

func TestService_JournalOutlivesClient(t *testing.T) {
	Convey("Given a service journaling to SQLite", t, func() {
		store, err := audit.OpenSQL(filepath.Join(t.TempDir(), "audit.db"))
		So(err, ShouldBeNil)
		journal := &idJournal{Store: store}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		dispatcher := &cancellingDispatcher{cancel: cancel, resp: &upstream.Response{Status: http.StatusInternalServerError}}
		svc := startService(
			service.WithDispatcher(dispatcher),
			service.WithJournal(journal),
		)
		defer svc.Stop()

		Convey("When the client disconnects while upstream is answering", func() {
			body := decodeReply(svc.Submit(ctx, "/api/submit", []byte(formBody)))
			So(body.Note, ShouldEqual, outcome.NotePendingManual)

			Convey("Then the masked outcome is still resolved in the journal", func() {
				So(journal.ids, ShouldHaveLength, 1)
				entry, err := store.Get(context.Background(), journal.ids[0])
				So(err, ShouldBeNil)
				So(entry.Status, ShouldEqual, audit.StatusResolved)
				So(entry.Kind, ShouldEqual, string(outcome.KindUpstreamServerError))
				So(entry.Action, ShouldEqual, string(outcome.ActionAcknowledge))
				So(entry.UpstreamStatus, ShouldEqual, http.StatusInternalServerError)
				So(entry.Reference, ShouldEqual, body.ReferenceNumber)

				pending, err := store.Pending(context.Background(), 0)
				So(err, ShouldBeNil)
				So(pending, ShouldBeEmpty)
			})
		})

		Convey("When the request context is already cancelled", func() {
			cancel()
			reply := svc.Submit(ctx, "/api/submit", []byte(formBody))
			So(reply.Status, ShouldEqual, http.StatusOK)

			Convey("Then the submission is journaled and resolved", func() {
				So(journal.ids, ShouldHaveLength, 1)
				entry, err := store.Get(context.Background(), journal.ids[0])
				So(err, ShouldBeNil)
				So(entry.Status, ShouldEqual, audit.StatusResolved)
				So(string(entry.Payload), ShouldEqual, formBody)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a started service with an in-memory journal", t, func() {
		journal := audit.NewMemoryStore()
		svc := startService(
			service.WithDispatcher(&fakeDispatcher{resp: &upstream.Response{Status: http.StatusOK}}),
			service.WithJournal(journal),
		)
		defer svc.Stop()

		Convey("When an entry is left unresolved", func() {
			So(journal.Save(context.Background(), audit.Entry{ID: "01HZX0000000000000000000P1", ReceivedAt: time.Now()}), ShouldBeNil)
			svc.Submit(context.Background(), "/api/submit", []byte(formBody))

			Convey("Then stats count only the unresolved entry", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["pendingAudit"], ShouldEqual, 1)
			})
		})
	})

	Convey("Given a service whose journal cannot be queried", t, func() {
		svc := startService(
			service.WithDispatcher(&fakeDispatcher{}),
			service.WithJournal(failingJournal{}),
		)
		defer svc.Stop()

		Convey("Then the pending count is reported as unknown", func() {
			So(svc.GetStats()["pendingAudit"], ShouldEqual, -1)
		})
	})
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given a real upstream client and a custom policy", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}))
		defer srv.Close()

		policy, err := outcome.NewPolicy(outcome.DefaultRules(), outcome.ActionAcknowledge)
		So(err, ShouldBeNil)
		refs, err := submission.NewReferenceGenerator(submission.ReferenceULID)
		So(err, ShouldBeNil)
		svc := startService(
			service.WithDispatcher(upstream.NewClient(srv.URL, upstream.WithTimeout(time.Second))),
			service.WithPolicy(policy),
			service.WithJournal(audit.NewMemoryStore()),
			service.WithReferences(refs),
		)
		defer svc.Stop()

		Convey("When upstream answers an unexpected status", func() {
			reply := svc.Submit(context.Background(), "/api/submit", []byte(formBody))

			Convey("Then the acknowledge fallback masks it", func() {
				So(reply.Status, ShouldEqual, http.StatusOK)
				body := decodeReply(reply)
				So(body.Success, ShouldBeTrue)
				So(body.ReferenceNumber, ShouldStartWith, submission.ReferencePrefix)
				So(body.ReferenceNumber, ShouldHaveLength, len(submission.ReferencePrefix)+26)
			})
		})
	})
}

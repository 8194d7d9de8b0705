package edge

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatewayEvent(method, path, body string) events.APIGatewayV2HTTPRequest {
	ev := events.APIGatewayV2HTTPRequest{
		RawPath:        path,
		RawQueryString: "src=form",
		Headers:        map[string]string{"content-type": "application/json", "origin": "https://epc.saberrenewable.energy"},
		Body:           body,
	}
	ev.RequestContext.HTTP.Method = method
	ev.RequestContext.HTTP.SourceIP = "203.0.113.9"
	ev.RequestContext.DomainName = "abc.execute-api.eu-west-2.amazonaws.com"
	return ev
}

func TestAdapterRoundTrip(t *testing.T) {
	var (
		gotMethod, gotPath, gotQuery, gotOrigin, gotBody, gotHost string
	)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotOrigin = r.Header.Get("Origin")
		gotHost = r.Host
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	resp, err := New(h).Handle(context.Background(), gatewayEvent(http.MethodPost, "/api/submit", `{"companyName":"Acme"}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/submit", gotPath)
	assert.Equal(t, "src=form", gotQuery)
	assert.Equal(t, "https://epc.saberrenewable.energy", gotOrigin)
	assert.Equal(t, "abc.execute-api.eu-west-2.amazonaws.com", gotHost)
	assert.Equal(t, `{"companyName":"Acme"}`, gotBody)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"success":true}`, resp.Body)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
}

func TestAdapterBase64Body(t *testing.T) {
	var gotBody string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	})

	ev := gatewayEvent(http.MethodPost, "/", base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)))
	ev.IsBase64Encoded = true

	resp, err := New(h).Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Body)
}

func TestAdapterBinaryResponse(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	})

	resp, err := New(h).Handle(context.Background(), gatewayEvent(http.MethodGet, "/logo.png", ""))
	require.NoError(t, err)
	assert.True(t, resp.IsBase64Encoded)
	raw, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, raw)
}

func TestAdapterBadEvents(t *testing.T) {
	h := http.NotFoundHandler()

	_, err := New(h).Handle(context.Background(), events.APIGatewayV2HTTPRequest{})
	assert.ErrorIs(t, err, ErrBadEvent)

	ev := gatewayEvent(http.MethodPost, "/", "%%%")
	ev.IsBase64Encoded = true
	_, err = New(h).Handle(context.Background(), ev)
	assert.ErrorIs(t, err, ErrBadEvent)

	for _, raw := range []string{"/api/%zz", "//other.example/x"} {
		_, err = New(h).Handle(context.Background(), gatewayEvent(http.MethodGet, raw, ""))
		assert.ErrorIs(t, err, ErrBadEvent, raw)
	}
}

func TestAdapterEncodedPath(t *testing.T) {
	var gotPath, gotEscaped, gotRequestURI string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotEscaped, gotRequestURI = r.URL.Path, r.URL.EscapedPath(), r.RequestURI
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := New(h).Handle(context.Background(), gatewayEvent(http.MethodGet, "/api/a%20b", ""))
	require.NoError(t, err)
	assert.Equal(t, "/api/a b", gotPath)
	assert.Equal(t, "/api/a%20b", gotEscaped)
	assert.Equal(t, "/api/a%20b?src=form", gotRequestURI)

	// without RawPath the decoded context path is used
	ev := gatewayEvent(http.MethodGet, "", "")
	ev.RequestContext.HTTP.Path = "/api/a b"
	_, err = New(h).Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "/api/a b", gotPath)
	assert.Equal(t, "/api/a%20b", gotEscaped)
}

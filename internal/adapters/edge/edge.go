// Package edge runs the HTTP handler inside AWS Lambda behind an API Gateway
// HTTP API, so the forwarder can be deployed as an edge function.
package edge

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// ErrBadEvent is returned for events that cannot become an HTTP request.
var ErrBadEvent = errors.New("invalid gateway event")

// Adapter converts API Gateway v2 events into http.Requests.
type Adapter struct {
	handler http.Handler
}

// New wraps handler.
func New(handler http.Handler) *Adapter {
	return &Adapter{handler: handler}
}

// Handle is the Lambda entry point.
func (a *Adapter) Handle(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	req, err := toRequest(ctx, ev)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}

	rec := newRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec.response(), nil
}

func toRequest(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	method := ev.RequestContext.HTTP.Method
	if method == "" {
		return nil, fmt.Errorf("%w: missing method", ErrBadEvent)
	}
	u, err := requestURL(ev)
	if err != nil {
		return nil, err
	}

	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: body: %w", ErrBadEvent, err)
		}
		body = decoded
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadEvent, err)
	}
	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	if len(ev.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(ev.Cookies, "; "))
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	} else {
		req.Host = ev.RequestContext.DomainName
	}
	req.RemoteAddr = ev.RequestContext.HTTP.SourceIP
	req.RequestURI = u.RequestURI()
	return req, nil
}

// requestURL builds the request URL. RawPath arrives percent-encoded while
// RequestContext.HTTP.Path is already decoded.
func requestURL(ev events.APIGatewayV2HTTPRequest) (*url.URL, error) {
	u := &url.URL{Path: ev.RequestContext.HTTP.Path}
	if ev.RawPath != "" {
		parsed, err := url.Parse(ev.RawPath)
		if err != nil || parsed.Opaque != "" || parsed.Host != "" {
			return nil, fmt.Errorf("%w: path %q", ErrBadEvent, ev.RawPath)
		}
		u = &url.URL{Path: parsed.Path, RawPath: parsed.RawPath}
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = ev.RawQueryString
	return u, nil
}

// recorder is a minimal http.ResponseWriter buffering one response.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(b)
}

func (r *recorder) response() events.APIGatewayV2HTTPResponse {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	resp := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    make(map[string]string, len(r.header)),
		Cookies:    r.header.Values("Set-Cookie"),
	}
	for k, v := range r.header {
		if k == "Set-Cookie" {
			continue
		}
		resp.Headers[k] = strings.Join(v, ", ")
	}
	if isText(r.header.Get("Content-Type")) {
		resp.Body = r.body.String()
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(r.body.Bytes())
		resp.IsBase64Encoded = r.body.Len() > 0
		if !resp.IsBase64Encoded {
			resp.Body = ""
		}
	}
	return resp
}

func isText(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") ||
		strings.Contains(ct, "json") ||
		strings.Contains(ct, "yaml") ||
		strings.Contains(ct, "xml") ||
		strings.Contains(ct, "javascript")
}

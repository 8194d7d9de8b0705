package api

import (
	"net/http"
	"strings"
)

// RouteKind is the branch a request takes.
type RouteKind int

// Route kinds.
const (
	RouteDefault RouteKind = iota
	RoutePreflight
	RouteSubmit
	RouteMethodNotAllowed
	RouteAPINotFound
)

func (k RouteKind) String() string {
	switch k {
	case RoutePreflight:
		return "preflight"
	case RouteSubmit:
		return "submit"
	case RouteMethodNotAllowed:
		return "method_not_allowed"
	case RouteAPINotFound:
		return "api_not_found"
	default:
		return "default"
	}
}

const apiPrefix = "/api"

// Router classifies requests against the submission allow-list.
type Router struct {
	submit map[string]struct{}
}

// NewRouter builds a Router for the given submission paths.
func NewRouter(submitPaths []string) *Router {
	r := &Router{submit: make(map[string]struct{}, len(submitPaths))}
	for _, p := range submitPaths {
		r.submit[p] = struct{}{}
	}
	return r
}

// Route maps every method and path to exactly one RouteKind.
func (rt *Router) Route(method, path string) RouteKind {
	if method == http.MethodOptions {
		return RoutePreflight
	}
	_, allowed := rt.submit[path]
	isAPI := path == apiPrefix || strings.HasPrefix(path, apiPrefix+"/")
	switch {
	case allowed && method == http.MethodPost:
		return RouteSubmit
	case allowed && isAPI:
		return RouteMethodNotAllowed
	case isAPI:
		return RouteAPINotFound
	default:
		return RouteDefault
	}
}

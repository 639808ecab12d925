// roles/pkg/annotations/openapi.go

package annotations

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// Schema is an OpenAPI 3 document bound to the location it was fetched from,
// ready to route preset URIs.
type Schema struct {
	doc    *openapi3.T
	router routers.Router
}

type Operation struct {
	OperationID string
	Summary     string
}

// Match describes the GET operation a preset URI addresses.
type Match struct {
	ServerURL   string
	Path        string
	PathParams  map[string]string
	QueryParams map[string]string
	Operation   Operation
}

// ParseSchema loads the document at schemaURL. Relative server URLs are
// resolved against schemaURL and a document without servers is served from
// its root.
func ParseSchema(schemaURL string, data []byte) (*Schema, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, fmt.Errorf("OpenAPI document has no paths")
	}

	base, err := url.Parse(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid schema url: %w", err)
	}
	if len(doc.Servers) == 0 {
		doc.Servers = openapi3.Servers{{URL: "/"}}
	}
	for _, server := range doc.Servers {
		ref, err := url.Parse(server.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid server url %q: %w", server.URL, err)
		}
		server.URL = base.ResolveReference(ref).String()
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, err
	}
	return &Schema{doc: doc, router: router}, nil
}

// MatchGet finds the GET operation serving uri. Literal path segments take
// precedence over templated ones.
func (s *Schema) MatchGet(uri string) (Match, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return Match{}, fmt.Errorf("invalid annotation uri: %w", err)
	}
	route, pathParams, err := s.router.FindRoute(req)
	if err != nil {
		return Match{}, fmt.Errorf("no GET operation matches %s: %w", uri, err)
	}

	params := make(map[string]string, len(pathParams))
	for name, raw := range pathParams {
		value, err := url.PathUnescape(raw)
		if err != nil || value == "" {
			return Match{}, fmt.Errorf("invalid path parameter %s in %s", name, uri)
		}
		params[name] = value
	}
	query := make(map[string]string)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	m := Match{
		Path:        route.Path,
		PathParams:  params,
		QueryParams: query,
	}
	if server, _, _ := s.doc.Servers.MatchURL(req.URL); server != nil {
		m.ServerURL = strings.TrimSuffix(server.URL, "/")
	}
	if route.Operation != nil {
		m.Operation = Operation{OperationID: route.Operation.OperationID, Summary: route.Operation.Summary}
	}
	return m, nil
}

package annotations

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zodiac/roles/pkg/conditions"
	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
)

var (
	targetA  = common.HexToAddress("0x000000000000000000000000000000000000000a")
	targetB  = common.HexToAddress("0x000000000000000000000000000000000000000b")
	targetC  = common.HexToAddress("0x000000000000000000000000000000000000000c")
	transfer = permissions.SelectorFromSignature("transfer(address,uint256)")
	approve  = permissions.SelectorFromSignature("approve(address,uint256)")
)

func word(n int64) conditions.Condition {
	return conditions.EqualToWord(common.BigToHash(big.NewInt(n)))
}

const schemaDoc = `{
	"openapi": "3.0.0",
	"info": {"title": "kit", "version": "1"},
	"servers": [{"url": "/api/v1"}],
	"paths": {
		"/permissions/{protocol}/deposit": {
			"parameters": [{"name": "protocol", "in": "path", "required": true, "schema": {"type": "string"}}],
			"get": {"operationId": "deposit", "responses": {"200": {"description": "preset"}}}
		},
		"/permissions/lido/deposit": {
			"get": {"operationId": "lidoDeposit", "responses": {"200": {"description": "preset"}}}
		},
		"/permissions/{protocol}/borrow": {
			"parameters": [{"name": "protocol", "in": "path", "required": true, "schema": {"type": "string"}}],
			"post": {"operationId": "borrow", "responses": {"200": {"description": "preset"}}}
		}
	}
}`

type kitServer struct {
	*httptest.Server
	schemaHits atomic.Int32
	presetHits atomic.Int32
}

func newKitServer(t *testing.T, presets map[string][]permissions.Permission) *kitServer {
	t.Helper()
	ks := &kitServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		ks.schemaHits.Add(1)
		w.Write([]byte(schemaDoc))
	})
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		ks.presetHits.Add(1)
		perms, ok := presets[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(perms)
	})
	ks.Server = httptest.NewServer(mux)
	t.Cleanup(ks.Close)
	return ks
}

func (ks *kitServer) annotation(path string) permissions.Annotation {
	return permissions.Annotation{URI: ks.URL + path, Schema: ks.URL + "/openapi.json"}
}

func newTestResolver(options ...ClientOption) *Resolver {
	defaults := []ClientOption{
		WithLogger(zerolog.Nop()),
		WithRetry(func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2) }),
	}
	return NewResolver(append(defaults, options...)...)
}

func TestMatchGet(t *testing.T) {
	schema, err := ParseSchema("https://kit.example/openapi.json", []byte(schemaDoc))
	require.NoError(t, err)

	tests := []struct {
		name      string
		uri       string
		path      string
		params    map[string]string
		query     map[string]string
		expectErr bool
	}{
		{"template", "https://kit.example/api/v1/permissions/aave/deposit?targets=DAI", "/permissions/{protocol}/deposit", map[string]string{"protocol": "aave"}, map[string]string{"targets": "DAI"}, false},
		{"literal preferred", "https://kit.example/api/v1/permissions/lido/deposit", "/permissions/lido/deposit", map[string]string{}, map[string]string{}, false},
		{"escaped parameter", "https://kit.example/api/v1/permissions/curve%2Fv2/deposit", "/permissions/{protocol}/deposit", map[string]string{"protocol": "curve/v2"}, map[string]string{}, false},
		{"post only", "https://kit.example/api/v1/permissions/aave/borrow", "", nil, nil, true},
		{"outside server", "https://kit.example/api/v2/permissions/aave/deposit", "", nil, nil, true},
		{"other host", "https://elsewhere.example/api/v1/permissions/aave/deposit", "", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := schema.MatchGet(tt.uri)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "https://kit.example/api/v1", m.ServerURL)
			assert.Equal(t, tt.path, m.Path)
			assert.Equal(t, tt.params, m.PathParams)
			assert.Equal(t, tt.query, m.QueryParams)
			assert.NotEmpty(t, m.Operation.OperationID)
		})
	}
}

func TestParseSchemaRejects(t *testing.T) {
	const schemaURL = "https://kit.example/openapi.json"
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `not json`},
		{"no paths", `{"openapi": "3.0.0", "info": {"title": "kit", "version": "1"}, "paths": {}}`},
		{"undeclared path parameter", `{
			"openapi": "3.0.0",
			"info": {"title": "kit", "version": "1"},
			"paths": {"/permissions/{protocol}/deposit": {"get": {"responses": {"200": {"description": "preset"}}}}}
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema(schemaURL, []byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestMatchGetWithoutServers(t *testing.T) {
	schema, err := ParseSchema("https://kit.example/specs/openapi.json", []byte(`{
		"openapi": "3.0.0",
		"info": {"title": "kit", "version": "1"},
		"paths": {"/presets/{name}": {
			"parameters": [{"name": "name", "in": "path", "required": true, "schema": {"type": "string"}}],
			"get": {"operationId": "preset", "summary": "Named preset", "responses": {"200": {"description": "preset"}}}
		}}
	}`))
	require.NoError(t, err)

	m, err := schema.MatchGet("https://kit.example/presets/swap")
	require.NoError(t, err)
	assert.Equal(t, "https://kit.example", m.ServerURL)
	assert.Equal(t, "/presets/{name}", m.Path)
	assert.Equal(t, map[string]string{"name": "swap"}, m.PathParams)
	assert.Equal(t, Operation{OperationID: "preset", Summary: "Named preset"}, m.Operation)

	_, err = schema.MatchGet("https://other.example/presets/swap")
	assert.Error(t, err)
}

func TestParsePermissions(t *testing.T) {
	perms, err := parsePermissions([]byte(`{"permissions": [{"targetAddress": "0x000000000000000000000000000000000000000a", "send": true}]}`))
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, targetA, perms[0].TargetAddress)
	assert.True(t, perms[0].Send)

	_, err = parsePermissions([]byte(`{"other": 1}`))
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	cond1 := conditions.CalldataMatches(word(1), word(3))
	cond2 := conditions.CalldataMatches(word(2), word(4))

	ks := newKitServer(t, map[string][]permissions.Permission{
		"/api/v1/permissions/aave/deposit": {
			permissions.AllowTarget(targetA),
			permissions.AllowFunction(targetB, transfer, &cond1),
		},
		"/api/v1/permissions/spark/deposit": {
			permissions.AllowFunction(targetC, approve, nil),
		},
	})

	granted := []permissions.Permission{
		permissions.AllowTarget(targetA),
		permissions.AllowFunction(targetB, transfer, permissions.Scoped(conditions.OrOf(cond1, cond2))),
		permissions.AllowFunction(targetB, approve, nil),
	}
	anns := []permissions.Annotation{
		ks.annotation("/api/v1/permissions/aave/deposit?targets=DAI"),
		ks.annotation("/api/v1/permissions/spark/deposit"),
		ks.annotation("/api/v1/permissions/morpho/deposit"),
	}

	result, err := newTestResolver().Resolve(context.Background(), anns, granted)
	require.NoError(t, err)

	require.Len(t, result.Presets, 1)
	preset := result.Presets[0]
	assert.Equal(t, anns[0].URI, preset.URI)
	assert.Equal(t, ks.URL+"/api/v1", preset.ServerURL)
	assert.Equal(t, "/permissions/{protocol}/deposit", preset.Path)
	assert.Equal(t, map[string]string{"protocol": "aave"}, preset.PathParams)
	assert.Equal(t, map[string]string{"targets": "DAI"}, preset.QueryParams)
	assert.Equal(t, "deposit", preset.OperationID)

	require.Len(t, result.Failures, 1)
	assert.True(t, logging.IsType(result.Failures[0], logging.ErrorTypeResolution))
	assert.Contains(t, result.Failures[0].Error(), "cannot fetch preset")

	require.Len(t, result.RemainingPermissions, 2)
	remaining := result.RemainingPermissions[0]
	assert.Equal(t, targetB, remaining.TargetAddress)
	assert.Equal(t, transfer, *remaining.Selector)
	require.NotNil(t, remaining.Condition)
	equal, err := conditions.Equal(*remaining.Condition, cond2)
	require.NoError(t, err)
	assert.True(t, equal)
	assert.Equal(t, approve, *result.RemainingPermissions[1].Selector)

	// Presets and remaining permissions together project onto the same
	// targets as the granted permissions.
	before, err := permissions.ProcessPermissions(granted)
	require.NoError(t, err)
	after, err := permissions.ProcessPermissions(append(preset.Permissions, result.RemainingPermissions...))
	require.NoError(t, err)
	assert.True(t, permissions.TargetsEqual(before.Targets, after.Targets))
}

func TestResolveCachesResponses(t *testing.T) {
	ks := newKitServer(t, map[string][]permissions.Permission{
		"/api/v1/permissions/aave/deposit":  {permissions.AllowTarget(targetA)},
		"/api/v1/permissions/spark/deposit": {permissions.AllowTarget(targetB)},
	})
	cache, err := NewLRUCache(16)
	require.NoError(t, err)

	r := newTestResolver(WithCache(cache), WithConcurrency(1))
	anns := []permissions.Annotation{
		ks.annotation("/api/v1/permissions/aave/deposit"),
		ks.annotation("/api/v1/permissions/spark/deposit"),
	}
	granted := []permissions.Permission{permissions.AllowTarget(targetA), permissions.AllowTarget(targetB)}

	for i := 0; i < 2; i++ {
		result, err := r.Resolve(context.Background(), anns, granted)
		require.NoError(t, err)
		assert.Len(t, result.Presets, 2)
		assert.Empty(t, result.RemainingPermissions)
	}
	assert.Equal(t, int32(1), ks.schemaHits.Load())
	assert.Equal(t, int32(2), ks.presetHits.Load())
}

func TestFetchRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/missing":
			hits.Add(1)
			http.NotFound(w, r)
		case hits.Add(1) == 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	r := newTestResolver()
	body, err := r.fetch(context.Background(), srv.URL+"/flaky")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), hits.Load())

	hits.Store(0)
	_, err = r.fetch(context.Background(), srv.URL+"/missing")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load(), "client errors are not retried")
}

func TestSubtract(t *testing.T) {
	scoped := conditions.CalldataMatches(word(1))

	tests := []struct {
		name    string
		granted []permissions.Permission
		kept    []permissions.Permission
		want    int
	}{
		{"exact wildcard", []permissions.Permission{permissions.AllowFunction(targetA, transfer, nil)}, []permissions.Permission{permissions.AllowFunction(targetA, transfer, nil)}, 0},
		{"wildcard keeps scoped remainder", []permissions.Permission{permissions.AllowFunction(targetA, transfer, nil)}, []permissions.Permission{permissions.AllowFunction(targetA, transfer, &scoped)}, 1},
		{"exact scoped", []permissions.Permission{permissions.AllowFunction(targetA, transfer, &scoped)}, []permissions.Permission{permissions.AllowFunction(targetA, transfer, &scoped)}, 0},
		{"options differ", []permissions.Permission{permissions.AllowTarget(targetA, permissions.WithSend())}, []permissions.Permission{permissions.AllowTarget(targetA)}, 1},
		{"unrelated", []permissions.Permission{permissions.AllowTarget(targetA)}, []permissions.Permission{permissions.AllowTarget(targetB)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := subtract(tt.granted, tt.kept)
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestGrants(t *testing.T) {
	narrow := conditions.CalldataMatches(word(1))
	wide := conditions.CalldataMatches(conditions.OrOf(word(1), word(2)))

	ok, err := grants(permissions.AllowFunction(targetA, transfer, &wide), permissions.AllowFunction(targetA, transfer, &narrow))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = grants(permissions.AllowFunction(targetA, transfer, &narrow), permissions.AllowFunction(targetA, transfer, &wide))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = grants(permissions.AllowFunction(targetA, transfer, nil), permissions.AllowFunction(targetA, transfer, &wide))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = grants(permissions.AllowTarget(targetA), permissions.AllowFunction(targetA, transfer, nil))
	require.NoError(t, err)
	assert.False(t, ok, "target and function entries do not mix")
}

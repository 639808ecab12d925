// roles/pkg/annotations/resolver.go

// Package annotations resolves permission preset annotations into the
// permissions they stand for.
package annotations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/permissions"
)

const defaultConcurrency = 4

type ClientOption func(*Resolver)

// WithHTTPClient sets the client used for every fetch.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithCache shares a response cache between resolutions.
func WithCache(cache Cache) ClientOption {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithConcurrency bounds the number of annotations resolved at once.
func WithConcurrency(n int) ClientOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithRetry sets the retry policy. newPolicy is called once per request.
func WithRetry(newPolicy func() backoff.BackOff) ClientOption {
	return func(r *Resolver) {
		r.retry = newPolicy
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

type Resolver struct {
	client      *http.Client
	cache       Cache
	concurrency int
	retry       func() backoff.BackOff
	logger      zerolog.Logger
	inflight    singleflight.Group
}

func NewResolver(options ...ClientOption) *Resolver {
	r := &Resolver{
		client:      &http.Client{Timeout: 15 * time.Second},
		cache:       noCache{},
		concurrency: defaultConcurrency,
		retry:       defaultRetry,
		logger:      logging.Logger,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Preset is a resolved annotation.
type Preset struct {
	URI         string                   `json:"uri"`
	Schema      string                   `json:"schema"`
	ServerURL   string                   `json:"serverUrl"`
	Path        string                   `json:"path"`
	PathParams  map[string]string        `json:"pathParams"`
	QueryParams map[string]string        `json:"queryParams"`
	OperationID string                   `json:"operationId,omitempty"`
	Permissions []permissions.Permission `json:"permissions"`
}

type Result struct {
	// Presets are the annotations whose permissions are all granted.
	Presets []Preset
	// RemainingPermissions are the granted permissions no preset accounts
	// for.
	RemainingPermissions []permissions.Permission
	// Failures holds one RESOLUTION error per annotation that could not be
	// resolved.
	Failures []error
}

func resolutionError(message string, a permissions.Annotation, err error) error {
	return logging.NewError(logging.ErrorTypeResolution, message, err, map[string]interface{}{
		"uri":    a.URI,
		"schema": a.Schema,
	})
}

// FetchPreset resolves a single annotation.
func (r *Resolver) FetchPreset(ctx context.Context, a permissions.Annotation) (Preset, error) {
	raw, err := r.fetch(ctx, a.Schema)
	if err != nil {
		return Preset{}, resolutionError("cannot fetch schema", a, err)
	}
	schema, err := ParseSchema(a.Schema, raw)
	if err != nil {
		return Preset{}, resolutionError("cannot parse schema", a, err)
	}
	match, err := schema.MatchGet(a.URI)
	if err != nil {
		return Preset{}, resolutionError("no matching operation", a, err)
	}

	body, err := r.fetch(ctx, a.URI)
	if err != nil {
		return Preset{}, resolutionError("cannot fetch preset", a, err)
	}
	perms, err := parsePermissions(body)
	if err != nil {
		return Preset{}, resolutionError("cannot parse preset", a, err)
	}

	return Preset{
		URI:         a.URI,
		Schema:      a.Schema,
		ServerURL:   match.ServerURL,
		Path:        match.Path,
		PathParams:  match.PathParams,
		QueryParams: match.QueryParams,
		OperationID: match.Operation.OperationID,
		Permissions: perms,
	}, nil
}

// parsePermissions accepts either a bare permission list or an object with a
// permissions field.
func parsePermissions(body []byte) ([]permissions.Permission, error) {
	var list []permissions.Permission
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Permissions *[]permissions.Permission `json:"permissions"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Permissions == nil {
		return nil, fmt.Errorf("response holds no permissions")
	}
	return *wrapped.Permissions, nil
}

// Resolve fetches every annotation concurrently and splits granted into the
// presets it fully contains and the permissions left over. A failing
// annotation is logged, recorded in Failures and otherwise ignored.
func (r *Resolver) Resolve(ctx context.Context, annotations []permissions.Annotation, granted []permissions.Permission) (Result, error) {
	r.logger.Debug().Int("annotations", len(annotations)).Int("permissions", len(granted)).Msg("Resolving annotations")

	resolved := make([]*Preset, len(annotations))
	failures := make([]error, len(annotations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, a := range annotations {
		g.Go(func() error {
			preset, err := r.FetchPreset(gctx, a)
			if err != nil {
				r.logger.Warn().Err(err).Str("uri", a.URI).Msg("Dropping annotation")
				failures[i] = err
				return nil
			}
			resolved[i] = &preset
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var result Result
	for _, err := range failures {
		if err != nil {
			result.Failures = append(result.Failures, err)
		}
	}

	var kept []permissions.Permission
	for _, preset := range resolved {
		if preset == nil {
			continue
		}
		ok, err := allGranted(preset.Permissions, granted)
		if err != nil {
			a := permissions.Annotation{URI: preset.URI, Schema: preset.Schema}
			err = resolutionError("invalid preset permissions", a, err)
			r.logger.Warn().Err(err).Str("uri", preset.URI).Msg("Dropping annotation")
			result.Failures = append(result.Failures, err)
			continue
		}
		if !ok {
			r.logger.Info().Str("uri", preset.URI).Msg("Preset not fully granted")
			continue
		}
		result.Presets = append(result.Presets, *preset)
		kept = append(kept, preset.Permissions...)
	}

	remaining, err := subtract(granted, kept)
	if err != nil {
		return Result{}, err
	}
	result.RemainingPermissions = remaining
	return result, nil
}

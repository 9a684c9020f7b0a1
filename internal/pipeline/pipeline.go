// Package pipeline composes the per-route request gates of the admin API:
// rate limit, auth, body sanitize+validate, handler execution, and outcome
// normalization. Gates run in a fixed order and any failure short-circuits
// the rest, so a request failing several checks is reported for whichever
// gate runs first.
package pipeline

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/frenchline/adminapi/internal/httpmw"
	"github.com/frenchline/adminapi/internal/identity"
	"github.com/frenchline/adminapi/internal/log"
	"github.com/frenchline/adminapi/internal/ratelimit"
	"github.com/frenchline/adminapi/internal/sanitize"
	"github.com/frenchline/adminapi/internal/schema"
	"github.com/frenchline/adminapi/internal/xerrors"
)

// RateLimit is a per-route fixed-window budget.
type RateLimit struct {
	Window time.Duration
	Max    int
}

// Config is the per-route gate configuration, supplied by the route author
// at registration time. The zero value requires auth, validates nothing,
// and applies no route budget.
type Config struct {
	// SkipAuth disables the auth gate for this route. Auth is required by
	// default.
	SkipAuth bool

	// Schema, when set, validates the request body on non-GET methods.
	Schema schema.Type

	// RateLimit, when set, budgets requests per client key on this route.
	RateLimit *RateLimit
}

// Context carries the request through the business handler. CallerID is
// non-empty whenever the route requires auth and the gate succeeded.
type Context struct {
	CallerID string
	Caller   identity.Caller
	Request  *http.Request

	// Params are the sanitized chi route parameters.
	Params map[string]string

	// Body is the sanitized, schema-canonical request body. Nil when the
	// route has no schema or the method is GET.
	Body any
}

// Handler is a business handler. A nil error with a nil response writes an
// empty 200. Errors created with Error render their status; anything else
// is a 500.
type Handler func(ctx *Context) (*Response, error)

// Response is what a handler produces on success.
type Response struct {
	// Status defaults to 200 when zero.
	Status int
	// Body is JSON-encoded into the response. Nil writes no body.
	Body any
	// Raw, when set, takes over response writing entirely. Status and Body
	// are ignored. Used by routes that stream non-JSON payloads.
	Raw func(w http.ResponseWriter)
}

// Hooks are optional observability callbacks, wired to prometheus counters
// by the server.
type Hooks struct {
	RateLimited      func()
	AuthFailed       func(reason string)
	ValidationFailed func(route string)
	Panicked         func()
}

// Pipeline owns the collaborators shared by every wrapped route.
type Pipeline struct {
	limiter  ratelimit.Store
	resolver identity.Resolver
	logger   log.Logger
	hooks    Hooks

	// development controls whether 5xx responses carry error detail
	development bool
}

func New(limiter ratelimit.Store, resolver identity.Resolver, logger log.Logger, hooks Hooks, development bool) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		limiter:     limiter,
		resolver:    resolver,
		logger:      logger,
		hooks:       hooks,
		development: development,
	}
}

// Wrap turns a business handler plus its route Config into an http.Handler
// running the full gate sequence.
func (p *Pipeline) Wrap(cfg Config, h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// 1. rate limit
		if cfg.RateLimit != nil {
			admit, err := p.limiter.Allow(ctx, clientKey(r), cfg.RateLimit.Max, cfg.RateLimit.Window)
			if err != nil {
				// a broken shared store must not take the route down
				p.logger.Warn(ctx, "rate limit store unavailable, admitting", "err", err.Error())
				admit = true
			}
			if !admit {
				if p.hooks.RateLimited != nil {
					p.hooks.RateLimited()
				}
				writeJSON(w, http.StatusTooManyRequests, envelope{Error: "Rate limit exceeded"})
				return
			}
		}

		// 2. auth
		var caller identity.Caller
		if !cfg.SkipAuth {
			var err error
			caller, err = p.resolver.Resolve(ctx, r)
			if err != nil {
				reason := authReason(err)
				if p.hooks.AuthFailed != nil {
					p.hooks.AuthFailed(reason)
				}
				// root cause is logged, never returned to the client
				if errors.Is(err, identity.ErrProvider) {
					p.logger.Error(ctx, err, "identity provider failure")
				} else {
					p.logger.Debug(ctx, "auth rejected", "reason", reason)
				}
				writeJSON(w, http.StatusUnauthorized, envelope{Error: "Unauthorized"})
				return
			}
		}

		// 3. body sanitize + validate (non-GET with a schema only)
		var body any
		if cfg.Schema != nil && r.Method != http.MethodGet {
			raw, err := decodeBody(r)
			if err != nil {
				if p.hooks.ValidationFailed != nil {
					p.hooks.ValidationFailed(r.URL.Path)
				}
				writeJSON(w, http.StatusBadRequest, validationEnvelope{
					Error:   "Validation failed",
					Details: schema.FieldErrors{{Path: "", Message: "request body must be valid JSON"}},
				})
				return
			}

			parsed, fieldErrs := schema.Parse(cfg.Schema, sanitize.Value(raw))
			if len(fieldErrs) > 0 {
				if p.hooks.ValidationFailed != nil {
					p.hooks.ValidationFailed(r.URL.Path)
				}
				writeJSON(w, http.StatusBadRequest, validationEnvelope{
					Error:   "Validation failed",
					Details: fieldErrs,
				})
				return
			}
			body = parsed
		}

		// 4. handler, behind the panic boundary
		pc := &Context{
			CallerID: caller.ID,
			Caller:   caller,
			Request:  r,
			Params:   routeParams(r),
			Body:     body,
		}

		resp, err := p.run(w, r, h, pc)
		if err != nil {
			p.writeError(w, r, err)
			return
		}

		// 5. success
		if resp == nil {
			resp = &Response{}
		}
		if resp.Raw != nil {
			resp.Raw(w)
			return
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		if resp.Body == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, resp.Body)
	}
}

// run executes the handler converting panics into errors.
func (p *Pipeline) run(w http.ResponseWriter, r *http.Request, h Handler, pc *Context) (resp *Response, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if p.hooks.Panicked != nil {
			p.hooks.Panicked()
		}
		switch v := rec.(type) {
		case error:
			err = xerrors.WithStack(v)
		default:
			err = xerrors.Newf("panic: %v", v)
		}
	}()
	return h(pc)
}

func (p *Pipeline) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var se *StatusError
	if errors.As(err, &se) {
		writeJSON(w, se.Status, envelope{Error: se.Message})
		return
	}

	p.logger.Error(r.Context(), xerrors.EnsureTrace(err), "handler failure",
		"method", r.Method,
		"path", r.URL.Path,
	)

	msg := "An error occurred"
	if p.development {
		msg = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, envelope{Error: msg})
}

// clientKey buckets rate-limit counts per resolved client address,
// falling back to a shared bucket when resolution produced nothing.
func clientKey(r *http.Request) string {
	if ip := httpmw.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return "unknown"
}

func authReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrNoSession):
		return "no_session"
	case errors.Is(err, identity.ErrSessionExpired):
		return "expired"
	case errors.Is(err, identity.ErrSessionInvalid):
		return "invalid"
	case errors.Is(err, identity.ErrProvider):
		return "provider"
	default:
		return "unknown"
	}
}

// routeParams extracts chi URL params and sanitizes them like any other
// client input.
func routeParams(r *http.Request) map[string]string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return nil
	}
	params := make(map[string]string, len(rc.URLParams.Keys))
	for i, k := range rc.URLParams.Keys {
		if k == "*" {
			continue
		}
		params[k] = sanitize.Value(rc.URLParams.Values[i]).(string)
	}
	return params
}

func decodeBody(r *http.Request) (any, error) {
	defer io.Copy(io.Discard, r.Body)
	var v any
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return nil, xerrors.Wrap(err, "decode request body")
	}
	return v, nil
}

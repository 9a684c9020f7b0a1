// Package adminhttp is the admin portal's JSON API: course catalog CRUD,
// learner account management, dashboard stats, and media. Every route runs
// behind the pipeline gates.
package adminhttp

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/frenchline/adminapi/internal/log"
	"github.com/frenchline/adminapi/internal/media"
	"github.com/frenchline/adminapi/internal/pipeline"
	"github.com/frenchline/adminapi/internal/store"
)

// Store is what the API needs from the database layer.
type Store interface {
	CreateCourse(ctx context.Context, c store.Course) (store.Course, error)
	GetCourse(ctx context.Context, id string) (store.Course, error)
	UpdateCourse(ctx context.Context, c store.Course) (store.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	ListCourses(ctx context.Context, f store.CourseFilter) ([]store.Course, int, error)
	CourseStats(ctx context.Context) (store.CourseStats, error)

	GetUser(ctx context.Context, id string) (store.User, error)
	UpdateUser(ctx context.Context, u store.User) (store.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, f store.UserFilter) ([]store.User, int, error)

	DashboardStats(ctx context.Context) (store.DashboardStats, error)
}

// Cache is what the API needs from redis. Implementations degrade to misses
// when redis is down; the API treats any error as a miss.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
}

// Media is what the API needs from object storage.
type Media interface {
	Put(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
	Get(ctx context.Context, key string) (*media.Object, error)
	Delete(ctx context.Context, key string) error
}

// Per-route budgets, matching the portal's abuse posture: reads are cheap,
// mutations are not.
var (
	readBudget   = pipeline.RateLimit{Window: 15 * time.Minute, Max: 100}
	mutateBudget = pipeline.RateLimit{Window: 15 * time.Minute, Max: 20}
)

const (
	statsCacheKey = "dashboard:stats"
	statsCacheTTL = 10 * time.Minute
)

type API struct {
	store  Store
	cache  Cache
	media  Media
	pipe   *pipeline.Pipeline
	logger log.Logger
}

func New(st Store, ca Cache, me Media, pipe *pipeline.Pipeline, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{store: st, cache: ca, media: me, pipe: pipe, logger: logger}
}

// RegisterRoutes mounts the API under /api.
func (a *API) RegisterRoutes(r chi.Router) {
	read := pipeline.Config{RateLimit: &readBudget}
	course := pipeline.Config{RateLimit: &mutateBudget, Schema: courseSchema()}
	mutate := pipeline.Config{RateLimit: &mutateBudget}

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/courses", a.pipe.Wrap(read, a.listCourses))
		r.Method(http.MethodPost, "/courses", a.pipe.Wrap(course, a.createCourse))
		r.Method(http.MethodGet, "/courses/{id}", a.pipe.Wrap(read, a.getCourse))
		r.Method(http.MethodPut, "/courses/{id}", a.pipe.Wrap(course, a.updateCourse))
		r.Method(http.MethodDelete, "/courses/{id}", a.pipe.Wrap(mutate, a.deleteCourse))

		r.Method(http.MethodGet, "/users", a.pipe.Wrap(read, a.listUsers))
		r.Method(http.MethodPost, "/users", a.pipe.Wrap(mutate, a.createUserNotAllowed))
		r.Method(http.MethodGet, "/users/{id}", a.pipe.Wrap(read, a.getUser))
		r.Method(http.MethodPut, "/users/{id}",
			a.pipe.Wrap(pipeline.Config{RateLimit: &mutateBudget, Schema: userSchema()}, a.updateUser))
		r.Method(http.MethodDelete, "/users/{id}", a.pipe.Wrap(mutate, a.deleteUser))

		r.Method(http.MethodGet, "/stats", a.pipe.Wrap(read, a.dashboardStats))
		r.Method(http.MethodPost, "/cache/invalidate",
			a.pipe.Wrap(pipeline.Config{RateLimit: &mutateBudget, Schema: invalidateSchema()}, a.invalidateCache))

		// media routes only exist when object storage is configured
		if a.media != nil {
			r.Method(http.MethodGet, "/media/{key}", a.pipe.Wrap(read, a.getMedia))
			r.Method(http.MethodPost, "/media", a.pipe.Wrap(mutate, a.uploadMedia))
			r.Method(http.MethodDelete, "/media/{key}", a.pipe.Wrap(mutate, a.deleteMedia))
		}
	})
}

// audit records an admin mutation with who did it and to what.
func (a *API) audit(ctx context.Context, action, callerID string, kv ...any) {
	args := append([]any{"action", action, "admin_id", callerID}, kv...)
	a.logger.Info(ctx, "admin action", args...)
}

package adminhttp

import (
	"errors"
	"net/http"

	"github.com/frenchline/adminapi/internal/pipeline"
	"github.com/frenchline/adminapi/internal/sanitize"
	"github.com/frenchline/adminapi/internal/schema"
	"github.com/frenchline/adminapi/internal/store"
)

// pagination is the list-response page descriptor.
type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func paginate(page, limit, total int) pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// parseSearch canonicalizes list query parameters through the search schema.
func parseSearch(r *http.Request) (map[string]any, error) {
	raw := map[string]any{}
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 {
			raw[key] = vals[0]
		}
	}
	parsed, fieldErrs := schema.Parse(searchSchema(), sanitize.Value(raw))
	if len(fieldErrs) > 0 {
		return nil, pipeline.Error(http.StatusBadRequest, "Invalid search parameters")
	}
	return parsed.(map[string]any), nil
}

func (a *API) listCourses(ctx *pipeline.Context) (*pipeline.Response, error) {
	q, err := parseSearch(ctx.Request)
	if err != nil {
		return nil, err
	}
	page := int(q["page"].(float64))
	limit := int(q["limit"].(float64))

	filter := store.CourseFilter{
		Search:   q["search"].(string),
		Level:    q["level"].(string),
		Category: q["category"].(string),
		Status:   q["status"].(string),
		Page:     page,
		Limit:    limit,
	}
	courses, total, err := a.store.ListCourses(ctx.Request.Context(), filter)
	if err != nil {
		return nil, err
	}
	stats, err := a.store.CourseStats(ctx.Request.Context())
	if err != nil {
		return nil, err
	}

	return &pipeline.Response{Body: map[string]any{
		"courses":    courses,
		"pagination": paginate(page, limit, total),
		"stats":      stats,
	}}, nil
}

// courseFromBody maps a validated payload onto a store course. Description
// may carry rich text, so it passes through the HTML sanitizer.
func courseFromBody(body map[string]any) store.Course {
	c := store.Course{
		Title:                  body["title"].(string),
		Description:            sanitize.HTML(body["description"].(string)),
		Level:                  body["level"].(string),
		Category:               body["category"].(string),
		IsPublished:            body["is_published"].(bool),
		SortOrder:              int(body["sort_order"].(float64)),
		EstimatedDurationHours: body["estimated_duration_hours"].(float64),
	}
	if u, ok := body["image_url"].(string); ok {
		c.ImageURL = u
	}
	return c
}

func (a *API) createCourse(ctx *pipeline.Context) (*pipeline.Response, error) {
	c := courseFromBody(ctx.Body.(map[string]any))
	c.CreatedBy = ctx.CallerID

	created, err := a.store.CreateCourse(ctx.Request.Context(), c)
	if err != nil {
		return nil, err
	}
	a.audit(ctx.Request.Context(), "create_course", ctx.CallerID, "course_id", created.ID)

	return &pipeline.Response{Status: http.StatusCreated, Body: map[string]any{
		"course":  created,
		"message": "Course created successfully",
	}}, nil
}

func (a *API) getCourse(ctx *pipeline.Context) (*pipeline.Response, error) {
	c, err := a.store.GetCourse(ctx.Request.Context(), ctx.Params["id"])
	if errors.Is(err, store.ErrNotFound) {
		return nil, pipeline.Error(http.StatusNotFound, "Course not found")
	}
	if err != nil {
		return nil, err
	}
	return &pipeline.Response{Body: map[string]any{"course": c}}, nil
}

func (a *API) updateCourse(ctx *pipeline.Context) (*pipeline.Response, error) {
	c := courseFromBody(ctx.Body.(map[string]any))
	c.ID = ctx.Params["id"]

	updated, err := a.store.UpdateCourse(ctx.Request.Context(), c)
	if errors.Is(err, store.ErrNotFound) {
		return nil, pipeline.Error(http.StatusNotFound, "Course not found")
	}
	if err != nil {
		return nil, err
	}
	a.audit(ctx.Request.Context(), "update_course", ctx.CallerID, "course_id", updated.ID)

	return &pipeline.Response{Body: map[string]any{
		"course":  updated,
		"message": "Course updated successfully",
	}}, nil
}

func (a *API) deleteCourse(ctx *pipeline.Context) (*pipeline.Response, error) {
	id := ctx.Params["id"]
	err := a.store.DeleteCourse(ctx.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, pipeline.Error(http.StatusNotFound, "Course not found")
	}
	if err != nil {
		return nil, err
	}
	a.audit(ctx.Request.Context(), "delete_course", ctx.CallerID, "course_id", id)

	return &pipeline.Response{Body: map[string]any{
		"message": "Course deleted successfully",
	}}, nil
}

package adminhttp

import (
	"errors"
	"net/http"
	"strings"

	"github.com/frenchline/adminapi/internal/pipeline"
	"github.com/frenchline/adminapi/internal/store"
)

func (a *API) listUsers(ctx *pipeline.Context) (*pipeline.Response, error) {
	q, err := parseSearch(ctx.Request)
	if err != nil {
		return nil, err
	}
	page := int(q["page"].(float64))
	limit := int(q["limit"].(float64))

	users, total, err := a.store.ListUsers(ctx.Request.Context(), store.UserFilter{
		Search: q["search"].(string),
		Level:  q["level"].(string),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	return &pipeline.Response{Body: map[string]any{
		"users":      users,
		"pagination": paginate(page, limit, total),
	}}, nil
}

// createUserNotAllowed rejects account creation through the admin API.
// Accounts come from the identity provider.
func (a *API) createUserNotAllowed(ctx *pipeline.Context) (*pipeline.Response, error) {
	return nil, pipeline.Error(http.StatusMethodNotAllowed, "Method not allowed")
}

func (a *API) getUser(ctx *pipeline.Context) (*pipeline.Response, error) {
	u, err := a.store.GetUser(ctx.Request.Context(), ctx.Params["id"])
	if errors.Is(err, store.ErrNotFound) {
		return nil, pipeline.Error(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return &pipeline.Response{Body: map[string]any{"user": u}}, nil
}

func (a *API) updateUser(ctx *pipeline.Context) (*pipeline.Response, error) {
	body := ctx.Body.(map[string]any)

	email := body["email"].(string)
	if !strings.Contains(email, "@") {
		return nil, pipeline.Error(http.StatusBadRequest, "Invalid email address")
	}

	u := store.User{
		ID:           ctx.Params["id"],
		Email:        email,
		FirstName:    body["first_name"].(string),
		LastName:     body["last_name"].(string),
		CurrentLevel: body["current_level"].(string),
		TotalPoints:  int(body["total_points"].(float64)),
		StreakDays:   int(body["streak_days"].(float64)),
	}
	if p, ok := body["profile_image_url"].(string); ok {
		u.ProfileImageURL = p
	}

	updated, err := a.store.UpdateUser(ctx.Request.Context(), u)
	if errors.Is(err, store.ErrNotFound) {
		return nil, pipeline.Error(http.StatusNotFound, "User not found")
	}
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, pipeline.Error(http.StatusConflict, "Email already in use")
	}
	if err != nil {
		return nil, err
	}
	a.audit(ctx.Request.Context(), "update_user", ctx.CallerID, "user_id", updated.ID)

	return &pipeline.Response{Body: map[string]any{
		"user":    updated,
		"message": "User updated successfully",
	}}, nil
}

func (a *API) deleteUser(ctx *pipeline.Context) (*pipeline.Response, error) {
	id := ctx.Params["id"]
	err := a.store.DeleteUser(ctx.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, pipeline.Error(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	a.audit(ctx.Request.Context(), "delete_user", ctx.CallerID, "user_id", id)

	return &pipeline.Response{Body: map[string]any{
		"message": "User deleted successfully",
	}}, nil
}

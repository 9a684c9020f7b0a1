package adminhttp

import (
	"github.com/frenchline/adminapi/internal/pipeline"
	"github.com/frenchline/adminapi/internal/store"
)

// dashboardStats serves the dashboard aggregates, caching them for a few
// minutes. Any cache failure falls through to the database.
func (a *API) dashboardStats(ctx *pipeline.Context) (*pipeline.Response, error) {
	reqCtx := ctx.Request.Context()

	var cached store.DashboardStats
	if err := a.cache.GetJSON(reqCtx, statsCacheKey, &cached); err == nil {
		return &pipeline.Response{Body: map[string]any{"stats": cached, "cached": true}}, nil
	}

	stats, err := a.store.DashboardStats(reqCtx)
	if err != nil {
		return nil, err
	}

	if err := a.cache.SetJSON(reqCtx, statsCacheKey, stats, statsCacheTTL); err != nil {
		a.logger.Warn(reqCtx, "stats cache write failed", "err", err.Error())
	}
	return &pipeline.Response{Body: map[string]any{"stats": stats, "cached": false}}, nil
}

// invalidateCache drops cached entries matching the requested pattern.
func (a *API) invalidateCache(ctx *pipeline.Context) (*pipeline.Response, error) {
	body := ctx.Body.(map[string]any)
	pattern := body["pattern"].(string)

	deleted, err := a.cache.InvalidatePattern(ctx.Request.Context(), pattern)
	if err != nil {
		return nil, err
	}
	a.audit(ctx.Request.Context(), "invalidate_cache", ctx.CallerID, "pattern", pattern, "deleted", deleted)

	return &pipeline.Response{Body: map[string]any{
		"deleted": deleted,
		"message": "Cache invalidated",
	}}, nil
}

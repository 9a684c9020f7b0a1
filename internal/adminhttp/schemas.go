package adminhttp

import "github.com/frenchline/adminapi/internal/schema"

// courseSchema validates create and update payloads for courses.
func courseSchema() schema.Type {
	return schema.Object(map[string]schema.Type{
		"title":                    schema.String().Trim().Min(1).Max(200),
		"description":              schema.String().Trim().Max(1000).Optional().Default(""),
		"level":                    schema.String().Enum("beginner", "intermediate", "advanced"),
		"category":                 schema.String().Trim().Max(100).Optional().Default("general"),
		"image_url":                schema.String().URL().Optional(),
		"is_published":             schema.Bool().Optional().Default(false),
		"sort_order":               schema.Number().Min(0).Max(10000).Optional().Default(0),
		"estimated_duration_hours": schema.Number().Min(0).Max(1000).Optional().Default(0),
	})
}

// userSchema validates learner profile updates. Accounts are provisioned by
// the identity provider, so there is no create payload.
func userSchema() schema.Type {
	return schema.Object(map[string]schema.Type{
		"email":             schema.String().Trim().Min(3).Max(254),
		"first_name":        schema.String().Trim().Max(100).Optional().Default(""),
		"last_name":         schema.String().Trim().Max(100).Optional().Default(""),
		"profile_image_url": schema.String().URL().Optional(),
		"current_level":     schema.String().Enum("beginner", "intermediate", "advanced").Optional().Default("beginner"),
		"total_points":      schema.Number().Min(0).Optional().Default(0),
		"streak_days":       schema.Number().Min(0).Optional().Default(0),
	})
}

// searchSchema validates and canonicalizes list query parameters. Values
// arrive as strings, so the numbers coerce.
func searchSchema() schema.Type {
	return schema.Object(map[string]schema.Type{
		"page":     schema.Number().Coerce().Min(1).Max(1000).Optional().Default(1),
		"limit":    schema.Number().Coerce().Min(1).Max(100).Optional().Default(10),
		"search":   schema.String().Trim().Max(100).Optional().Default(""),
		"level":    schema.String().Enum("beginner", "intermediate", "advanced", "all").Optional().Default("all"),
		"status":   schema.String().Enum("published", "draft", "all").Optional().Default("all"),
		"category": schema.String().Trim().Max(100).Optional().Default(""),
	})
}

// invalidateSchema validates cache invalidation requests.
func invalidateSchema() schema.Type {
	return schema.Object(map[string]schema.Type{
		"pattern": schema.String().Trim().Min(1).Max(200),
	})
}

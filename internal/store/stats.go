package store

import (
	"context"
	"time"

	"github.com/frenchline/adminapi/internal/xerrors"
)

// DashboardStats aggregates the numbers the admin dashboard shows.
type DashboardStats struct {
	Courses      CourseStats `json:"courses"`
	TotalUsers   int         `json:"totalUsers"`
	ActiveUsers  int         `json:"activeUsers"`
	TotalLessons int         `json:"totalLessons"`
}

// activeWindow is how far back a user's last activity may be for the user to
// count as active.
const activeWindow = 30 * 24 * time.Hour

// DashboardStats runs the aggregate counts in one pass.
func (s *Store) DashboardStats(ctx context.Context) (DashboardStats, error) {
	defer s.timed("dashboard_stats")()

	cs, err := s.CourseStats(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	st := DashboardStats{Courses: cs}

	if err := s.db.GetContext(ctx, &st.TotalUsers, `SELECT COUNT(*) FROM users`); err != nil {
		return DashboardStats{}, xerrors.Wrap(err, "count users")
	}

	cutoff := s.now().UTC().Add(-activeWindow)
	err = s.db.GetContext(ctx, &st.ActiveUsers,
		`SELECT COUNT(*) FROM users WHERE last_activity_at >= ?`, cutoff)
	if err != nil {
		return DashboardStats{}, xerrors.Wrap(err, "count active users")
	}

	if err := s.db.GetContext(ctx, &st.TotalLessons, `SELECT COUNT(*) FROM lessons`); err != nil {
		return DashboardStats{}, xerrors.Wrap(err, "count lessons")
	}
	return st, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/frenchline/adminapi/internal/xerrors"
)

// User is one learner account.
type User struct {
	ID              string    `db:"id" json:"id"`
	Email           string    `db:"email" json:"email"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	ProfileImageURL string    `db:"profile_image_url" json:"profile_image_url"`
	CurrentLevel    string    `db:"current_level" json:"current_level"`
	TotalPoints     int       `db:"total_points" json:"total_points"`
	StreakDays      int       `db:"streak_days" json:"streak_days"`
	LastActivityAt  time.Time `db:"last_activity_at" json:"last_activity_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	Search string
	Level  string
	Page   int
	Limit  int
}

// CreateUser inserts a new learner account. The caller provides the ID when
// the account comes from an external identity provider; otherwise one is
// generated.
func (s *Store) CreateUser(ctx context.Context, u User) (User, error) {
	defer s.timed("create_user")()

	if u.ID == "" {
		u.ID = s.newID()
	}
	now := s.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.LastActivityAt.IsZero() {
		u.LastActivityAt = now
	}
	if u.CurrentLevel == "" {
		u.CurrentLevel = "beginner"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, profile_image_url,
			current_level, total_points, streak_days, last_activity_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.ProfileImageURL,
		u.CurrentLevel, u.TotalPoints, u.StreakDays, u.LastActivityAt,
		u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err, "users.email") {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, xerrors.Wrap(err, "insert user")
	}
	return u, nil
}

// GetUser returns the user by id.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	defer s.timed("get_user")()

	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, xerrors.Wrap(err, "select user")
	}
	return u, nil
}

// UpdateUser overwrites the mutable profile fields of an existing user.
func (s *Store) UpdateUser(ctx context.Context, u User) (User, error) {
	defer s.timed("update_user")()

	u.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, first_name = ?, last_name = ?, profile_image_url = ?,
			current_level = ?, total_points = ?, streak_days = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.FirstName, u.LastName, u.ProfileImageURL,
		u.CurrentLevel, u.TotalPoints, u.StreakDays, u.UpdatedAt, u.ID)
	if isUniqueViolation(err, "users.email") {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, xerrors.Wrap(err, "update user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return User{}, xerrors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return User{}, ErrNotFound
	}
	return s.GetUser(ctx, u.ID)
}

// DeleteUser removes a learner account.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	defer s.timed("delete_user")()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return xerrors.Wrap(err, "delete user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return xerrors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns one page of users plus the total match count.
func (s *Store) ListUsers(ctx context.Context, f UserFilter) ([]User, int, error) {
	defer s.timed("list_users")()

	var clauses []string
	var args []any
	if f.Search != "" {
		clauses = append(clauses, `(email LIKE ? ESCAPE '\' OR first_name LIKE ? ESCAPE '\' OR last_name LIKE ? ESCAPE '\')`)
		like := likePattern(f.Search)
		args = append(args, like, like, like)
	}
	if f.Level != "" && f.Level != "all" {
		clauses = append(clauses, `current_level = ?`)
		args = append(args, f.Level)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, xerrors.Wrap(err, "count users")
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}

	users := []User{}
	query := `SELECT * FROM users` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, xerrors.Wrap(err, "select users")
	}
	return users, total, nil
}

// TouchActivity moves a user's activity marker forward. Used by the identity
// layer after a successful session resolution.
func (s *Store) TouchActivity(ctx context.Context, id string) error {
	defer s.timed("touch_activity")()

	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_activity_at = ? WHERE id = ?`, s.now().UTC(), id)
	if err != nil {
		return xerrors.Wrap(err, "touch activity")
	}
	return nil
}

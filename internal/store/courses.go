package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/frenchline/adminapi/internal/xerrors"
)

// Course is one row in the course catalog.
type Course struct {
	ID                     string    `db:"id" json:"id"`
	Title                  string    `db:"title" json:"title"`
	Description            string    `db:"description" json:"description"`
	Level                  string    `db:"level" json:"level"`
	Category               string    `db:"category" json:"category"`
	ImageURL               string    `db:"image_url" json:"image_url"`
	IsPublished            bool      `db:"is_published" json:"is_published"`
	SortOrder              int       `db:"sort_order" json:"sort_order"`
	EstimatedDurationHours float64   `db:"estimated_duration_hours" json:"estimated_duration_hours"`
	CreatedBy              string    `db:"created_by" json:"created_by"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`

	// Lessons is populated only by GetCourse.
	Lessons []Lesson `db:"-" json:"lessons,omitempty"`
}

// Lesson is one unit of content inside a course.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	MediaKey  string    `db:"media_key" json:"media_key"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter narrows ListCourses. Zero values mean no filtering; Status
// accepts "published", "draft", or "all".
type CourseFilter struct {
	Search   string
	Level    string
	Category string
	Status   string
	Page     int
	Limit    int
}

// CourseStats summarizes the catalog for the dashboard.
type CourseStats struct {
	TotalCourses     int `json:"totalCourses"`
	PublishedCourses int `json:"publishedCourses"`
	DraftCourses     int `json:"draftCourses"`
	ArchivedCourses  int `json:"archivedCourses"`
}

// CreateCourse inserts a new course and returns it with generated fields set.
func (s *Store) CreateCourse(ctx context.Context, c Course) (Course, error) {
	defer s.timed("create_course")()

	c.ID = s.newID()
	now := s.now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Category == "" {
		c.Category = "general"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (id, title, description, level, category, image_url,
			is_published, sort_order, estimated_duration_hours, created_by,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, c.Level, c.Category, c.ImageURL,
		c.IsPublished, c.SortOrder, c.EstimatedDurationHours, c.CreatedBy,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return Course{}, xerrors.Wrap(err, "insert course")
	}
	return c, nil
}

// GetCourse returns the course with its lessons in sort order.
func (s *Store) GetCourse(ctx context.Context, id string) (Course, error) {
	defer s.timed("get_course")()

	var c Course
	err := s.db.GetContext(ctx, &c, `SELECT * FROM courses WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, xerrors.Wrap(err, "select course")
	}

	err = s.db.SelectContext(ctx, &c.Lessons, `
		SELECT * FROM lessons WHERE course_id = ? ORDER BY sort_order, created_at`, id)
	if err != nil {
		return Course{}, xerrors.Wrap(err, "select lessons")
	}
	return c, nil
}

// UpdateCourse overwrites the mutable fields of an existing course.
func (s *Store) UpdateCourse(ctx context.Context, c Course) (Course, error) {
	defer s.timed("update_course")()

	c.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE courses
		SET title = ?, description = ?, level = ?, category = ?, image_url = ?,
			is_published = ?, sort_order = ?, estimated_duration_hours = ?,
			updated_at = ?
		WHERE id = ?`,
		c.Title, c.Description, c.Level, c.Category, c.ImageURL,
		c.IsPublished, c.SortOrder, c.EstimatedDurationHours,
		c.UpdatedAt, c.ID)
	if err != nil {
		return Course{}, xerrors.Wrap(err, "update course")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Course{}, xerrors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return Course{}, ErrNotFound
	}
	return s.GetCourse(ctx, c.ID)
}

// DeleteCourse removes a course and, through the foreign key, its lessons.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	defer s.timed("delete_course")()

	res, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	if err != nil {
		return xerrors.Wrap(err, "delete course")
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

// ListCourses returns one page of courses matching the filter, plus the total
// match count for pagination.
func (s *Store) ListCourses(ctx context.Context, f CourseFilter) ([]Course, int, error) {
	defer s.timed("list_courses")()

	where, args := courseWhere(f)

	var total int
	err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`+where, args...)
	if err != nil {
		return nil, 0, xerrors.Wrap(err, "count courses")
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}

	courses := []Course{}
	query := `SELECT * FROM courses` + where +
		` ORDER BY sort_order, created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)
	if err := s.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, xerrors.Wrap(err, "select courses")
	}
	return courses, total, nil
}

func courseWhere(f CourseFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Search != "" {
		clauses = append(clauses, `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`)
		like := likePattern(f.Search)
		args = append(args, like, like)
	}
	if f.Level != "" && f.Level != "all" {
		clauses = append(clauses, `level = ?`)
		args = append(args, f.Level)
	}
	if f.Category != "" && f.Category != "all" {
		clauses = append(clauses, `category = ?`)
		args = append(args, f.Category)
	}
	switch f.Status {
	case "published":
		clauses = append(clauses, `is_published = 1`)
	case "draft":
		clauses = append(clauses, `is_published = 0`)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CourseStats counts the catalog by publication state. Archival is not a
// stored state yet, so ArchivedCourses is always zero.
func (s *Store) CourseStats(ctx context.Context) (CourseStats, error) {
	defer s.timed("course_stats")()

	var st CourseStats
	err := s.db.GetContext(ctx, &st.TotalCourses, `SELECT COUNT(*) FROM courses`)
	if err != nil {
		return CourseStats{}, xerrors.Wrap(err, "count courses")
	}
	err = s.db.GetContext(ctx, &st.PublishedCourses,
		`SELECT COUNT(*) FROM courses WHERE is_published = 1`)
	if err != nil {
		return CourseStats{}, xerrors.Wrap(err, "count published")
	}
	st.DraftCourses = st.TotalCourses - st.PublishedCourses
	return st, nil
}

// CreateLesson appends a lesson to an existing course.
func (s *Store) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	defer s.timed("create_lesson")()

	l.ID = s.newID()
	now := s.now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lessons (id, course_id, title, content, media_key, sort_order,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.CourseID, l.Title, l.Content, l.MediaKey, l.SortOrder,
		l.CreatedAt, l.UpdatedAt)
	if err != nil {
		// foreign key failures land here when the course is gone
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return Lesson{}, ErrNotFound
		}
		return Lesson{}, xerrors.Wrap(err, "insert lesson")
	}
	return l, nil
}

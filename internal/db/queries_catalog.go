package db

import (
	"database/sql"

	"github.com/avela/coursegate/internal/model"
)

func CreateCourse(database *sql.DB, c *model.Course) error {
	_, err := database.Exec(
		`INSERT INTO courses (id, slug, title) VALUES (?, ?, ?)`,
		c.ID, c.Slug, c.Title,
	)
	return err
}

func GetCourse(database *sql.DB, id string) (*model.Course, error) {
	c := &model.Course{}
	var createdAt SQLiteTime
	err := database.QueryRow(
		`SELECT id, slug, title, created_at FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.Slug, &c.Title, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = createdAt.Time
	return c, nil
}

func CreateLesson(database *sql.DB, l *model.Lesson) error {
	_, err := database.Exec(
		`INSERT INTO lessons (id, course_id, title, video_id, position)
		 VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.CourseID, l.Title, l.VideoID, l.Position,
	)
	return err
}

// GetLessonInCourse looks a lesson up scoped to its course, so a lesson id
// from a foreign course never resolves.
func GetLessonInCourse(database *sql.DB, lessonID, courseID string) (*model.Lesson, error) {
	l := &model.Lesson{}
	err := database.QueryRow(
		`SELECT id, course_id, title, video_id, position
		 FROM lessons WHERE id = ? AND course_id = ?`, lessonID, courseID,
	).Scan(&l.ID, &l.CourseID, &l.Title, &l.VideoID, &l.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func GetLesson(database *sql.DB, id string) (*model.Lesson, error) {
	l := &model.Lesson{}
	err := database.QueryRow(
		`SELECT id, course_id, title, video_id, position FROM lessons WHERE id = ?`, id,
	).Scan(&l.ID, &l.CourseID, &l.Title, &l.VideoID, &l.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

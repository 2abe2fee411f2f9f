package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/db"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/academia/gradebot/internal/pkg/dberrors"
	"github.com/academia/gradebot/internal/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the part of pgxpool.Pool and pgx.Tx the repository needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GradeRepository is the PostgreSQL GradeStore.
type GradeRepository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

// NewGradeRepository creates a repository running each call on its own pooled
// connection.
func NewGradeRepository(pool *pgxpool.Pool) *GradeRepository {
	return &GradeRepository{pool: pool, q: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// storeError turns a driver failure into store_unavailable. The cause is
// logged here and kept for errors.Is, never shown to callers.
func storeError(op string, err error) error {
	event := logger.Error()
	if dberrors.IsConnectionError(err) {
		event = logger.Warn()
	}
	event.Err(err).Str("op", op).Msg("Grade store operation failed")
	return apperrors.StoreUnavailable(fmt.Errorf("%s: %w", op, err))
}

func (r *GradeRepository) selectRecords() squirrel.SelectBuilder {
	return psql.Select(
		"ar.id", "ar.student_id", "ar.course_id", "s.enrollment", "c.name", "c.semester", "c.category",
		"ar.partial1", "ar.partial2", "ar.average", "ar.absences", "ar.completed",
	).From("academic_records ar").
		Join("students s ON s.id = ar.student_id").
		Join("courses c ON c.id = ar.course_id")
}

func scanRecord(row pgx.Row) (*models.AcademicRecord, error) {
	var (
		rec      models.AcademicRecord
		category string
	)
	err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.CourseID, &rec.Enrollment, &rec.CourseName, &rec.Semester, &category,
		&rec.Partial1, &rec.Partial2, &rec.Average, &rec.Absences, &rec.Completed,
	)
	if err != nil {
		return nil, err
	}
	if rec.Category, err = models.ParseCategory(category); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *GradeRepository) queryRecords(ctx context.Context, op string, b squirrel.SelectBuilder) ([]*models.AcademicRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: building query: %w", op, err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var records []*models.AcademicRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storeError(op, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return records, nil
}

// StudentExists reports whether an account with the enrollment exists.
func (r *GradeRepository) StudentExists(ctx context.Context, enrollment string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE enrollment = $1)`,
		models.NormalizeEnrollment(enrollment)).Scan(&exists)
	if err != nil {
		return false, storeError("student_exists", err)
	}
	return exists, nil
}

// GetStudent loads an account by enrollment.
func (r *GradeRepository) GetStudent(ctx context.Context, enrollment string) (*models.Student, error) {
	query, args, err := psql.Select("id", "enrollment", "full_name", "role", "password_hash", "security_code_hash", "created_at").
		From("students").
		Where(squirrel.Eq{"enrollment": models.NormalizeEnrollment(enrollment)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("get_student: building query: %w", err)
	}

	var s models.Student
	err = r.q.QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.Enrollment, &s.FullName, &s.Role, &s.PasswordHash, &s.SecurityCodeHash, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrStudentNotFound
	}
	if err != nil {
		return nil, storeError("get_student", err)
	}
	return &s, nil
}

// GetRecord loads the record of one student-course pair. When the same name
// exists in several semesters the earliest one wins.
func (r *GradeRepository) GetRecord(ctx context.Context, enrollment, courseName string) (*models.AcademicRecord, error) {
	query, args, err := r.selectRecords().
		Where(squirrel.Eq{"s.enrollment": models.NormalizeEnrollment(enrollment)}).
		Where("LOWER(c.name) = LOWER(?)", models.NormalizeCourseName(courseName)).
		OrderBy("c.semester").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("get_record: building query: %w", err)
	}

	rec, err := scanRecord(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrRecordNotFound
	}
	if err != nil {
		return nil, storeError("get_record", err)
	}
	return rec, nil
}

// GetProjectScore reads the average column of the student's project course in
// the semester.
func (r *GradeRepository) GetProjectScore(ctx context.Context, enrollment string, semester int) (*float64, error) {
	query, args, err := psql.Select("ar.average").
		From("academic_records ar").
		Join("students s ON s.id = ar.student_id").
		Join("courses c ON c.id = ar.course_id").
		Where(squirrel.Eq{
			"s.enrollment": models.NormalizeEnrollment(enrollment),
			"c.semester":   semester,
			"c.category":   string(models.CategoryProject),
		}).
		OrderBy("c.name").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("get_project_score: building query: %w", err)
	}

	var score *float64
	err = r.q.QueryRow(ctx, query, args...).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("get_project_score", err)
	}
	return score, nil
}

// UpdateRecord writes the set columns of update. Column names come from the
// update's fields, never from caller text.
func (r *GradeRepository) UpdateRecord(ctx context.Context, recordID int64, update models.RecordUpdate) error {
	if update.Empty() {
		return nil
	}

	b := psql.Update("academic_records").Where(squirrel.Eq{"id": recordID})
	if update.Partial1.Set {
		b = b.Set("partial1", update.Partial1.Value)
	}
	if update.Partial2.Set {
		b = b.Set("partial2", update.Partial2.Value)
	}
	if update.Average.Set {
		b = b.Set("average", update.Average.Value)
	}
	if update.Absences.Set {
		b = b.Set("absences", update.Absences.Value)
	}
	if update.Completed.Set && update.Completed.Value != nil {
		b = b.Set("completed", *update.Completed.Value)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("update_record: building query: %w", err)
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return storeError("update_record", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrRecordNotFound
	}
	return nil
}

// ListStandardRecords returns the standard-category records of one semester,
// ordered by course name.
func (r *GradeRepository) ListStandardRecords(ctx context.Context, enrollment string, semester int) ([]*models.AcademicRecord, error) {
	return r.queryRecords(ctx, "list_standard_records", r.selectRecords().
		Where(squirrel.Eq{
			"s.enrollment": models.NormalizeEnrollment(enrollment),
			"c.semester":   semester,
			"c.category":   string(models.CategoryStandard),
		}).
		OrderBy("c.name"))
}

// ListAllRecords returns every record of the student ordered by semester and
// course name.
func (r *GradeRepository) ListAllRecords(ctx context.Context, enrollment string) ([]*models.AcademicRecord, error) {
	return r.queryRecords(ctx, "list_all_records", r.selectRecords().
		Where(squirrel.Eq{"s.enrollment": models.NormalizeEnrollment(enrollment)}).
		OrderBy("c.semester", "c.name"))
}

// WithinTransaction runs fn on a repository bound to a new transaction.
func (r *GradeRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context, store GradeStore) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	var fnErr error
	err := db.RunInTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		fnErr = fn(ctx, &GradeRepository{pool: r.pool, q: tx, inTx: true})
		return fnErr
	})
	if err == nil || fnErr != nil {
		return err
	}
	// begin or commit failed
	return storeError("transaction", err)
}

// LockSemester takes a transaction-scoped advisory lock on the
// student-semester pair.
func (r *GradeRepository) LockSemester(ctx context.Context, enrollment string, semester int) error {
	if !r.inTx {
		return fmt.Errorf("lock_semester: no transaction in progress")
	}
	_, err := r.q.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1), $2)`,
		models.NormalizeEnrollment(enrollment), int32(semester))
	if err != nil {
		return storeError("lock_semester", err)
	}
	return nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/db"
	"github.com/jackc/pgx/v5"
)

// courseConflict targets the unique index on (LOWER(name), semester).
const courseConflict = "ON CONFLICT ((LOWER(name)), semester) DO NOTHING"

// Provision inserts courses and accounts, then one record per (student,
// course) pair, all in one transaction. Conflicting rows are skipped so a
// second run inserts nothing and leaves grades alone.
func (r *GradeRepository) Provision(ctx context.Context, courses []models.Course, accounts []NewAccount) (ProvisionResult, error) {
	var result ProvisionResult

	err := db.RunInTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		result, err = provisionRows(ctx, tx, courses, accounts)
		return err
	})
	if err != nil {
		return ProvisionResult{}, storeError("provision", err)
	}
	return result, nil
}

func provisionRows(ctx context.Context, q querier, courses []models.Course, accounts []NewAccount) (ProvisionResult, error) {
	var result ProvisionResult

	if len(courses) > 0 {
		b := psql.Insert("courses").Columns("name", "semester", "category")
		for _, c := range courses {
			b = b.Values(models.NormalizeCourseName(c.Name), c.Semester, string(c.Category))
		}
		n, err := execInsert(ctx, q, b.Suffix(courseConflict))
		if err != nil {
			return result, fmt.Errorf("provision courses: %w", err)
		}
		result.Courses = n
	}

	if len(accounts) > 0 {
		b := psql.Insert("students").Columns("enrollment", "full_name", "role", "password_hash", "security_code_hash")
		for _, a := range accounts {
			b = b.Values(models.NormalizeEnrollment(a.Enrollment), a.FullName, string(a.Role), a.PasswordHash, a.SecurityCodeHash)
		}
		n, err := execInsert(ctx, q, b.Suffix("ON CONFLICT (enrollment) DO NOTHING"))
		if err != nil {
			return result, fmt.Errorf("provision students: %w", err)
		}
		result.Students = n
	}

	crossProduct := squirrel.Select("s.id", "c.id").
		From("students s").
		JoinClause("CROSS JOIN courses c").
		Where(squirrel.Eq{"s.role": string(models.RoleStudent)})
	n, err := execInsert(ctx, q, psql.Insert("academic_records").
		Columns("student_id", "course_id").
		Select(crossProduct).
		Suffix("ON CONFLICT (student_id, course_id) DO NOTHING"))
	if err != nil {
		return result, fmt.Errorf("provision records: %w", err)
	}
	result.Records = n
	return result, nil
}

func execInsert(ctx context.Context, q querier, b squirrel.InsertBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

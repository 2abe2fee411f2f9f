package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	err  error
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return r.scan(dest...)
}

// fakeQuerier records the statements it receives.
type fakeQuerier struct {
	sql  []string
	args [][]any

	execTag pgconn.CommandTag
	execErr error
	row     fakeRow
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return f.execTag, f.execErr
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return nil, errors.New("not supported")
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return f.row
}

func TestUpdateRecordBuildsOnlySetColumns(t *testing.T) {
	q := &fakeQuerier{execTag: pgconn.NewCommandTag("UPDATE 1")}
	repo := &GradeRepository{q: q}

	err := repo.UpdateRecord(context.Background(), 42, models.RecordUpdate{
		Partial1: models.SetTo(7.5),
		Average:  models.SetNull[float64](),
	})
	require.NoError(t, err)
	require.Len(t, q.sql, 1)
	assert.Equal(t, "UPDATE academic_records SET partial1 = $1, average = $2 WHERE id = $3", q.sql[0])
	require.Len(t, q.args[0], 3)
	assert.Equal(t, int64(42), q.args[0][2])
}

func TestUpdateRecordEmptyIsNoop(t *testing.T) {
	q := &fakeQuerier{}
	repo := &GradeRepository{q: q}
	require.NoError(t, repo.UpdateRecord(context.Background(), 1, models.RecordUpdate{}))
	assert.Empty(t, q.sql)
}

func TestUpdateRecordErrors(t *testing.T) {
	update := models.RecordUpdate{Absences: models.SetTo(3)}

	q := &fakeQuerier{execTag: pgconn.NewCommandTag("UPDATE 0")}
	err := (&GradeRepository{q: q}).UpdateRecord(context.Background(), 9, update)
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)

	q = &fakeQuerier{execErr: &pgconn.PgError{Code: "08006", Message: "connection to 10.1.2.3 lost"}}
	err = (&GradeRepository{q: q}).UpdateRecord(context.Background(), 9, update)
	assert.Equal(t, apperrors.KindStoreUnavailable, apperrors.KindOf(err))
	assert.NotContains(t, apperrors.Message(err), "10.1.2.3")
}

func TestGetProjectScore(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	score, err := (&GradeRepository{q: q}).GetProjectScore(context.Background(), "s100", 1)
	require.NoError(t, err)
	assert.Nil(t, score)
	assert.ElementsMatch(t, []any{"S100", 1, "project"}, q.args[0])

	q = &fakeQuerier{row: fakeRow{scan: func(dest ...any) error {
		v := 8.25
		*(dest[0].(**float64)) = &v
		return nil
	}}}
	score, err = (&GradeRepository{q: q}).GetProjectScore(context.Background(), "S100", 2)
	require.NoError(t, err)
	require.NotNil(t, score)
	assert.Equal(t, 8.25, *score)
}

func TestGetStudentNotFound(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := (&GradeRepository{q: q}).GetStudent(context.Background(), " a2024001 ")
	assert.ErrorIs(t, err, apperrors.ErrStudentNotFound)
	assert.Equal(t, []any{"A2024001"}, q.args[0])
}

func TestLockSemesterRequiresTransaction(t *testing.T) {
	q := &fakeQuerier{}
	err := (&GradeRepository{q: q}).LockSemester(context.Background(), "S100", 1)
	assert.Error(t, err)
	assert.Empty(t, q.sql)

	err = (&GradeRepository{q: q, inTx: true}).LockSemester(context.Background(), "s100", 1)
	require.NoError(t, err)
	assert.Contains(t, q.sql[0], "pg_advisory_xact_lock")
	assert.Equal(t, []any{"S100", int32(1)}, q.args[0])
}

func TestGetRecord(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := (&GradeRepository{q: q}).GetRecord(context.Background(), " s100 ", "  Algorithms   I ")
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
	require.Len(t, q.sql, 1)
	assert.Contains(t, q.sql[0], "s.enrollment = $1")
	assert.Contains(t, q.sql[0], "LOWER(c.name) = LOWER($2)")
	assert.Contains(t, q.sql[0], "ORDER BY c.semester LIMIT 1")
	assert.Equal(t, []any{"S100", "Algorithms I"}, q.args[0])

	q = &fakeQuerier{row: fakeRow{scan: func(dest ...any) error {
		*(dest[3].(*string)) = "S100"
		*(dest[4].(*string)) = "Algorithms I"
		*(dest[6].(*string)) = "standard"
		return nil
	}}}
	rec, err := (&GradeRepository{q: q}).GetRecord(context.Background(), "S100", "algorithms i")
	require.NoError(t, err)
	assert.Equal(t, "Algorithms I", rec.CourseName)
	assert.Equal(t, models.CategoryStandard, rec.Category)

	q = &fakeQuerier{row: fakeRow{err: &pgconn.PgError{Code: "57P01", Message: "terminating connection"}}}
	_, err = (&GradeRepository{q: q}).GetRecord(context.Background(), "S100", "Algorithms I")
	assert.Equal(t, apperrors.KindStoreUnavailable, apperrors.KindOf(err))
}

func TestGetRecordUnknownCategoryIsStoreError(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{scan: func(dest ...any) error {
		*(dest[6].(*string)) = "elective"
		return nil
	}}}
	_, err := (&GradeRepository{q: q}).GetRecord(context.Background(), "S100", "Algorithms I")
	assert.Equal(t, apperrors.KindStoreUnavailable, apperrors.KindOf(err))
}

func TestListRecordsQueries(t *testing.T) {
	tests := []struct {
		name     string
		list     func(r *GradeRepository) ([]*models.AcademicRecord, error)
		contains []string
		orderBy  string
		args     []any
	}{
		{
			name: "standard records of a semester",
			list: func(r *GradeRepository) ([]*models.AcademicRecord, error) {
				return r.ListStandardRecords(context.Background(), "s100", 2)
			},
			contains: []string{"c.category = $", "c.semester = $", "s.enrollment = $"},
			orderBy:  "ORDER BY c.name",
			args:     []any{"S100", 2, "standard"},
		},
		{
			name: "all records",
			list: func(r *GradeRepository) ([]*models.AcademicRecord, error) {
				return r.ListAllRecords(context.Background(), " s100")
			},
			contains: []string{"s.enrollment = $1"},
			orderBy:  "ORDER BY c.semester, c.name",
			args:     []any{"S100"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{}
			records, err := tt.list(&GradeRepository{q: q})
			assert.Nil(t, records)
			assert.Equal(t, apperrors.KindStoreUnavailable, apperrors.KindOf(err))

			require.Len(t, q.sql, 1)
			assert.Contains(t, q.sql[0], "FROM academic_records ar JOIN students s ON s.id = ar.student_id JOIN courses c ON c.id = ar.course_id")
			for _, fragment := range tt.contains {
				assert.Contains(t, q.sql[0], fragment)
			}
			assert.True(t, strings.HasSuffix(q.sql[0], tt.orderBy), q.sql[0])
			assert.ElementsMatch(t, tt.args, q.args[0])
		})
	}
}

func TestProvisionRows(t *testing.T) {
	q := &fakeQuerier{execTag: pgconn.NewCommandTag("INSERT 0 2")}
	code := "hash"
	result, err := provisionRows(context.Background(), q,
		[]models.Course{
			{Name: " Calculus  I ", Semester: 1, Category: models.CategoryStandard},
			{Name: "CALCULUS I", Semester: 1, Category: models.CategoryStandard},
		},
		[]NewAccount{{Enrollment: " s100 ", FullName: "Ada", Role: models.RoleStudent, PasswordHash: "pw", SecurityCodeHash: &code}},
	)
	require.NoError(t, err)
	assert.Equal(t, ProvisionResult{Courses: 2, Students: 2, Records: 2}, result)
	require.Len(t, q.sql, 3)

	assert.True(t, strings.HasPrefix(q.sql[0], "INSERT INTO courses "), q.sql[0])
	assert.True(t, strings.HasSuffix(q.sql[0], "ON CONFLICT ((LOWER(name)), semester) DO NOTHING"), q.sql[0])
	assert.Equal(t, []any{"Calculus I", 1, "standard", "CALCULUS I", 1, "standard"}, q.args[0])

	assert.True(t, strings.HasSuffix(q.sql[1], "ON CONFLICT (enrollment) DO NOTHING"), q.sql[1])
	assert.Equal(t, []any{"S100", "Ada", "student", "pw", &code}, q.args[1])

	assert.Contains(t, q.sql[2], "INSERT INTO academic_records")
	assert.Contains(t, q.sql[2], "CROSS JOIN courses c")
	assert.Contains(t, q.sql[2], "s.role = $1")
	assert.True(t, strings.HasSuffix(q.sql[2], "ON CONFLICT (student_id, course_id) DO NOTHING"), q.sql[2])
	assert.Equal(t, []any{"student"}, q.args[2])
}

func TestProvisionRowsSkipsEmptyInputs(t *testing.T) {
	q := &fakeQuerier{execTag: pgconn.NewCommandTag("INSERT 0 0")}
	result, err := provisionRows(context.Background(), q, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProvisionResult{}, result)
	require.Len(t, q.sql, 1)
	assert.Contains(t, q.sql[0], "INSERT INTO academic_records")
}

func TestProvisionRowsStopsOnFailure(t *testing.T) {
	q := &fakeQuerier{execErr: errors.New("duplicate key")}
	_, err := provisionRows(context.Background(), q,
		[]models.Course{{Name: "Calculus I", Semester: 1, Category: models.CategoryStandard}}, nil)
	assert.ErrorContains(t, err, "provision courses")
	assert.Len(t, q.sql, 1)
}

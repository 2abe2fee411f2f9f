// Package memory is an in-process GradeStore. It backs the "memory" storage
// driver and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/pkg/apperrors"
)

type tables struct {
	students map[string]*models.Student // by enrollment
	courses  map[int64]*models.Course
	records  map[int64]*models.AcademicRecord

	nextStudentID int64
	nextCourseID  int64
	nextRecordID  int64
}

func (t *tables) clone() *tables {
	c := &tables{
		students:      make(map[string]*models.Student, len(t.students)),
		courses:       make(map[int64]*models.Course, len(t.courses)),
		records:       make(map[int64]*models.AcademicRecord, len(t.records)),
		nextStudentID: t.nextStudentID,
		nextCourseID:  t.nextCourseID,
		nextRecordID:  t.nextRecordID,
	}
	for k, v := range t.students {
		s := *v
		c.students[k] = &s
	}
	for k, v := range t.courses {
		course := *v
		c.courses[k] = &course
	}
	for k, v := range t.records {
		c.records[k] = copyRecord(v)
	}
	return c
}

// Store guards all tables with one mutex. A transaction holds it for its whole
// duration, which serialises writers the way the advisory lock does in
// PostgreSQL.
type Store struct {
	mu sync.Mutex
	t  *tables
}

var (
	_ repositories.GradeStore  = (*Store)(nil)
	_ repositories.Provisioner = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{t: &tables{
		students: make(map[string]*models.Student),
		courses:  make(map[int64]*models.Course),
		records:  make(map[int64]*models.AcademicRecord),
	}}
}

func (s *Store) StudentExists(ctx context.Context, enrollment string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.t}.StudentExists(ctx, enrollment)
}

func (s *Store) GetStudent(ctx context.Context, enrollment string) (*models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.t}.GetStudent(ctx, enrollment)
}

func (s *Store) GetRecord(ctx context.Context, enrollment, courseName string) (*models.AcademicRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.t}.GetRecord(ctx, enrollment, courseName)
}

func (s *Store) GetProjectScore(ctx context.Context, enrollment string, semester int) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.t}.GetProjectScore(ctx, enrollment, semester)
}

func (s *Store) UpdateRecord(ctx context.Context, recordID int64, update models.RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.t}.UpdateRecord(ctx, recordID, update)
}

func (s *Store) ListStandardRecords(ctx context.Context, enrollment string, semester int) ([]*models.AcademicRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.t}.ListStandardRecords(ctx, enrollment, semester)
}

func (s *Store) ListAllRecords(ctx context.Context, enrollment string) ([]*models.AcademicRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{s.t}.ListAllRecords(ctx, enrollment)
}

// WithinTransaction runs fn with the store locked. If fn fails every change it
// made is discarded.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, store repositories.GradeStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.t.clone()
	if err := fn(ctx, view{s.t}); err != nil {
		s.t = snapshot
		return err
	}
	return nil
}

// LockSemester is a no-op outside a transaction: there is nothing to hold.
func (s *Store) LockSemester(ctx context.Context, enrollment string, semester int) error {
	return nil
}

// Provision inserts missing courses, accounts and records.
func (s *Store) Provision(ctx context.Context, courses []models.Course, accounts []repositories.NewAccount) (repositories.ProvisionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result repositories.ProvisionResult
	t := s.t

	for _, c := range courses {
		name := models.NormalizeCourseName(c.Name)
		if t.findCourse(name, c.Semester) != nil {
			continue
		}
		t.nextCourseID++
		t.courses[t.nextCourseID] = &models.Course{ID: t.nextCourseID, Name: name, Semester: c.Semester, Category: c.Category}
		result.Courses++
	}

	for _, a := range accounts {
		enrollment := models.NormalizeEnrollment(a.Enrollment)
		if _, ok := t.students[enrollment]; ok {
			continue
		}
		t.nextStudentID++
		t.students[enrollment] = &models.Student{
			ID:               t.nextStudentID,
			Enrollment:       enrollment,
			FullName:         a.FullName,
			Role:             a.Role,
			PasswordHash:     a.PasswordHash,
			SecurityCodeHash: a.SecurityCodeHash,
			CreatedAt:        time.Now().UTC(),
		}
		result.Students++
	}

	existing := make(map[[2]int64]bool, len(t.records))
	for _, r := range t.records {
		existing[[2]int64{r.StudentID, r.CourseID}] = true
	}
	for _, st := range t.students {
		if st.Role != models.RoleStudent {
			continue
		}
		for _, c := range t.courses {
			if existing[[2]int64{st.ID, c.ID}] {
				continue
			}
			t.nextRecordID++
			t.records[t.nextRecordID] = &models.AcademicRecord{ID: t.nextRecordID, StudentID: st.ID, CourseID: c.ID}
			result.Records++
		}
	}
	return result, nil
}

// Counts returns the number of students, courses and records held.
func (s *Store) Counts() (students, courses, records int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.t.students), len(s.t.courses), len(s.t.records)
}

func (t *tables) findCourse(name string, semester int) *models.Course {
	for _, c := range t.courses {
		if c.Semester == semester && strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func (t *tables) studentByID(id int64) *models.Student {
	for _, s := range t.students {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// view is the unlocked implementation. The caller holds Store.mu.
type view struct {
	t *tables
}

func (v view) StudentExists(_ context.Context, enrollment string) (bool, error) {
	_, ok := v.t.students[models.NormalizeEnrollment(enrollment)]
	return ok, nil
}

func (v view) GetStudent(_ context.Context, enrollment string) (*models.Student, error) {
	s, ok := v.t.students[models.NormalizeEnrollment(enrollment)]
	if !ok {
		return nil, apperrors.ErrStudentNotFound
	}
	c := *s
	return &c, nil
}

// records returns joined copies of the student's records matching keep,
// ordered by semester and course name.
func (v view) records(enrollment string, keep func(*models.Course) bool) []*models.AcademicRecord {
	student, ok := v.t.students[models.NormalizeEnrollment(enrollment)]
	if !ok {
		return nil
	}
	var out []*models.AcademicRecord
	for _, r := range v.t.records {
		if r.StudentID != student.ID {
			continue
		}
		course := v.t.courses[r.CourseID]
		if course == nil || !keep(course) {
			continue
		}
		out = append(out, v.join(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Semester != out[j].Semester {
			return out[i].Semester < out[j].Semester
		}
		return out[i].CourseName < out[j].CourseName
	})
	return out
}

func (v view) join(r *models.AcademicRecord) *models.AcademicRecord {
	out := copyRecord(r)
	if c := v.t.courses[r.CourseID]; c != nil {
		out.CourseName = c.Name
		out.Semester = c.Semester
		out.Category = c.Category
	}
	if s := v.t.studentByID(r.StudentID); s != nil {
		out.Enrollment = s.Enrollment
	}
	return out
}

func (v view) GetRecord(_ context.Context, enrollment, courseName string) (*models.AcademicRecord, error) {
	name := models.NormalizeCourseName(courseName)
	recs := v.records(enrollment, func(c *models.Course) bool {
		return strings.EqualFold(c.Name, name)
	})
	if len(recs) == 0 {
		return nil, apperrors.ErrRecordNotFound
	}
	return recs[0], nil
}

func (v view) GetProjectScore(_ context.Context, enrollment string, semester int) (*float64, error) {
	recs := v.records(enrollment, func(c *models.Course) bool {
		return c.Semester == semester && c.Category == models.CategoryProject
	})
	if len(recs) == 0 {
		return nil, nil
	}
	return recs[0].Average, nil
}

func (v view) UpdateRecord(_ context.Context, recordID int64, update models.RecordUpdate) error {
	r, ok := v.t.records[recordID]
	if !ok {
		return apperrors.ErrRecordNotFound
	}
	update.ApplyTo(r)
	return nil
}

func (v view) ListStandardRecords(_ context.Context, enrollment string, semester int) ([]*models.AcademicRecord, error) {
	return v.records(enrollment, func(c *models.Course) bool {
		return c.Semester == semester && c.Category == models.CategoryStandard
	}), nil
}

func (v view) ListAllRecords(_ context.Context, enrollment string) ([]*models.AcademicRecord, error) {
	return v.records(enrollment, func(*models.Course) bool { return true }), nil
}

func (v view) WithinTransaction(ctx context.Context, fn func(ctx context.Context, store repositories.GradeStore) error) error {
	return fn(ctx, v)
}

func (v view) LockSemester(context.Context, string, int) error {
	return nil
}

func copyRecord(r *models.AcademicRecord) *models.AcademicRecord {
	c := *r
	models.RecordUpdate{
		Partial1: models.SetPtr(r.Partial1),
		Partial2: models.SetPtr(r.Partial2),
		Average:  models.SetPtr(r.Average),
		Absences: models.SetPtr(r.Absences),
	}.ApplyTo(&c)
	return &c
}

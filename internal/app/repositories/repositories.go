package repositories

import (
	"context"

	"github.com/academia/gradebot/internal/app/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GradeStore is the persistence contract of the grading core. Courses are
// addressed by name, matched case-insensitively. Lookups of absent rows return
// apperrors.ErrStudentNotFound or apperrors.ErrRecordNotFound; any other
// failure is a store_unavailable error.
type GradeStore interface {
	StudentExists(ctx context.Context, enrollment string) (bool, error)
	GetStudent(ctx context.Context, enrollment string) (*models.Student, error)

	GetRecord(ctx context.Context, enrollment, courseName string) (*models.AcademicRecord, error)
	// GetProjectScore returns nil when the semester has no project course or
	// its score is not set.
	GetProjectScore(ctx context.Context, enrollment string, semester int) (*float64, error)
	UpdateRecord(ctx context.Context, recordID int64, update models.RecordUpdate) error
	ListStandardRecords(ctx context.Context, enrollment string, semester int) ([]*models.AcademicRecord, error)
	ListAllRecords(ctx context.Context, enrollment string) ([]*models.AcademicRecord, error)

	// WithinTransaction runs fn against a store bound to one transaction.
	// Calling it on a store that is already transactional reuses the
	// transaction.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, store GradeStore) error) error
	// LockSemester serialises writers of one student-semester until the
	// surrounding transaction ends.
	LockSemester(ctx context.Context, enrollment string, semester int) error
}

// NewAccount is an account to provision, with hashes already computed.
type NewAccount struct {
	Enrollment       string
	FullName         string
	Role             models.RoleType
	PasswordHash     string
	SecurityCodeHash *string
}

// ProvisionResult counts the rows actually inserted.
type ProvisionResult struct {
	Courses  int64
	Students int64
	Records  int64
}

// Provisioner creates courses, accounts and the full student x course
// record cross product. Existing rows are never duplicated or overwritten.
type Provisioner interface {
	Provision(ctx context.Context, courses []models.Course, accounts []NewAccount) (ProvisionResult, error)
}

// Repositories holds the store implementations used by the services.
type Repositories struct {
	Grades      GradeStore
	Provisioner Provisioner
}

// NewRepositories wires the PostgreSQL implementations.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	grades := NewGradeRepository(pool)
	return &Repositories{
		Grades:      grades,
		Provisioner: grades,
	}
}

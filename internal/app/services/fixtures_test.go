package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/academia/gradebot/internal/app/grading"
	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/models/dto"
	"github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/app/repositories/memory"
	"github.com/academia/gradebot/internal/pkg/apperrors"
	"github.com/academia/gradebot/internal/pkg/auth"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testCourses = []models.Course{
	{Name: "Algorithms", Semester: 1, Category: models.CategoryStandard},
	{Name: "Databases", Semester: 1, Category: models.CategoryStandard},
	{Name: "Operating Systems", Semester: 1, Category: models.CategoryStandard},
	{Name: "Study Skills", Semester: 1, Category: models.CategorySupplementary},
	{Name: "Project I", Semester: 1, Category: models.CategoryProject},
	{Name: "Networks", Semester: 2, Category: models.CategoryStandard},
	{Name: "Project II", Semester: 2, Category: models.CategoryProject},
}

func hash(t *testing.T, secret string) string {
	t.Helper()
	h, err := auth.HashSecret(secret, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

// newTestStore provisions two students, one instructor and seven courses.
func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	code := hash(t, "4321")
	store := memory.NewStore()
	_, err := store.Provision(context.Background(), testCourses, []repositories.NewAccount{
		{Enrollment: "S100", FullName: "Ada Park", Role: models.RoleStudent, PasswordHash: hash(t, "ada-pass")},
		{Enrollment: "S200", FullName: "Ben Ortiz", Role: models.RoleStudent, PasswordHash: hash(t, "ben-pass")},
		{Enrollment: "T900", FullName: "Carla Moss", Role: models.RoleInstructor, PasswordHash: hash(t, "carla-pass"), SecurityCodeHash: &code},
	})
	require.NoError(t, err)
	return store
}

// setRecord writes fields straight into the store, bypassing the services.
func setRecord(t *testing.T, store repositories.GradeStore, enrollment, course string, u models.RecordUpdate) {
	t.Helper()
	ctx := context.Background()
	rec, err := store.GetRecord(ctx, enrollment, course)
	require.NoError(t, err)
	require.NoError(t, store.UpdateRecord(ctx, rec.ID, u))
}

func getRecordT(t *testing.T, store repositories.GradeStore, enrollment, course string) *models.AcademicRecord {
	t.Helper()
	rec, err := store.GetRecord(context.Background(), enrollment, course)
	require.NoError(t, err)
	return rec
}

func partials(p1, p2 float64) models.RecordUpdate {
	return models.RecordUpdate{Partial1: models.SetTo(p1), Partial2: models.SetTo(p2)}
}

func fp(v float64) *float64 { return &v }

type testServices struct {
	store    *memory.Store
	recalc   RecalculationService
	grades   GradeService
	history  HistoryService
	notifier *recordingNotifier
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	store := newTestStore(t)
	policy := grading.DefaultPolicy()
	recalc := NewRecalculationService(store, policy, zerolog.Nop())
	notifier := &recordingNotifier{}
	return &testServices{
		store:    store,
		recalc:   recalc,
		grades:   NewGradeService(store, recalc, policy, notifier, zerolog.Nop()),
		history:  NewHistoryService(store, policy, zerolog.Nop()),
		notifier: notifier,
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []dto.GradeChange
}

func (n *recordingNotifier) NotifyGradeChange(change dto.GradeChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func (n *recordingNotifier) all() []dto.GradeChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dto.GradeChange(nil), n.changes...)
}

// brokenStore fails every call the way an unreachable database does.
type brokenStore struct{}

var errDriver = errors.New("dial tcp db.internal:5432: connect: connection refused")

func unavailable() error { return apperrors.StoreUnavailable(errDriver) }

func (brokenStore) StudentExists(context.Context, string) (bool, error) { return false, unavailable() }
func (brokenStore) GetStudent(context.Context, string) (*models.Student, error) {
	return nil, unavailable()
}
func (brokenStore) GetRecord(context.Context, string, string) (*models.AcademicRecord, error) {
	return nil, unavailable()
}
func (brokenStore) GetProjectScore(context.Context, string, int) (*float64, error) {
	return nil, unavailable()
}
func (brokenStore) UpdateRecord(context.Context, int64, models.RecordUpdate) error {
	return unavailable()
}
func (brokenStore) ListStandardRecords(context.Context, string, int) ([]*models.AcademicRecord, error) {
	return nil, unavailable()
}
func (brokenStore) ListAllRecords(context.Context, string) ([]*models.AcademicRecord, error) {
	return nil, unavailable()
}
func (b brokenStore) WithinTransaction(ctx context.Context, fn func(context.Context, repositories.GradeStore) error) error {
	return fn(ctx, b)
}
func (brokenStore) LockSemester(context.Context, string, int) error { return unavailable() }

// failingUpdates passes everything through but fails writes to the average
// column, so a mutation fails after its first write.
type failingUpdates struct {
	repositories.GradeStore
}

func (f failingUpdates) UpdateRecord(ctx context.Context, id int64, u models.RecordUpdate) error {
	if u.Average.Set && !u.Partial1.Set && !u.Partial2.Set {
		return unavailable()
	}
	return f.GradeStore.UpdateRecord(ctx, id, u)
}

func (f failingUpdates) WithinTransaction(ctx context.Context, fn func(context.Context, repositories.GradeStore) error) error {
	return f.GradeStore.WithinTransaction(ctx, func(ctx context.Context, tx repositories.GradeStore) error {
		return fn(ctx, failingUpdates{tx})
	})
}

package seed

import (
	"context"
	"fmt"

	"github.com/academia/gradebot/internal/app/models"
	"github.com/academia/gradebot/internal/app/repositories"
	"github.com/academia/gradebot/internal/pkg/auth"
	"github.com/rs/zerolog"
)

// Account is a seed account with plain-text secrets, hashed before insert.
type Account struct {
	Enrollment   string
	FullName     string
	Role         models.RoleType
	Password     string
	SecurityCode string
}

// DefaultCourses is the catalogue of the demo program: two semesters, each
// with standard courses, a supplementary course and the semester project.
var DefaultCourses = []models.Course{
	{Name: "Calculus I", Semester: 1, Category: models.CategoryStandard},
	{Name: "Introduction to Programming", Semester: 1, Category: models.CategoryStandard},
	{Name: "Discrete Mathematics", Semester: 1, Category: models.CategoryStandard},
	{Name: "Academic Writing", Semester: 1, Category: models.CategorySupplementary},
	{Name: "Integrative Project I", Semester: 1, Category: models.CategoryProject},

	{Name: "Calculus II", Semester: 2, Category: models.CategoryStandard},
	{Name: "Data Structures", Semester: 2, Category: models.CategoryStandard},
	{Name: "Digital Logic", Semester: 2, Category: models.CategoryStandard},
	{Name: "Ethics in Computing", Semester: 2, Category: models.CategorySupplementary},
	{Name: "Integrative Project II", Semester: 2, Category: models.CategoryProject},
}

// DefaultAccounts are the demo students and the single instructor.
var DefaultAccounts = []Account{
	{Enrollment: "A2024001", FullName: "Maya Lindqvist", Role: models.RoleStudent, Password: "maya2024"},
	{Enrollment: "A2024002", FullName: "Jonah Whitaker", Role: models.RoleStudent, Password: "jonah2024"},
	{Enrollment: "A2024003", FullName: "Priya Raman", Role: models.RoleStudent, Password: "priya2024"},
	{Enrollment: "A2024004", FullName: "Tomas Ferreira", Role: models.RoleStudent, Password: "tomas2024"},
	{Enrollment: "P1001", FullName: "Helen Carter", Role: models.RoleInstructor, Password: "helen-admin", SecurityCode: "7305"},
}

// HashAccounts hashes passwords and security codes with the given bcrypt cost.
func HashAccounts(accounts []Account, cost int) ([]repositories.NewAccount, error) {
	out := make([]repositories.NewAccount, 0, len(accounts))
	for _, a := range accounts {
		hash, err := auth.HashSecret(a.Password, cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", a.Enrollment, err)
		}
		acc := repositories.NewAccount{
			Enrollment:   models.NormalizeEnrollment(a.Enrollment),
			FullName:     a.FullName,
			Role:         a.Role,
			PasswordHash: hash,
		}
		if a.SecurityCode != "" {
			code, err := auth.HashSecret(a.SecurityCode, cost)
			if err != nil {
				return nil, fmt.Errorf("hash security code for %s: %w", a.Enrollment, err)
			}
			acc.SecurityCodeHash = &code
		}
		out = append(out, acc)
	}
	return out, nil
}

// Run provisions courses and accounts. It is idempotent: rows that already
// exist are skipped and recorded grades are left untouched.
func Run(ctx context.Context, p repositories.Provisioner, courses []models.Course, accounts []Account, cost int, lgr zerolog.Logger) (repositories.ProvisionResult, error) {
	hashed, err := HashAccounts(accounts, cost)
	if err != nil {
		return repositories.ProvisionResult{}, err
	}

	result, err := p.Provision(ctx, courses, hashed)
	if err != nil {
		lgr.Error().Err(err).Msg("Provisioning failed")
		return repositories.ProvisionResult{}, err
	}

	lgr.Info().
		Int64("courses", result.Courses).
		Int64("accounts", result.Students).
		Int64("records", result.Records).
		Msg("Default data provisioned")
	return result, nil
}

// CreateDefaultData seeds the demo catalogue and accounts.
func CreateDefaultData(ctx context.Context, p repositories.Provisioner, lgr zerolog.Logger) error {
	lgr.Info().Msg("Checking/Creating default data (courses/accounts)...")
	_, err := Run(ctx, p, DefaultCourses, DefaultAccounts, auth.BcryptCost, lgr)
	return err
}

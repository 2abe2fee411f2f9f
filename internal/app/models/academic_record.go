package models

import "strings"

// AcademicRecord links one student to one course. Rows are created at
// provisioning for every (student, course) pair and only updated afterwards.
//
// For project courses Average holds the semester project score.
type AcademicRecord struct {
	ID         int64    `json:"id" db:"id"`
	StudentID  int64    `json:"studentId" db:"student_id"`
	CourseID   int64    `json:"courseId" db:"course_id"`
	Enrollment string   `json:"enrollment" db:"enrollment"`
	CourseName string   `json:"courseName" db:"course_name"`
	Semester   int      `json:"semester" db:"semester"`
	Category   Category `json:"category" db:"category"`
	Partial1   *float64 `json:"partial1" db:"partial1"`
	Partial2   *float64 `json:"partial2" db:"partial2"`
	Average    *float64 `json:"average" db:"average"`
	Absences   *int     `json:"absences" db:"absences"`
	Completed  bool     `json:"completed" db:"completed"`
}

// Partial selects one of the two partial-score columns.
type Partial int

const (
	Partial1 Partial = iota + 1
	Partial2
)

// String returns the canonical name of p.
func (p Partial) String() string {
	switch p {
	case Partial1:
		return "partial1"
	case Partial2:
		return "partial2"
	}
	return "unknown"
}

// Valid reports whether p names a real column.
func (p Partial) Valid() bool {
	return p == Partial1 || p == Partial2
}

// ParsePartial resolves caller text ("partial1", "P2", "np1", "2"...) into a
// Partial. Anything else is rejected before storage is touched.
func ParsePartial(s string) (Partial, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	key = strings.NewReplacer("_", "", "-", "").Replace(key)
	key = strings.TrimPrefix(strings.TrimPrefix(key, "partial"), "np")
	key = strings.TrimPrefix(key, "p")
	switch key {
	case "1":
		return Partial1, true
	case "2":
		return Partial2, true
	}
	return 0, false
}

// Score returns the current value of partial p on the record.
func (r *AcademicRecord) Score(p Partial) *float64 {
	switch p {
	case Partial1:
		return r.Partial1
	case Partial2:
		return r.Partial2
	}
	return nil
}

// Field is one optional column assignment. Set without a Value writes NULL.
type Field[T any] struct {
	Set   bool
	Value *T
}

// SetTo assigns v.
func SetTo[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// SetNull assigns NULL.
func SetNull[T any]() Field[T] {
	return Field[T]{Set: true}
}

// SetPtr assigns v, or NULL when v is nil.
func SetPtr[T any](v *T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// RecordUpdate lists the columns an update touches. Untouched columns keep
// their stored value.
type RecordUpdate struct {
	Partial1  Field[float64]
	Partial2  Field[float64]
	Average   Field[float64]
	Absences  Field[int]
	Completed Field[bool]
}

// WithPartial returns an update writing score (nil clears) into partial p.
func WithPartial(p Partial, score *float64) RecordUpdate {
	var u RecordUpdate
	switch p {
	case Partial1:
		u.Partial1 = SetPtr(score)
	case Partial2:
		u.Partial2 = SetPtr(score)
	}
	return u
}

// Empty reports whether the update touches no column.
func (u RecordUpdate) Empty() bool {
	return !u.Partial1.Set && !u.Partial2.Set && !u.Average.Set && !u.Absences.Set && !u.Completed.Set
}

// ApplyTo copies the set columns onto r.
func (u RecordUpdate) ApplyTo(r *AcademicRecord) {
	if u.Partial1.Set {
		r.Partial1 = clonePtr(u.Partial1.Value)
	}
	if u.Partial2.Set {
		r.Partial2 = clonePtr(u.Partial2.Value)
	}
	if u.Average.Set {
		r.Average = clonePtr(u.Average.Value)
	}
	if u.Absences.Set {
		r.Absences = clonePtr(u.Absences.Value)
	}
	if u.Completed.Set && u.Completed.Value != nil {
		r.Completed = *u.Completed.Value
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

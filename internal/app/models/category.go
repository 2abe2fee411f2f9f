package models

import (
	"fmt"
	"strings"
)

// Category is the evaluation category of a course.
type Category string

const (
	// CategoryStandard is graded by two partials plus the semester project.
	CategoryStandard Category = "standard"
	// CategoryProject holds the project score shared by every standard course
	// of its semester, stored in the record's average column.
	CategoryProject Category = "project"
	// CategorySupplementary is completion-only: a done/not-done flag, no
	// numeric average and no cutoff.
	CategorySupplementary Category = "supplementary"
)

// CategoryRules lists what a category accepts and how it is displayed.
type CategoryRules struct {
	AcceptsPartials bool
	ProjectSource   bool
	ComputesAverage bool
	UsesCutoff      bool
	CompletionOnly  bool
	// DisplayRank orders categories inside a semester in the history.
	DisplayRank int
	Description string
}

var categoryRules = map[Category]CategoryRules{
	CategoryStandard: {
		AcceptsPartials: true,
		ComputesAverage: true,
		UsesCutoff:      true,
		DisplayRank:     0,
		Description:     "Final average = partial1*w1 + partial2*w2 + project*w3",
	},
	CategorySupplementary: {
		CompletionOnly: true,
		DisplayRank:    1,
		Description:    "Completion-only activity, not part of any average",
	},
	CategoryProject: {
		ProjectSource: true,
		DisplayRank:   2,
		Description:   "Project score used by every standard course of the semester",
	},
}

// Rules returns the rules for c. Unknown categories get the zero value, which
// accepts nothing.
func (c Category) Rules() CategoryRules {
	return categoryRules[c]
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryRules[c]
	return ok
}

// ParseCategory parses a stored category name, ignoring case.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return CategoryStandard, nil
	case "project":
		return CategoryProject, nil
	case "supplementary":
		return CategorySupplementary, nil
	}
	return "", fmt.Errorf("unknown course category %q", s)
}

// Package storage defines the Storage interface that every database backend
// must satisfy, plus the sentinel errors handlers use to classify failures.
//
// Handlers depend only on this interface. The MongoDB and SQLite backends
// live in sub-packages; tests substitute an in-memory fake.
package storage

import (
	"context"
	"errors"
	"regexp"

	"github.com/aanand-mishra/students-api/internal/types"
)

// ErrNotFound is returned when no student matches the given id.
var ErrNotFound = errors.New("student not found")

// idPattern is the shape of every student id: 24 hexadecimal characters.
var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ValidID reports whether id has the shape of a student identifier.
// Handlers check this before querying storage.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Storage is the database contract.
type Storage interface {
	// CreateStudent stores a new student and returns it with its assigned id.
	CreateStudent(ctx context.Context, student types.Student) (types.Student, error)

	// GetStudentByID returns ErrNotFound (wrapped) when the id is unknown.
	GetStudentByID(ctx context.Context, id string) (types.Student, error)

	// GetStudents returns every stored student, or an empty (non-nil) slice.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// UpdateStudentByID replaces the business fields of an existing student
	// and returns the stored result.
	UpdateStudentByID(ctx context.Context, id string, student types.Student) (types.Student, error)

	// DeleteStudentByID removes a student permanently.
	DeleteStudentByID(ctx context.Context, id string) error
}

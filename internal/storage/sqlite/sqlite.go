// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using database/sql.
//
// It is the local-development backend: a single file on disk, no server.
// Ids are generated with the same 24-character hex shape MongoDB uses, so
// clients and the HTTP layer cannot tell the two backends apart.
//
// The blank import registers the "sqlite3" driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// ErrMissingPath is returned by Open when no database file is configured.
var ErrMissingPath = errors.New("sqlite storage path is not set")

// SQLite is the concrete implementation of storage.Storage.
// *sql.DB is a connection pool and is safe for concurrent use.
type SQLite struct {
	Db   *sql.DB
	path string
}

// Open opens the SQLite database at path, verifies it with a ping, and
// creates the students table if it does not exist yet.
func Open(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, ErrMissingPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.Open: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: ping: %w", err)
	}

	// CREATE TABLE IF NOT EXISTS is idempotent, so this runs on every start.
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS students (
			id      TEXT    PRIMARY KEY,
			name    TEXT    NOT NULL,
			age     REAL    NOT NULL,
			email   TEXT    NOT NULL,
			phone   TEXT    NOT NULL,
			address TEXT    NOT NULL
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: create table: %w", err)
	}

	return &SQLite{Db: db, path: path}, nil
}

// Ping checks that the database file is still usable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.Db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *SQLite) Close(context.Context) error {
	return s.Db.Close()
}

// Database returns the database file name.
func (s *SQLite) Database() string { return filepath.Base(s.path) }

// Host is always "localhost" for an embedded database.
func (s *SQLite) Host() string { return "localhost" }

// ─────────────────────────────────────────────────────────────────────────────
// CreateStudent inserts a new row with a freshly generated id.
// Placeholders (?) keep user input out of the SQL text.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) CreateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"INSERT INTO students (id, name, age, email, phone, address) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: prepare: %w", err)
	}
	defer stmt.Close()

	student.ID = bson.NewObjectID().Hex()

	_, err = stmt.ExecContext(ctx,
		student.ID, student.Name, student.Age, student.Email, student.Phone, student.Address,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("CreateStudent: exec: %w", err)
	}

	return student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetStudentByID fetches exactly one row matched by primary key.
// Scan reads the columns in SELECT order.
//
// Ids are stored in lower case; the lookup accepts either case, as the
// Mongo store does.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	id = strings.ToLower(id)
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, name, age, email, phone, address FROM students WHERE id = ? LIMIT 1",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("GetStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	var student types.Student
	err = stmt.QueryRowContext(ctx, id).Scan(
		&student.ID,
		&student.Name,
		&student.Age,
		&student.Email,
		&student.Phone,
		&student.Address,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Student{}, fmt.Errorf("GetStudentByID %s: %w", id, storage.ErrNotFound)
		}
		return types.Student{}, fmt.Errorf("GetStudentByID: scan: %w", err)
	}

	return student, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// GetStudents returns all rows in insertion order.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	stmt, err := s.Db.PrepareContext(ctx,
		"SELECT id, name, age, email, phone, address FROM students ORDER BY rowid",
	)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetStudents: query: %w", err)
	}
	defer rows.Close()

	// Non-nil so an empty table encodes as [] rather than null.
	students := make([]types.Student, 0)

	for rows.Next() {
		var student types.Student

		if err := rows.Scan(
			&student.ID,
			&student.Name,
			&student.Age,
			&student.Email,
			&student.Phone,
			&student.Address,
		); err != nil {
			return nil, fmt.Errorf("GetStudents: scan row: %w", err)
		}

		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStudents: rows iteration: %w", err)
	}

	return students, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateStudentByID replaces a student's business fields and returns the
// stored row.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) UpdateStudentByID(ctx context.Context, id string, student types.Student) (types.Student, error) {
	id = strings.ToLower(id)
	stmt, err := s.Db.PrepareContext(ctx,
		"UPDATE students SET name = ?, age = ?, email = ?, phone = ?, address = ? WHERE id = ?",
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	// Argument order matches the ? order: name, age, email, phone, address, id.
	res, err := stmt.ExecContext(ctx,
		student.Name, student.Age, student.Email, student.Phone, student.Address, id,
	)
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return types.Student{}, fmt.Errorf("UpdateStudentByID: rows affected: %w", err)
	}
	if n == 0 {
		return types.Student{}, fmt.Errorf("UpdateStudentByID %s: %w", id, storage.ErrNotFound)
	}

	return s.GetStudentByID(ctx, id)
}

// ─────────────────────────────────────────────────────────────────────────────
// DeleteStudentByID removes a row by primary key.
// ─────────────────────────────────────────────────────────────────────────────
func (s *SQLite) DeleteStudentByID(ctx context.Context, id string) error {
	id = strings.ToLower(id)
	stmt, err := s.Db.PrepareContext(ctx, "DELETE FROM students WHERE id = ?")
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: exec: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteStudentByID: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("DeleteStudentByID %s: %w", id, storage.ErrNotFound)
	}

	return nil
}

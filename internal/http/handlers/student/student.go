// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE: THE CLOSURE / FACTORY PATTERN
// ────────────────────────────────────────────────────────────
// A router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for extra parameters like a database, so each
// handler is built by a factory that accepts its dependencies and returns
// the actual handler:
//
//	r.Post("/api/students/new", student.New(storage))
//	//                           ^^^^^^^^^^^^^^^^^^^^
//	//          New(storage) is called ONCE at startup; the returned
//	//          function is called on EVERY incoming request.
//
// The {id} path segment is read with r.PathValue, falling back to the chi
// route context.
package student

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/students-api/internal/connection"
	"github.com/aanand-mishra/students-api/internal/http/middleware"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
	"github.com/aanand-mishra/students-api/internal/utils/response"
)

// Client-facing messages.
const (
	msgInvalidID     = "Invalid or missing ID format"
	msgNotFound      = "Student not found"
	msgNothingToSave = "At least one field must be provided for update"
	msgDeleted       = "Student deleted"
)

var validate = validator.New()

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST {base}/new (legacy) or POST {base} (rest).
// Creates a new student from the JSON request body.
//
// Request body (JSON), every field required:
//
//	{ "name": "Ana", "age": 20, "email": "ana@x.io", "phone": "555", "address": "Main St" }
//
// Success response (201 Created): the stored student, including its id.
//
// Error responses:
//
//	400 Bad Request     malformed JSON
//	422 Unprocessable   a field is missing or empty
//	503 Unavailable     the database went away mid-request
//	504 Timeout         the request deadline passed during the database call
//	500 Internal        any other database error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		input, ok := decodeInput(w, r)
		if !ok {
			return
		}

		// An empty body decodes to the zero input and fails here with 422,
		// same as a body with missing fields.
		if err := validate.Struct(input); err != nil {
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				_ = response.WriteJSON(w, http.StatusUnprocessableEntity,
					response.ValidationError(validateErrs))
				return
			}
			_ = response.WriteError(w, response.BadRequest, err.Error())
			return
		}

		student, err := storage.CreateStudent(r.Context(), input.Student())
		if err != nil {
			writeStorageError(w, storage, "creating student", "", err)
			return
		}

		slog.Info("student created", slog.String("id", student.ID))
		_ = response.WriteJSON(w, http.StatusCreated, student)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET {base}/{id}.
//
// Error responses:
//
//	400 Bad Request  id is not 24 hex characters (storage is not queried)
//	404 Not Found    no student with this id
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("getting a student", slog.String("id", id))

		student, err := storage.GetStudentByID(r.Context(), id)
		if err != nil {
			writeStorageError(w, storage, "getting student", id, err)
			return
		}

		_ = response.WriteJSON(w, http.StatusOK, student)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET {base}.
// Returns a JSON array of all students in insertion order.
//
// With no students the response is emptyStatus: 200 with [] (never null),
// or 204 with no body.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(storage storage.Storage, emptyStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all students")

		students, err := storage.GetStudents(r.Context())
		if err != nil {
			writeStorageError(w, storage, "listing students", "", err)
			return
		}

		if len(students) == 0 {
			if emptyStatus == http.StatusNoContent {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			students = []types.Student{}
		}

		_ = response.WriteJSON(w, http.StatusOK, students)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT {base}/update/{id} (legacy) or PUT {base}/{id} (rest).
//
// Only fields with a non-zero value in the body overwrite the stored ones;
// everything else is kept. An empty body is accepted and changes nothing.
//
// Error responses:
//
//	400 Bad Request  invalid id, malformed JSON, or the save was rejected
//	404 Not Found    no student with this id
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(storage storage.Storage) http.HandlerFunc {
	return modify(storage, false)
}

// ─────────────────────────────────────────────────────────────────────────────
// Patch handles PATCH {base}/upload/{id} (legacy) or PATCH {base}/{id} (rest).
//
// Same as Update, except that a body with no field set is rejected with
// 400 after the student has been found. The stored record is untouched.
// ─────────────────────────────────────────────────────────────────────────────
func Patch(storage storage.Storage) http.HandlerFunc {
	return modify(storage, true)
}

func modify(store storage.Storage, requireField bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("updating a student", slog.String("id", id), slog.Bool("partial", requireField))

		input, ok := decodeInput(w, r)
		if !ok {
			return
		}

		student, err := store.GetStudentByID(r.Context(), id)
		if err != nil {
			writeStorageError(w, store, "loading student for update", id, err)
			return
		}

		if requireField && input.IsEmpty() {
			_ = response.WriteError(w, response.BadRequest, msgNothingToSave)
			return
		}

		input.ApplyTo(&student)

		updated, err := store.UpdateStudentByID(r.Context(), id, student)
		if err != nil {
			if errors.Is(err, connection.ErrNotConnected) ||
				errors.Is(err, storage.ErrNotFound) ||
				errors.Is(err, context.DeadlineExceeded) {
				writeStorageError(w, store, "updating student", id, err)
				return
			}
			slog.Error("error saving student",
				slog.String("id", id),
				slog.String("error", err.Error()))
			_ = response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(response.BadRequest, err))
			return
		}

		slog.Info("student updated", slog.String("id", id))
		_ = response.WriteJSON(w, http.StatusOK, updated)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE {base}/drop/user/{id} (legacy) or DELETE {base}/{id}.
//
// Success response (200 OK):
//
//	{ "message": "Student deleted" }
//
// ─────────────────────────────────────────────────────────────────────────────
func Delete(storage storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("deleting a student", slog.String("id", id))

		if _, err := storage.GetStudentByID(r.Context(), id); err != nil {
			writeStorageError(w, storage, "loading student for delete", id, err)
			return
		}

		if err := storage.DeleteStudentByID(r.Context(), id); err != nil {
			writeStorageError(w, storage, "deleting student", id, err)
			return
		}

		slog.Info("student deleted", slog.String("id", id))
		_ = response.WriteJSON(w, http.StatusOK, map[string]string{"message": msgDeleted})
	}
}

// pathID returns the {id} segment in lower case, or writes 400 and reports
// false when it is not a valid identifier.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		id = chi.URLParam(r, "id")
	}
	if !storage.ValidID(id) {
		_ = response.WriteError(w, response.InvalidInput, msgInvalidID)
		return "", false
	}
	return strings.ToLower(id), true
}

// decodeInput reads the JSON body. An empty body yields the zero input.
func decodeInput(w http.ResponseWriter, r *http.Request) (types.StudentInput, bool) {
	var input types.StudentInput

	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil && !errors.Is(err, io.EOF) {
		_ = response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(response.BadRequest, err))
		return input, false
	}

	return input, true
}

// writeStorageError maps a storage error to its response. A 503 reports the
// store's current state when it exposes one.
func writeStorageError(w http.ResponseWriter, store storage.Storage, op, id string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		_ = response.WriteError(w, response.NotFound, msgNotFound)
	case errors.Is(err, connection.ErrNotConnected):
		state := connection.Disconnected
		if sr, ok := store.(middleware.StateReader); ok {
			if current := sr.State(); current != connection.Connected {
				state = current
			}
		}
		slog.Warn("database unavailable",
			slog.String("op", op),
			slog.String("state", state.String()))
		middleware.WriteUnavailable(w, state)
	case errors.Is(err, context.DeadlineExceeded):
		slog.Warn("request timed out", slog.String("op", op), slog.String("id", id))
		_ = response.WriteError(w, response.Timeout, "the request timed out")
	default:
		slog.Error("error "+op,
			slog.String("id", id),
			slog.String("error", err.Error()))
		_ = response.WriteError(w, response.InternalError, "an internal server error occurred")
	}
}

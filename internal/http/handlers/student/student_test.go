package student_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/students-api/internal/connection"
	"github.com/aanand-mishra/students-api/internal/http/handlers/student"
	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
)

// memStore is an in-memory storage.Storage. err, when set, is returned by
// every call; saveErr only by UpdateStudentByID.
type memStore struct {
	mu      sync.Mutex
	order   []string
	byID    map[string]types.Student
	next    int
	calls   int
	err     error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]types.Student{}}
}

func (m *memStore) CreateStudent(_ context.Context, s types.Student) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return types.Student{}, m.err
	}
	m.next++
	s.ID = fmt.Sprintf("%024x", m.next)
	m.byID[s.ID] = s
	m.order = append(m.order, s.ID)
	return s, nil
}

func (m *memStore) GetStudentByID(_ context.Context, id string) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return types.Student{}, m.err
	}
	s, ok := m.byID[id]
	if !ok {
		return types.Student{}, fmt.Errorf("get student %s: %w", id, storage.ErrNotFound)
	}
	return s, nil
}

func (m *memStore) GetStudents(context.Context) ([]types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []types.Student
	for _, id := range m.order {
		if s, ok := m.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStudentByID(_ context.Context, id string, s types.Student) (types.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return types.Student{}, m.err
	}
	if m.saveErr != nil {
		return types.Student{}, m.saveErr
	}
	if _, ok := m.byID[id]; !ok {
		return types.Student{}, storage.ErrNotFound
	}
	s.ID = id
	m.byID[id] = s
	return s, nil
}

func (m *memStore) DeleteStudentByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memStore) seed(t *testing.T, s types.Student) types.Student {
	t.Helper()
	created, err := m.CreateStudent(context.Background(), s)
	require.NoError(t, err)
	return created
}

var ana = types.Student{Name: "Ana", Age: 20, Email: "ana@x.io", Phone: "555", Address: "Main St"}

const missingID = "65a1f0c2b3d4e5f601234567"

func serve(h http.HandlerFunc, method, target, body, id string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if id != "" {
		req.SetPathValue("id", id)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestNew_Created(t *testing.T) {
	store := newMemStore()

	rec := serve(student.New(store), http.MethodPost, "/api/students/new",
		`{"name":"Ana","age":20,"email":"ana@x.io","phone":"555","address":"Main St"}`, "")

	require.Equal(t, http.StatusCreated, rec.Code)
	got := decode[types.Student](t, rec)
	assert.True(t, storage.ValidID(got.ID))
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, 20.0, got.Age)

	list, err := store.GetStudents(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNew_FractionalAge(t *testing.T) {
	store := newMemStore()

	rec := serve(student.New(store), http.MethodPost, "/api/students/new",
		`{"name":"Ana","age":21.5,"email":"ana@x.io","phone":"555","address":"Main St"}`, "")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 21.5, decode[types.Student](t, rec).Age)
}

func TestNew_EmailIsFreeText(t *testing.T) {
	rec := serve(student.New(newMemStore()), http.MethodPost, "/api/students/new",
		`{"name":"Ana","age":20,"email":"ana at x","phone":"555","address":"Main St"}`, "")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "ana at x", decode[types.Student](t, rec).Email)
}

func TestNew_MissingFields(t *testing.T) {
	for name, body := range map[string]string{
		"missing phone": `{"name":"Ana","age":20,"email":"ana@x.io","address":"Main St"}`,
		"empty name":    `{"name":"","age":20,"email":"ana@x.io","phone":"555","address":"Main St"}`,
		"empty object":  `{}`,
		"empty body":    ``,
	} {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			rec := serve(student.New(store), http.MethodPost, "/api/students/new", body, "")

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			resp := decode[map[string]any](t, rec)
			assert.Equal(t, "UNPROCESSABLE_INPUT", resp["code"])
			assert.Equal(t, "Please fill all the fields", resp["error"])
			assert.NotEmpty(t, resp["details"])
			assert.Zero(t, store.callCount(), "nothing persisted")
		})
	}
}

func TestNew_MalformedJSON(t *testing.T) {
	store := newMemStore()
	rec := serve(student.New(store), http.MethodPost, "/api/students/new", `{"name":`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decode[map[string]any](t, rec)["code"])
	assert.Zero(t, store.callCount())
}

func TestNew_StorageErrors(t *testing.T) {
	body := `{"name":"Ana","age":20,"email":"ana@x.io","phone":"555","address":"Main St"}`

	store := newMemStore()
	store.err = connection.ErrNotConnected
	rec := serve(student.New(store), http.MethodPost, "/api/students/new", body, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decode[map[string]any](t, rec)["code"])

	store.err = errors.New("disk full")
	rec = serve(student.New(store), http.MethodPost, "/api/students/new", body, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp["code"])
	assert.NotContains(t, resp["error"], "disk full")
}

// stateStore is a memStore that also reports a connection state.
type stateStore struct {
	*memStore
	state connection.State
}

func (s stateStore) State() connection.State { return s.state }

func TestStorageErrors_UnavailableReportsState(t *testing.T) {
	body := `{"name":"Ana","age":20,"email":"ana@x.io","phone":"555","address":"Main St"}`

	for _, tc := range []struct {
		state connection.State
		name  string
		code  int
	}{
		{connection.Connecting, "connecting", 2},
		{connection.Disconnecting, "disconnecting", 3},
		{connection.Disconnected, "disconnected", 0},
		// The state flipped back before the error was written.
		{connection.Connected, "disconnected", 0},
	} {
		t.Run(tc.state.String(), func(t *testing.T) {
			store := stateStore{memStore: newMemStore(), state: tc.state}
			store.err = fmt.Errorf("create: %w", connection.ErrNotConnected)

			rec := serve(student.New(store), http.MethodPost, "/api/students/new", body, "")
			require.Equal(t, http.StatusServiceUnavailable, rec.Code)

			resp := decode[map[string]any](t, rec)
			assert.Equal(t, "SERVICE_UNAVAILABLE", resp["code"])
			assert.Equal(t, tc.name, resp["database_state"])
			assert.EqualValues(t, tc.code, resp["database_code"])
		})
	}
}

func TestStorageErrors_DeadlineIsGatewayTimeout(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)
	store.err = fmt.Errorf("find: %w", context.DeadlineExceeded)

	rec := serve(student.GetList(store, http.StatusOK), http.MethodGet, "/api/students", "", "")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":"TIMEOUT","error":"the request timed out"}`, rec.Body.String())

	store.err = nil
	store.saveErr = context.DeadlineExceeded
	rec = serve(student.Update(store), http.MethodPut, "/api/students/update/"+s.ID, `{"name":"Ann"}`, s.ID)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestGetByID(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)

	rec := serve(student.GetByID(store), http.MethodGet, "/api/students/"+s.ID, "", s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, s, decode[types.Student](t, rec))
}

func TestGetByID_UppercaseID(t *testing.T) {
	const id = "65a1f0c2b3d4e5f6abcdef01"
	store := newMemStore()
	s := ana
	s.ID = id
	store.byID[id] = s

	upper := strings.ToUpper(id)
	rec := serve(student.GetByID(store), http.MethodGet, "/api/students/"+upper, "", upper)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, s, decode[types.Student](t, rec))
}

func TestGetByID_InvalidID(t *testing.T) {
	for _, id := range []string{"abc", "", "65a1f0c2b3d4e5f60123456z", "65a1f0c2b3d4e5f6012345678"} {
		store := newMemStore()
		rec := serve(student.GetByID(store), http.MethodGet, "/api/students/x", "", id)

		assert.Equal(t, http.StatusBadRequest, rec.Code, id)
		assert.JSONEq(t, `{"status":"error","code":"INVALID_INPUT","error":"Invalid or missing ID format"}`, rec.Body.String())
		assert.Zero(t, store.callCount(), "storage must not be queried")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	rec := serve(student.GetByID(newMemStore()), http.MethodGet, "/api/students/"+missingID, "", missingID)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":"NOT_FOUND","error":"Student not found"}`, rec.Body.String())
}

func TestGetList(t *testing.T) {
	store := newMemStore()
	first := store.seed(t, ana)
	second := store.seed(t, types.Student{Name: "Bo", Age: 30, Email: "bo@x.io", Phone: "1", Address: "2nd"})

	rec := serve(student.GetList(store, http.StatusOK), http.MethodGet, "/api/students", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []types.Student{first, second}, decode[[]types.Student](t, rec))
}

func TestGetList_Empty(t *testing.T) {
	rec := serve(student.GetList(newMemStore(), http.StatusOK), http.MethodGet, "/api/students", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(student.GetList(newMemStore(), http.StatusNoContent), http.MethodGet, "/api/students", "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestUpdate_MergesSuppliedFields(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)

	rec := serve(student.Update(store), http.MethodPut, "/api/students/update/"+s.ID, `{"age":21}`, s.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	want := s
	want.Age = 21
	assert.Equal(t, want, decode[types.Student](t, rec))

	// Applying the same body again gives the same record.
	rec = serve(student.Update(store), http.MethodPut, "/api/students/update/"+s.ID, `{"age":21}`, s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, want, decode[types.Student](t, rec))
}

func TestUpdate_EmptyBodyChangesNothing(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)

	rec := serve(student.Update(store), http.MethodPut, "/api/students/update/"+s.ID, "", s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, s, decode[types.Student](t, rec))
}

func TestUpdate_Errors(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)

	rec := serve(student.Update(store), http.MethodPut, "/api/students/update/nope", `{"age":21}`, "nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode[map[string]any](t, rec)["code"])

	rec = serve(student.Update(store), http.MethodPut, "/api/students/update/"+missingID, `{"age":21}`, missingID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(student.Update(store), http.MethodPut, "/api/students/update/"+s.ID, `{"age":`, s.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", decode[map[string]any](t, rec)["code"])
}

func TestUpdate_SaveFailureIsBadRequest(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)
	store.saveErr = errors.New("document failed validation")

	rec := serve(student.Update(store), http.MethodPut, "/api/students/update/"+s.ID, `{"name":"Ann"}`, s.ID)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status":"error","code":"BAD_REQUEST","error":"document failed validation"}`, rec.Body.String())
}

func TestUpdate_LostConnection(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)
	store.saveErr = fmt.Errorf("update: %w", connection.ErrNotConnected)

	rec := serve(student.Update(store), http.MethodPut, "/api/students/update/"+s.ID, `{"name":"Ann"}`, s.ID)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPatch(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)

	rec := serve(student.Patch(store), http.MethodPatch, "/api/students/upload/"+s.ID, `{"email":"ana@new.io"}`, s.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[types.Student](t, rec)
	assert.Equal(t, "ana@new.io", got.Email)
	assert.Equal(t, s.Name, got.Name)
}

func TestPatch_RequiresAField(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)

	for _, body := range []string{`{}`, ``, `{"name":"","age":0}`} {
		rec := serve(student.Patch(store), http.MethodPatch, "/api/students/upload/"+s.ID, body, s.ID)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"status":"error","code":"BAD_REQUEST","error":"At least one field must be provided for update"}`, rec.Body.String())
	}

	stored, err := store.GetStudentByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, stored)
}

func TestPatch_NotFoundBeforeEmptyCheck(t *testing.T) {
	rec := serve(student.Patch(newMemStore()), http.MethodPatch, "/api/students/upload/"+missingID, `{}`, missingID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete(t *testing.T) {
	store := newMemStore()
	s := store.seed(t, ana)

	rec := serve(student.Delete(store), http.MethodDelete, "/api/students/drop/user/"+s.ID, "", s.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Student deleted"}`, rec.Body.String())

	rec = serve(student.GetByID(store), http.MethodGet, "/api/students/"+s.ID, "", s.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(student.Delete(store), http.MethodDelete, "/api/students/drop/user/"+s.ID, "", s.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete_InvalidID(t *testing.T) {
	store := newMemStore()
	rec := serve(student.Delete(store), http.MethodDelete, "/api/students/drop/user/1", "", "1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, store.callCount())
}

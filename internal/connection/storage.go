package connection

import (
	"context"

	"github.com/aanand-mishra/students-api/internal/storage"
	"github.com/aanand-mishra/students-api/internal/types"
)

// Manager satisfies storage.Storage by forwarding to the live connection.
var _ storage.Storage = (*Manager)(nil)

func (m *Manager) current() (storage.Storage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state != Connected || m.conn == nil {
		return nil, ErrNotConnected
	}
	return m.conn, nil
}

func (m *Manager) CreateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	s, err := m.current()
	if err != nil {
		return types.Student{}, err
	}
	return s.CreateStudent(ctx, student)
}

func (m *Manager) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	s, err := m.current()
	if err != nil {
		return types.Student{}, err
	}
	return s.GetStudentByID(ctx, id)
}

func (m *Manager) GetStudents(ctx context.Context) ([]types.Student, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	return s.GetStudents(ctx)
}

func (m *Manager) UpdateStudentByID(ctx context.Context, id string, student types.Student) (types.Student, error) {
	s, err := m.current()
	if err != nil {
		return types.Student{}, err
	}
	return s.UpdateStudentByID(ctx, id, student)
}

func (m *Manager) DeleteStudentByID(ctx context.Context, id string) error {
	s, err := m.current()
	if err != nil {
		return err
	}
	return s.DeleteStudentByID(ctx, id)
}

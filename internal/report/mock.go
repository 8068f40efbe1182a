package report

import (
	"context"
	"sync"
)

var (
	_ ReportStore = (*MockStore)(nil)
	_ Notifier    = (*MockNotifier)(nil)
)

// MockStore is an in-memory ReportStore for testing.
type MockStore struct {
	mu sync.Mutex

	InsertFunc func(ctx context.Context, r *Report) error

	Reports []Report
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Insert(ctx context.Context, r *Report) error {
	m.mu.Lock()
	fn := m.InsertFunc
	m.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, r); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, *r)
	return nil
}

func (m *MockStore) ListPending(_ context.Context, limit int) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Report
	for _, r := range m.Reports {
		if r.Status == StatusPending && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

// MockNotifier records report notifications.
type MockNotifier struct {
	mu sync.Mutex

	Err   error
	Calls []*Report
}

func (m *MockNotifier) SendReportNotification(_ context.Context, r *Report, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, r)
	return m.Err
}

func (m *MockNotifier) Notified() []*Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Report(nil), m.Calls...)
}

package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/permit-dashboard-api/internal/models"
	"github.com/permit-dashboard-api/internal/repository"
)

// MockLayoutRepository is a mock implementation of LayoutRepository
type MockLayoutRepository struct {
	Layouts        map[string][]models.LayoutPlacement
	GetError       error
	ReplaceError   error
	DeleteError    error
	ReplaceAllFunc func(ctx context.Context, userID string, placements []models.LayoutPlacement) error
	ReplaceCalls   int
}

var _ repository.LayoutRepository = (*MockLayoutRepository)(nil)

func NewMockLayoutRepository() *MockLayoutRepository {
	return &MockLayoutRepository{
		Layouts: make(map[string][]models.LayoutPlacement),
	}
}

func (m *MockLayoutRepository) GetPlacements(ctx context.Context, userID string) ([]models.LayoutPlacement, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	saved := m.Layouts[userID]
	out := make([]models.LayoutPlacement, len(saved))
	copy(out, saved)
	return out, nil
}

func (m *MockLayoutRepository) ReplaceAll(ctx context.Context, userID string, placements []models.LayoutPlacement) error {
	m.ReplaceCalls++
	if m.ReplaceAllFunc != nil {
		return m.ReplaceAllFunc(ctx, userID, placements)
	}
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	saved := make([]models.LayoutPlacement, len(placements))
	copy(saved, placements)
	m.Layouts[userID] = saved
	return nil
}

func (m *MockLayoutRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	if m.DeleteError != nil {
		return 0, m.DeleteError
	}
	n := int64(len(m.Layouts[userID]))
	delete(m.Layouts, userID)
	return n, nil
}

func (m *MockLayoutRepository) CountUsers(ctx context.Context) (int, error) {
	return len(m.Layouts), nil
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	Users        map[string]*models.User
	GetError     error
	GetByIDCalls int
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*models.User),
	}
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *models.User) error {
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.GetByIDCalls++
	if m.GetError != nil {
		return nil, m.GetError
	}
	user, ok := m.Users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (m *MockUserRepository) List(ctx context.Context, limit int) ([]*models.User, error) {
	users := make([]*models.User, 0, len(m.Users))
	for _, u := range m.Users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	return len(m.Users), nil
}

// MockJobRepository is a mock implementation of JobRepository. It is safe
// for use by the concurrent job processor.
type MockJobRepository struct {
	mu          sync.Mutex
	Jobs        map[string]*models.ExportJob
	CreateError error
	UpdateError error
}

var _ repository.JobRepository = (*MockJobRepository)(nil)

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		Jobs: make(map[string]*models.ExportJob),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return m.CreateError
	}
	cp := *job
	m.Jobs[job.ID] = &cp
	return nil
}

func (m *MockJobRepository) Update(ctx context.Context, job *models.ExportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	cp := *job
	m.Jobs[job.ID] = &cp
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (m *MockJobRepository) GetPendingJobs(ctx context.Context, limit int) ([]*models.ExportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*models.ExportJob
	for _, job := range m.Jobs {
		if job.Status == models.JobStatusPending {
			cp := *job
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (m *MockJobRepository) MarkJobAsProcessing(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, exists := m.Jobs[jobID]
	if !exists || job.Status != models.JobStatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	return true, nil
}

func (m *MockJobRepository) Requeue(ctx context.Context, jobID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, exists := m.Jobs[jobID]
	if !exists || job.Status != models.JobStatusProcessing {
		return false, nil
	}
	job.Status = models.JobStatusPending
	job.StartedAt = nil
	return true, nil
}

func (m *MockJobRepository) RequeueProcessing(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, job := range m.Jobs {
		if job.Status == models.JobStatusProcessing {
			job.Status = models.JobStatusPending
			job.StartedAt = nil
			n++
		}
	}
	return n, nil
}

// Job returns a copy of the stored job
func (m *MockJobRepository) Job(id string) *models.ExportJob {
	job, _ := m.GetByID(context.Background(), id)
	return job
}

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mu     sync.Mutex
	Events []*models.AuditEvent
	Runs   []*models.JobRun
}

var _ repository.AuditRepository = (*MockAuditRepository)(nil)

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Record(ctx context.Context, event *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]*models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditEvent
	for i := len(m.Events) - 1; i >= 0; i-- {
		e := m.Events[i]
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MockAuditRepository) RecordRun(ctx context.Context, run *models.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, run)
	return nil
}

func (m *MockAuditRepository) ListRuns(ctx context.Context, jobName string, limit int) ([]*models.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobRun
	for i := len(m.Runs) - 1; i >= 0; i-- {
		if jobName == "" || m.Runs[i].JobName == jobName {
			out = append(out, m.Runs[i])
		}
	}
	return out, nil
}

// Actions returns the recorded audit actions in order
func (m *MockAuditRepository) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		actions = append(actions, e.Action)
	}
	return actions
}

// MockPermitRepository is a mock implementation of PermitRepository
type MockPermitRepository struct {
	Permits          map[string]*models.Permit
	BatchUpsertFunc  func(ctx context.Context, permits []*models.Permit) (int, error)
	BatchUpsertCalls int
	QueryError       error
}

var _ repository.PermitRepository = (*MockPermitRepository)(nil)

func NewMockPermitRepository() *MockPermitRepository {
	return &MockPermitRepository{
		Permits: make(map[string]*models.Permit),
	}
}

func (m *MockPermitRepository) BatchUpsert(ctx context.Context, permits []*models.Permit) (int, error) {
	m.BatchUpsertCalls++
	if m.BatchUpsertFunc != nil {
		return m.BatchUpsertFunc(ctx, permits)
	}
	for _, p := range permits {
		m.Permits[p.PermitNumber] = p
	}
	return len(permits), nil
}

func (m *MockPermitRepository) Query(ctx context.Context, filter models.PermitFilter) ([]*models.Permit, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	out := make([]*models.Permit, 0, len(m.Permits))
	for _, p := range m.Permits {
		if filter.Department != "" && p.ActionByDept != filter.Department {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PermitNumber < out[j].PermitNumber })
	return out, nil
}

func (m *MockPermitRepository) FilterOptions(ctx context.Context) (*models.FilterOptions, error) {
	return &models.FilterOptions{Years: []int{}, Months: []int{}, Departments: []string{}}, nil
}

func (m *MockPermitRepository) Count(ctx context.Context) (int, error) {
	return len(m.Permits), nil
}

package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/melih/lighthouse-notebooks/internal/core/domain"
)

type fakeContainer struct {
	spec    domain.RunSpec
	status  string
	port    string
	removed bool
}

// fakeRuntime is an in-memory ContainerRuntime.
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*fakeContainer
	nextID     int

	runErr     error
	stopErr    error
	inspectErr error
	noPort     bool

	stopDeadlines []time.Time
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: make(map[string]*fakeContainer)}
}

func (r *fakeRuntime) Run(ctx context.Context, spec domain.RunSpec) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runErr != nil {
		return "", r.runErr
	}
	r.nextID++
	id := "c" + string(rune('0'+r.nextID)) + "0123456789abcdef"
	port := "32768"
	if r.noPort {
		port = ""
	}
	r.containers[id] = &fakeContainer{spec: spec, status: "running", port: port}
	return id, nil
}

func (r *fakeRuntime) Inspect(ctx context.Context, id string) (*domain.ContainerAttrs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inspectErr != nil {
		return nil, r.inspectErr
	}
	c, ok := r.containers[id]
	if !ok || c.removed {
		return nil, domain.ErrNotFound
	}
	attrs := &domain.ContainerAttrs{
		ID:     id,
		Name:   c.spec.Name,
		Image:  c.spec.Image,
		Status: c.status,
		Labels: c.spec.Labels,
		Ports:  map[string]string{},
	}
	if c.port != "" {
		attrs.Ports["8888/tcp"] = c.port
	}
	return attrs, nil
}

func (r *fakeRuntime) Stop(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		r.stopDeadlines = append(r.stopDeadlines, deadline)
	}
	if r.stopErr != nil {
		return r.stopErr
	}
	c, ok := r.containers[id]
	if !ok || c.removed {
		return domain.ErrNotFound
	}
	c.status = "exited"
	return nil
}

func (r *fakeRuntime) Remove(ctx context.Context, id string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok || c.removed {
		return domain.ErrNotFound
	}
	if c.status == "running" && !force {
		return &domain.RuntimeError{Op: "remove", Detail: "container is running"}
	}
	c.removed = true
	return nil
}

func (r *fakeRuntime) List(ctx context.Context, labels map[string]string) ([]domain.ContainerAttrs, error) {
	var out []domain.ContainerAttrs
	for id := range r.containers {
		attrs, err := r.Inspect(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *attrs)
	}
	return out, nil
}

func (r *fakeRuntime) live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.containers {
		if !c.removed {
			n++
		}
	}
	return n
}

func (r *fakeRuntime) only() (string, *fakeContainer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.containers {
		return id, c
	}
	return "", nil
}

// memStore is an in-memory RecordStore and UserStore.
type memStore struct {
	mu      sync.Mutex
	records map[string]*domain.ContainerRecord
	users   map[string]*domain.User

	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[string]*domain.ContainerRecord),
		users:   make(map[string]*domain.User),
	}
}

func (s *memStore) Insert(ctx context.Context, rec *domain.ContainerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	cp := *rec
	s.records[rec.ContainerID] = &cp
	return nil
}

func (s *memStore) FindByContainerID(ctx context.Context, id string) (*domain.ContainerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) FindByName(ctx context.Context, name string) (*domain.ContainerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Name == name {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (s *memStore) ListByUser(ctx context.Context, userID string) ([]*domain.ContainerRecord, error) {
	return s.filter(func(r *domain.ContainerRecord) bool { return r.UserID == userID }), nil
}

func (s *memStore) ListByStatus(ctx context.Context, status domain.ContainerStatus) ([]*domain.ContainerRecord, error) {
	return s.filter(func(r *domain.ContainerRecord) bool { return r.Status == status }), nil
}

func (s *memStore) filter(keep func(*domain.ContainerRecord) bool) []*domain.ContainerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ContainerRecord
	for _, rec := range s.records {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContainerID < out[j].ContainerID })
	return out
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, status domain.ContainerStatus, detail string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	rec.Status = status
	rec.Error = detail
	return true, nil
}

func (s *memStore) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memStore) UpdateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, body)
	return nil
}

var errBoom = errors.New("boom")

package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"github.com/movian/movian-api/internal/domain"
	"github.com/movian/movian-api/internal/repository"
	repogomock "github.com/movian/movian-api/internal/repository/gomock"
	"github.com/movian/movian-api/internal/security"
)

type tNop struct{}

func (tNop) Errorf(string, ...any) {}
func (tNop) Fatalf(string, ...any) {}
func (tNop) Helper()               {}

// userRepoState is an in-memory UserRepository with the same uniqueness rules
// as the real stores.
type userRepoState struct {
	mu    sync.Mutex
	byID  map[string]*domain.User
	clock time.Time
}

func newUserRepoState() *userRepoState {
	return &userRepoState{
		byID:  map[string]*domain.User{},
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *userRepoState) FindByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userRepoState) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.findBy(func(u *domain.User) bool { return u.Email == email })
}

func (s *userRepoState) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.findBy(func(u *domain.User) bool { return u.Username == username })
}

func (s *userRepoState) findBy(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *userRepoState) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	s.clock = s.clock.Add(time.Second)
	user.CreatedAt = s.clock
	user.UpdatedAt = s.clock
	cp := *user
	s.byID[user.ID] = &cp
	return nil
}

func (s *userRepoState) Update(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	for _, other := range s.byID {
		if other.ID == id {
			continue
		}
		if v, ok := fields[repository.UserFieldEmail]; ok && other.Email == v {
			return repository.ErrDuplicate
		}
		if v, ok := fields[repository.UserFieldUsername]; ok && other.Username == v {
			return repository.ErrDuplicate
		}
	}
	for k, v := range fields {
		switch k {
		case repository.UserFieldUsername:
			u.Username = v.(string)
		case repository.UserFieldEmail:
			u.Email = v.(string)
		case repository.UserFieldDOB:
			u.DOB = v.(string)
		case repository.UserFieldAvatar:
			u.Avatar = v.(string)
		case repository.UserFieldPasswordHash:
			u.PasswordHash = v.(string)
		case repository.UserFieldIsBanned:
			u.IsBanned = v.(bool)
		case repository.UserFieldIsVerified:
			u.IsVerified = v.(bool)
		case repository.UserFieldRole:
			u.Role = v.(string)
		}
	}
	u.UpdatedAt = s.clock
	return nil
}

func (s *userRepoState) ListPaged(_ context.Context, req repository.PageRequest) (repository.PageResult[domain.User], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]domain.User, 0, len(s.byID))
	for _, u := range s.byID {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	req = req.Normalized()
	start := min(req.Offset(), len(all))
	end := min(start+req.PageSize, len(all))
	return repository.PageResult[domain.User]{
		Items:    all[start:end],
		Page:     req.Page,
		PageSize: req.PageSize,
		Total:    int64(len(all)),
	}, nil
}

type pendingRepoState struct {
	mu      sync.Mutex
	byEmail map[string]*domain.PendingVerification
}

func newPendingRepoState() *pendingRepoState {
	return &pendingRepoState{byEmail: map[string]*domain.PendingVerification{}}
}

func (s *pendingRepoState) Upsert(_ context.Context, p *domain.PendingVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byEmail[p.Email]; ok {
		p.ID = existing.ID
	} else if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	s.byEmail[p.Email] = &cp
	return nil
}

func (s *pendingRepoState) FindByToken(_ context.Context, token string) (*domain.PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byEmail {
		if p.Token == token {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPendingNotFound
}

func (s *pendingRepoState) FindByEmail(_ context.Context, email string) (*domain.PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrPendingNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *pendingRepoState) DeleteByToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for email, p := range s.byEmail {
		if p.Token == token {
			delete(s.byEmail, email)
			return nil
		}
	}
	return repository.ErrPendingNotFound
}

func (s *pendingRepoState) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for email, p := range s.byEmail {
		if p.Expired(now) {
			delete(s.byEmail, email)
			n++
		}
	}
	return n, nil
}

func (s *pendingRepoState) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

type emailNotifierState struct {
	mu   sync.Mutex
	sent []VerificationNotification
	fail error
}

func (n *emailNotifierState) SendEmailVerification(_ context.Context, v VerificationNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, v)
	return nil
}

func (n *emailNotifierState) last() VerificationNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return VerificationNotification{}
	}
	return n.sent[len(n.sent)-1]
}

type passwordNotifierState struct {
	mu   sync.Mutex
	sent []PasswordResetNotification
	fail error
}

func (n *passwordNotifierState) SendPasswordReset(_ context.Context, v PasswordResetNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, v)
	return nil
}

func (n *passwordNotifierState) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// newUserRepoMock wires a gomock UserRepository to in-memory state.
func newUserRepoMock(state *userRepoState) *repogomock.MockUserRepository {
	ctrl := gomock.NewController(tNop{})
	m := repogomock.NewMockUserRepository(ctrl)
	m.EXPECT().FindByID(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.FindByID)
	m.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.FindByEmail)
	m.EXPECT().FindByUsername(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.FindByUsername)
	m.EXPECT().Create(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.Create)
	m.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.Update)
	m.EXPECT().ListPaged(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.ListPaged)
	return m
}

func newPendingRepoMock(state *pendingRepoState) *repogomock.MockPendingVerificationRepository {
	ctrl := gomock.NewController(tNop{})
	m := repogomock.NewMockPendingVerificationRepository(ctrl)
	m.EXPECT().Upsert(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.Upsert)
	m.EXPECT().FindByToken(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.FindByToken)
	m.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.FindByEmail)
	m.EXPECT().DeleteByToken(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.DeleteByToken)
	m.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(state.DeleteExpired)
	return m
}

func seedUser(t *testing.T, state *userRepoState, hasher *security.PasswordHasher, username, email, password string, mutate func(*domain.User)) *domain.User {
	t.Helper()
	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		DOB:          "1990-05-17",
		Role:         domain.RoleUser,
		IsVerified:   true,
	}
	if mutate != nil {
		mutate(u)
	}
	if err := state.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"elkayan/internal/model"
	"elkayan/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.UserAccount) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.UserAccount) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash, rememberToken string) error {
	args := m.Called(ctx, id, passwordHash, rememberToken)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.UserAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.UserAccount, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserAccount), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) FindProfile(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserProfile), args.Error(1)
}

func (m *MockUserRepository) SaveProfile(ctx context.Context, profile *model.UserProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockUserRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.UserRepository) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// MockResetTokenRepository is a mock implementation of ResetTokenRepository.
type MockResetTokenRepository struct {
	mock.Mock
}

func (m *MockResetTokenRepository) Issue(ctx context.Context, email, tokenHash string, ttl time.Duration) (*model.PasswordResetToken, error) {
	args := m.Called(ctx, email, tokenHash, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PasswordResetToken), args.Error(1)
}

func (m *MockResetTokenRepository) Find(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PasswordResetToken), args.Error(1)
}

func (m *MockResetTokenRepository) Redeem(ctx context.Context, tokenHash string, fn repository.RedeemFunc) error {
	args := m.Called(ctx, tokenHash, fn)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendPasswordResetLink(ctx context.Context, user *model.UserAccount, resetURL string) error {
	args := m.Called(ctx, user, resetURL)
	return args.Error(0)
}

func (m *MockNotifier) SendPasswordChangedNotice(ctx context.Context, user *model.UserAccount, resetURL string) error {
	args := m.Called(ctx, user, resetURL)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PasswordReset(ctx context.Context, user *model.UserAccount) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockSessionRevoker is a mock implementation of SessionRevoker.
type MockSessionRevoker struct {
	mock.Mock
}

func (m *MockSessionRevoker) RevokeUser(ctx context.Context, userID, exceptID string) (int, error) {
	args := m.Called(ctx, userID, exceptID)
	return args.Int(0), args.Error(1)
}

// fakeSession records session transitions in memory.
type fakeSession struct {
	mu            sync.Mutex
	id            string
	userID        uuid.UUID
	csrf          string
	rotations     int
	establishErr  error
	invalidateErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{id: uuid.NewString(), csrf: uuid.NewString()}
}

func (s *fakeSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *fakeSession) UserID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != uuid.Nil
}

func (s *fakeSession) Establish(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.establishErr != nil {
		return s.establishErr
	}
	s.userID = userID
	s.id = uuid.NewString()
	s.rotations++
	return nil
}

func (s *fakeSession) RegenerateID(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.rotations++
	return nil
}

func (s *fakeSession) RegenerateToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf = uuid.NewString()
	return nil
}

func (s *fakeSession) Invalidate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidateErr != nil {
		return s.invalidateErr
	}
	s.userID = uuid.Nil
	s.id = uuid.NewString()
	return nil
}

// memoryUsers is an in-memory UserRepository with a unique email index.
type memoryUsers struct {
	mu       sync.Mutex
	users    map[uuid.UUID]model.UserAccount
	profiles map[uuid.UUID]model.UserProfile
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{
		users:    map[uuid.UUID]model.UserAccount{},
		profiles: map[uuid.UUID]model.UserProfile{},
	}
}

func (m *memoryUsers) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range m.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (m *memoryUsers) Create(_ context.Context, user *model.UserAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(user.Email, uuid.Nil) {
		return gorm.ErrDuplicatedKey
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user *model.UserAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(user.Email, user.ID) {
		return gorm.ErrDuplicatedKey
	}
	stored := *user
	stored.Profile = nil
	m.users[user.ID] = stored
	return nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash, rememberToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.PasswordHash = passwordHash
	u.RememberToken = rememberToken
	m.users[id] = u
	return nil
}

func (m *memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*model.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*model.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emailTaken(email, uuid.Nil), nil
}

func (m *memoryUsers) FindProfile(_ context.Context, userID uuid.UUID) (*model.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (m *memoryUsers) SaveProfile(_ context.Context, profile *model.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.UserID] = *profile
	return nil
}

func (m *memoryUsers) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.UserRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryUsers) get(id uuid.UUID) model.UserAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

// memoryTokens is an in-memory ResetTokenRepository. Redeem holds the lock
// for the whole callback, like the row lock of the SQL implementation.
type memoryTokens struct {
	mu    sync.Mutex
	users *memoryUsers
	rows  map[string]model.PasswordResetToken
}

func newMemoryTokens(users *memoryUsers) *memoryTokens {
	return &memoryTokens{users: users, rows: map[string]model.PasswordResetToken{}}
}

func (m *memoryTokens) Issue(_ context.Context, email, tokenHash string, ttl time.Duration) (*model.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	t := model.PasswordResetToken{Email: email, TokenHash: tokenHash, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	m.rows[email] = t
	return &t, nil
}

func (m *memoryTokens) Find(_ context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.TokenHash == tokenHash && !t.Expired(time.Now()) {
			found := t
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryTokens) Redeem(ctx context.Context, tokenHash string, fn repository.RedeemFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, t := range m.rows {
		if t.TokenHash != tokenHash {
			continue
		}
		locked := t
		if err := fn(ctx, &locked, m.users); err != nil {
			return err
		}
		delete(m.rows, email)
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *memoryTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

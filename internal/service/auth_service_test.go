package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"idgate/internal/auth"
	errs "idgate/internal/errors"
	"idgate/internal/model"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*model.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindBySocialID(ctx context.Context, provider, providerUserID string) (*model.User, error) {
	args := m.Called(ctx, provider, providerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateSocialProfile(ctx context.Context, userID uuid.UUID, profile *model.SocialProfile) error {
	args := m.Called(ctx, userID, profile)
	return args.Error(0)
}

func (m *MockUserRepository) FindOrCreateBySocialProfile(ctx context.Context, draft *model.User) (*model.User, bool, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.User), args.Bool(1), args.Error(2)
}

func (m *MockUserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockSessionStore is a mock implementation of auth.SessionStoreInterface.
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	args := m.Called(ctx, jti, ttl)
	return args.Error(0)
}

func (m *MockSessionStore) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	args := m.Called(ctx, jti)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionStore) TouchSession(ctx context.Context, userID string, info auth.SessionInfo) error {
	args := m.Called(ctx, userID, info)
	return args.Error(0)
}

func (m *MockSessionStore) GetSession(ctx context.Context, userID string) (*auth.SessionInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.SessionInfo), args.Error(1)
}

func newTestJWT() *auth.JWTService {
	return auth.NewJWTService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func relaxedSessions() *MockSessionStore {
	sessions := new(MockSessionStore)
	sessions.On("TouchSession", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	sessions.On("IsTokenBlacklisted", mock.Anything, mock.Anything).Return(false, nil).Maybe()
	sessions.On("BlacklistToken", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return sessions
}

func hashOf(t *testing.T, password string) *string {
	t.Helper()
	h, err := auth.HashPassword(password)
	require.NoError(t, err)
	return &h
}

func TestAuthService_Register(t *testing.T) {
	existing := &model.User{ID: uuid.New(), Username: "alice"}

	tests := []struct {
		name          string
		username      string
		email         string
		setupMock     func(*MockUserRepository)
		expectedError error
		conflictField string
	}{
		{
			name:     "successful registration",
			username: "alice",
			email:    "alice@x.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "alice").Return(nil, errs.ErrNotFound)
				m.On("FindByEmail", mock.Anything, "alice@x.com").Return(nil, errs.ErrNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
		},
		{
			name:     "username taken",
			username: "alice",
			email:    "other@x.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "alice").Return(existing, nil)
			},
			expectedError: errs.ErrConflict,
			conflictField: "username",
		},
		{
			name:     "email taken",
			username: "bob",
			email:    "alice@x.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "bob").Return(nil, errs.ErrNotFound)
				m.On("FindByEmail", mock.Anything, "alice@x.com").Return(existing, nil)
			},
			expectedError: errs.ErrConflict,
			conflictField: "email",
		},
		{
			name:     "creation race resolves to conflict",
			username: "alice",
			email:    "alice@x.com",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsername", mock.Anything, "alice").Return(nil, errs.ErrNotFound).Once()
				m.On("FindByEmail", mock.Anything, "alice@x.com").Return(nil, errs.ErrNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(errs.ErrConflict)
				m.On("FindByUsername", mock.Anything, "alice").Return(existing, nil).Once()
			},
			expectedError: errs.ErrConflict,
			conflictField: "username",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserRepository)
			tt.setupMock(users)
			svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

			pair, err := svc.Register(context.Background(), tt.username, tt.email, "password123", Client{})

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				var conflict *errs.ConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, tt.conflictField, conflict.Field)
				assert.Nil(t, pair)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, pair.AccessToken)
				assert.NotEmpty(t, pair.RefreshToken)
				assert.Equal(t, int64(900), pair.ExpiresIn)
				assert.Equal(t, tt.username, pair.User.Username)
			}
			users.AssertExpectations(t)
		})
	}
}

func TestAuthService_Register_RejectsAtSignInUsername(t *testing.T) {
	svc := NewAuthService(new(MockUserRepository), newTestJWT(), relaxedSessions(), nil)

	_, err := svc.Register(context.Background(), "alice@host", "alice@x.com", "password123", Client{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	user := &model.User{
		ID:           uuid.New(),
		Username:     "alice",
		PasswordHash: hashOf(t, "password123"),
		Role:         "user",
	}
	users := new(MockUserRepository)
	users.On("FindByUsernameOrEmail", mock.Anything, "alice").Return(user, nil)
	users.On("TouchLastLogin", mock.Anything, user.ID, mock.Anything).Return(nil)

	svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

	pair, err := svc.Authenticate(context.Background(), "alice", "password123", Client{IP: "203.0.113.7"})
	require.NoError(t, err)

	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.Equal(t, user.ID.String(), pair.User.ID)

	// The embedded user must not leak credential material in any shape.
	payload, err := json.Marshal(pair.User)
	require.NoError(t, err)
	assert.False(t, strings.Contains(strings.ToLower(string(payload)), "password"))
	assert.NotContains(t, string(payload), *user.PasswordHash)
}

func TestAuthService_Authenticate_FailuresAreIndistinguishable(t *testing.T) {
	hash := hashOf(t, "password123")

	tests := []struct {
		name       string
		identifier string
		password   string
		setupMock  func(*MockUserRepository)
	}{
		{
			name:       "unknown identifier",
			identifier: "ghost",
			password:   "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsernameOrEmail", mock.Anything, "ghost").Return(nil, errs.ErrNotFound)
			},
		},
		{
			name:       "wrong password",
			identifier: "alice",
			password:   "wrong",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsernameOrEmail", mock.Anything, "alice").
					Return(&model.User{ID: uuid.New(), Username: "alice", PasswordHash: hash}, nil)
			},
		},
		{
			name:       "passwordless oauth-only account",
			identifier: "dave",
			password:   "password123",
			setupMock: func(m *MockUserRepository) {
				m.On("FindByUsernameOrEmail", mock.Anything, "dave").
					Return(&model.User{ID: uuid.New(), Username: "dave", SocialProfiles: []model.SocialProfile{{Provider: "google", ProviderUserID: "g1"}}}, nil)
			},
		},
	}

	var messages []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserRepository)
			tt.setupMock(users)
			svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

			pair, err := svc.Authenticate(context.Background(), tt.identifier, tt.password, Client{})
			assert.Nil(t, pair)
			require.ErrorIs(t, err, errs.ErrInvalidCredentials)
			messages = append(messages, err.Error())
		})
	}

	// Identical error text for all three: no account enumeration.
	for _, msg := range messages {
		assert.Equal(t, messages[0], msg)
	}
}

func TestAuthService_Authenticate_InfrastructureIsNotInvalidCredentials(t *testing.T) {
	users := new(MockUserRepository)
	users.On("FindByUsernameOrEmail", mock.Anything, "alice").
		Return(nil, errs.Infra(errors.New("store timeout")))

	svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

	_, err := svc.Authenticate(context.Background(), "alice", "password123", Client{})
	assert.ErrorIs(t, err, errs.ErrInfrastructure)
	assert.NotErrorIs(t, err, errs.ErrInvalidCredentials)
}

func TestAuthService_Refresh_TamperedTokenSkipsStore(t *testing.T) {
	jwtSvc := newTestJWT()
	token, _, err := jwtSvc.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	users := new(MockUserRepository)
	sessions := new(MockSessionStore)
	svc := NewAuthService(users, jwtSvc, sessions, nil)

	_, err = svc.Refresh(context.Background(), string(tampered), Client{})
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	// Fail fast: no store traffic of any kind on a bad signature.
	users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "IsTokenBlacklisted", mock.Anything, mock.Anything)
}

func TestAuthService_Refresh_ExpiredToken(t *testing.T) {
	expired := auth.NewJWTService("access-secret", "refresh-secret", -2*time.Minute, -time.Minute)
	token, _, err := expired.GenerateRefreshToken(uuid.New())
	require.NoError(t, err)

	users := new(MockUserRepository)
	svc := NewAuthService(users, newTestJWT(), new(MockSessionStore), nil)

	_, err = svc.Refresh(context.Background(), token, Client{})
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
	users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAuthService_Refresh_RotatesPair(t *testing.T) {
	jwtSvc := newTestJWT()
	user := &model.User{ID: uuid.New(), Username: "alice", PasswordHash: hashOf(t, "pw-irrelevant")}

	oldRefresh, oldJTI, err := jwtSvc.GenerateRefreshToken(user.ID)
	require.NoError(t, err)

	users := new(MockUserRepository)
	users.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	sessions := new(MockSessionStore)
	sessions.On("IsTokenBlacklisted", mock.Anything, oldJTI).Return(false, nil)
	sessions.On("TouchSession", mock.Anything, user.ID.String(), mock.Anything).Return(nil)
	sessions.On("BlacklistToken", mock.Anything, oldJTI, mock.Anything).Return(nil)

	svc := NewAuthService(users, jwtSvc, sessions, nil)

	pair, err := svc.Refresh(context.Background(), oldRefresh, Client{})
	require.NoError(t, err)

	// Both tokens replaced; the superseded refresh token is revoked.
	assert.NotEqual(t, oldRefresh, pair.RefreshToken)
	assert.NotEmpty(t, pair.AccessToken)
	sessions.AssertCalled(t, "BlacklistToken", mock.Anything, oldJTI, mock.Anything)
}

func TestAuthService_Refresh_UserDeleted(t *testing.T) {
	jwtSvc := newTestJWT()
	userID := uuid.New()
	token, _, err := jwtSvc.GenerateRefreshToken(userID)
	require.NoError(t, err)

	users := new(MockUserRepository)
	users.On("FindByID", mock.Anything, userID).Return(nil, errs.ErrNotFound)

	svc := NewAuthService(users, jwtSvc, relaxedSessions(), nil)

	_, err = svc.Refresh(context.Background(), token, Client{})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAuthService_ValidateAccess_Revoked(t *testing.T) {
	jwtSvc := newTestJWT()
	token, jti, err := jwtSvc.GenerateAccessToken(uuid.New(), "alice", "user")
	require.NoError(t, err)

	sessions := new(MockSessionStore)
	sessions.On("IsTokenBlacklisted", mock.Anything, jti).Return(true, nil)

	svc := NewAuthService(new(MockUserRepository), jwtSvc, sessions, nil)

	_, err = svc.ValidateAccess(context.Background(), token)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestAuthService_OAuth_ExistingLink(t *testing.T) {
	user := &model.User{
		ID:       uuid.New(),
		Username: "alice",
		SocialProfiles: []model.SocialProfile{
			{Provider: "google", ProviderUserID: "g1"},
		},
	}
	users := new(MockUserRepository)
	users.On("FindBySocialID", mock.Anything, "google", "g1").Return(user, nil)

	svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

	pair, err := svc.HandleOAuthCallback(context.Background(), "google", OAuthProfile{ID: "g1", Email: "a@x.com"}, Client{})
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), pair.User.ID)

	users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "FindOrCreateBySocialProfile", mock.Anything, mock.Anything)
}

func TestAuthService_OAuth_LinkByEmail(t *testing.T) {
	user := &model.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        strPtr("a@x.com"),
		PasswordHash: hashOf(t, "password123"),
	}
	users := new(MockUserRepository)
	users.On("FindBySocialID", mock.Anything, "google", "g1").Return(nil, errs.ErrNotFound)
	users.On("FindByEmail", mock.Anything, "a@x.com").Return(user, nil)
	users.On("UpdateSocialProfile", mock.Anything, user.ID, mock.MatchedBy(func(sp *model.SocialProfile) bool {
		return sp.Provider == "google" && sp.ProviderUserID == "g1"
	})).Return(nil)

	svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

	pair, err := svc.HandleOAuthCallback(context.Background(), "google", OAuthProfile{ID: "g1", Email: "a@x.com"}, Client{})
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), pair.User.ID)
	assert.Contains(t, pair.User.Providers, "google")
	users.AssertExpectations(t)
}

func TestAuthService_OAuth_EmailLinkYieldsToExistingLink(t *testing.T) {
	// A concurrent caller claimed the provider identity for owner just after
	// our link lookup missed. Attaching it to the email-matched account must
	// fail on the unique index and re-resolve to the identity's owner; the
	// link never moves between users.
	owner := &model.User{
		ID:       uuid.New(),
		Username: "google_g1",
		SocialProfiles: []model.SocialProfile{
			{Provider: "google", ProviderUserID: "g1"},
		},
	}
	byEmail := &model.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        strPtr("a@x.com"),
		PasswordHash: hashOf(t, "password123"),
	}

	users := new(MockUserRepository)
	users.On("FindBySocialID", mock.Anything, "google", "g1").Return(nil, errs.ErrNotFound).Once()
	users.On("FindByEmail", mock.Anything, "a@x.com").Return(byEmail, nil).Once()
	users.On("UpdateSocialProfile", mock.Anything, byEmail.ID, mock.Anything).Return(errs.ErrConflict).Once()
	users.On("FindBySocialID", mock.Anything, "google", "g1").Return(owner, nil).Once()

	svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

	pair, err := svc.HandleOAuthCallback(context.Background(), "google", OAuthProfile{ID: "g1", Email: "a@x.com"}, Client{})
	require.NoError(t, err)
	assert.Equal(t, owner.ID.String(), pair.User.ID)
	assert.NotEqual(t, byEmail.ID.String(), pair.User.ID)
	users.AssertExpectations(t)
}

func TestAuthService_OAuth_CreateNew(t *testing.T) {
	users := new(MockUserRepository)
	users.On("FindBySocialID", mock.Anything, "google", "g1").Return(nil, errs.ErrNotFound)
	users.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, errs.ErrNotFound)
	users.On("FindOrCreateBySocialProfile", mock.Anything, mock.MatchedBy(func(draft *model.User) bool {
		return draft.Username == "google_g1" &&
			draft.PasswordHash == nil &&
			len(draft.SocialProfiles) == 1 &&
			draft.SocialProfiles[0].ProviderUserID == "g1"
	})).Return(&model.User{
		ID:       uuid.New(),
		Username: "google_g1",
		Email:    strPtr("a@x.com"),
		SocialProfiles: []model.SocialProfile{
			{Provider: "google", ProviderUserID: "g1"},
		},
	}, true, nil)

	svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

	pair, err := svc.HandleOAuthCallback(context.Background(), "google", OAuthProfile{ID: "g1", Email: "a@x.com"}, Client{})
	require.NoError(t, err)
	assert.Equal(t, "google_g1", pair.User.Username)
	users.AssertExpectations(t)
}

func TestAuthService_OAuth_NoEmailSkipsEmailMatch(t *testing.T) {
	users := new(MockUserRepository)
	users.On("FindBySocialID", mock.Anything, "github", "gh1").Return(nil, errs.ErrNotFound)
	users.On("FindOrCreateBySocialProfile", mock.Anything, mock.MatchedBy(func(draft *model.User) bool {
		return draft.Email == nil
	})).Return(&model.User{ID: uuid.New(), Username: "github_gh1"}, true, nil)

	svc := NewAuthService(users, newTestJWT(), relaxedSessions(), nil)

	_, err := svc.HandleOAuthCallback(context.Background(), "github", OAuthProfile{ID: "gh1"}, Client{})
	require.NoError(t, err)
	users.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestAuthService_OAuth_MissingProfileID(t *testing.T) {
	svc := NewAuthService(new(MockUserRepository), newTestJWT(), relaxedSessions(), nil)

	_, err := svc.HandleOAuthCallback(context.Background(), "google", OAuthProfile{}, Client{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func strPtr(s string) *string { return &s }

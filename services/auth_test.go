package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/krshsl/prepmate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAuthStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	refresh   map[string]models.RefreshToken
	permanent map[string]models.PermanentToken
}

func newMemAuthStore() *memAuthStore {
	return &memAuthStore{
		users:     make(map[string]*models.User),
		refresh:   make(map[string]models.RefreshToken),
		permanent: make(map[string]models.PermanentToken),
	}
}

func (s *memAuthStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *memAuthStore) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *memAuthStore) find(match func(*models.User) bool) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			c := *u
			return &c
		}
	}
	return nil
}

func (s *memAuthStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.Email == email }), nil
}

func (s *memAuthStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id }), nil
}

func (s *memAuthStore) GetUserByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID }), nil
}

func (s *memAuthStore) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token.Token] = *token
	return nil
}

func (s *memAuthStore) GetRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[token]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memAuthStore) CreatePermanentToken(_ context.Context, token *models.PermanentToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permanent[token.Token] = *token
	return nil
}

func (s *memAuthStore) GetPermanentToken(_ context.Context, token string) (*models.PermanentToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.permanent[token]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memAuthStore) DeleteAllUserTokens(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.refresh {
		if t.UserID == userID {
			delete(s.refresh, k)
		}
	}
	for k, t := range s.permanent {
		if t.UserID == userID {
			delete(s.permanent, k)
		}
	}
	return nil
}

func TestAuthSignupAndLogin(t *testing.T) {
	store := newMemAuthStore()
	auth := NewAuthService(store, "test-secret")
	ctx := context.Background()

	signup, err := auth.Signup(ctx, " Ana@Example.com ", "hunter22", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", signup.User.Email)
	assert.Equal(t, models.RoleUser, signup.User.Role)
	assert.NotEmpty(t, signup.AccessToken)
	assert.NotEmpty(t, signup.RefreshToken)
	assert.NotEmpty(t, signup.PermanentToken)
	assert.NotContains(t, store.refresh, signup.RefreshToken, "tokens are stored hashed")

	_, err = auth.Signup(ctx, "ana@example.com", "other", "Ana")
	assert.ErrorIs(t, err, ErrConflict)

	login, err := auth.Login(ctx, "ANA@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, signup.User.ID, login.User.ID)

	_, err = auth.Login(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthTokens(t *testing.T) {
	store := newMemAuthStore()
	auth := NewAuthService(store, "test-secret")
	ctx := context.Background()

	resp, err := auth.Signup(ctx, "ana@example.com", "hunter22", "Ana")
	require.NoError(t, err)

	user, err := auth.VerifyAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = NewAuthService(store, "other-secret").VerifyAccessToken(ctx, resp.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.VerifyAccessToken(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	refreshed, err := auth.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Empty(t, refreshed.RefreshToken)

	viaPermanent, err := auth.VerifyPermanentToken(ctx, resp.PermanentToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, viaPermanent.User.ID)

	require.NoError(t, auth.Logout(ctx, resp.User.ID))
	_, err = auth.RefreshToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.VerifyPermanentToken(ctx, resp.PermanentToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthLoginWithGoogle(t *testing.T) {
	store := newMemAuthStore()
	auth := NewAuthService(store, "test-secret")
	ctx := context.Background()

	_, err := auth.LoginWithGoogle(ctx, GoogleProfile{ID: "g1", Email: "ana@example.com"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = auth.LoginWithGoogle(ctx, GoogleProfile{Email: "ana@example.com", VerifiedEmail: true})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	local, err := auth.Signup(ctx, "ana@example.com", "hunter22", "Ana")
	require.NoError(t, err)

	linked, err := auth.LoginWithGoogle(ctx, GoogleProfile{ID: "g1", Email: "Ana@example.com", VerifiedEmail: true, Picture: "https://img/ana.png"})
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, linked.User.ID)
	assert.Equal(t, "https://img/ana.png", linked.User.AvatarURL)

	again, err := auth.LoginWithGoogle(ctx, GoogleProfile{ID: "g1", Email: "changed@example.com", VerifiedEmail: true})
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, again.User.ID)

	created, err := auth.LoginWithGoogle(ctx, GoogleProfile{ID: "g2", Email: "bo@example.com", VerifiedEmail: true, Name: "Bo"})
	require.NoError(t, err)
	assert.NotEqual(t, local.User.ID, created.User.ID)
	assert.Equal(t, models.AuthProviderGoogle, created.User.AuthProvider)
	assert.Empty(t, created.User.Password)

	_, err = auth.Login(ctx, "bo@example.com", "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthMiddleware(t *testing.T) {
	store := newMemAuthStore()
	auth := NewAuthService(store, "test-secret")
	resp, err := auth.Signup(context.Background(), "ana@example.com", "hunter22", "Ana")
	require.NoError(t, err)

	var seen *models.User
	protected := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = currentUser(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, resp.User.ID, seen.ID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "expired"})
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: resp.RefreshToken})
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	var renewed bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "access_token" && c.Value != "" {
			renewed = true
		}
	}
	assert.True(t, renewed, "a fresh access cookie is issued")

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	store := newMemAuthStore()
	auth := NewAuthService(store, "test-secret")
	resp, err := auth.Signup(context.Background(), "ana@example.com", "hunter22", "Ana")
	require.NoError(t, err)

	handler := auth.Middleware(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, call())

	admin := *resp.User
	admin.Role = models.RoleAdmin
	require.NoError(t, store.UpdateUser(context.Background(), &admin))
	assert.Equal(t, http.StatusOK, call())
}

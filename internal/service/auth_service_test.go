package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/model"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]model.User{}}
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return model.User{}, model.ErrUserNotFound
	}
	u.PasswordHash = ""
	return u, nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := f.FindByEmailWithPassword(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	u.PasswordHash = ""
	return u, nil
}

func (f *fakeUserStore) FindByEmailWithPassword(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email && u.DeletedAt == nil {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (f *fakeUserStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email && u.DeletedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserStore) Create(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) UpdateName(_ context.Context, id string, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return model.ErrUserNotFound
	}
	u.Name = name
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok || u.DeletedAt != nil {
		return model.ErrUserNotFound
	}
	now := time.Now().UTC()
	u.DeletedAt = &now
	f.users[id] = u
	return nil
}

func (f *fakeUserStore) List(_ context.Context) ([]model.PublicUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.PublicUser, 0, len(f.users))
	for _, u := range f.users {
		if u.DeletedAt == nil {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

func (f *fakeUserStore) setActive(t *testing.T, email string, active bool) {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	for id, u := range f.users {
		if u.Email == email {
			u.IsActive = active
			f.users[id] = u
			return
		}
	}
	t.Fatalf("no user with email %s", email)
}

type fakeTokenStore struct {
	mu   sync.Mutex
	rows map[string]model.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{rows: map[string]model.RefreshToken{}}
}

func (f *fakeTokenStore) Create(_ context.Context, t model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rows[t.Token] = t
	return nil
}

func (f *fakeTokenStore) FindByToken(_ context.Context, token string) (model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[token]
	if !ok || row.IsRevoked {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	return row, nil
}

func (f *fakeTokenStore) RevokeByToken(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[token]
	if !ok || row.IsRevoked {
		return false, nil
	}
	row.IsRevoked = true
	f.rows[token] = row
	return true, nil
}

func (f *fakeTokenStore) RevokeAllByUser(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	any := false
	for token, row := range f.rows {
		if row.UserID == userID && !row.IsRevoked {
			row.IsRevoked = true
			f.rows[token] = row
			any = true
		}
	}
	return any, nil
}

func (f *fakeTokenStore) DeleteExpiredBefore(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var deleted int64
	for token, row := range f.rows {
		if !row.ExpiresAt.After(now) {
			delete(f.rows, token)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeTokenStore) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, row := range f.rows {
		if !row.IsRevoked {
			n++
		}
	}
	return n
}

func (f *fakeTokenStore) expire(t *testing.T, token string) {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[token]
	if !ok {
		t.Fatalf("no row for token")
	}
	row.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	f.rows[token] = row
}

func (f *fakeTokenStore) isRevoked(t *testing.T, token string) bool {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[token]
	if !ok {
		t.Fatalf("no row for token")
	}
	return row.IsRevoked
}

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserStore, *fakeTokenStore) {
	t.Helper()

	users := newFakeUserStore()
	tokens := newFakeTokenStore()

	// Min bcrypt cost keeps the suite fast.
	svc, err := NewAuthService(
		"access-secret", "refresh-secret",
		15*time.Minute, 24*time.Hour,
		bcrypt.MinCost,
		users, tokens, nil,
	)
	require.NoError(t, err)

	return svc, users, tokens
}

func TestNewAuthServiceRejectsSharedSecret(t *testing.T) {
	_, err := NewAuthService("same", "same", time.Minute, time.Hour, bcrypt.MinCost, newFakeUserStore(), newFakeTokenStore(), nil)
	require.Error(t, err)
}

func TestRegister(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.Equal(t, "alice@example.com", pair.User.Email)
	require.Equal(t, 1, tokens.liveCount())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Alice@Example.com", "Alice Again", "Password456!")
	require.ErrorIs(t, err, model.ErrUserAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "Alice", "Password123!")
	require.Error(t, err)

	_, err = svc.Register(ctx, "alice@example.com", "", "Password123!")
	require.Error(t, err)

	_, err = svc.Register(ctx, "alice@example.com", "Alice", "short")
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "alice@example.com", "Password123!")
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)

	// One session from register, one from login.
	require.Equal(t, 2, tokens.liveCount())
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)
	before := tokens.liveCount()

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
	require.Equal(t, before, tokens.liveCount(), "failed login must not create a session")
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	require.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLoginDisabledAccount(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	users.setActive(t, "alice@example.com", false)

	_, err = svc.Login(ctx, "alice@example.com", "Password123!")
	require.ErrorIs(t, err, model.ErrAccountDisabled)
}

func TestRefreshRotation(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The consumed token is single use.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// The replacement still works.
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	_, err := svc.Refresh(context.Background(), "no-such-token")
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestRefreshExpiredTokenRevokesRow(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	tokens.expire(t, pair.RefreshToken)

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrTokenExpired)
	require.True(t, tokens.isRevoked(t, pair.RefreshToken), "expired row must be revoked as a side effect")

	// A second attempt no longer sees the row at all.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestRefreshDeletedUser(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, pair.User.ID))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestLogoutIdempotent(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.Equal(t, 0, tokens.liveCount())

	// Second logout with the same token, and one with garbage, both succeed.
	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, svc.Logout(ctx, "never-issued"))
}

func TestLogoutAll(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "alice@example.com", "Password123!")
	require.NoError(t, err)
	require.Equal(t, 2, tokens.liveCount())

	require.NoError(t, svc.LogoutAll(ctx, first.User.ID))
	require.Equal(t, 0, tokens.liveCount())

	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestAuthenticate(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	identity, err := svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, pair.User.ID, identity.ID)
	require.Equal(t, "alice@example.com", identity.Email)

	// A refresh token is not an access token.
	_, err = svc.Authenticate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// Garbage is rejected.
	_, err = svc.Authenticate(ctx, "not.a.jwt")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// Disabling the account cuts off access immediately at the guard.
	users.setActive(t, "alice@example.com", false)
	_, err = svc.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, model.ErrAccountDisabled)
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	svc, users, tokens := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	other, err := NewAuthService(
		"other-access-secret", "other-refresh-secret",
		15*time.Minute, 24*time.Hour,
		bcrypt.MinCost,
		users, tokens, nil,
	)
	require.NoError(t, err)

	_, err = other.Authenticate(ctx, pair.AccessToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, "alice@example.com", "Alice", "Password123!")
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, pair.User.ID, "Alice Cooper")
	require.NoError(t, err)
	require.Equal(t, "Alice Cooper", updated.Name)

	require.NoError(t, svc.DeleteUser(ctx, pair.User.ID))
	require.Equal(t, 0, tokens.liveCount(), "delete must revoke all sessions")

	_, err = svc.GetUserByID(ctx, pair.User.ID)
	require.ErrorIs(t, err, model.ErrUserNotFound)

	// The email is free for re-registration after the soft delete.
	_, err = svc.Register(ctx, "alice@example.com", "Alice II", "Password456!")
	require.NoError(t, err)
}

package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/event"
	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

// UserStore is the persistence contract the auth flow needs from the user
// table. The password hash is only reachable through the explicit
// with-password lookup.
type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByEmailWithPassword(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdateName(ctx context.Context, id string, name string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.PublicUser, error)
}

// TokenStore persists refresh tokens. RevokeByToken must be conditional on
// the row still being live and report whether this call flipped it; that is
// what serializes concurrent rotation attempts.
type TokenStore interface {
	Create(ctx context.Context, t model.RefreshToken) error
	FindByToken(ctx context.Context, token string) (model.RefreshToken, error)
	RevokeByToken(ctx context.Context, token string) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string) (bool, error)
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

type AuthService struct {
	users         UserStore
	tokens        TokenStore
	bus           event.Bus
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	bcryptCost    int
}

func NewAuthService(
	accessSecret string,
	refreshSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	bcryptCost int,
	users UserStore,
	tokens TokenStore,
	bus event.Bus,
) (*AuthService, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, apierror.New("CONFIG_ERROR", "jwt secrets are required", "", http.StatusInternalServerError)
	}
	if accessSecret == refreshSecret {
		return nil, apierror.New("CONFIG_ERROR", "access and refresh secrets must differ", "", http.StatusInternalServerError)
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	return &AuthService{
		users:         users,
		tokens:        tokens,
		bus:           bus,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		bcryptCost:    bcryptCost,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, email string, name string, password string) (model.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if err := validateEmail(email); err != nil {
		return model.TokenPair{}, err
	}
	if name == "" {
		return model.TokenPair{}, apierror.New("BAD_REQUEST", "name is required", "name", http.StatusBadRequest)
	}
	if len(password) < 8 {
		return model.TokenPair{}, apierror.New("BAD_REQUEST", "password must be at least 8 characters", "password", http.StatusBadRequest)
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return model.TokenPair{}, err
	}
	if exists {
		return model.TokenPair{}, model.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.TokenPair{}, err
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return model.TokenPair{}, err
	}

	s.publish(event.TypeUserRegistered, user.ID, user.Email, "")
	return s.issueTokens(ctx, user)
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmailWithPassword(ctx, email)
	if err != nil {
		s.publish(event.TypeLoginDenied, "", email, "unknown email")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.publish(event.TypeLoginDenied, user.ID, email, "password mismatch")
		return model.TokenPair{}, model.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.publish(event.TypeLoginDenied, user.ID, email, "account disabled")
		return model.TokenPair{}, model.ErrAccountDisabled
	}

	s.publish(event.TypeLogin, user.ID, user.Email, "")
	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token: the presented token is consumed and a new
// pair is issued. A token can only ever be rotated once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	row, err := s.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		s.publish(event.TypeRefreshDenied, "", "", "token not found")
		return model.TokenPair{}, model.ErrUnauthorized
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		// Revoke the stale row so a racing caller cannot pick it up either.
		if _, revokeErr := s.tokens.RevokeByToken(ctx, refreshToken); revokeErr != nil {
			return model.TokenPair{}, revokeErr
		}
		s.publish(event.TypeRefreshDenied, row.UserID, "", "token expired")
		return model.TokenPair{}, model.ErrTokenExpired
	}

	user, err := s.users.FindByID(ctx, row.UserID)
	if err != nil {
		s.publish(event.TypeRefreshDenied, row.UserID, "", "owning user missing")
		return model.TokenPair{}, model.ErrUnauthorized
	}

	revoked, err := s.tokens.RevokeByToken(ctx, refreshToken)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !revoked {
		// Another request rotated this token first.
		s.publish(event.TypeRefreshDenied, row.UserID, user.Email, "token already consumed")
		return model.TokenPair{}, model.ErrUnauthorized
	}

	s.publish(event.TypeTokenRefreshed, user.ID, user.Email, "")
	return s.issueTokens(ctx, user)
}

// Logout revokes the presented refresh token. Revoking an unknown or already
// revoked token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	revoked, err := s.tokens.RevokeByToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if revoked {
		s.publish(event.TypeLogout, "", "", "")
	}
	return nil
}

// LogoutAll revokes every live refresh token owned by the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if _, err := s.tokens.RevokeAllByUser(ctx, userID); err != nil {
		return err
	}
	s.publish(event.TypeLogoutAll, userID, "", "")
	return nil
}

// Authenticate verifies an access token and loads its subject. Used by the
// HTTP guard; refresh tokens are rejected here by their typ claim.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (model.PublicUser, error) {
	claims, err := s.validateToken(accessToken, s.accessSecret, "access")
	if err != nil {
		return model.PublicUser{}, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return model.PublicUser{}, model.ErrUnauthorized
	}
	if !user.IsActive {
		return model.PublicUser{}, model.ErrAccountDisabled
	}

	return user.Public(), nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]model.PublicUser, error) {
	return s.users.List(ctx)
}

func (s *AuthService) UpdateUser(ctx context.Context, userID string, name string) (model.PublicUser, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.PublicUser{}, apierror.New("BAD_REQUEST", "name is required", "name", http.StatusBadRequest)
	}

	if err := s.users.UpdateName(ctx, userID, name); err != nil {
		return model.PublicUser{}, err
	}

	s.publish(event.TypeUserUpdated, userID, "", "")
	return s.GetUserByID(ctx, userID)
}

// DeleteUser soft-deletes the user and signs them out everywhere.
func (s *AuthService) DeleteUser(ctx context.Context, userID string) error {
	if err := s.users.SoftDelete(ctx, userID); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAllByUser(ctx, userID); err != nil {
		return err
	}
	s.publish(event.TypeUserDeleted, userID, "", "")
	return nil
}

// issueTokens signs an access/refresh pair from the same payload with the
// two class secrets and persists the refresh half. The stored row's expiry
// derives from the same TTL the refresh token is signed with.
func (s *AuthService) issueTokens(ctx context.Context, user model.User) (model.TokenPair, error) {
	now := time.Now().UTC()

	accessToken, err := s.signToken(jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"typ":   "access",
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	}, s.accessSecret)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.signToken(jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"typ":   "refresh",
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.refreshTTL).Unix(),
	}, s.refreshSecret)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.tokens.Create(ctx, model.RefreshToken{
		ID:        uuid.NewString(),
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}); err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		User:         user.Public(),
	}, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *AuthService) validateToken(tokenString string, secret []byte, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrUnauthorized
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, model.ErrUnauthorized
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrUnauthorized
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, model.ErrUnauthorized
	}

	claims := &model.AuthClaims{Type: typ}
	claims.UserID, _ = claimsMap["sub"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	claims.TokenID, _ = claimsMap["jti"].(string)

	if claims.UserID == "" {
		return nil, model.ErrUnauthorized
	}

	return claims, nil
}

func (s *AuthService) publish(t event.Type, actorID string, actorEmail string, detail string) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(event.Event{
		ID:         uuid.NewString(),
		Type:       t,
		ActorID:    actorID,
		ActorEmail: actorEmail,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	})
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return apierror.New("BAD_REQUEST", "invalid email address", "email", http.StatusBadRequest)
	}
	return nil
}

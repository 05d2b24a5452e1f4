package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/krshsl/prepmate/models"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthStore is the persistence the auth service needs
type AuthStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error
	GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error)
	DeleteAllUserTokens(ctx context.Context, userID string) error
}

type AuthService struct {
	repo            AuthStore
	jwtSecret       []byte
	accessExpiry    time.Duration
	refreshExpiry   time.Duration
	permanentExpiry time.Duration
}

type CookieClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type AuthResponse struct {
	User           *models.User `json:"user"`
	AccessToken    string       `json:"access_token,omitempty"`
	RefreshToken   string       `json:"refresh_token,omitempty"`
	PermanentToken string       `json:"permanent_token,omitempty"`
}

// GoogleProfile is the subset of the Google userinfo response used to sign in
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthService(repo AuthStore, jwtSecret string) *AuthService {
	return &AuthService{
		repo:            repo,
		jwtSecret:       []byte(jwtSecret),
		accessExpiry:    15 * time.Minute,
		refreshExpiry:   7 * 24 * time.Hour,  // 7 days
		permanentExpiry: 30 * 24 * time.Hour, // 30 days
	}
}

// generateSecureToken generates a cryptographically secure random token
func (s *AuthService) generateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA256 hash of the token for secure storage
func (s *AuthService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login authenticates user and creates tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	// Google-only accounts have no password and cannot log in this way
	if user == nil || user.Password == "" {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

// Signup creates a new user
func (s *AuthService) Signup(ctx context.Context, email, password, fullName string) (*AuthResponse, error) {
	email = normalizeEmail(email)
	existingUser, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, fmt.Errorf("%w: user already exists", ErrConflict)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Password:     string(hashedPassword),
		FullName:     fullName,
		Role:         models.RoleUser,
		AuthProvider: models.AuthProviderLocal,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("User signed up successfully", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

// LoginWithGoogle finds the user by Google ID, then by email (linking the
// account), and creates one when neither exists.
func (s *AuthService) LoginWithGoogle(ctx context.Context, profile GoogleProfile) (*AuthResponse, error) {
	if profile.ID == "" || profile.Email == "" {
		return nil, fmt.Errorf("%w: incomplete google profile", ErrInvalidArgument)
	}
	if !profile.VerifiedEmail {
		return nil, fmt.Errorf("%w: google email not verified", ErrForbidden)
	}

	user, err := s.repo.GetUserByGoogleID(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by google id: %w", err)
	}

	if user == nil {
		email := normalizeEmail(profile.Email)
		user, err = s.repo.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		googleID := profile.ID
		if user != nil {
			user.GoogleID = &googleID
			if user.AvatarURL == "" {
				user.AvatarURL = profile.Picture
			}
			if err := s.repo.UpdateUser(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to link google account: %w", err)
			}
			slog.Info("Google account linked", "user_id", user.ID)
		} else {
			user = &models.User{
				Email:        email,
				FullName:     profile.Name,
				Role:         models.RoleUser,
				AvatarURL:    profile.Picture,
				GoogleID:     &googleID,
				AuthProvider: models.AuthProviderGoogle,
			}
			if err := s.repo.CreateUser(ctx, user); err != nil {
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
		}
	}

	resp, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("User logged in with Google", "user_id", user.ID)
	return resp, nil
}

// issueSession generates and stores a full token set for user
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	permanentToken, err := s.generateSecureToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate permanent token: %w", err)
	}

	if err := s.storeTokens(ctx, user.ID, refreshToken, permanentToken); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	return &AuthResponse{
		User:           user,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		PermanentToken: permanentToken,
	}, nil
}

// RefreshToken generates a new access token using refresh token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	tokenRecord, err := s.repo.GetRefreshToken(ctx, s.hashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	if tokenRecord == nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	return s.accessFor(ctx, tokenRecord.UserID)
}

// VerifyPermanentToken verifies permanent token and generates new access token
func (s *AuthService) VerifyPermanentToken(ctx context.Context, permanentToken string) (*AuthResponse, error) {
	tokenRecord, err := s.repo.GetPermanentToken(ctx, s.hashToken(permanentToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get permanent token: %w", err)
	}
	if tokenRecord == nil {
		return nil, fmt.Errorf("%w: invalid permanent token", ErrUnauthorized)
	}

	return s.accessFor(ctx, tokenRecord.UserID)
}

func (s *AuthService) accessFor(ctx context.Context, userID string) (*AuthResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}

	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	slog.Info("Access token refreshed", "user_id", user.ID)
	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
	}, nil
}

// Logout invalidates all tokens for the user
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.repo.DeleteAllUserTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user tokens: %w", err)
	}

	slog.Info("User logged out", "user_id", userID)
	return nil
}

// VerifyAccessToken verifies and extracts user from access token
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*models.User, error) {
	claims := &CookieClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse token: %v", ErrUnauthorized, err)
	}

	if !parsedToken.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	// Get user from database to ensure they still exist
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}

	return user, nil
}

// generateAccessToken creates a short-lived access token
func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	claims := &CookieClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// storeTokens stores refresh and permanent tokens in database
func (s *AuthService) storeTokens(ctx context.Context, userID, refreshToken, permanentToken string) error {
	refreshTokenRecord := &models.RefreshToken{
		UserID:    userID,
		Token:     s.hashToken(refreshToken),
		ExpiresAt: time.Now().Add(s.refreshExpiry),
	}
	if err := s.repo.CreateRefreshToken(ctx, refreshTokenRecord); err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	permanentTokenRecord := &models.PermanentToken{
		UserID: userID,
		Token:  s.hashToken(permanentToken),
	}
	if err := s.repo.CreatePermanentToken(ctx, permanentTokenRecord); err != nil {
		return fmt.Errorf("failed to store permanent token: %w", err)
	}

	return nil
}

func (s *AuthService) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	isProduction := os.Getenv("ENVIRONMENT") == "production"
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// SetAuthCookies sets HTTP-only cookies. Empty tokens are left untouched.
func (s *AuthService) SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken, permanentToken string) {
	if accessToken != "" {
		s.setCookie(w, "access_token", accessToken, int(s.accessExpiry.Seconds()))
	}
	if refreshToken != "" {
		s.setCookie(w, "refresh_token", refreshToken, int(s.refreshExpiry.Seconds()))
	}
	if permanentToken != "" {
		s.setCookie(w, "permanent_token", permanentToken, int(s.permanentExpiry.Seconds()))
	}
}

// ClearAuthCookies clears all authentication cookies
func (s *AuthService) ClearAuthCookies(w http.ResponseWriter) {
	for _, cookieName := range []string{"access_token", "refresh_token", "permanent_token"} {
		s.setCookie(w, cookieName, "", -1)
	}
}

// GetTokenFromCookie extracts token from request cookies
func (s *AuthService) GetTokenFromCookie(r *http.Request, cookieName string) string {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// bearerToken returns the token of an "Authorization: Bearer" header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Middleware authenticates with a bearer token or the access cookie, then
// falls back to the refresh and permanent cookies.
func (s *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			user, err := s.VerifyAccessToken(r.Context(), token)
			if err != nil {
				writeError(w, err, nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
			return
		}

		if accessToken := s.GetTokenFromCookie(r, "access_token"); accessToken != "" {
			if user, err := s.VerifyAccessToken(r.Context(), accessToken); err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
				return
			}
		}

		if refreshToken := s.GetTokenFromCookie(r, "refresh_token"); refreshToken != "" {
			if authResponse, err := s.RefreshToken(r.Context(), refreshToken); err == nil {
				s.SetAuthCookies(w, authResponse.AccessToken, "", "")
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, authResponse.User)))
				return
			}
		}

		if permanentToken := s.GetTokenFromCookie(r, "permanent_token"); permanentToken != "" {
			if authResponse, err := s.VerifyPermanentToken(r.Context(), permanentToken); err == nil {
				s.SetAuthCookies(w, authResponse.AccessToken, "", "")
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, authResponse.User)))
				return
			}
		}

		writeError(w, fmt.Errorf("%w: authentication required", ErrUnauthorized), nil)
	})
}

// RequireAdmin rejects users without the admin role. It must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := currentUser(r)
		if !ok || user.Role != models.RoleAdmin {
			writeError(w, fmt.Errorf("%w: admin role required", ErrForbidden), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/prepmate/models"
)

type AuthEndpoints struct {
	authService *AuthService
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"max=255"`
}

func NewAuthEndpoints(authService *AuthService) *AuthEndpoints {
	return &AuthEndpoints{
		authService: authService,
	}
}

// RegisterRoutes mounts the public auth routes; /me and /logout go behind the middleware
func (e *AuthEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/login", e.LoginHandler)
	r.Post("/signup", e.SignupHandler)
	r.Post("/refresh", e.RefreshHandler)
	r.Group(func(r chi.Router) {
		r.Use(e.authService.Middleware)
		r.Post("/logout", e.LogoutHandler)
		r.Get("/me", e.MeHandler)
	})
}

func userPayload(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":            user.ID,
		"email":         user.Email,
		"full_name":     user.FullName,
		"avatar_url":    user.AvatarURL,
		"role":          user.Role,
		"auth_provider": user.AuthProvider,
		"has_resume":    user.HasResume(),
	}
}

// sessionResponse sets the auth cookies and returns the access token for bearer clients
func (e *AuthEndpoints) sessionResponse(w http.ResponseWriter, status int, authResponse *AuthResponse, message string) {
	e.authService.SetAuthCookies(w, authResponse.AccessToken, authResponse.RefreshToken, authResponse.PermanentToken)
	writeJSON(w, status, map[string]interface{}{
		"user":         userPayload(authResponse.User),
		"access_token": authResponse.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   int(e.authService.accessExpiry.Seconds()),
		"message":      message,
	})
}

func (e *AuthEndpoints) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	authResponse, err := e.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("Login failed", "error", err, "email", req.Email)
		writeError(w, err, nil)
		return
	}

	e.sessionResponse(w, http.StatusOK, authResponse, "Login successful")
}

func (e *AuthEndpoints) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	authResponse, err := e.authService.Signup(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		slog.Warn("Signup failed", "error", err, "email", req.Email)
		writeError(w, err, nil)
		return
	}

	e.sessionResponse(w, http.StatusCreated, authResponse, "Signup successful")
}

func (e *AuthEndpoints) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	refreshToken := e.authService.GetTokenFromCookie(r, "refresh_token")
	if refreshToken == "" {
		refreshToken = bearerToken(r)
	}
	if refreshToken == "" {
		writeError(w, fmt.Errorf("%w: no refresh token provided", ErrUnauthorized), nil)
		return
	}

	authResponse, err := e.authService.RefreshToken(r.Context(), refreshToken)
	if err != nil {
		slog.Warn("Token refresh failed", "error", err)
		writeError(w, err, nil)
		return
	}

	e.authService.SetAuthCookies(w, authResponse.AccessToken, "", "")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": authResponse.AccessToken,
		"token_type":   "Bearer",
		"message":      "Token refreshed successfully",
	})
}

func (e *AuthEndpoints) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, fmt.Errorf("%w: not authenticated", ErrUnauthorized), nil)
		return
	}

	if err := e.authService.Logout(r.Context(), user.ID); err != nil {
		writeError(w, err, nil)
		return
	}

	e.authService.ClearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logout successful",
	})
}

func (e *AuthEndpoints) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, fmt.Errorf("%w: not authenticated", ErrUnauthorized), nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": userPayload(user),
	})
}

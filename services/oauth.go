package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateTTL      = 10 * time.Minute
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	oauthStateCookie   = "oauth_state"
	oauthErrorRedirect = "/login?error="
)

// GoogleOAuthEndpoints implements the Google sign-in redirect flow
type GoogleOAuthEndpoints struct {
	config      *oauth2.Config
	states      StateStore
	auth        *AuthService
	frontendURL string

	// fetchProfile is swapped in tests
	fetchProfile func(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error)
}

func NewGoogleOAuthEndpoints(cfg OAuthConfig, states StateStore, auth *AuthService) *GoogleOAuthEndpoints {
	e := &GoogleOAuthEndpoints{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		states:      states,
		auth:        auth,
		frontendURL: cfg.FrontendURL,
	}
	e.fetchProfile = e.fetchGoogleProfile
	return e
}

func (e *GoogleOAuthEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/google", e.RedirectHandler)
	r.Get("/google/callback", e.CallbackHandler)
}

func newOAuthState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RedirectHandler sends the browser to Google's consent screen
func (e *GoogleOAuthEndpoints) RedirectHandler(w http.ResponseWriter, r *http.Request) {
	state, err := newOAuthState()
	if err != nil {
		writeError(w, fmt.Errorf("failed to generate oauth state: %w", err), nil)
		return
	}
	if err := e.states.Save(r.Context(), state, oauthStateTTL); err != nil {
		writeError(w, err, nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateTTL.Seconds()),
	})
	http.Redirect(w, r, e.config.AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusTemporaryRedirect)
}

// CallbackHandler validates the state, exchanges the code and signs the user in
func (e *GoogleOAuthEndpoints) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		slog.Warn("Google OAuth denied", "error", errParam)
		e.redirectError(w, r, "access_denied")
		return
	}

	state := q.Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if state == "" || err != nil || cookie.Value != state {
		slog.Warn("Google OAuth state mismatch")
		e.redirectError(w, r, "invalid_state")
		return
	}
	ok, err := e.states.Consume(ctx, state)
	if err != nil || !ok {
		slog.Warn("Google OAuth state expired or reused", "error", err)
		e.redirectError(w, r, "invalid_state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	code := q.Get("code")
	if code == "" {
		e.redirectError(w, r, "missing_code")
		return
	}

	token, err := e.config.Exchange(ctx, code)
	if err != nil {
		slog.Error("Google OAuth code exchange failed", "error", err)
		e.redirectError(w, r, "exchange_failed")
		return
	}

	profile, err := e.fetchProfile(ctx, token)
	if err != nil {
		slog.Error("Failed to fetch Google profile", "error", err)
		e.redirectError(w, r, "profile_failed")
		return
	}

	authResponse, err := e.auth.LoginWithGoogle(ctx, *profile)
	if err != nil {
		slog.Error("Google sign-in failed", "error", err)
		e.redirectError(w, r, "signin_failed")
		return
	}

	e.auth.SetAuthCookies(w, authResponse.AccessToken, authResponse.RefreshToken, authResponse.PermanentToken)
	http.Redirect(w, r, e.frontendURL+"/dashboard", http.StatusTemporaryRedirect)
}

func (e *GoogleOAuthEndpoints) redirectError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, e.frontendURL+oauthErrorRedirect+url.QueryEscape(reason), http.StatusTemporaryRedirect)
}

func (e *GoogleOAuthEndpoints) fetchGoogleProfile(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error) {
	client := e.config.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrUpstream, resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	return &profile, nil
}

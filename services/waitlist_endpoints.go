package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/prepmate/models"
	"github.com/krshsl/prepmate/repository"
)

// WaitlistStore is the persistence of waitlist signups
type WaitlistStore interface {
	CreateWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error
	CountWaitlistEntries(ctx context.Context) (int64, error)
	ListWaitlistEntries(ctx context.Context, limit, offset int) ([]models.WaitlistEntry, error)
}

type WaitlistEndpoints struct {
	store  WaitlistStore
	mailer Mailer
}

// NewWaitlistEndpoints builds the waitlist handlers; mailer may be nil
func NewWaitlistEndpoints(store WaitlistStore, mailer Mailer) *WaitlistEndpoints {
	return &WaitlistEndpoints{store: store, mailer: mailer}
}

type JoinWaitlistRequest struct {
	Email  string `json:"email" validate:"required,email,max=255"`
	Name   string `json:"name" validate:"max=255"`
	Source string `json:"source" validate:"max=100"`
}

// RegisterRoutes mounts the public routes; admin wraps the listing route
func (e *WaitlistEndpoints) RegisterRoutes(r chi.Router, admin func(http.Handler) http.Handler) {
	r.Route("/waitlist", func(r chi.Router) {
		r.Post("/", e.JoinHandler)
		r.Get("/count", e.CountHandler)
		r.With(admin).Get("/", e.ListHandler)
	})
}

func (e *WaitlistEndpoints) JoinHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinWaitlistRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	entry := &models.WaitlistEntry{
		Email:  normalizeEmail(req.Email),
		Name:   strings.TrimSpace(req.Name),
		Source: strings.TrimSpace(req.Source),
	}
	if err := e.store.CreateWaitlistEntry(r.Context(), entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, fmt.Errorf("%w: email is already on the waitlist", ErrConflict), nil)
			return
		}
		writeError(w, fmt.Errorf("failed to join waitlist: %w", err), nil)
		return
	}

	sendAsync(e.mailer, entry.Email, "You're on the PrepMate waitlist", waitlistConfirmation(entry.Name))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Joined the waitlist",
		"entry":   entry,
	})
}

func (e *WaitlistEndpoints) CountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := e.store.CountWaitlistEntries(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("failed to count waitlist: %w", err), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": count})
}

func (e *WaitlistEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := e.store.ListWaitlistEntries(r.Context(), limit, offset)
	if err != nil {
		writeError(w, fmt.Errorf("failed to list waitlist: %w", err), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
		"limit":   limit,
		"offset":  offset,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

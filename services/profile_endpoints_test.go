package services

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/prepmate/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProfileStore struct {
	saved *models.User
}

func (s *memProfileStore) UpdateUser(_ context.Context, user *models.User) error {
	u := *user
	s.saved = &u
	return nil
}

func (s *memProfileStore) GetUserStats(_ context.Context, userID string) (*models.UserStats, error) {
	return &models.UserStats{}, nil
}

func profileRouter(t *testing.T, user *models.User) (http.Handler, *memProfileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store := &memProfileStore{}
	r := chi.NewRouter()
	r.Use(asUser(user))
	NewProfileEndpoints(store, &stubDocumentReader{text: "pdf text"}, UploadConfig{Dir: dir, MaxSizeMB: 1}).RegisterRoutes(r)
	return r, store, dir
}

func uploadResume(t *testing.T, h http.Handler, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("resume", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/profile/resume", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProfileResumeUpload(t *testing.T) {
	user := testUser()
	router, store, _ := profileRouter(t, user)

	rec := uploadResume(t, router, "cv.txt", []byte("Jane Doe\nGo developer with 5 years of experience\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ResumeMIME string `json:"resume_mime"`
		Preview    string `json:"preview"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, mimeText, resp.ResumeMIME)
	assert.Contains(t, resp.Preview, "Go developer")

	require.NotNil(t, store.saved)
	assert.True(t, store.saved.HasResume())
	first := store.saved.ResumePath
	assert.FileExists(t, first)

	rec = uploadResume(t, router, "cv.pdf", []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pdf text", store.saved.ResumeText)
	assert.FileExists(t, store.saved.ResumePath)
	_, err := os.Stat(first)
	assert.True(t, os.IsNotExist(err), "the previous resume is removed")
}

func TestProfileResumeRejectsUnsupportedFiles(t *testing.T) {
	router, store, _ := profileRouter(t, testUser())

	rec := uploadResume(t, router, "photo.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadResume(t, router, "big.txt", bytes.Repeat([]byte("a"), 3<<20))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = uploadResume(t, router, "empty.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, store.saved)
}

func TestProfileUpdate(t *testing.T) {
	user := testUser()
	user.Headline = "Keep me"
	router, store, _ := profileRouter(t, user)

	rec := doJSON(t, router, http.MethodPut, "/profile/", `{"full_name": " Ana Lima ", "skills": ["Go", "SQL"], "experience_level": "mid"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, store.saved)
	assert.Equal(t, "Ana Lima", store.saved.FullName)
	assert.Equal(t, "Keep me", store.saved.Headline)
	assert.Equal(t, "mid", store.saved.ExperienceLevel)
	assert.JSONEq(t, `["Go", "SQL"]`, string(store.saved.Skills))

	rec = doJSON(t, router, http.MethodPut, "/profile/", `{"experience_level": "wizard"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/storage"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveRegistryCall(operation, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, operation+":"+outcome)
}

func newSpool(t *testing.T) *storage.LocalStorage {
	t.Helper()
	spool, err := storage.NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)
	return spool
}

func TestRegistryRegisterSendsMultipart(t *testing.T) {
	spool := newSpool(t)
	_, err := spool.SaveStream("s1/photo", strings.NewReader("\x89PNG-data"))
	require.NoError(t, err)

	var (
		gotFields   map[string][]string
		gotFile     string
		gotFileType string
		gotFileName string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/register", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = r.MultipartForm.Value
		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		body, _ := io.ReadAll(f)
		gotFile = string(body)
		gotFileType = hdr.Header.Get("Content-Type")
		gotFileName = hdr.Filename
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Student registered successfully","id":12}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	repo := NewRegistryRepository(srv.URL+"/", srv.Client(), spool, obs, zap.NewNop())

	draft := models.NewRegistrationDraft()
	draft.SetText(models.FieldFirstName, "Asha")
	draft.SetText(models.FieldParentEmail, "p@example.com")
	draft.SetFile(models.FieldPhoto, &models.FileHandle{Key: "s1/photo", Filename: `me "1".png`, ContentType: "image/png", Size: 9})

	res, err := repo.Register(context.Background(), draft.Payload())
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, res.Status)
	assert.Equal(t, "Student registered successfully", res.Message)

	assert.Equal(t, []string{"Asha"}, gotFields["firstName"])
	assert.Equal(t, []string{"p@example.com"}, gotFields["parentEmail"])
	_, hasLast := gotFields["lastName"]
	assert.False(t, hasLast, "empty fields must be omitted")
	assert.Equal(t, "\x89PNG-data", gotFile)
	assert.Equal(t, "image/png", gotFileType)
	assert.Equal(t, `me "1".png`, gotFileName)
	assert.Equal(t, []string{"register:ok"}, obs.calls)
}

func TestRegistryRegisterMapsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Duplicate Aadhar"}`))
	}))
	defer srv.Close()

	repo := NewRegistryRepository(srv.URL, srv.Client(), nil, nil, nil)
	_, err := repo.Register(context.Background(), models.RegistrationPayload{Parts: []models.PayloadPart{{Name: models.FieldFirstName, Value: "A"}}})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstreamRejected.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "Duplicate Aadhar", appErr.Message)
}

func TestRegistryNonJSONErrorBodyYieldsEmptyMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html>boom</html>", http.StatusInternalServerError)
	}))
	defer srv.Close()

	repo := NewRegistryRepository(srv.URL, srv.Client(), nil, nil, nil)
	_, err := repo.ListStudents(context.Background())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstreamRejected.Code, appErr.Code)
	assert.Empty(t, appErr.Message)
}

func TestRegistryTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	obs := &recordingObserver{}
	repo := NewRegistryRepository(url, nil, nil, obs, nil)
	_, err := repo.Register(context.Background(), models.RegistrationPayload{})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUpstreamUnavailable.Code))
	assert.Equal(t, []string{"register:unavailable"}, obs.calls)
}

func TestRegistryListStudents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/students", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":3,"firstName":"A"},{"id":7},{"id":9}]`))
	}))
	defer srv.Close()

	repo := NewRegistryRepository(srv.URL, srv.Client(), nil, nil, nil)
	records, err := repo.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "7", "9"}, models.StudentIDs(records))
}

func TestRegistryListAdminStudentsSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/students", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Token is missing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"students":[{"id":1,"first_name":"Ravi","last_name":"K"}]}`))
	}))
	defer srv.Close()

	repo := NewRegistryRepository(srv.URL, srv.Client(), nil, nil, nil)
	records, err := repo.ListAdminStudents(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ravi", records[0].FirstName)

	_, err = repo.ListAdminStudents(context.Background(), "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestRegistryDeleteStudent(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "/404") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	repo := NewRegistryRepository(srv.URL, srv.Client(), nil, nil, nil)
	require.NoError(t, repo.DeleteStudent(context.Background(), "7"))
	require.Error(t, repo.DeleteStudent(context.Background(), "404"))
	assert.Equal(t, []string{"/students/7", "/students/404"}, paths)
}

func TestRegistryLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Login successful","token":"jwt-token","username":"admin"}`))
	}))
	defer srv.Close()

	repo := NewRegistryRepository(srv.URL, srv.Client(), nil, nil, nil)
	session, err := repo.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", session.Token)

	_, err = repo.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", appErrors.FromError(err).Message)
}

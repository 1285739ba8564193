package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

type fakeRosterSource struct {
	mu          sync.Mutex
	records     []models.StudentRecord
	listErr     error
	adminErr    error
	deleteErr   error
	tokens      []string
	deleted     []string
	deleteBlock chan struct{}
	deleteEnter chan struct{}
}

func (f *fakeRosterSource) ListStudents(ctx context.Context) ([]models.StudentRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.StudentRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeRosterSource) ListAdminStudents(ctx context.Context, token string) ([]models.StudentRecord, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	if f.adminErr != nil {
		return nil, f.adminErr
	}
	return f.ListStudents(ctx)
}

func (f *fakeRosterSource) DeleteStudent(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	if f.deleteEnter != nil {
		f.deleteEnter <- struct{}{}
	}
	if f.deleteBlock != nil {
		<-f.deleteBlock
	}
	return f.deleteErr
}

type staticTokens struct {
	token  string
	status models.TokenStatus
	err    error
}

func (s staticTokens) Token(context.Context) (string, models.TokenStatus, error) {
	return s.token, s.status, s.err
}

func threeStudents() []models.StudentRecord {
	return []models.StudentRecord{
		{ID: "3", FirstName: "Asha", LastName: "Rao"},
		{ID: "7", FirstName: "Ravi"},
		{ID: "9"},
	}
}

func TestOpenRosterLoad(t *testing.T) {
	viewer := NewOpenRoster(&fakeRosterSource{records: threeStudents()}, nil)
	assert.False(t, viewer.Loaded())

	view := viewer.Load(context.Background())
	assert.True(t, view.Loaded)
	assert.False(t, view.Loading)
	assert.Empty(t, view.Error)
	assert.True(t, view.DeleteSupported)
	assert.Equal(t, []string{"3", "7", "9"}, view.IDs())
	assert.Equal(t, "Unknown", view.Rows[2].Name)
	assert.Equal(t, "Not Provided", view.Rows[2].DOB)
}

func TestOpenRosterLoadFailureShowsBanner(t *testing.T) {
	src := &fakeRosterSource{listErr: appErrors.ErrUpstreamUnavailable}
	viewer := NewOpenRoster(src, nil)

	view := viewer.Load(context.Background())
	assert.Equal(t, RosterFetchFailed, view.Error)
	assert.False(t, view.Loading)
	assert.False(t, view.Loaded)

	src.listErr = nil
	src.records = threeStudents()
	view = viewer.Load(context.Background())
	assert.Empty(t, view.Error)
	assert.Len(t, view.Rows, 3)
}

func TestOpenRosterDeleteRemovesRowAfterSuccess(t *testing.T) {
	src := &fakeRosterSource{records: threeStudents(), deleteBlock: make(chan struct{}), deleteEnter: make(chan struct{}, 1)}
	viewer := NewOpenRoster(src, nil)
	viewer.Load(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := viewer.Delete(context.Background(), "7", true)
		assert.NoError(t, err)
	}()

	select {
	case <-src.deleteEnter:
	case <-time.After(2 * time.Second):
		t.Fatal("delete was not issued")
	}
	view := viewer.View()
	assert.Equal(t, []string{"3", "7", "9"}, view.IDs())
	assert.True(t, view.Rows[1].Deleting)

	_, err := viewer.Delete(context.Background(), "7", true)
	assert.ErrorIs(t, err, appErrors.ErrDeleteInFlight)

	close(src.deleteBlock)
	<-done

	view = viewer.Flash()
	assert.Equal(t, []string{"3", "9"}, view.IDs())
	assert.Equal(t, RosterDeleteSucceeded, view.Alert)
	assert.Empty(t, viewer.View().Alert)
	assert.Equal(t, []string{"7"}, src.deleted)
}

func TestOpenRosterRejectedDeleteKeepsRows(t *testing.T) {
	src := &fakeRosterSource{records: threeStudents(), deleteErr: appErrors.Upstream(http.StatusInternalServerError, "")}
	viewer := NewOpenRoster(src, nil)
	viewer.Load(context.Background())

	view, err := viewer.Delete(context.Background(), "7", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "7", "9"}, view.IDs())
	assert.Equal(t, RosterDeleteFailed, view.Alert)
	assert.False(t, view.Rows[1].Deleting)
}

func TestOpenRosterUnconfirmedDeleteIsNoop(t *testing.T) {
	src := &fakeRosterSource{records: threeStudents()}
	viewer := NewOpenRoster(src, nil)
	viewer.Load(context.Background())

	view, err := viewer.Delete(context.Background(), "7", false)
	require.NoError(t, err)
	assert.Len(t, view.Rows, 3)
	assert.Empty(t, src.deleted)

	_, err = viewer.Delete(context.Background(), "42", true)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAdminRosterWithoutTokenIsNotAuthenticated(t *testing.T) {
	src := &fakeRosterSource{records: threeStudents()}
	viewer := NewAdminRoster(src, staticTokens{}, nil)

	view := viewer.Load(context.Background())
	assert.False(t, view.Authenticated)
	assert.Equal(t, RosterNotAuthenticated, view.Error)
	assert.Empty(t, view.Rows)
	assert.Empty(t, src.tokens)
}

func TestAdminRosterExpiredToken(t *testing.T) {
	src := &fakeRosterSource{records: threeStudents()}
	viewer := NewAdminRoster(src, staticTokens{token: "t", status: models.TokenStatus{Present: true, Expired: true}}, nil)

	view := viewer.Load(context.Background())
	assert.False(t, view.Authenticated)
	assert.Empty(t, src.tokens)
}

func TestAdminRosterLoadsWithToken(t *testing.T) {
	src := &fakeRosterSource{records: threeStudents()}
	viewer := NewAdminRoster(src, staticTokens{token: "tok", status: models.TokenStatus{Present: true}}, nil)

	view := viewer.Load(context.Background())
	assert.True(t, view.Authenticated)
	assert.False(t, view.DeleteSupported)
	assert.Len(t, view.Rows, 3)
	assert.Equal(t, []string{"tok"}, src.tokens)

	_, err := viewer.Delete(context.Background(), "7", true)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestAdminRosterRejectedTokenIsNotAuthenticated(t *testing.T) {
	src := &fakeRosterSource{adminErr: appErrors.Upstream(http.StatusUnauthorized, "Token is invalid")}
	viewer := NewAdminRoster(src, staticTokens{token: "tok", status: models.TokenStatus{Present: true}}, nil)

	view := viewer.Load(context.Background())
	assert.False(t, view.Authenticated)
	assert.Equal(t, RosterNotAuthenticated, view.Error)
}

func TestAdminRosterTokenStoreFailure(t *testing.T) {
	src := &fakeRosterSource{}
	viewer := NewAdminRoster(src, staticTokens{err: errors.New("redis down")}, nil)

	view := viewer.Load(context.Background())
	assert.Equal(t, RosterFetchFailed, view.Error)
}

package service

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/dto"
	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

// Roster banner and alert texts.
const (
	RosterFetchFailed      = "Unable to fetch student records. Please try again."
	RosterNotAuthenticated = "You are not logged in. Please log in to view student records."
	RosterDeleteSucceeded  = "Student deleted successfully!"
	RosterDeleteFailed     = "Failed to delete student. Please try again."
)

type rosterSource interface {
	ListStudents(ctx context.Context) ([]models.StudentRecord, error)
	ListAdminStudents(ctx context.Context, token string) ([]models.StudentRecord, error)
	DeleteStudent(ctx context.Context, id string) error
}

type tokenSource interface {
	Token(ctx context.Context) (string, models.TokenStatus, error)
}

// RosterViewer fetches and holds the list of registered students for one session.
type RosterViewer struct {
	mu     sync.Mutex
	mode   dto.RosterMode
	source rosterSource
	tokens tokenSource
	logger *zap.Logger

	records       []models.StudentRecord
	loading       bool
	loaded        bool
	loadSeq       uint64
	banner        string
	authenticated bool
	alert         string
	deleting      map[string]bool
}

// NewOpenRoster builds a viewer over the unauthenticated listing. Rows can be deleted.
func NewOpenRoster(source rosterSource, logger *zap.Logger) *RosterViewer {
	return newRosterViewer(dto.RosterOpen, source, nil, logger)
}

// NewAdminRoster builds a viewer over the token-gated listing. Rows are read-only.
func NewAdminRoster(source rosterSource, tokens tokenSource, logger *zap.Logger) *RosterViewer {
	return newRosterViewer(dto.RosterTokenGated, source, tokens, logger)
}

func newRosterViewer(mode dto.RosterMode, source rosterSource, tokens tokenSource, logger *zap.Logger) *RosterViewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterViewer{
		mode:          mode,
		source:        source,
		tokens:        tokens,
		logger:        logger.With(zap.String("roster", string(mode))),
		authenticated: mode == dto.RosterOpen,
		deleting:      make(map[string]bool),
	}
}

// Loaded reports whether a fetch has completed successfully at least once.
func (v *RosterViewer) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// Load fetches the listing. Failures are reported through the banner; only the most
// recent of overlapping loads is applied.
func (v *RosterViewer) Load(ctx context.Context) dto.RosterView {
	v.mu.Lock()
	v.loadSeq++
	seq := v.loadSeq
	v.loading = true
	v.mu.Unlock()

	records, banner, authenticated := v.fetch(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.loadSeq {
		return v.viewLocked()
	}
	v.loading = false
	v.banner = banner
	v.authenticated = authenticated
	if banner == "" {
		v.records = records
		v.loaded = true
	} else if !authenticated {
		v.records = nil
		v.loaded = false
	}
	return v.viewLocked()
}

func (v *RosterViewer) fetch(ctx context.Context) ([]models.StudentRecord, string, bool) {
	if v.mode == dto.RosterOpen {
		records, err := v.source.ListStudents(ctx)
		if err != nil {
			v.logger.Warn("fetch roster", zap.Error(err))
			return nil, RosterFetchFailed, true
		}
		return records, "", true
	}

	if v.tokens == nil {
		return nil, RosterNotAuthenticated, false
	}
	token, status, err := v.tokens.Token(ctx)
	if err != nil {
		v.logger.Warn("read session token", zap.Error(err))
		return nil, RosterFetchFailed, false
	}
	if !status.Authenticated() {
		v.logger.Info("admin roster requested without a usable token",
			zap.Bool("present", status.Present),
			zap.Bool("expired", status.Expired),
		)
		return nil, RosterNotAuthenticated, false
	}
	records, err := v.source.ListAdminStudents(ctx, token)
	if err != nil {
		if code := appErrors.FromError(err).Status; appErrors.IsCode(err, appErrors.ErrUpstreamRejected.Code) &&
			(code == http.StatusUnauthorized || code == http.StatusForbidden) {
			v.logger.Info("admin token rejected", zap.Int("status", code))
			return nil, RosterNotAuthenticated, false
		}
		v.logger.Warn("fetch admin roster", zap.Error(err))
		return nil, RosterFetchFailed, true
	}
	return records, "", true
}

// Delete removes a record after confirmation. An unconfirmed call changes nothing. The
// row is dropped only once the registration server acknowledges the delete; a failure
// keeps the list unchanged and sets the alert.
func (v *RosterViewer) Delete(ctx context.Context, id string, confirmed bool) (dto.RosterView, error) {
	v.mu.Lock()
	if v.mode != dto.RosterOpen {
		view := v.viewLocked()
		v.mu.Unlock()
		return view, appErrors.Clone(appErrors.ErrForbidden, "delete is not available on this roster")
	}
	if !confirmed {
		view := v.viewLocked()
		v.mu.Unlock()
		return view, nil
	}
	if v.indexLocked(id) < 0 {
		view := v.viewLocked()
		v.mu.Unlock()
		return view, appErrors.Clone(appErrors.ErrNotFound, "student "+id+" is not in the roster")
	}
	if v.deleting[id] {
		view := v.viewLocked()
		v.mu.Unlock()
		return view, appErrors.ErrDeleteInFlight
	}
	v.deleting[id] = true
	v.mu.Unlock()

	err := v.source.DeleteStudent(context.WithoutCancel(ctx), id)

	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.deleting, id)
	if err != nil {
		v.alert = RosterDeleteFailed
		v.logger.Warn("delete student", zap.String("id", id), zap.Error(err))
		return v.viewLocked(), nil
	}
	if idx := v.indexLocked(id); idx >= 0 {
		v.records = append(v.records[:idx:idx], v.records[idx+1:]...)
	}
	v.alert = RosterDeleteSucceeded
	v.logger.Info("student deleted", zap.String("id", id))
	return v.viewLocked(), nil
}

// View returns a snapshot of the viewer.
func (v *RosterViewer) View() dto.RosterView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewLocked()
}

// Flash returns a snapshot and clears the alert so it is shown once.
func (v *RosterViewer) Flash() dto.RosterView {
	v.mu.Lock()
	defer v.mu.Unlock()
	view := v.viewLocked()
	v.alert = ""
	return view
}

// Records returns a copy of the loaded records.
func (v *RosterViewer) Records() []models.StudentRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.StudentRecord, len(v.records))
	copy(out, v.records)
	return out
}

func (v *RosterViewer) indexLocked(id string) int {
	for i, r := range v.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (v *RosterViewer) viewLocked() dto.RosterView {
	view := dto.RosterView{
		Mode:            v.mode,
		Loading:         v.loading,
		Loaded:          v.loaded,
		Error:           v.banner,
		Authenticated:   v.authenticated,
		Alert:           v.alert,
		DeleteSupported: v.mode == dto.RosterOpen,
		Rows:            make([]models.RosterRow, 0, len(v.records)),
	}
	for _, r := range v.records {
		row := r.Row()
		row.Deleting = v.deleting[r.ID]
		view.Rows = append(view.Rows, row)
	}
	return view
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/export"
)

type rosterLister interface {
	ListStudents(ctx context.Context) ([]models.StudentRecord, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Roster export column headers.
const (
	columnID      = "ID"
	columnName    = "Name"
	columnDOB     = "Date of Birth"
	columnClass   = "Class"
	columnContact = "Parent Contact"
)

// ExportFile is a rendered roster ready to be sent as an attachment.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders the open roster into downloadable files.
type ExportService struct {
	roster    rosterLister
	renderers map[string]renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an export service with CSV, PDF and XLSX renderers.
func NewExportService(roster rosterLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ExportService{
		roster:    roster,
		renderers: make(map[string]renderer),
		logger:    logger,
		now:       time.Now,
	}
	for _, r := range []renderer{export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter()} {
		svc.renderers[r.Extension()] = r
	}
	return svc
}

// Formats lists the supported export formats.
func (s *ExportService) Formats() []string {
	return []string{"csv", "pdf", "xlsx"}
}

// Export fetches the roster and renders it in the requested format.
func (s *ExportService) Export(ctx context.Context, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+format)
	}

	records, err := s.roster.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	body, err := r.Render(s.dataset(records))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	s.logger.Info("roster exported", zap.String("format", format), zap.Int("rows", len(records)))
	return &ExportFile{
		Filename:    fmt.Sprintf("students-%s.%s", s.now().Format("20060102-150405"), r.Extension()),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

func (s *ExportService) dataset(records []models.StudentRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := rec.Row()
		rows = append(rows, map[string]string{
			columnID:      row.ID,
			columnName:    row.Name,
			columnDOB:     row.DOB,
			columnClass:   row.StudentClass,
			columnContact: row.ParentContact,
		})
	}
	return export.Dataset{
		Title:   "Registered Students",
		Headers: []string{columnID, columnName, columnDOB, columnClass, columnContact},
		Rows:    rows,
	}
}

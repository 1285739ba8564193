package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

func TestExportServiceCSV(t *testing.T) {
	svc := NewExportService(&fakeRosterSource{records: threeStudents()}, nil)
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC) }

	file, err := svc.Export(context.Background(), "CSV")
	require.NoError(t, err)
	assert.Equal(t, "students-20260504-030201.csv", file.Filename)
	assert.True(t, strings.HasPrefix(file.ContentType, "text/csv"))

	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID,Name,Date of Birth,Class,Parent Contact", lines[0])
	assert.Equal(t, "3,Asha Rao,Not Provided,N/A,N/A", lines[1])
	assert.Equal(t, "9,Unknown,Not Provided,N/A,N/A", lines[3])
}

func TestExportServiceBinaryFormats(t *testing.T) {
	svc := NewExportService(&fakeRosterSource{records: threeStudents()}, nil)

	pdf, err := svc.Export(context.Background(), "pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))
	assert.Equal(t, "application/pdf", pdf.ContentType)

	xlsx, err := svc.Export(context.Background(), "xlsx")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(xlsx.Body, []byte("PK")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&fakeRosterSource{}, nil)
	_, err := svc.Export(context.Background(), "docx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServicePropagatesFetchError(t *testing.T) {
	svc := NewExportService(&fakeRosterSource{listErr: appErrors.ErrUpstreamUnavailable}, nil)
	_, err := svc.Export(context.Background(), "csv")
	assert.ErrorIs(t, err, appErrors.ErrUpstreamUnavailable)
}

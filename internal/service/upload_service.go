package service

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/storage"
)

// sniffLen matches the prefix mimetype inspects by default.
const sniffLen = 3072

type uploadStorage interface {
	SaveStream(key string, r io.Reader) (int64, error)
	Delete(key string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// UploadService spools uploaded files on disk and describes them with file handles.
type UploadService struct {
	storage uploadStorage
	logger  *zap.Logger
}

// NewUploadService constructs an upload service.
func NewUploadService(store uploadStorage, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{storage: store, logger: logger}
}

// Spool stores r under a fresh key scoped to the session. The content type is sniffed from
// the leading bytes; the browser-supplied type is not trusted.
func (s *UploadService) Spool(sessionID, filename string, r io.Reader) (*models.FileHandle, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file is empty")
	}

	key := sessionID + "/" + uuid.NewString()
	size, err := s.storage.SaveStream(key, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.ErrFileTooLarge
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
	}

	handle := &models.FileHandle{
		Key:         key,
		Filename:    cleanFilename(filename),
		ContentType: mimetype.Detect(head).String(),
		Size:        size,
	}
	s.logger.Debug("upload spooled",
		zap.String("key", key),
		zap.String("content_type", handle.ContentType),
		zap.Int64("size", size),
	)
	return handle, nil
}

// Delete releases a spooled file.
func (s *UploadService) Delete(key string) error {
	return s.storage.Delete(key)
}

// Cleanup removes spooled files older than ttl.
func (s *UploadService) Cleanup(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	deleted, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("cleanup uploads", zap.Error(err))
	}
	if len(deleted) > 0 {
		s.logger.Info("stale uploads removed", zap.Int("count", len(deleted)))
	}
	return len(deleted)
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return "upload"
	}
	return name
}

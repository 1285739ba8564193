package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/middleware/requestid"
)

const maxResponseBody = 1 << 20

// Outcome labels reported to the call observer.
const (
	CallOK          = "ok"
	CallRejected    = "rejected"
	CallUnavailable = "unavailable"
)

type fileOpener interface {
	Open(key string) (*os.File, error)
}

type callObserver interface {
	ObserveRegistryCall(operation, outcome string, duration time.Duration)
}

// RegistryRepository talks to the external registration server over HTTP.
type RegistryRepository struct {
	baseURL  string
	client   *http.Client
	files    fileOpener
	observer callObserver
	logger   *zap.Logger
}

// NewRegistryRepository constructs a registry client. A nil http.Client uses a client
// without timeout.
func NewRegistryRepository(baseURL string, client *http.Client, files fileOpener, observer callObserver, logger *zap.Logger) *RegistryRepository {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryRepository{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		files:    files,
		observer: observer,
		logger:   logger,
	}
}

// Register posts the payload as multipart/form-data. File parts are streamed from the
// upload spool rather than buffered.
func (r *RegistryRepository) Register(ctx context.Context, payload models.RegistrationPayload) (*models.RegisterResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := r.writeMultipart(mw, payload)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/register", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build register request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.do(req, "register")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var body struct {
		Message string `json:"message"`
	}
	// The success body is informational only.
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body)
	return &models.RegisterResult{Status: resp.StatusCode, Message: body.Message}, nil
}

// ListStudents fetches the open roster from GET /students.
func (r *RegistryRepository) ListStudents(ctx context.Context) ([]models.StudentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/students", nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build roster request")
	}
	resp, err := r.do(req, "list_students")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var records []models.StudentRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16*maxResponseBody)).Decode(&records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamRejected.Code, appErrors.ErrUpstreamRejected.Status, "invalid roster payload")
	}
	return records, nil
}

// ListAdminStudents fetches the token-gated roster from GET /admin/students.
func (r *RegistryRepository) ListAdminStudents(ctx context.Context, token string) ([]models.StudentRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/admin/students", nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build admin roster request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := r.do(req, "list_admin_students")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var body struct {
		Students []models.StudentRecord `json:"students"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16*maxResponseBody)).Decode(&body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamRejected.Code, appErrors.ErrUpstreamRejected.Status, "invalid admin roster payload")
	}
	return body.Students, nil
}

// DeleteStudent removes a record by id. Any 2xx status is success.
func (r *RegistryRepository) DeleteStudent(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.baseURL+"/students/"+url.PathEscape(id), nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build delete request")
	}
	resp, err := r.do(req, "delete_student")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	return resp.Body.Close()
}

// Login exchanges administrator credentials for a bearer token via POST /admin/login.
func (r *RegistryRepository) Login(ctx context.Context, creds models.LoginRequest) (*models.AdminSession, error) {
	raw, err := json.Marshal(creds)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "encode login request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/admin/login", bytes.NewReader(raw))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build login request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.do(req, "login")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var session models.AdminSession
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamRejected.Code, appErrors.ErrUpstreamRejected.Status, "invalid login payload")
	}
	if session.Token == "" {
		return nil, appErrors.Clone(appErrors.ErrUpstreamRejected, "login response carried no token")
	}
	return &session, nil
}

// do executes req and converts non-2xx answers into typed upstream errors. On success the
// caller owns resp.Body.
func (r *RegistryRepository) do(req *http.Request, operation string) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	if id := requestid.FromContext(req.Context()); id != "" {
		req.Header.Set(requestid.Header(), id)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		r.observe(operation, CallUnavailable, duration)
		r.logger.Warn("registry call failed",
			zap.String("operation", operation),
			zap.Duration("latency", duration),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close() //nolint:errcheck
		r.observe(operation, CallRejected, duration)
		upstream := decodeUpstreamError(resp)
		r.logger.Info("registry call rejected",
			zap.String("operation", operation),
			zap.Int("status", resp.StatusCode),
			zap.String("upstream_error", upstream.Message),
			zap.Duration("latency", duration),
		)
		return nil, upstream
	}

	r.observe(operation, CallOK, duration)
	r.logger.Debug("registry call",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", duration),
	)
	return resp, nil
}

func (r *RegistryRepository) observe(operation, outcome string, d time.Duration) {
	if r.observer != nil {
		r.observer.ObserveRegistryCall(operation, outcome, d)
	}
}

// decodeUpstreamError extracts {"error": "..."}; bodies that are not JSON yield an empty message.
func decodeUpstreamError(resp *http.Response) *appErrors.Error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body)
	return appErrors.Upstream(resp.StatusCode, strings.TrimSpace(body.Error))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (r *RegistryRepository) writeMultipart(mw *multipart.Writer, payload models.RegistrationPayload) error {
	for _, part := range payload.Parts {
		if part.File == nil {
			if err := mw.WriteField(string(part.Name), part.Value); err != nil {
				return fmt.Errorf("write field %s: %w", part.Name, err)
			}
			continue
		}
		if err := r.writeFilePart(mw, part); err != nil {
			return err
		}
	}
	return nil
}

func (r *RegistryRepository) writeFilePart(mw *multipart.Writer, part models.PayloadPart) error {
	if r.files == nil {
		return fmt.Errorf("no upload storage configured for %s", part.Name)
	}
	src, err := r.files.Open(part.File.Key)
	if err != nil {
		return fmt.Errorf("open upload %s: %w", part.Name, err)
	}
	defer src.Close() //nolint:errcheck

	contentType := part.File.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(string(part.Name)), quoteEscaper.Replace(part.File.Filename)))
	h.Set("Content-Type", contentType)

	w, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", part.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("stream upload %s: %w", part.Name, err)
	}
	return nil
}

package handler

import (
	"embed"
	"errors"
	"html/template"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/dto"
	"github.com/noah-isme/sma-registration-portal/internal/models"
	"github.com/noah-isme/sma-registration-portal/internal/service"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.New("pages").ParseFS(templateFS, "templates/*.html")
}

const multipartMemory = 8 << 20

type formPage struct {
	Title    string
	Form     dto.FormView
	Action   string
	Required bool
	Notice   string
}

type rosterPage struct {
	Title         string
	Roster        dto.RosterView
	Authenticated bool
}

type loginPage struct {
	Title    string
	Error    string
	Username string
	Status   models.TokenStatus
}

// PageHandler renders the browser pages.
type PageHandler struct {
	uploads *service.UploadService
	auth    *service.AuthService
	logger  *zap.Logger
}

// NewPageHandler constructs PageHandler.
func NewPageHandler(uploads *service.UploadService, auth *service.AuthService, logger *zap.Logger) *PageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageHandler{uploads: uploads, auth: auth, logger: logger}
}

// ShowForm renders the form selected by the route group.
func (h *PageHandler) ShowForm(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	h.renderForm(c, http.StatusOK, form, form.View(), "")
}

// PostForm applies the posted step fields, then runs the requested action: next, back
// or submit.
func (h *PageHandler) PostForm(c *gin.Context) {
	sess, form, ok := formFromContext(c)
	if !ok {
		return
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.renderForm(c, http.StatusBadRequest, form, form.View(), "The form could not be read. Please try again.")
		return
	}

	view := form.View()
	if notice, err := h.applyStep(c, sess, form, view.StepFields); err != nil {
		h.renderForm(c, appErrors.FromError(err).Status, form, form.View(), notice)
		return
	}

	var err error
	switch c.PostForm("action") {
	case "back":
		view, err = form.Retreat()
	case "next":
		if view.CanAdvance {
			view, err = form.Advance()
			break
		}
		view, err = form.Submit(c.Request.Context())
	default:
		view, err = form.Submit(c.Request.Context())
	}

	if err != nil {
		h.renderForm(c, appErrors.FromError(err).Status, form, view, appErrors.FromError(err).Message)
		return
	}
	h.renderForm(c, http.StatusOK, form, view, "")
}

func (h *PageHandler) applyStep(c *gin.Context, sess *service.Session, form *service.RegistrationForm, fields []models.FieldSpec) (string, error) {
	texts := make(map[string]string)
	for _, spec := range fields {
		name := string(spec.Name)
		if spec.Kind == models.FieldText {
			if values, present := c.Request.PostForm[name]; present && len(values) > 0 {
				texts[name] = values[0]
			}
			continue
		}
		fh, err := c.FormFile(name)
		if err != nil || fh.Size == 0 {
			continue
		}
		if notice, err := h.attach(sess, form, name, fh); err != nil {
			return notice, err
		}
	}
	if _, err := form.SetTexts(texts); err != nil {
		return appErrors.FromError(err).Message, err
	}
	return "", nil
}

func (h *PageHandler) attach(sess *service.Session, form *service.RegistrationForm, name string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "The uploaded file could not be read.", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	defer src.Close() //nolint:errcheck

	handle, err := h.uploads.Spool(sess.ID, fh.Filename, src)
	if err != nil {
		return appErrors.FromError(err).Message, err
	}
	if _, err := form.SetFile(name, handle); err != nil {
		_ = h.uploads.Delete(handle.Key)
		return appErrors.FromError(err).Message, err
	}
	return "", nil
}

func (h *PageHandler) renderForm(c *gin.Context, status int, form *service.RegistrationForm, view dto.FormView, notice string) {
	c.HTML(status, "form.html", formPage{
		Title:    view.Title,
		Form:     view,
		Action:   c.Request.URL.Path,
		Required: form.Name() == service.WizardConfig().Name,
		Notice:   notice,
	})
}

// AdminDashboard fetches and renders the open roster with delete controls.
func (h *PageHandler) AdminDashboard(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	sess.Roster.Load(c.Request.Context())
	c.HTML(http.StatusOK, "roster.html", rosterPage{
		Title:         "Admin Dashboard",
		Roster:        sess.Roster.Flash(),
		Authenticated: h.authenticated(c, sess),
	})
}

// DeleteStudent deletes a row of the open roster and returns to the dashboard.
func (h *PageHandler) DeleteStudent(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	id, valid := models.ParseStudentID(c.Param("id"))
	if valid {
		if _, err := sess.Roster.Delete(c.Request.Context(), id, c.PostForm("confirm") == "true"); err != nil {
			h.logger.Info("delete rejected", zap.String("id", id), zap.Error(err))
		}
	}
	c.Redirect(http.StatusSeeOther, "/admin")
}

// StudentList renders the token-gated roster.
func (h *PageHandler) StudentList(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	view := sess.Admin.Load(c.Request.Context())
	status := http.StatusOK
	if !view.Authenticated {
		status = http.StatusUnauthorized
	}
	c.HTML(status, "roster.html", rosterPage{
		Title:         "Student List",
		Roster:        view,
		Authenticated: view.Authenticated,
	})
}

// ShowLogin renders the admin login page.
func (h *PageHandler) ShowLogin(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	page := loginPage{Title: "Admin Login"}
	if status, err := h.auth.Status(c.Request.Context(), sess.ID); err == nil {
		page.Status = status
	}
	c.HTML(http.StatusOK, "login.html", page)
}

// Login stores the admin token for the session and redirects to the student list.
func (h *PageHandler) Login(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req models.LoginRequest
	_ = c.ShouldBind(&req)
	if _, err := h.auth.Login(c.Request.Context(), sess.ID, req); err != nil {
		appErr := appErrors.FromError(err)
		message := appErr.Message
		if appErrors.IsCode(err, appErrors.ErrUpstreamUnavailable.Code) {
			message = "⚠️ A network error occurred. Please check the backend."
		}
		status := appErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadRequest
		}
		c.HTML(status, "login.html", loginPage{Title: "Admin Login", Error: message, Username: req.Username})
		return
	}
	c.Redirect(http.StatusSeeOther, "/students")
}

// Logout drops the admin token and returns to the login page.
func (h *PageHandler) Logout(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), sess.ID); err != nil {
		h.logger.Warn("logout", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *PageHandler) authenticated(c *gin.Context, sess *service.Session) bool {
	if h.auth == nil {
		return false
	}
	status, err := h.auth.Status(c.Request.Context(), sess.ID)
	return err == nil && status.Authenticated()
}

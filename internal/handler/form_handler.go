package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-registration-portal/internal/dto"
	"github.com/noah-isme/sma-registration-portal/internal/models"
	"github.com/noah-isme/sma-registration-portal/internal/service"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/response"
)

// FormHandler exposes the registration forms as JSON endpoints. The form is selected by
// the route group via WithForm.
type FormHandler struct {
	uploads *service.UploadService
}

// NewFormHandler constructs FormHandler.
func NewFormHandler(uploads *service.UploadService) *FormHandler {
	return &FormHandler{uploads: uploads}
}

// Get godoc
// @Summary Get form state
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /wizard [get]
func (h *FormHandler) Get(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, form.View())
}

// UpdateFields godoc
// @Summary Merge text fields into the draft
// @Tags Forms
// @Accept json
// @Produce json
// @Param payload body dto.UpdateFieldsRequest true "Field values keyed by field name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /wizard/fields [patch]
func (h *FormHandler) UpdateFields(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid fields payload"))
		return
	}
	view, err := form.SetTexts(req.Fields)
	if err != nil {
		response.ErrorWithData(c, err, view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// UploadFile godoc
// @Summary Attach a document to the draft
// @Tags Forms
// @Accept mpfd
// @Produce json
// @Param field path string true "File field (aadhar or photo)"
// @Param file formData file true "Document"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /wizard/files/{field} [post]
func (h *FormHandler) UploadFile(c *gin.Context) {
	sess, form, ok := formFromContext(c)
	if !ok {
		return
	}
	field := c.Param("field")
	if spec, found := models.LookupField(field); !found || spec.Kind != models.FieldFile {
		response.Error(c, appErrors.Clone(appErrors.ErrUnknownField, "unknown file field "+field))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fh.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	handle, err := h.uploads.Spool(sess.ID, fh.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := form.SetFile(field, handle)
	if err != nil {
		_ = h.uploads.Delete(handle.Key)
		response.ErrorWithData(c, err, view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// ClearFile godoc
// @Summary Remove a document from the draft
// @Tags Forms
// @Produce json
// @Param field path string true "File field (aadhar or photo)"
// @Success 200 {object} response.Envelope
// @Router /wizard/files/{field} [delete]
func (h *FormHandler) ClearFile(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	view, err := form.SetFile(c.Param("field"), nil)
	if err != nil {
		response.ErrorWithData(c, err, view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Advance godoc
// @Summary Move to the next step
// @Description An incomplete step is reported through outcome and leaves the step unchanged.
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /wizard/advance [post]
func (h *FormHandler) Advance(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	view, err := form.Advance()
	if err != nil {
		response.ErrorWithData(c, err, view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Retreat godoc
// @Summary Move to the previous step
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /wizard/retreat [post]
func (h *FormHandler) Retreat(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	view, err := form.Retreat()
	if err != nil {
		response.ErrorWithData(c, err, view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Submit godoc
// @Summary Submit the draft to the registration server
// @Description Server and network failures are reported through outcome; the draft is kept.
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /wizard/submit [post]
func (h *FormHandler) Submit(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	view, err := form.Submit(c.Request.Context())
	if err != nil {
		response.ErrorWithData(c, err, view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Reset godoc
// @Summary Discard the draft
// @Tags Forms
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /wizard [delete]
func (h *FormHandler) Reset(c *gin.Context) {
	_, form, ok := formFromContext(c)
	if !ok {
		return
	}
	form.Reset()
	response.JSON(c, http.StatusOK, form.View())
}

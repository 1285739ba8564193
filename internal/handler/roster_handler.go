package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-registration-portal/internal/models"
	"github.com/noah-isme/sma-registration-portal/internal/service"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/response"
)

// RosterHandler exposes the roster viewers and the roster export.
type RosterHandler struct {
	exports *service.ExportService
}

// NewRosterHandler constructs RosterHandler.
func NewRosterHandler(exports *service.ExportService) *RosterHandler {
	return &RosterHandler{exports: exports}
}

// List godoc
// @Summary List registered students
// @Description Fetches on first use; later calls return the held list.
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster [get]
func (h *RosterHandler) List(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if !sess.Roster.Loaded() {
		response.JSON(c, http.StatusOK, sess.Roster.Load(c.Request.Context()))
		return
	}
	response.JSON(c, http.StatusOK, sess.Roster.View())
}

// Reload godoc
// @Summary Refetch registered students
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster/reload [post]
func (h *RosterHandler) Reload(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, sess.Roster.Load(c.Request.Context()))
}

// Delete godoc
// @Summary Delete a registered student
// @Description Without confirm=true nothing is deleted.
// @Tags Roster
// @Produce json
// @Param id path string true "Student ID"
// @Param confirm query bool false "Confirm deletion"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /roster/{id} [delete]
func (h *RosterHandler) Delete(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	id, valid := models.ParseStudentID(c.Param("id"))
	if !valid {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student id"))
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	view, err := sess.Roster.Delete(c.Request.Context(), id, confirmed)
	if err != nil {
		response.ErrorWithData(c, err, view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Export godoc
// @Summary Download the roster
// @Tags Roster
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /roster/export [get]
func (h *RosterHandler) Export(c *gin.Context) {
	file, err := h.exports.Export(c.Request.Context(), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// AdminList godoc
// @Summary List students through the token-gated endpoint
// @Description Uses the admin token held by the session. A missing, expired or rejected token yields authenticated=false.
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/students [get]
func (h *RosterHandler) AdminList(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	view := sess.Admin.Load(c.Request.Context())
	if !view.Authenticated {
		response.ErrorWithData(c, appErrors.Clone(appErrors.ErrNotAuthenticated, view.Error), view)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

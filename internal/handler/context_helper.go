package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-registration-portal/internal/middleware"
	"github.com/noah-isme/sma-registration-portal/internal/service"
	appErrors "github.com/noah-isme/sma-registration-portal/pkg/errors"
	"github.com/noah-isme/sma-registration-portal/pkg/response"
)

const contextFormKey = "formName"

// WithForm tags a route group with the form it operates on.
func WithForm(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(contextFormKey, name)
		c.Next()
	}
}

func sessionFromContext(c *gin.Context) (*service.Session, bool) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "session not resolved"))
		return nil, false
	}
	return sess, true
}

func formFromContext(c *gin.Context) (*service.Session, *service.RegistrationForm, bool) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return nil, nil, false
	}
	form := sess.Form(c.GetString(contextFormKey))
	if form == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown form"))
		return nil, nil, false
	}
	return sess, form, true
}

package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-registration-portal/internal/middleware"
	"github.com/noah-isme/sma-registration-portal/internal/service"
	"github.com/noah-isme/sma-registration-portal/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-registration-portal/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-registration-portal/pkg/middleware/requestid"
)

// Handlers groups every handler mounted by NewRouter.
type Handlers struct {
	Forms   *FormHandler
	Roster  *RosterHandler
	Auth    *AuthHandler
	Pages   *PageHandler
	Metrics *MetricsHandler
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	APIPrefix string
	Session   middleware.SessionOptions
	CORS      corsmiddleware.Options
}

// NewRouter builds the gin engine with the page, API and ops routes.
func NewRouter(h Handlers, sessions *service.SessionService, metrics *service.MetricsService, logr *zap.Logger, opts RouterOptions) (*gin.Engine, error) {
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}
	tmpl, err := Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(opts.CORS))
	r.SetHTMLTemplate(tmpl)

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	withSession := middleware.Session(sessions, opts.Session)

	pages := r.Group("", withSession)
	pages.GET("/", WithForm("wizard"), h.Pages.ShowForm)
	pages.POST("/", WithForm("wizard"), h.Pages.PostForm)
	pages.GET("/flat", WithForm("flat"), h.Pages.ShowForm)
	pages.POST("/flat", WithForm("flat"), h.Pages.PostForm)
	pages.GET("/admin", h.Pages.AdminDashboard)
	pages.POST("/admin/students/:id/delete", h.Pages.DeleteStudent)
	pages.GET("/students", h.Pages.StudentList)
	pages.GET("/login", h.Pages.ShowLogin)
	pages.POST("/login", h.Pages.Login)
	pages.POST("/logout", h.Pages.Logout)

	api := r.Group(opts.APIPrefix, withSession)
	for _, name := range []string{"wizard", "flat"} {
		forms := api.Group("/"+name, WithForm(name))
		forms.GET("", h.Forms.Get)
		forms.DELETE("", h.Forms.Reset)
		forms.PATCH("/fields", h.Forms.UpdateFields)
		forms.POST("/files/:field", h.Forms.UploadFile)
		forms.DELETE("/files/:field", h.Forms.ClearFile)
		forms.POST("/advance", h.Forms.Advance)
		forms.POST("/retreat", h.Forms.Retreat)
		forms.POST("/submit", h.Forms.Submit)
	}

	api.GET("/roster", h.Roster.List)
	api.POST("/roster/reload", h.Roster.Reload)
	api.GET("/roster/export", h.Roster.Export)
	api.DELETE("/roster/:id", h.Roster.Delete)
	api.GET("/admin/students", h.Roster.AdminList)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/logout", h.Auth.Logout)
	api.GET("/auth/status", h.Auth.Status)

	return r, nil
}

// Package router builds the echo instance: the middleware chain and the
// route table.
package router

import (
	"net/http"

	"github.com/deppfellow/lead-intake/internal/handler"
	"github.com/deppfellow/lead-intake/internal/middleware"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/deppfellow/lead-intake/internal/service"
	"github.com/labstack/echo/v4"
)

func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s, services.Auth)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	router.Use(
		middlewares.Global.Recover(),
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Metrics(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middlewares.Global.BodyLimit(),
	)

	registerSystemRoutes(router, h)
	registerLeadRoutes(router, h.Lead, middlewares)
	registerAuthRoutes(router, h.Auth, middlewares)

	return router
}

func registerLeadRoutes(r *echo.Echo, h *handler.LeadHandler, m *middleware.Middlewares) {
	r.POST("/leads",
		handler.Handle(h.Handler, h.CreateLead, http.StatusCreated, h.NewCreateLeadRequest),
		m.RateLimit.SubmitLimiter(),
		m.Global.SubmitBodyLimit(),
	)

	leads := r.Group("/leads", m.Auth.RequireAuth)
	leads.GET("", handler.Handle(h.Handler, h.ListLeads, http.StatusOK, newRequest[model.ListLeadsRequest]))
	leads.GET("/:id", handler.Handle(h.Handler, h.GetLead, http.StatusOK, newRequest[model.LeadIDRequest]))
	leads.PUT("/:id", h.UpdateNotAllowed)
	leads.PATCH("/:id", h.UpdateNotAllowed)
	leads.POST("/:id/mark-reached-out", handler.Handle(h.Handler, h.MarkReachedOut, http.StatusOK, newRequest[model.LeadIDRequest]))
	leads.GET("/:id/resume", handler.HandleFile(h.Handler, h.DownloadResume, newRequest[model.LeadIDRequest]))
	leads.POST("/:id/process-resume", handler.Handle(h.Handler, h.ProcessResume, http.StatusAccepted, newRequest[model.LeadIDRequest]))
}

func registerAuthRoutes(r *echo.Echo, h *handler.AuthHandler, m *middleware.Middlewares) {
	auth := r.Group("/auth")
	auth.POST("/login", handler.Handle(h.Handler, h.Login, http.StatusOK, newRequest[model.LoginRequest]))
	auth.POST("/logout", handler.Handle(h.Handler, h.Logout, http.StatusOK, newRequest[model.EmptyRequest]), m.Auth.RequireAuth)
	auth.POST("/change-password", handler.Handle(h.Handler, h.ChangePassword, http.StatusOK, newRequest[model.ChangePasswordRequest]), m.Auth.RequireAuth)
}

func newRequest[T any]() *T {
	return new(T)
}

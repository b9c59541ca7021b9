package handler

import (
	"fmt"
	"net/http"

	"github.com/deppfellow/lead-intake/internal/errs"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/deppfellow/lead-intake/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	MsgMarkedReachedOut       = "Lead marked as REACHED_OUT"
	MsgResumeProcessingQueued = "Resume processing scheduled"
	MsgLeadUpdateNotAllowed   = "Leads cannot be updated"
)

type MarkReachedOutResponse struct {
	Status string      `json:"status"`
	Lead   *model.Lead `json:"lead"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LeadHandler struct {
	Handler
	leads *service.LeadService
}

func NewLeadHandler(s *server.Server, leads *service.LeadService) *LeadHandler {
	return &LeadHandler{
		Handler: NewHandler(s),
		leads:   leads,
	}
}

func (h *LeadHandler) NewCreateLeadRequest() *model.CreateLeadRequest {
	return model.NewCreateLeadRequest(h.server.Config.Leads.MaxResumeSize)
}

func (h *LeadHandler) CreateLead(c echo.Context, req *model.CreateLeadRequest) (*model.Lead, error) {
	return h.leads.Submit(c.Request().Context(), req)
}

func (h *LeadHandler) ListLeads(c echo.Context, req *model.ListLeadsRequest) ([]model.LeadSummary, error) {
	return h.leads.List(c.Request().Context(), req)
}

func (h *LeadHandler) GetLead(c echo.Context, req *model.LeadIDRequest) (*model.LeadDetail, error) {
	lead, err := h.leads.Get(c.Request().Context(), uuid.MustParse(req.ID))
	if err != nil {
		return nil, err
	}

	detail := &model.LeadDetail{Lead: *lead}
	if lead.HasResume() {
		u := resumeURL(c, lead.ID)
		detail.ResumeURL = &u
	}
	return detail, nil
}

func (h *LeadHandler) MarkReachedOut(c echo.Context, req *model.LeadIDRequest) (*MarkReachedOutResponse, error) {
	lead, err := h.leads.MarkReachedOut(c.Request().Context(), uuid.MustParse(req.ID))
	if err != nil {
		return nil, err
	}
	return &MarkReachedOutResponse{Status: MsgMarkedReachedOut, Lead: lead}, nil
}

func (h *LeadHandler) DownloadResume(c echo.Context, req *model.LeadIDRequest) (*FileResult, error) {
	lead, file, err := h.leads.OpenResume(c.Request().Context(), uuid.MustParse(req.ID))
	if err != nil {
		return nil, err
	}

	return &FileResult{
		Name:    lead.ResumeDownloadName(),
		ModTime: file.ModTime,
		Size:    file.Size,
		Content: file,
	}, nil
}

func (h *LeadHandler) ProcessResume(c echo.Context, req *model.LeadIDRequest) (*MessageResponse, error) {
	if err := h.leads.ProcessResume(c.Request().Context(), uuid.MustParse(req.ID)); err != nil {
		return nil, err
	}
	return &MessageResponse{Message: MsgResumeProcessingQueued}, nil
}

// UpdateNotAllowed answers PUT and PATCH on a lead: leads only change
// through mark-reached-out.
func (h *LeadHandler) UpdateNotAllowed(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderAllow, http.MethodGet)
	return errs.NewMethodNotAllowedError(MsgLeadUpdateNotAllowed)
}

// resumeURL is the absolute URL of the download endpoint of lead id, as
// seen by the caller.
func resumeURL(c echo.Context, id uuid.UUID) string {
	return fmt.Sprintf("%s://%s/leads/%s/resume", c.Scheme(), c.Request().Host, id)
}

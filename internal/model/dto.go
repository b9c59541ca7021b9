package model

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/deppfellow/lead-intake/internal/validation"
	"github.com/labstack/echo/v4"
)

// AllowedResumeExtensions are the accepted resume formats, lowercase and
// without the dot.
var AllowedResumeExtensions = []string{"pdf", "doc", "docx"}

// CreateLeadRequest is the public submission. It arrives as
// multipart/form-data (with an optional "resume" file) or as JSON.
// State is deliberately absent: new leads always start PENDING.
type CreateLeadRequest struct {
	FirstName string `json:"first_name" form:"first_name" validate:"required,max=20"`
	LastName  string `json:"last_name" form:"last_name" validate:"required,max=20"`
	Email     string `json:"email" form:"email" validate:"required,email,max=100"`

	Resume *multipart.FileHeader `json:"-" form:"-" validate:"-"`

	maxResumeSize int64
}

// NewCreateLeadRequest returns an empty request enforcing maxResumeSize bytes.
func NewCreateLeadRequest(maxResumeSize int64) *CreateLeadRequest {
	return &CreateLeadRequest{maxResumeSize: maxResumeSize}
}

// BindFiles picks up the optional resume upload.
func (r *CreateLeadRequest) BindFiles(c echo.Context) error {
	fh, err := c.FormFile("resume")
	switch {
	case err == nil:
		r.Resume = fh
		return nil
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil
	default:
		return fmt.Errorf("could not read resume upload: %w", err)
	}
}

func (r *CreateLeadRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)

	problems := validation.ValidateStruct(r)
	if r.Resume != nil {
		if msg := r.resumeProblem(); msg != "" {
			problems = append(problems, validation.CustomValidationError{Field: "resume", Message: msg})
		}
	}

	if len(problems) > 0 {
		return problems
	}
	return nil
}

func (r *CreateLeadRequest) resumeProblem() string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(r.Resume.Filename)), ".")
	if !isAllowedResumeExtension(ext) {
		return fmt.Sprintf("File extension %q is not allowed. Allowed extensions are: %s.",
			ext, strings.Join(AllowedResumeExtensions, ", "))
	}
	if r.Resume.Size == 0 {
		return "The submitted file is empty."
	}
	if r.maxResumeSize > 0 && r.Resume.Size > r.maxResumeSize {
		return ResumeTooLargeMessage(r.maxResumeSize)
	}
	return ""
}

// ResumeTooLargeMessage is the resume field error for an upload over max.
func ResumeTooLargeMessage(max int64) string {
	return fmt.Sprintf("File size must not exceed %s.", FormatSize(max))
}

func isAllowedResumeExtension(ext string) bool {
	for _, allowed := range AllowedResumeExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// FormatSize renders a byte count as "5 MB", "512 KB" or "100 bytes".
func FormatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// ListLeadsRequest optionally filters the admin list by state.
type ListLeadsRequest struct {
	State string `query:"state" json:"state"`
}

func (r *ListLeadsRequest) Validate() error {
	if r.State != "" && !LeadState(r.State).Valid() {
		names := make([]string, 0, len(LeadStates))
		for _, s := range LeadStates {
			names = append(names, string(s))
		}
		return validation.CustomValidationErrors{{
			Field:   "state",
			Message: "must be one of: " + strings.Join(names, " "),
		}}
	}
	return nil
}

// LeadIDRequest addresses a single lead by path parameter. The id is never
// read from the body or the query string.
type LeadIDRequest struct {
	ID string `param:"id" json:"-" form:"-" query:"-" validate:"required,uuid"`
}

func (r *LeadIDRequest) Validate() error {
	if problems := validation.ValidateStruct(r); problems != nil {
		return problems
	}
	return nil
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	if problems := validation.ValidateStruct(r); problems != nil {
		return problems
	}
	return nil
}

// ChangePasswordRequest rotates the caller's password. The minimum length
// is a configuration value and is checked by the auth service.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" form:"old_password" validate:"required"`
	NewPassword string `json:"new_password" form:"new_password" validate:"required"`
}

func (r *ChangePasswordRequest) Validate() error {
	if problems := validation.ValidateStruct(r); problems != nil {
		return problems
	}
	return nil
}

// EmptyRequest is used by endpoints without a payload.
type EmptyRequest struct{}

func (r *EmptyRequest) Validate() error { return nil }

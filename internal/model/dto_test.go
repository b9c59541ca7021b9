package model

import (
	"errors"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/deppfellow/lead-intake/internal/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func problemsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var problems validation.CustomValidationErrors
	require.True(t, errors.As(err, &problems), "expected CustomValidationErrors, got %v", err)

	out := map[string]string{}
	for _, p := range problems {
		out[p.Field] = p.Message
	}
	return out
}

func validLead() *CreateLeadRequest {
	r := NewCreateLeadRequest(1 << 20)
	r.FirstName = "Jane"
	r.LastName = "Smith"
	r.Email = "jane.smith@example.com"
	return r
}

func TestCreateLeadRequestValid(t *testing.T) {
	r := validLead()
	r.Resume = &multipart.FileHeader{Filename: "resume.PDF", Size: 1024}

	assert.NoError(t, r.Validate())
}

func TestCreateLeadRequestRequiredFields(t *testing.T) {
	r := NewCreateLeadRequest(1 << 20)

	problems := problemsOf(t, r.Validate())
	assert.Equal(t, "is required", problems["first_name"])
	assert.Equal(t, "is required", problems["last_name"])
	assert.Equal(t, "is required", problems["email"])
}

func TestCreateLeadRequestLengthAndFormat(t *testing.T) {
	r := validLead()
	r.FirstName = strings.Repeat("a", 21)
	r.Email = "jane.smith"

	problems := problemsOf(t, r.Validate())
	assert.Equal(t, "must not exceed 20 characters", problems["first_name"])
	assert.Equal(t, "must be a valid email address", problems["email"])
	assert.NotContains(t, problems, "last_name")
}

func TestCreateLeadRequestEmailTooLong(t *testing.T) {
	r := validLead()
	r.Email = strings.Repeat("a", 50) + "@" + strings.Repeat("b", 50) + ".com"

	problems := problemsOf(t, r.Validate())
	assert.Equal(t, "must not exceed 100 characters", problems["email"])
}

func TestCreateLeadRequestResumeExtension(t *testing.T) {
	r := validLead()
	r.Resume = &multipart.FileHeader{Filename: "resume.exe", Size: 10}

	problems := problemsOf(t, r.Validate())
	assert.Contains(t, problems["resume"], "pdf, doc, docx")
}

func TestCreateLeadRequestResumeTooLarge(t *testing.T) {
	r := validLead()
	r.Resume = &multipart.FileHeader{Filename: "resume.docx", Size: 2 << 20}

	problems := problemsOf(t, r.Validate())
	assert.Equal(t, "File size must not exceed 1 MB.", problems["resume"])
}

func TestCreateLeadRequestResumeEmpty(t *testing.T) {
	r := validLead()
	r.Resume = &multipart.FileHeader{Filename: "resume.doc", Size: 0}

	problems := problemsOf(t, r.Validate())
	assert.Equal(t, "The submitted file is empty.", problems["resume"])
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "5 MB", FormatSize(5<<20))
	assert.Equal(t, "512 KB", FormatSize(512<<10))
	assert.Equal(t, "1000 bytes", FormatSize(1000))
}

func TestLeadIDRequest(t *testing.T) {
	assert.NoError(t, (&LeadIDRequest{ID: uuid.NewString()}).Validate())

	problems := problemsOf(t, (&LeadIDRequest{ID: "12"}).Validate())
	assert.Equal(t, "must be a valid UUID", problems["id"])
}

func TestListLeadsRequestState(t *testing.T) {
	assert.NoError(t, (&ListLeadsRequest{}).Validate())
	assert.NoError(t, (&ListLeadsRequest{State: "REACHED_OUT"}).Validate())

	err := (&ListLeadsRequest{State: "LOST"}).Validate()
	var problems validation.CustomValidationErrors
	require.ErrorAs(t, err, &problems)
	require.Len(t, problems, 1)
	assert.Equal(t, "state", problems[0].Field)
	assert.Equal(t, "must be one of: PENDING REACHED_OUT", problems[0].Message)
}

func TestLeadHelpers(t *testing.T) {
	resume := "resumes/3b1f.pdf"
	lead := &Lead{FirstName: "John", LastName: "Doe", Resume: &resume, State: LeadStatePending}

	assert.Equal(t, "John Doe", lead.FullName())
	assert.Equal(t, "Doe_John_resume.pdf", lead.ResumeDownloadName())

	now := time.Now()
	lead.MarkReachedOut(now)
	lead.MarkReachedOut(now)
	assert.Equal(t, LeadStateReachedOut, lead.State)
	assert.Equal(t, now, lead.UpdatedAt)
}

func TestStateCountsTotal(t *testing.T) {
	sc := StateCounts{LeadStatePending: 3, LeadStateReachedOut: 2}
	assert.Equal(t, 5, sc.Total())
}

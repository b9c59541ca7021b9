package service

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/deppfellow/lead-intake/internal/errs"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/sqlerr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLeadService(t *testing.T) (*LeadService, *fakeLeadStore, *fakeFileStore, *mockNotifier) {
	t.Helper()
	leads := newFakeLeadStore()
	files := newFakeFileStore()
	notifier := &mockNotifier{}
	t.Cleanup(func() { notifier.AssertExpectations(t) })
	return NewLeadService(nopLogger(), leads, files, notifier), leads, files, notifier
}

func submission() *model.CreateLeadRequest {
	req := model.NewCreateLeadRequest(5 << 20)
	req.FirstName = "Jane"
	req.LastName = "Smith"
	req.Email = "jane.smith@example.com"
	return req
}

func TestSubmitCreatesPendingLeadAndQueuesNotifications(t *testing.T) {
	svc, leads, _, notifier := newLeadService(t)

	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.MatchedBy(func(s model.LeadSnapshot) bool {
		return s.Email == "jane.smith@example.com" && s.Name == "Jane Smith"
	})).Return(nil).Once()

	lead, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)

	assert.Equal(t, model.LeadStatePending, lead.State)
	assert.Nil(t, lead.Resume)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.Len(t, leads.leads, 1)
	notifier.AssertNumberOfCalls(t, "EnqueueLeadNotifications", 1)
	notifier.AssertNotCalled(t, "EnqueueResumeProcessing", mock.Anything, mock.Anything)
}

func TestSubmitStoresResume(t *testing.T) {
	svc, _, files, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.Anything).Return(nil)

	req := submission()
	req.Resume = fileHeader(t, "My CV.PDF", "%PDF-1.4 resume")

	lead, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, lead.Resume)
	assert.Equal(t, "resumes/"+lead.ID.String()+".pdf", *lead.Resume)
	assert.Equal(t, "%PDF-1.4 resume", string(files.files[*lead.Resume]))
}

func TestSubmitRemovesResumeWhenInsertFails(t *testing.T) {
	svc, leads, files, _ := newLeadService(t)
	leads.createErr = errors.New("insert failed")

	req := submission()
	req.Resume = fileHeader(t, "cv.docx", "docx")

	_, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, files.files)
	assert.Empty(t, leads.leads)
}

func TestSubmitKeepsLeadWhenQueueingFails(t *testing.T) {
	svc, leads, _, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.Anything).Return(errors.New("redis: connection refused"))

	lead, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)
	assert.Contains(t, leads.leads, lead.ID)
}

func TestSubmitQueuesEvenIfRequestContextIsCancelled(t *testing.T) {
	svc, _, _, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	store := svc.leads
	svc.leads = cancellingStore{LeadStore: store, cancel: cancel}

	_, err := svc.Submit(ctx, submission())
	require.NoError(t, err)
}

type cancellingStore struct {
	LeadStore
	cancel context.CancelFunc
}

func (c cancellingStore) Create(ctx context.Context, lead *model.Lead) error {
	err := c.LeadStore.Create(ctx, lead)
	c.cancel()
	return err
}

func TestListNewestFirst(t *testing.T) {
	svc, _, _, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.Anything).Return(nil)

	first, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)

	list, err := svc.List(context.Background(), &model.ListLeadsRequest{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	_, err = svc.MarkReachedOut(context.Background(), first.ID)
	require.NoError(t, err)

	pending, err := svc.List(context.Background(), &model.ListLeadsRequest{State: string(model.LeadStatePending)})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestMarkReachedOutIsIdempotent(t *testing.T) {
	svc, _, _, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.Anything).Return(nil)

	lead, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)

	t1 := time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t1 }
	updated, err := svc.MarkReachedOut(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStateReachedOut, updated.State)
	assert.Equal(t, t1, updated.UpdatedAt)

	t2 := t1.Add(time.Hour)
	svc.now = func() time.Time { return t2 }
	again, err := svc.MarkReachedOut(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStateReachedOut, again.State)
	assert.Equal(t, t2, again.UpdatedAt)
	assert.Equal(t, lead.CreatedAt, again.CreatedAt)
}

func TestMarkReachedOutUnknownLead(t *testing.T) {
	svc, _, _, _ := newLeadService(t)

	_, err := svc.MarkReachedOut(context.Background(), uuid.New())
	assert.True(t, sqlerr.IsNotFound(err))
}

func TestOpenResume(t *testing.T) {
	svc, _, _, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.Anything).Return(nil)

	req := submission()
	req.Resume = fileHeader(t, "cv.pdf", "pdf bytes")
	lead, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	got, f, err := svc.OpenResume(context.Background(), lead.ID)
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(body))
	assert.Equal(t, "Smith_Jane_resume.pdf", got.ResumeDownloadName())
}

func TestOpenResumeWithoutResume(t *testing.T) {
	svc, _, _, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.Anything).Return(nil)

	lead, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)

	_, _, err = svc.OpenResume(context.Background(), lead.ID)

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
	assert.Equal(t, "Resume not found", httpErr.Message)
}

func TestProcessResumeQueuesJob(t *testing.T) {
	svc, _, _, notifier := newLeadService(t)
	notifier.On("EnqueueLeadNotifications", mock.Anything, mock.Anything).Return(nil)

	lead, err := svc.Submit(context.Background(), submission())
	require.NoError(t, err)

	notifier.On("EnqueueResumeProcessing", mock.Anything, lead.ID).Return(nil).Once()
	require.NoError(t, svc.ProcessResume(context.Background(), lead.ID))
}

func TestProcessResumeUnknownLead(t *testing.T) {
	svc, _, _, notifier := newLeadService(t)

	err := svc.ProcessResume(context.Background(), uuid.New())
	assert.True(t, sqlerr.IsNotFound(err))
	notifier.AssertNotCalled(t, "EnqueueResumeProcessing", mock.Anything, mock.Anything)
}

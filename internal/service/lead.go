package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/deppfellow/lead-intake/internal/errs"
	"github.com/deppfellow/lead-intake/internal/lib/storage"
	"github.com/deppfellow/lead-intake/internal/logger"
	"github.com/deppfellow/lead-intake/internal/metrics"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LeadStore is the persistence of leads.
type LeadStore interface {
	Create(ctx context.Context, lead *model.Lead) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	List(ctx context.Context, state *model.LeadState) ([]model.Lead, error)
	MarkReachedOut(ctx context.Context, id uuid.UUID, now time.Time) (*model.Lead, error)
}

// FileStore keeps uploaded resumes.
type FileStore interface {
	Save(key string, r io.Reader) error
	Open(key string) (*storage.File, error)
	Remove(key string) error
}

// Notifier queues the deferred work of a lead.
type Notifier interface {
	EnqueueLeadNotifications(ctx context.Context, s model.LeadSnapshot) error
	EnqueueResumeProcessing(ctx context.Context, id uuid.UUID) error
}

// ResumeDir is the storage prefix of uploaded resumes.
const ResumeDir = "resumes"

type LeadService struct {
	logger   *zerolog.Logger
	leads    LeadStore
	files    FileStore
	notifier Notifier
	now      func() time.Time
}

func NewLeadService(logger *zerolog.Logger, leads LeadStore, files FileStore, notifier Notifier) *LeadService {
	return &LeadService{
		logger:   logger,
		leads:    leads,
		files:    files,
		notifier: notifier,
		now:      time.Now,
	}
}

// Submit stores a new PENDING lead and queues its two notifications.
// Queueing is best effort: a failure is logged and the lead is kept.
func (s *LeadService) Submit(ctx context.Context, req *model.CreateLeadRequest) (*model.Lead, error) {
	lead := &model.Lead{
		ID:        uuid.New(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		State:     model.LeadStatePending,
	}

	if req.Resume != nil {
		key := fmt.Sprintf("%s/%s%s", ResumeDir, lead.ID, strings.ToLower(filepath.Ext(req.Resume.Filename)))
		if err := s.saveUpload(key, req); err != nil {
			return nil, err
		}
		lead.Resume = &key
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		if lead.Resume != nil {
			if rmErr := s.files.Remove(*lead.Resume); rmErr != nil {
				s.log(ctx).Error().Err(rmErr).Str("resume", *lead.Resume).Msg("failed to remove orphaned resume")
			}
		}
		return nil, err
	}

	metrics.RecordLeadCreated()

	s.log(ctx).Info().
		Str("lead_id", lead.ID.String()).
		Bool("has_resume", lead.HasResume()).
		Msg("lead submitted")

	// The lead is committed; queueing must not depend on the client staying connected.
	if err := s.notifier.EnqueueLeadNotifications(context.WithoutCancel(ctx), lead.Snapshot()); err != nil {
		s.log(ctx).Error().
			Err(err).
			Str("lead_id", lead.ID.String()).
			Msg("failed to enqueue lead notifications")
	}

	return lead, nil
}

// log is the request logger when ctx carries one.
func (s *LeadService) log(ctx context.Context) *zerolog.Logger {
	return logger.FromContext(ctx, s.logger)
}

func (s *LeadService) saveUpload(key string, req *model.CreateLeadRequest) error {
	src, err := req.Resume.Open()
	if err != nil {
		return fmt.Errorf("failed to open resume upload: %w", err)
	}
	defer src.Close()

	if err := s.files.Save(key, src); err != nil {
		return fmt.Errorf("failed to store resume: %w", err)
	}
	return nil
}

// List returns lead summaries, newest first.
func (s *LeadService) List(ctx context.Context, req *model.ListLeadsRequest) ([]model.LeadSummary, error) {
	var state *model.LeadState
	if req.State != "" {
		st := model.LeadState(req.State)
		state = &st
	}

	leads, err := s.leads.List(ctx, state)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(leads, func(a, b model.Lead) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	out := make([]model.LeadSummary, 0, len(leads))
	for i := range leads {
		out = append(out, leads[i].Summary())
	}
	return out, nil
}

func (s *LeadService) Get(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	return s.leads.GetByID(ctx, id)
}

// MarkReachedOut is idempotent: an already reached-out lead only gets a
// fresh updated_at.
func (s *LeadService) MarkReachedOut(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	lead, err := s.leads.MarkReachedOut(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.log(ctx).Info().Str("lead_id", id.String()).Msg("lead marked as reached out")
	return lead, nil
}

// OpenResume opens the resume of lead id. The caller closes the file.
func (s *LeadService) OpenResume(ctx context.Context, id uuid.UUID) (*model.Lead, *storage.File, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !lead.HasResume() {
		return nil, nil, errs.NewNotFoundError("Resume not found", true, nil)
	}

	f, err := s.files.Open(*lead.Resume)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log(ctx).Warn().Str("lead_id", id.String()).Str("resume", *lead.Resume).Msg("resume file missing from storage")
			return nil, nil, errs.NewNotFoundError("Resume not found", true, nil)
		}
		return nil, nil, err
	}
	return lead, f, nil
}

// ProcessResume queues the resume backup job of an existing lead.
func (s *LeadService) ProcessResume(ctx context.Context, id uuid.UUID) error {
	if _, err := s.leads.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.notifier.EnqueueResumeProcessing(ctx, id); err != nil {
		return err
	}

	s.log(ctx).Info().Str("lead_id", id.String()).Msg("resume processing queued")
	return nil
}

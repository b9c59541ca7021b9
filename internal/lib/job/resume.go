package job

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/deppfellow/lead-intake/internal/lib/storage"
	"github.com/deppfellow/lead-intake/internal/sqlerr"
	"github.com/hibiken/asynq"
)

// BackupKey maps "resumes/x.pdf" to "resumes/backups/x_<YYYYMMDDHHMMSS>.pdf".
func BackupKey(key string, at time.Time) string {
	dir, file := path.Split(key)
	ext := path.Ext(file)
	name := strings.TrimSuffix(file, ext)
	return path.Join(dir, "backups", fmt.Sprintf("%s_%s%s", name, at.Format("20060102150405"), ext))
}

func (j *JobService) handleProcessResume(ctx context.Context, t *asynq.Task) error {
	var p ProcessResumePayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}

	lead, err := j.deps.Leads.GetByID(ctx, p.LeadID)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return fmt.Errorf("lead %s does not exist: %v: %w", p.LeadID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to load lead %s: %w", p.LeadID, err)
	}

	if !lead.HasResume() {
		j.logger.Info().Str("lead_id", p.LeadID.String()).Msg("lead has no resume, nothing to process")
		return nil
	}

	backup := BackupKey(*lead.Resume, j.now())
	if err := j.deps.Storage.Copy(*lead.Resume, backup); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("resume file of lead %s is missing: %v: %w", p.LeadID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to back up resume of lead %s: %w", p.LeadID, err)
	}

	j.logger.Info().
		Str("lead_id", p.LeadID.String()).
		Str("resume", *lead.Resume).
		Str("backup", backup).
		Msg("resume backed up")

	return nil
}

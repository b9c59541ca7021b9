// Package service contains the business logic.
//
// It sits between the handler and repository layers: it receives
// validated requests from handlers, applies the rules of the domain and
// calls repositories, storage and the job queue.
package service

import (
	"github.com/deppfellow/lead-intake/internal/lib/job"
	"github.com/deppfellow/lead-intake/internal/lib/storage"
	"github.com/deppfellow/lead-intake/internal/repository"
	"github.com/deppfellow/lead-intake/internal/server"
)

type Services struct {
	Auth  *AuthService
	Leads *LeadService
	Job   *job.JobService
}

func NewServices(s *server.Server, repos *repository.Repositories, files *storage.LocalStorage) *Services {
	return &Services{
		Auth:  NewAuthService(s.Logger, repos.Users, repos.Tokens, s.Config.Auth.MinPasswordLength),
		Leads: NewLeadService(s.Logger, repos.Leads, files, s.Job),
		Job:   s.Job,
	}
}

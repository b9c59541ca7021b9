// Package repository holds the SQL of the service. Each repository owns
// the queries of one table and returns model types.
//
// "No row" results are wrapped as "table:<name>: ...: pgx.ErrNoRows" so
// sqlerr.HandleError can turn them into a 404 naming the entity.
package repository

import (
	"fmt"

	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/deppfellow/lead-intake/internal/sqlerr"
)

// Repositories is the container of every repository.
type Repositories struct {
	Leads  *LeadRepository
	Users  *UserRepository
	Tokens *TokenRepository
}

func NewRepositories(s *server.Server) *Repositories {
	return &Repositories{
		Leads:  NewLeadRepository(s),
		Users:  NewUserRepository(s),
		Tokens: NewTokenRepository(s),
	}
}

// notFound tags err with the table it came from.
func notFound(table, what string, err error) error {
	return fmt.Errorf("%s%s: %s: %w", sqlerr.TablePrefix, table, what, err)
}

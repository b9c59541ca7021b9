package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type LeadRepository struct {
	server *server.Server
}

func NewLeadRepository(s *server.Server) *LeadRepository {
	return &LeadRepository{server: s}
}

const leadColumns = `id, first_name, last_name, email, resume, state, created_at, updated_at`

func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(
		&l.ID,
		&l.FirstName,
		&l.LastName,
		&l.Email,
		&l.Resume,
		&l.State,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts lead and fills in the timestamps set by the database.
func (r *LeadRepository) Create(ctx context.Context, lead *model.Lead) error {
	stmt := `
		INSERT INTO leads (id, first_name, last_name, email, resume, state)
		VALUES (@id, @first_name, @last_name, @email, @resume, @state)
		RETURNING created_at, updated_at
	`

	err := r.server.DB.Pool.QueryRow(ctx, stmt, pgx.NamedArgs{
		"id":         lead.ID,
		"first_name": lead.FirstName,
		"last_name":  lead.LastName,
		"email":      lead.Email,
		"resume":     lead.Resume,
		"state":      lead.State,
	}).Scan(&lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert lead %s: %w", lead.ID, err)
	}

	return nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	stmt := `SELECT ` + leadColumns + ` FROM leads WHERE id = @id`

	lead, err := scanLead(r.server.DB.Pool.QueryRow(ctx, stmt, pgx.NamedArgs{"id": id}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("leads", "lead "+id.String(), err)
		}
		return nil, fmt.Errorf("failed to get lead %s: %w", id, err)
	}
	return lead, nil
}

// List returns leads newest first, optionally filtered by state.
func (r *LeadRepository) List(ctx context.Context, state *model.LeadState) ([]model.Lead, error) {
	stmt := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE (@state::text IS NULL OR state = @state::text)
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.server.DB.Pool.Query(ctx, stmt, pgx.NamedArgs{"state": state})
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	leads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Lead, error) {
		l, err := scanLead(row)
		if err != nil {
			return model.Lead{}, err
		}
		return *l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan leads: %w", err)
	}
	return leads, nil
}

// MarkReachedOut sets the state unconditionally and refreshes updated_at.
// Concurrent calls are last-write-wins.
func (r *LeadRepository) MarkReachedOut(ctx context.Context, id uuid.UUID, now time.Time) (*model.Lead, error) {
	stmt := `
		UPDATE leads
		SET state = @state, updated_at = @updated_at
		WHERE id = @id
		RETURNING ` + leadColumns

	lead, err := scanLead(r.server.DB.Pool.QueryRow(ctx, stmt, pgx.NamedArgs{
		"id":         id,
		"state":      model.LeadStateReachedOut,
		"updated_at": now,
	}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("leads", "lead "+id.String(), err)
		}
		return nil, fmt.Errorf("failed to mark lead %s reached out: %w", id, err)
	}
	return lead, nil
}

// CountByStateBetween counts leads created in [from, to) per state.
func (r *LeadRepository) CountByStateBetween(ctx context.Context, from, to time.Time) (model.StateCounts, error) {
	stmt := `
		SELECT state, count(*)
		FROM leads
		WHERE created_at >= @from AND created_at < @to
		GROUP BY state
	`

	rows, err := r.server.DB.Pool.Query(ctx, stmt, pgx.NamedArgs{"from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	defer rows.Close()

	counts := model.StateCounts{}
	for rows.Next() {
		var (
			state model.LeadState
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan lead counts: %w", err)
		}
		counts[state] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	return counts, nil
}

package model

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// LeadState is the lifecycle marker of a Lead.
type LeadState string

const (
	LeadStatePending    LeadState = "PENDING"
	LeadStateReachedOut LeadState = "REACHED_OUT"
)

// LeadStates lists every state, in lifecycle order.
var LeadStates = []LeadState{LeadStatePending, LeadStateReachedOut}

// Valid reports whether s is a known state.
func (s LeadState) Valid() bool {
	return s == LeadStatePending || s == LeadStateReachedOut
}

// Lead is a prospective client's submitted contact record.
//
// State starts at PENDING and the only transition is PENDING -> REACHED_OUT.
type Lead struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`

	// Resume is the storage key of the uploaded file, nil when none.
	Resume *string `json:"resume"`

	State     LeadState `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName is "First Last".
func (l *Lead) FullName() string {
	return l.FirstName + " " + l.LastName
}

// HasResume reports whether a resume is attached.
func (l *Lead) HasResume() bool {
	return l.Resume != nil && *l.Resume != ""
}

// ResumeDownloadName is the attachment name offered on download:
// "{last_name}_{first_name}_resume{ext}".
func (l *Lead) ResumeDownloadName() string {
	ext := ""
	if l.HasResume() {
		ext = filepath.Ext(*l.Resume)
	}
	return l.LastName + "_" + l.FirstName + "_resume" + ext
}

// MarkReachedOut moves the lead to REACHED_OUT. Calling it on a lead that
// already reached out only refreshes UpdatedAt.
func (l *Lead) MarkReachedOut(now time.Time) {
	l.State = LeadStateReachedOut
	l.UpdatedAt = now
}

// Snapshot is the by-value copy handed to notification jobs.
func (l *Lead) Snapshot() LeadSnapshot {
	return LeadSnapshot{
		LeadID: l.ID,
		Email:  l.Email,
		Name:   l.FullName(),
	}
}

// LeadSnapshot is what notification jobs receive at enqueue time. Jobs
// never read the Lead back from the store.
type LeadSnapshot struct {
	LeadID uuid.UUID
	Email  string
	Name   string
}

// LeadSummary is the list representation.
type LeadSummary struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	State     LeadState `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary converts the lead to its list representation.
func (l *Lead) Summary() LeadSummary {
	return LeadSummary{
		ID:        l.ID,
		FirstName: l.FirstName,
		LastName:  l.LastName,
		Email:     l.Email,
		State:     l.State,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

// LeadDetail is the retrieve representation. ResumeURL points at the
// authenticated download endpoint.
type LeadDetail struct {
	Lead
	ResumeURL *string `json:"resume_url"`
}

// StateCounts maps each state to a number of leads.
type StateCounts map[LeadState]int

// Total sums all states.
func (sc StateCounts) Total() int {
	total := 0
	for _, n := range sc {
		total += n
	}
	return total
}

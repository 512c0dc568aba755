package storage

import (
	"context"
	"errors"
	"time"

	"dutybot/internal/duty"
)

var (
	ErrClosed  = errors.New("storage closed")
	ErrCorrupt = errors.New("stored state is corrupt")
)

// Config configures storage.
//
// Driver values:
//   - "file": directory of plain files (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Calendar is attached to every loaded state; it is configuration, not data.
	Calendar duty.Calendar
	// Today supplies the anchor when none has been stored yet.
	Today func() time.Time
}

// Store loads and mutates the single duty state.
type Store interface {
	Load(ctx context.Context) (*duty.State, error)
	// Update loads the state, applies fn and persists the result. Updates are
	// serialized; when fn fails nothing is written.
	Update(ctx context.Context, fn func(*duty.State) error) (*duty.State, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	Close() error
}

// AuditEntry records an operator action.
type AuditEntry struct {
	ID            string    `json:"id"`
	At            time.Time `json:"at"`
	Source        string    `json:"source"` // telegram|cli|cron
	ActorID       int64     `json:"actor_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Action        string    `json:"action"`
	Target        string    `json:"target,omitempty"`
	Error         string    `json:"error,omitempty"`
	TookMS        int64     `json:"took_ms"`
}

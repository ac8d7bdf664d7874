package archive

import (
	"context"
	"time"
)

// Operation statuses recorded in the history.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation is one recorded run of a mutating or exporting command.
type Operation struct {
	ID         int64
	GuildID    int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// History records operations so operators can see what ran against a guild
// and whether it succeeded.
type History interface {
	// CreateOperation records the start of an operation and returns it
	// with its assigned ID and StatusRunning.
	CreateOperation(ctx context.Context, guildID int64, operation, parameters string) (*Operation, error)

	// FinishOperation sets the final status and finish time.
	FinishOperation(ctx context.Context, id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	// guildID 0 lists every guild.
	ListOperations(ctx context.Context, guildID int64, limit int) ([]*Operation, error)

	Close() error
}

// Duration reports how long the operation ran, or has been running as of now.
func (o *Operation) Duration(now time.Time) time.Duration {
	if o.FinishedAt != nil {
		return o.FinishedAt.Sub(o.StartedAt)
	}
	return now.Sub(o.StartedAt)
}

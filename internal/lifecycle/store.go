package lifecycle

import (
	"context"
	"time"

	"real-estate-cms/internal/models"
)

// Condition is the lifecycle filter a conditional write repeats.
type Condition int

const (
	// Any matches rows regardless of deleted_at
	Any Condition = iota
	// Active matches rows whose deleted_at is null
	Active
	// Deleted matches rows whose deleted_at is set
	Deleted
)

// Matches evaluates the condition against a row state
func (c Condition) Matches(s models.ListingState) bool {
	switch c {
	case Active:
		return s.DeletedAt == nil
	case Deleted:
		return s.DeletedAt != nil
	default:
		return true
	}
}

// Changes lists the lifecycle columns a write sets. Nil fields are left untouched.
type Changes struct {
	Visibility      *bool
	IsAddressPublic *models.AddressVisibility
	ConfirmedAt     *time.Time
	DeletedAt       *time.Time
	ClearDeletedAt  bool
}

// Columns renders the changes as a column/value map
func (c Changes) Columns() map[string]any {
	cols := make(map[string]any, 4)
	if c.Visibility != nil {
		cols["visibility"] = *c.Visibility
	}
	if c.IsAddressPublic != nil {
		cols["is_address_public"] = string(*c.IsAddressPublic)
	}
	if c.ConfirmedAt != nil {
		cols["confirmed_at"] = *c.ConfirmedAt
	}
	if c.ClearDeletedAt {
		cols["deleted_at"] = nil
	} else if c.DeletedAt != nil {
		cols["deleted_at"] = *c.DeletedAt
	}
	return cols
}

// Store is the persistence collaborator the lifecycle transitions run against.
type Store interface {
	// FetchStates returns the lifecycle columns of the given rows. Missing ids
	// are absent from the result.
	FetchStates(ctx context.Context, ids []int64) ([]models.ListingState, error)
	// UpdateWhere applies changes to the rows among ids that satisfy cond, as
	// one atomic operation, and returns the ids it changed.
	UpdateWhere(ctx context.Context, ids []int64, cond Condition, changes Changes) ([]int64, error)
	// DeleteByID removes the row and reports whether it existed.
	DeleteByID(ctx context.Context, id int64) (bool, error)
	// PurgeDeleted removes the row only if it is soft-deleted with deleted_at
	// before cutoff, as one statement, and reports whether it was removed.
	PurgeDeleted(ctx context.Context, id int64, cutoff time.Time) (bool, error)
}

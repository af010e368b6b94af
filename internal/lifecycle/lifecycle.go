// Package lifecycle validates and applies state transitions on listings:
// visibility toggles, address disclosure changes, confirmation, soft delete,
// restore and hard delete.
//
// Every single-row transition reads the row, checks its precondition and then
// writes with a filter that repeats the precondition, so a concurrent
// transition on the same listing makes the write affect zero rows instead of
// silently overwriting it.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"real-estate-cms/internal/models"
)

// Service applies listing lifecycle transitions against a Store.
type Service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for deleted_at and confirmed_at
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for anomalies such as partial bulk writes
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a lifecycle service over store
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SoftDeleteResult reports what a bulk soft delete changed
type SoftDeleteResult struct {
	Requested []int64 `json:"requested"`
	Deleted   []int64 `json:"deleted"`
	Skipped   []int64 `json:"skipped,omitempty"`
}

// ToggleVisibility flips the public visibility of an active listing, or sets
// it to explicit when given, and returns the stored value.
func (s *Service) ToggleVisibility(ctx context.Context, id int64, explicit *bool) (bool, error) {
	const op = "toggle visibility"
	state, err := s.fetchActive(ctx, op, id)
	if err != nil {
		return false, err
	}

	next := !state.Visibility
	if explicit != nil {
		next = *explicit
	}
	if err := s.updateOne(ctx, op, id, Active, Changes{Visibility: &next}); err != nil {
		return false, err
	}
	return next, nil
}

// UpdateAddressVisibility sets the address disclosure mode of an active listing.
// Setting the mode it already has succeeds.
func (s *Service) UpdateAddressVisibility(ctx context.Context, id int64, mode models.AddressVisibility) (models.AddressVisibility, error) {
	const op = "update address visibility"
	if !mode.Valid() {
		return "", validationError(op, "unknown address visibility %q", mode)
	}
	if _, err := s.fetchActive(ctx, op, id); err != nil {
		return "", err
	}
	if err := s.updateOne(ctx, op, id, Active, Changes{IsAddressPublic: &mode}); err != nil {
		return "", err
	}
	return mode, nil
}

// Confirm stamps the confirmation date of an active listing and returns it.
func (s *Service) Confirm(ctx context.Context, id int64) (time.Time, error) {
	const op = "confirm listing"
	if _, err := s.fetchActive(ctx, op, id); err != nil {
		return time.Time{}, err
	}
	at := s.now()
	if err := s.updateOne(ctx, op, id, Active, Changes{ConfirmedAt: &at}); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

// SoftDelete marks every listing in ids as deleted. If any of them is missing
// or already deleted nothing is written. When the write changes fewer rows
// than requested (a row changed state after the check) the result lists the
// skipped ids and a conflict error is returned alongside it.
func (s *Service) SoftDelete(ctx context.Context, ids []int64) (*SoftDeleteResult, error) {
	const op = "soft delete"
	ids, err := uniqueIDs(op, ids)
	if err != nil {
		return nil, err
	}

	states, err := s.store.FetchStates(ctx, ids)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	byID := indexStates(states)

	var offending []int64
	for _, id := range ids {
		if st, ok := byID[id]; !ok || !st.IsActive() {
			offending = append(offending, id)
		}
	}
	if len(offending) > 0 {
		return nil, conflictError(op, "listings missing or already deleted", offending...)
	}

	at := s.now()
	deleted, err := s.store.UpdateWhere(ctx, ids, Active, Changes{DeletedAt: &at})
	if err != nil {
		return nil, persistenceError(op, err)
	}

	result := &SoftDeleteResult{
		Requested: ids,
		Deleted:   orderLike(ids, deleted),
		Skipped:   missingFrom(ids, deleted),
	}
	if len(result.Skipped) > 0 {
		s.logger.Warn("soft delete changed fewer listings than requested",
			"requested", len(ids), "deleted", len(result.Deleted), "skipped", result.Skipped)
		return result, conflictError(op, "listings changed state during delete", result.Skipped...)
	}
	return result, nil
}

// Restore brings a soft-deleted listing back. Restoring an active listing is a conflict.
func (s *Service) Restore(ctx context.Context, id int64) error {
	const op = "restore"
	state, err := s.fetch(ctx, op, id)
	if err != nil {
		return err
	}
	if state.IsActive() {
		return conflictError(op, "listing is not deleted", id)
	}
	return s.updateOne(ctx, op, id, Deleted, Changes{ClearDeletedAt: true})
}

// HardDelete removes the listing row permanently, whatever its state.
func (s *Service) HardDelete(ctx context.Context, id int64) error {
	const op = "hard delete"
	if _, err := s.fetch(ctx, op, id); err != nil {
		return err
	}
	existed, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return persistenceError(op, err)
	}
	if !existed {
		return notFoundError(op, id)
	}
	return nil
}

// Purge permanently removes a listing that has stayed soft-deleted since before
// cutoff. It reports false, without error, when the listing no longer qualifies:
// it was restored, deleted again later, or is already gone.
func (s *Service) Purge(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	const op = "purge"
	if err := validateID(op, id); err != nil {
		return false, err
	}
	removed, err := s.store.PurgeDeleted(ctx, id, cutoff)
	if err != nil {
		return false, persistenceError(op, err)
	}
	if !removed {
		s.logger.Info("purge skipped listing that no longer qualifies", "id", id)
	}
	return removed, nil
}

// fetch reads one row in any state.
func (s *Service) fetch(ctx context.Context, op string, id int64) (models.ListingState, error) {
	if err := validateID(op, id); err != nil {
		return models.ListingState{}, err
	}
	states, err := s.store.FetchStates(ctx, []int64{id})
	if err != nil {
		return models.ListingState{}, persistenceError(op, err)
	}
	for _, st := range states {
		if st.ID == id {
			return st, nil
		}
	}
	return models.ListingState{}, notFoundError(op, id)
}

// fetchActive reads one row that must not be soft-deleted. Deleted rows are
// invisible to active lookups and report not found.
func (s *Service) fetchActive(ctx context.Context, op string, id int64) (models.ListingState, error) {
	state, err := s.fetch(ctx, op, id)
	if err != nil {
		return state, err
	}
	if !state.IsActive() {
		return state, notFoundError(op, id)
	}
	return state, nil
}

// updateOne writes a single row under cond; losing the race is a conflict.
func (s *Service) updateOne(ctx context.Context, op string, id int64, cond Condition, changes Changes) error {
	changed, err := s.store.UpdateWhere(ctx, []int64{id}, cond, changes)
	if err != nil {
		return persistenceError(op, err)
	}
	if len(changed) == 0 {
		return conflictError(op, "listing changed state concurrently", id)
	}
	return nil
}

func indexStates(states []models.ListingState) map[int64]models.ListingState {
	m := make(map[int64]models.ListingState, len(states))
	for _, st := range states {
		m[st.ID] = st
	}
	return m
}

// orderLike returns the members of subset in the order they appear in ids.
func orderLike(ids, subset []int64) []int64 {
	in := make(map[int64]struct{}, len(subset))
	for _, id := range subset {
		in[id] = struct{}{}
	}
	out := make([]int64, 0, len(subset))
	for _, id := range ids {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func missingFrom(ids, subset []int64) []int64 {
	in := make(map[int64]struct{}, len(subset))
	for _, id := range subset {
		in[id] = struct{}{}
	}
	var out []int64
	for _, id := range ids {
		if _, ok := in[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

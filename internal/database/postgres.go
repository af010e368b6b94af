package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"real-estate-cms/internal/lifecycle"
	"real-estate-cms/internal/models"
)

type DB struct {
	conn *sql.DB
}

func NewDB(host, port, user, password, dbname, sslmode string) (*DB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates the listings and delete_logs tables if they don't exist
func (db *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		listing_type VARCHAR(50) NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		price BIGINT,
		deposit BIGINT,
		monthly_rent BIGINT,
		area DECIMAL(10, 2),
		floor VARCHAR(20) NOT NULL DEFAULT '',
		rooms VARCHAR(20) NOT NULL DEFAULT '',
		bathrooms VARCHAR(20) NOT NULL DEFAULT '',
		themes TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',

		-- Disclosure and lifecycle
		is_address_public VARCHAR(10) NOT NULL DEFAULT 'public',
		visibility BOOLEAN NOT NULL DEFAULT TRUE,
		confirmed_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ,

		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_listings_deleted_at ON listings(deleted_at);
	CREATE INDEX IF NOT EXISTS idx_listings_visibility ON listings(visibility);
	CREATE INDEX IF NOT EXISTS idx_listings_listing_type ON listings(listing_type);

	CREATE TABLE IF NOT EXISTS delete_logs (
		id BIGSERIAL PRIMARY KEY,
		listing_id BIGINT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		removed_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		reason VARCHAR(50) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_delete_logs_listing_id ON delete_logs(listing_id);
	CREATE INDEX IF NOT EXISTS idx_delete_logs_deleted_at ON delete_logs(deleted_at);
	`
	_, err := db.conn.Exec(query)
	return convertPqError(err)
}

const listingColumns = `id, title, listing_type, address, price, deposit, monthly_rent, area,
	floor, rooms, bathrooms, themes, description,
	is_address_public, visibility, confirmed_at, deleted_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (models.Listing, error) {
	var l models.Listing
	err := row.Scan(
		&l.ID, &l.Title, &l.ListingType, &l.Address, &l.Price, &l.Deposit, &l.MonthlyRent, &l.Area,
		&l.Floor, &l.Rooms, &l.Bathrooms, &l.Themes, &l.Description,
		&l.IsAddressPublic, &l.Visibility, &l.ConfirmedAt, &l.DeletedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

// CreateListing inserts a listing and fills in its id and timestamps
func (db *DB) CreateListing(ctx context.Context, l *models.Listing) error {
	if l.IsAddressPublic == "" {
		l.IsAddressPublic = models.AddressPublic
	}
	query := `
	INSERT INTO listings (
		title, listing_type, address, price, deposit, monthly_rent, area,
		floor, rooms, bathrooms, themes, description,
		is_address_public, visibility, confirmed_at, deleted_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	RETURNING id, created_at, updated_at
	`
	err := db.conn.QueryRowContext(ctx, query,
		l.Title, l.ListingType, l.Address, l.Price, l.Deposit, l.MonthlyRent, l.Area,
		l.Floor, l.Rooms, l.Bathrooms, l.Themes, l.Description,
		string(l.IsAddressPublic), l.Visibility, l.ConfirmedAt, l.DeletedAt,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	return convertPqError(err)
}

// GetListing retrieves a listing by ID in any state
func (db *DB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	l, err := scanListing(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, convertPqError(err)
	}
	return &l, nil
}

// ListListings retrieves one page of listings, newest first
func (db *DB) ListListings(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error) {
	filter.Normalize()

	var where []string
	var args []any
	switch filter.Status {
	case models.ListingStatusActive:
		where = append(where, "deleted_at IS NULL")
	case models.ListingStatusDeleted:
		where = append(where, "deleted_at IS NOT NULL")
	}
	if filter.VisibleOnly {
		where = append(where, "visibility = TRUE")
	}
	if filter.ListingType != "" {
		args = append(args, filter.ListingType)
		where = append(where, fmt.Sprintf("listing_type = $%d", len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`+whereClause, args...).Scan(&total); err != nil {
		return nil, convertPqError(err)
	}

	args = append(args, filter.PerPage, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM listings%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		listingColumns, whereClause, len(args)-1, len(args))
	listings, err := db.queryListings(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &models.ListingPage{
		Listings: listings,
		Total:    total,
		Page:     filter.Page,
		PerPage:  filter.PerPage,
	}, nil
}

// ListAllActive retrieves all active listings
func (db *DB) ListAllActive(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE deleted_at IS NULL ORDER BY id ASC`
	return db.queryListings(ctx, query)
}

func (db *DB) queryListings(ctx context.Context, query string, args ...any) ([]models.Listing, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, convertPqError(err)
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, convertPqError(rows.Err())
}

// CountListings returns dashboard counts
func (db *DB) CountListings(ctx context.Context) (*models.ListingCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE deleted_at IS NULL AND visibility),
			COUNT(*) FILTER (WHERE deleted_at IS NULL AND NOT visibility),
			COUNT(*) FILTER (WHERE deleted_at IS NOT NULL),
			COUNT(*)
		FROM listings
	`
	var c models.ListingCounts
	err := db.conn.QueryRowContext(ctx, query).Scan(&c.Active, &c.Hidden, &c.Deleted, &c.Total)
	if err != nil {
		return nil, convertPqError(err)
	}
	return &c, nil
}

// FetchStates implements lifecycle.Store
func (db *DB) FetchStates(ctx context.Context, ids []int64) ([]models.ListingState, error) {
	query := `SELECT id, visibility, is_address_public, deleted_at FROM listings WHERE id = ANY($1)`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, convertPqError(err)
	}
	defer rows.Close()

	states := []models.ListingState{}
	for rows.Next() {
		var s models.ListingState
		if err := rows.Scan(&s.ID, &s.Visibility, &s.IsAddressPublic, &s.DeletedAt); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, convertPqError(rows.Err())
}

// UpdateWhere implements lifecycle.Store with a single conditional UPDATE, so
// Postgres evaluates the filter and applies the write atomically.
func (db *DB) UpdateWhere(ctx context.Context, ids []int64, cond lifecycle.Condition, changes lifecycle.Changes) ([]int64, error) {
	cols := changes.Columns()
	if len(cols) == 0 {
		return nil, errors.New("update without columns")
	}
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	args := []any{pq.Array(ids)}
	sets := make([]string, 0, len(names)+1)
	for _, name := range names {
		args = append(args, cols[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	query := fmt.Sprintf(`UPDATE listings SET %s WHERE id = ANY($1)%s RETURNING id`,
		strings.Join(sets, ", "), conditionSQL(cond))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, convertPqError(err)
	}
	defer rows.Close()

	changed := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		changed = append(changed, id)
	}
	return changed, convertPqError(rows.Err())
}

// DeleteByID implements lifecycle.Store
func (db *DB) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return false, convertPqError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeDeleted implements lifecycle.Store
func (db *DB) PurgeDeleted(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM listings WHERE id = $1 AND deleted_at IS NOT NULL AND deleted_at < $2`, id, cutoff)
	if err != nil {
		return false, convertPqError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindDeletedBefore finds soft-deleted listings whose deleted_at is older than cutoff
func (db *DB) FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE deleted_at IS NOT NULL AND deleted_at < $1 ORDER BY id ASC`
	listings, err := db.queryListings(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired listings: %w", err)
	}
	return listings, nil
}

// CreateDeleteLog records a permanently removed listing
func (db *DB) CreateDeleteLog(ctx context.Context, entry *models.DeleteLog) error {
	query := `
	INSERT INTO delete_logs (listing_id, title, address, removed_at, reason)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, deleted_at
	`
	err := db.conn.QueryRowContext(ctx, query,
		entry.ListingID, entry.Title, entry.Address, entry.RemovedAt, entry.Reason,
	).Scan(&entry.ID, &entry.DeletedAt)
	return convertPqError(err)
}

// RecentDeleteLogs returns recent delete log entries
func (db *DB) RecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	query := `SELECT id, listing_id, title, address, removed_at, deleted_at, reason
		FROM delete_logs ORDER BY deleted_at DESC, id DESC LIMIT $1`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, convertPqError(err)
	}
	defer rows.Close()

	logs := []models.DeleteLog{}
	for rows.Next() {
		var e models.DeleteLog
		if err := rows.Scan(&e.ID, &e.ListingID, &e.Title, &e.Address, &e.RemovedAt, &e.DeletedAt, &e.Reason); err != nil {
			return nil, err
		}
		logs = append(logs, e)
	}
	return logs, convertPqError(rows.Err())
}

// DeleteStats summarizes the delete log
func (db *DB) DeleteStats(ctx context.Context) (*models.DeleteStats, error) {
	stats := &models.DeleteStats{ByReason: make(map[string]int64)}

	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM delete_logs),
			(SELECT COUNT(*) FROM delete_logs WHERE deleted_at >= NOW() - INTERVAL '30 days'),
			(SELECT COUNT(*) FROM listings WHERE deleted_at IS NOT NULL)
	`).Scan(&stats.TotalDeleted, &stats.DeletedLast30Days, &stats.CurrentlySoftDeleted)
	if err != nil {
		return nil, convertPqError(err)
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT reason, COUNT(*) FROM delete_logs GROUP BY reason`)
	if err != nil {
		return nil, convertPqError(err)
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		stats.ByReason[reason] = count
	}
	return stats, convertPqError(rows.Err())
}

func conditionSQL(cond lifecycle.Condition) string {
	switch cond {
	case lifecycle.Active:
		return " AND deleted_at IS NULL"
	case lifecycle.Deleted:
		return " AND deleted_at IS NOT NULL"
	default:
		return ""
	}
}

// convertPqError maps missing rows onto the lifecycle sentinel and annotates
// server errors with their SQLSTATE name. nil stays nil.
func convertPqError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Join(lifecycle.ErrNoRow, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("postgres %s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}

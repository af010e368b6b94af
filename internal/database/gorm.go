package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"real-estate-cms/internal/lifecycle"
	"real-estate-cms/internal/models"
)

type GormDB struct {
	db *gorm.DB
}

// MySQLDialector builds a MySQL dialector from connection settings
func MySQLDialector(host, port, user, password, dbname string) gorm.Dialector {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)
	return mysql.Open(dsn)
}

// PostgresDialector builds a Postgres dialector (pgx) from connection settings
func PostgresDialector(host, port, user, password, dbname, sslmode string) gorm.Dialector {
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=Asia/Seoul",
		host, port, user, password, dbname, sslmode)
	return postgres.Open(dsn)
}

func NewGormDB(dialector gorm.Dialector, logLevel logger.LogLevel) (*GormDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return gdb.db.AutoMigrate(
		&models.Listing{},
		&models.DeleteLog{},
	)
}

// CreateListing inserts a listing
func (gdb *GormDB) CreateListing(ctx context.Context, l *models.Listing) error {
	if l.IsAddressPublic == "" {
		l.IsAddressPublic = models.AddressPublic
	}
	return gdb.db.WithContext(ctx).Create(l).Error
}

// GetListing retrieves a listing by ID in any state
func (gdb *GormDB) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	err := gdb.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if err != nil {
		return nil, convertGormError(err)
	}
	return &listing, nil
}

// ListListings retrieves one page of listings, newest first
func (gdb *GormDB) ListListings(ctx context.Context, filter models.ListingFilter) (*models.ListingPage, error) {
	filter.Normalize()

	query := gdb.db.WithContext(ctx).Model(&models.Listing{})
	switch filter.Status {
	case models.ListingStatusActive:
		query = query.Where("deleted_at IS NULL")
	case models.ListingStatusDeleted:
		query = query.Where("deleted_at IS NOT NULL")
	}
	if filter.VisibleOnly {
		query = query.Where("visibility = ?", true)
	}
	if filter.ListingType != "" {
		query = query.Where("listing_type = ?", filter.ListingType)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	listings := []models.Listing{}
	err := query.Order("created_at DESC").Order("id DESC").
		Limit(filter.PerPage).
		Offset(filter.Offset()).
		Find(&listings).Error
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
func (gdb *GormDB) ListAllActive(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	err := gdb.db.WithContext(ctx).Where("deleted_at IS NULL").Order("id ASC").Find(&listings).Error
	return listings, err
}

// CountListings returns dashboard counts
func (gdb *GormDB) CountListings(ctx context.Context) (*models.ListingCounts, error) {
	db := gdb.db.WithContext(ctx)
	counts := &models.ListingCounts{}
	if err := db.Model(&models.Listing{}).Where("deleted_at IS NULL AND visibility = ?", true).Count(&counts.Active).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Listing{}).Where("deleted_at IS NULL AND visibility = ?", false).Count(&counts.Hidden).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Listing{}).Where("deleted_at IS NOT NULL").Count(&counts.Deleted).Error; err != nil {
		return nil, err
	}
	counts.Total = counts.Active + counts.Hidden + counts.Deleted
	return counts, nil
}

// FetchStates implements lifecycle.Store
func (gdb *GormDB) FetchStates(ctx context.Context, ids []int64) ([]models.ListingState, error) {
	var states []models.ListingState
	err := gdb.db.WithContext(ctx).Model(&models.Listing{}).
		Select("id", "visibility", "is_address_public", "deleted_at").
		Where("id IN ?", ids).
		Scan(&states).Error
	return states, err
}

// UpdateWhere implements lifecycle.Store. The matching rows are locked and
// updated inside one transaction, so the filter and the write see the same state.
func (gdb *GormDB) UpdateWhere(ctx context.Context, ids []int64, cond lifecycle.Condition, changes lifecycle.Changes) ([]int64, error) {
	changed := []int64{}
	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked := scopeCondition(tx.Model(&models.Listing{}).Where("id IN ?", ids), cond)
		if err := locked.Clauses(clause.Locking{Strength: "UPDATE"}).Pluck("id", &changed).Error; err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		return scopeCondition(tx.Model(&models.Listing{}).Where("id IN ?", changed), cond).
			Updates(changes.Columns()).Error
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// DeleteByID implements lifecycle.Store
func (gdb *GormDB) DeleteByID(ctx context.Context, id int64) (bool, error) {
	result := gdb.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Listing{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// PurgeDeleted implements lifecycle.Store
func (gdb *GormDB) PurgeDeleted(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	result := gdb.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NOT NULL AND deleted_at < ?", id, cutoff).
		Delete(&models.Listing{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindDeletedBefore finds soft-deleted listings whose deleted_at is older than cutoff
func (gdb *GormDB) FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]models.Listing, error) {
	var listings []models.Listing
	err := gdb.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Order("id ASC").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find expired listings: %w", err)
	}
	return listings, nil
}

// CreateDeleteLog records a permanently removed listing
func (gdb *GormDB) CreateDeleteLog(ctx context.Context, entry *models.DeleteLog) error {
	return gdb.db.WithContext(ctx).Create(entry).Error
}

// RecentDeleteLogs returns recent delete log entries
func (gdb *GormDB) RecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	var logs []models.DeleteLog
	err := gdb.db.WithContext(ctx).Order("deleted_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// DeleteStats summarizes the delete log
func (gdb *GormDB) DeleteStats(ctx context.Context) (*models.DeleteStats, error) {
	db := gdb.db.WithContext(ctx)
	stats := &models.DeleteStats{ByReason: make(map[string]int64)}

	if err := db.Model(&models.DeleteLog{}).Count(&stats.TotalDeleted).Error; err != nil {
		return nil, err
	}

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := db.Model(&models.DeleteLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}
	for _, rc := range reasonCounts {
		stats.ByReason[rc.Reason] = rc.Count
	}

	thirtyDaysAgo := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", thirtyDaysAgo).
		Count(&stats.DeletedLast30Days).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Listing{}).
		Where("deleted_at IS NOT NULL").
		Count(&stats.CurrentlySoftDeleted).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

func scopeCondition(q *gorm.DB, cond lifecycle.Condition) *gorm.DB {
	switch cond {
	case lifecycle.Active:
		return q.Where("deleted_at IS NULL")
	case lifecycle.Deleted:
		return q.Where("deleted_at IS NOT NULL")
	default:
		return q
	}
}

// convertGormError maps gorm's not-found error onto the lifecycle sentinel.
func convertGormError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(lifecycle.ErrNoRow, err)
	}
	return err
}

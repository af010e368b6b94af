package models

import "time"

// DeleteLog records a listing that was permanently removed
type DeleteLog struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID int64      `gorm:"not null;index" json:"listing_id"`
	Title     string     `gorm:"type:text" json:"title"`
	Address   string     `gorm:"type:text" json:"address"`
	RemovedAt *time.Time `json:"removed_at,omitempty"` // soft-delete time, if any
	DeletedAt time.Time  `gorm:"not null;autoCreateTime;index" json:"deleted_at"`
	Reason    string     `gorm:"type:varchar(50);not null" json:"reason"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonExpired = "expired_retention"
	DeleteReasonManual  = "manual_deletion"
)

// DeleteStats summarizes the delete log
type DeleteStats struct {
	TotalDeleted         int64            `json:"total_deleted"`
	ByReason             map[string]int64 `json:"by_reason"`
	DeletedLast30Days    int64            `json:"deleted_last_30_days"`
	CurrentlySoftDeleted int64            `json:"currently_soft_deleted"`
}

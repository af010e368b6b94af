package models

import "time"

// Listing is a property advertised by the brokerage
type Listing struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// Descriptive payload
	Title       string   `gorm:"type:varchar(200);not null" json:"title"`
	ListingType string   `gorm:"type:varchar(50);index" json:"listing_type,omitempty"`
	Address     string   `gorm:"type:text" json:"address,omitempty"`
	Price       *int64   `gorm:"index" json:"price,omitempty"`
	Deposit     *int64   `json:"deposit,omitempty"`
	MonthlyRent *int64   `json:"monthly_rent,omitempty"`
	Area        *float64 `gorm:"type:decimal(10,2)" json:"area,omitempty"`
	Floor       string   `gorm:"type:varchar(20)" json:"floor,omitempty"`
	Rooms       string   `gorm:"type:varchar(20)" json:"rooms,omitempty"`
	Bathrooms   string   `gorm:"type:varchar(20)" json:"bathrooms,omitempty"`
	Themes      string   `gorm:"type:text" json:"themes,omitempty"` // comma separated
	Description string   `gorm:"type:text" json:"description,omitempty"`

	// Disclosure and lifecycle
	IsAddressPublic AddressVisibility `gorm:"type:varchar(10);not null;default:'public'" json:"is_address_public"`
	Visibility      bool              `gorm:"not null;index" json:"visibility"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	DeletedAt       *time.Time        `gorm:"index" json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_listings_created_at,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// TableName pins the table name
func (Listing) TableName() string {
	return "listings"
}

// IsActive reports whether the listing has not been soft-deleted
func (l *Listing) IsActive() bool {
	return l.DeletedAt == nil
}

// State projects the lifecycle columns of the listing
func (l *Listing) State() ListingState {
	return ListingState{
		ID:              l.ID,
		Visibility:      l.Visibility,
		IsAddressPublic: l.IsAddressPublic,
		DeletedAt:       l.DeletedAt,
	}
}

// ListingState is the column projection the lifecycle transitions read
type ListingState struct {
	ID              int64             `json:"id"`
	Visibility      bool              `json:"visibility"`
	IsAddressPublic AddressVisibility `json:"is_address_public"`
	DeletedAt       *time.Time        `json:"deleted_at,omitempty"`
}

// IsActive reports whether the row has not been soft-deleted
func (s ListingState) IsActive() bool {
	return s.DeletedAt == nil
}

// AddressVisibility controls how much of the address a viewer sees
type AddressVisibility string

const (
	AddressPublic  AddressVisibility = "public"
	AddressPrivate AddressVisibility = "private"
	AddressExclude AddressVisibility = "exclude"
)

// Valid reports whether v is one of the stored modes
func (v AddressVisibility) Valid() bool {
	switch v {
	case AddressPublic, AddressPrivate, AddressExclude:
		return true
	}
	return false
}

// ListingStatus selects rows by lifecycle state in list queries
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusDeleted ListingStatus = "deleted"
	ListingStatusAll     ListingStatus = "all"
)

// ListingFilter holds list query parameters
type ListingFilter struct {
	Status      ListingStatus
	VisibleOnly bool
	ListingType string
	Page        int
	PerPage     int
}

// Normalize applies paging defaults and bounds
func (f *ListingFilter) Normalize() {
	if f.Status == "" {
		f.Status = ListingStatusActive
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
}

// Offset returns the row offset for the current page
func (f ListingFilter) Offset() int {
	return (f.Page - 1) * f.PerPage
}

// ListingPage is one page of listings
type ListingPage struct {
	Listings []Listing `json:"listings"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
}

// ListingCounts backs the admin dashboard
type ListingCounts struct {
	Active  int64 `json:"active"`
	Hidden  int64 `json:"hidden"`
	Deleted int64 `json:"deleted"`
	Total   int64 `json:"total"`
}

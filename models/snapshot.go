package models

import "time"

// DayLayout is the calendar-day format stored in Snapshot.Days.
const DayLayout = "2006-01-02"

// Snapshot is one day's engagement metrics for one product under one task.
//
// Favorites and Rating are fixed by the first observation of the day; the
// *Added columns hold the increase seen by later observations that day.
type Snapshot struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TaskID         uint      `gorm:"column:task_id;not null;uniqueIndex:idx_snapshot_key" json:"task_id"`
	MerchantID     string    `gorm:"column:merchant_id;not null;uniqueIndex:idx_snapshot_key" json:"merchant_id"`
	ProductID      string    `gorm:"column:product_id;not null;uniqueIndex:idx_snapshot_key" json:"product_id"`
	Rating         int       `gorm:"column:rating;not null;default:0" json:"rating"`
	Favorites      int       `gorm:"column:favorites;not null;default:0" json:"favorites"`
	RatingAdded    int       `gorm:"column:rating_added;not null;default:0" json:"rating_added"`
	FavoritesAdded int       `gorm:"column:favorites_added;not null;default:0" json:"favorites_added"`
	Price          float64   `gorm:"column:price;not null;default:0" json:"price"`
	Days           string    `gorm:"column:days;uniqueIndex:idx_snapshot_key" json:"days"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Snapshot) TableName() string {
	return "task_details"
}

// Key returns the natural upsert identity of the snapshot.
func (s *Snapshot) Key() SnapshotKey {
	return SnapshotKey{
		TaskID:     s.TaskID,
		MerchantID: s.MerchantID,
		ProductID:  s.ProductID,
		Day:        s.Days,
	}
}

// SnapshotKey identifies at most one Snapshot row.
type SnapshotKey struct {
	TaskID     uint
	MerchantID string
	ProductID  string
	Day        string
}

// Observation is a single scrape of a product's engagement counts.
type Observation struct {
	TaskID     uint
	MerchantID string
	ProductID  string
	Price      int
	Favorites  int
	Rating     int
	ObservedAt time.Time
}

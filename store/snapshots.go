package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/use-agent/sellerwatch/models"
	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert collides with the snapshot key.
var ErrDuplicate = errors.New("duplicate snapshot key")

// FindSnapshot looks a snapshot up by its natural key. It returns nil, nil
// when no row exists.
func (s *Store) FindSnapshot(ctx context.Context, key models.SnapshotKey) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := s.db.WithContext(ctx).
		Where("task_id = ? AND merchant_id = ? AND product_id = ? AND days = ?",
			key.TaskID, key.MerchantID, key.ProductID, key.Day).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed find snapshot %s/%s", key.ProductID, key.Day)
	}
	return &snap, nil
}

// CreateSnapshot inserts a new snapshot row.
func (s *Store) CreateSnapshot(ctx context.Context, snap *models.Snapshot) error {
	err := s.db.WithContext(ctx).Create(snap).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrapf(ErrDuplicate, "product %s day %s", snap.ProductID, snap.Days)
	}
	return errors.Wrapf(err, "failed insert snapshot %s/%s", snap.ProductID, snap.Days)
}

// UpdateSnapshotDeltas writes only the *_added columns and updated_at.
func (s *Store) UpdateSnapshotDeltas(ctx context.Context, id uint, favoritesAdded, ratingAdded int, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Snapshot{}).Where("id = ?", id).UpdateColumns(map[string]any{
		"favorites_added": favoritesAdded,
		"rating_added":    ratingAdded,
		"updated_at":      at.UTC(),
	})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed update snapshot %d", id)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the values are unchanged.
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Snapshot{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return errors.Wrapf(err, "failed look up snapshot %d", id)
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "snapshot %d", id)
	}
	return nil
}

// ListSnapshots returns the snapshots of a task, newest day first. An empty
// day returns every day.
func (s *Store) ListSnapshots(ctx context.Context, taskID uint, day string) ([]models.Snapshot, error) {
	tx := s.db.WithContext(ctx).Where("task_id = ?", taskID)
	if day != "" {
		tx = tx.Where("days = ?", day)
	}
	var rows []models.Snapshot
	if err := tx.Order("days DESC").Order("product_id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed list snapshots of task %d", taskID)
	}
	return rows, nil
}

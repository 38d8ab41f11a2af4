// Package snapshot turns engagement observations into daily snapshot rows.
package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/sellerwatch/events"
	"github.com/use-agent/sellerwatch/models"
	"github.com/use-agent/sellerwatch/store"
)

// Store is the persistence surface the recorder needs.
type Store interface {
	FindSnapshot(ctx context.Context, key models.SnapshotKey) (*models.Snapshot, error)
	CreateSnapshot(ctx context.Context, snap *models.Snapshot) error
	UpdateSnapshotDeltas(ctx context.Context, id uint, favoritesAdded, ratingAdded int, at time.Time) error
}

// Notifier receives the snapshot-refresh signal.
type Notifier interface {
	Emit(name string, data any)
}

// Recorder implements the per-day delta upsert.
type Recorder struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

// NewRecorder creates a Recorder computing calendar days in loc.
func NewRecorder(st Store, notifier Notifier, loc *time.Location) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{
		store:    st,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

// Day returns the calendar day of t in the recorder's timezone.
func (r *Recorder) Day(t time.Time) string {
	return t.In(r.loc).Format(models.DayLayout)
}

// Record stores obs as the day's baseline, or, when the day already has a
// baseline, updates the deltas against it. The stored absolute counts are
// never refreshed after the first observation of the day.
func (r *Recorder) Record(ctx context.Context, obs models.Observation) (*models.Snapshot, error) {
	observedAt := obs.ObservedAt
	if observedAt.IsZero() {
		observedAt = r.now()
	}
	key := models.SnapshotKey{
		TaskID:     obs.TaskID,
		MerchantID: obs.MerchantID,
		ProductID:  obs.ProductID,
		Day:        r.Day(observedAt),
	}

	existing, err := r.store.FindSnapshot(ctx, key)
	if err != nil {
		return nil, persistenceError("find snapshot", err)
	}

	var snap *models.Snapshot
	if existing != nil {
		snap, err = r.update(ctx, existing, obs)
	} else {
		snap, err = r.insert(ctx, key, obs)
		if errors.Is(err, store.ErrDuplicate) {
			// Another worker inserted the baseline first.
			existing, err = r.store.FindSnapshot(ctx, key)
			if err == nil && existing == nil {
				err = store.ErrNotFound
			}
			if err == nil {
				snap, err = r.update(ctx, existing, obs)
			}
		}
	}
	if err != nil {
		return nil, persistenceError("upsert snapshot", err)
	}

	if r.notifier != nil {
		r.notifier.Emit(events.SnapshotRefresh, map[string]any{
			"task_id":    snap.TaskID,
			"product_id": snap.ProductID,
			"days":       snap.Days,
		})
	}
	return snap, nil
}

func (r *Recorder) update(ctx context.Context, existing *models.Snapshot, obs models.Observation) (*models.Snapshot, error) {
	now := r.now()
	favAdded := positiveDelta(obs.Favorites, existing.Favorites)
	ratingAdded := positiveDelta(obs.Rating, existing.Rating)
	if err := r.store.UpdateSnapshotDeltas(ctx, existing.ID, favAdded, ratingAdded, now); err != nil {
		return nil, err
	}
	updated := *existing
	updated.FavoritesAdded = favAdded
	updated.RatingAdded = ratingAdded
	updated.UpdatedAt = now
	slog.Debug("snapshot deltas updated",
		"task_id", obs.TaskID,
		"product_id", obs.ProductID,
		"day", existing.Days,
		"favorites_added", favAdded,
		"rating_added", ratingAdded,
	)
	return &updated, nil
}

func (r *Recorder) insert(ctx context.Context, key models.SnapshotKey, obs models.Observation) (*models.Snapshot, error) {
	now := r.now()
	snap := &models.Snapshot{
		TaskID:     key.TaskID,
		MerchantID: key.MerchantID,
		ProductID:  key.ProductID,
		Favorites:  obs.Favorites,
		Rating:     obs.Rating,
		Price:      float64(obs.Price),
		Days:       key.Day,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.store.CreateSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	slog.Debug("snapshot baseline inserted",
		"task_id", obs.TaskID,
		"product_id", obs.ProductID,
		"day", key.Day,
		"favorites", obs.Favorites,
		"rating", obs.Rating,
	)
	return snap, nil
}

func positiveDelta(current, baseline int) int {
	if current > baseline {
		return current - baseline
	}
	return 0
}

func persistenceError(op string, err error) error {
	return models.NewCrawlError(models.ErrCodePersistence, op, err)
}

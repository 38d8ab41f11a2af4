package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/use-agent/sellerwatch/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ListRunnable returns every task not DONE, ordered by status descending.
// Rows failing validation are logged and left out.
func (s *Store) ListRunnable(ctx context.Context) ([]models.Task, error) {
	var rows []models.Task
	err := s.db.WithContext(ctx).
		Where("status <> ?", models.StatusDone).
		Order("status DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed list runnable tasks")
	}
	return validTasks(rows), nil
}

func validTasks(rows []models.Task) []models.Task {
	out := rows[:0]
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			slog.Warn("skipping malformed task row", "task_id", rows[i].ID, "error", err)
			continue
		}
		out = append(out, rows[i])
	}
	return out
}

// SetStatus writes a task's status. Unknown ids are not an error: MySQL
// reports zero affected rows for a no-op update.
func (s *Store) SetStatus(ctx context.Context, id uint, status models.TaskStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Update("status", status)
	return errors.Wrapf(res.Error, "failed update status of task %d", id)
}

// MarkRunning sets status RUNNING and last_execution in one write.
func (s *Store) MarkRunning(ctx context.Context, id uint, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(map[string]any{
		"status":         models.StatusRunning,
		"last_execution": at.UTC(),
	})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed mark task %d running", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "task %d", id)
	}
	return nil
}

// ActiveProxy returns the active proxy record, or nil when none is set.
func (s *Store) ActiveProxy(ctx context.Context) (*models.ProxyConfig, error) {
	var p models.ProxyConfig
	err := s.db.WithContext(ctx).Where("id = ?", models.ActiveProxyID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed find proxy")
	}
	if p.ProxyURL == "" {
		return nil, nil
	}
	return &p, nil
}

// SetProxy stores the active proxy endpoint.
func (s *Store) SetProxy(ctx context.Context, proxyURL string) error {
	p := models.ProxyConfig{ID: models.ActiveProxyID, ProxyURL: proxyURL}
	return errors.WithStack(s.db.WithContext(ctx).Save(&p).Error)
}

// ListTasks returns all tasks ordered by id.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	var rows []models.Task
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed list tasks")
	}
	return rows, nil
}

// GetTask loads one task by id.
func (s *Store) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "task %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed find task %d", id)
	}
	return &t, nil
}

// CreateTask validates and inserts a new task in PENDING state.
func (s *Store) CreateTask(ctx context.Context, t *models.Task) error {
	t.Status = models.StatusPending
	t.LastExecution = nil
	if err := t.Validate(); err != nil {
		return err
	}
	return errors.WithStack(s.db.WithContext(ctx).Create(t).Error)
}

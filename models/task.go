package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a crawl task. The integer values are
// persisted, and ordering by status descending yields WAITING, RUNNING,
// PENDING so interrupted and due tasks are picked before fresh ones.
type TaskStatus int

const (
	StatusPending TaskStatus = 0
	StatusRunning TaskStatus = 1
	StatusDone    TaskStatus = 2
	StatusWaiting TaskStatus = 3
)

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusDone:
		return "DONE"
	case StatusWaiting:
		return "WAITING"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	return s >= StatusPending && s <= StatusWaiting
}

// Frequency controls what happens to a task after a successful run.
type Frequency int

const (
	FrequencyOnce      Frequency = 1
	FrequencyRecurring Frequency = 2
)

func (f Frequency) String() string {
	switch f {
	case FrequencyOnce:
		return "ONCE"
	case FrequencyRecurring:
		return "RECURRING"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// Task is one configured seller catalog to crawl.
type Task struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TaskName      string     `gorm:"column:task_name" json:"task_name"`
	MerchantID    string     `gorm:"column:merchant_id;not null" json:"merchant_id"`
	MinPrice      int        `gorm:"column:min_price" json:"min_price"`
	MaxPrice      int        `gorm:"column:max_price" json:"max_price"`
	ScheduleType  int        `gorm:"column:schedule_type" json:"schedule_type"`
	ProxyURL      string     `gorm:"column:proxy_url" json:"proxy_url,omitempty"`
	Frequency     Frequency  `gorm:"column:frequency" json:"frequency"`
	Status        TaskStatus `gorm:"column:status;default:0;index" json:"status"`
	CreateTime    time.Time  `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	LastExecution *time.Time `gorm:"column:last_execution" json:"last_execution"`
}

func (Task) TableName() string {
	return "tasks"
}

// Validate rejects rows that cannot be crawled meaningfully.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.MerchantID) == "" {
		return fmt.Errorf("task %d: merchant_id is empty", t.ID)
	}
	if t.MinPrice < 0 || t.MaxPrice < 0 {
		return fmt.Errorf("task %d: negative price bound [%d, %d]", t.ID, t.MinPrice, t.MaxPrice)
	}
	if t.MinPrice > t.MaxPrice {
		return fmt.Errorf("task %d: min_price %d exceeds max_price %d", t.ID, t.MinPrice, t.MaxPrice)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("task %d: unknown status %d", t.ID, int(t.Status))
	}
	if t.Frequency != FrequencyOnce && t.Frequency != FrequencyRecurring {
		return fmt.Errorf("task %d: unknown frequency %d", t.ID, int(t.Frequency))
	}
	return nil
}

// InPriceRange reports whether price lies within [MinPrice, MaxPrice].
func (t *Task) InPriceRange(price int) bool {
	return price >= t.MinPrice && price <= t.MaxPrice
}

// ProxyConfig is the global proxy record consulted before a run.
type ProxyConfig struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	ProxyURL string `gorm:"column:proxy_url;not null" json:"proxy_url"`
}

func (ProxyConfig) TableName() string {
	return "proxy"
}

// ActiveProxyID is the row holding the active proxy endpoint.
const ActiveProxyID = 1

package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskValidate(t *testing.T) {
	valid := Task{MerchantID: "seller", MinPrice: 100, MaxPrice: 5000, Frequency: FrequencyRecurring, Status: StatusWaiting}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{"valid", func(*Task) {}, false},
		{"equal bounds", func(t *Task) { t.MinPrice, t.MaxPrice = 300, 300 }, false},
		{"blank merchant", func(t *Task) { t.MerchantID = "  " }, true},
		{"negative min", func(t *Task) { t.MinPrice = -1 }, true},
		{"inverted range", func(t *Task) { t.MinPrice, t.MaxPrice = 10, 5 }, true},
		{"unknown status", func(t *Task) { t.Status = 9 }, true},
		{"unknown frequency", func(t *Task) { t.Frequency = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			tt.mutate(&task)
			err := task.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskInPriceRange(t *testing.T) {
	task := Task{MinPrice: 100, MaxPrice: 200}
	assert.True(t, task.InPriceRange(100))
	assert.True(t, task.InPriceRange(200))
	assert.False(t, task.InPriceRange(99))
	assert.False(t, task.InPriceRange(201))
}

func TestStatusOrderingMatchesPriority(t *testing.T) {
	// Ordering by status descending picks WAITING, then RUNNING, then PENDING.
	assert.Greater(t, int(StatusWaiting), int(StatusRunning))
	assert.Greater(t, int(StatusRunning), int(StatusPending))
	assert.Equal(t, "WAITING", StatusWaiting.String())
	assert.Equal(t, "TaskStatus(7)", TaskStatus(7).String())
}

func TestCodeOf(t *testing.T) {
	base := NewCrawlError(ErrCodeNavigationTimeout, "open catalog", errors.New("deadline"))
	wrapped := fmt.Errorf("task 3: %w", base)

	assert.Equal(t, ErrCodeNavigationTimeout, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeNavigationTimeout))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
	assert.False(t, IsCode(nil, ErrCodeInternal))
	assert.Equal(t, "NAVIGATION_TIMEOUT: open catalog: deadline", base.Error())
	assert.Equal(t, &ErrorDetail{Code: ErrCodeNavigationTimeout, Message: "open catalog"}, base.ToDetail())
}
